// driver.go — Page driver contract consumed by the monitor.
// A driver adapts one browser page's native console, network and error
// sources into a single types.Event stream. Drivers do not stamp Seq,
// Timestamp or Offset: the session recorder owns those.
package driver

import (
	"context"
	"errors"

	"github.com/dev-console/pagediag/internal/types"
)

// ErrNoArtifact is returned by FetchArtifact when a resource is unavailable
// to the driver.
var ErrNoArtifact = errors.New("artifact_unavailable")

// Page is one observable browser page.
type Page interface {
	// Events subscribes to the page's signals. The channel is closed when
	// ctx ends or the source is exhausted. Call before Navigate so no
	// event of the page load is missed.
	Events(ctx context.Context) (<-chan types.Event, error)
	// Navigate loads url and returns the document's HTTP status.
	Navigate(ctx context.Context, url string) (int, error)
	// FetchArtifact returns the body of a resource referenced by the page.
	FetchArtifact(ctx context.Context, url string) ([]byte, error)
	// HTML returns the current serialized DOM.
	HTML(ctx context.Context) (string, error)
	// Close releases the page.
	Close() error
}

// Opener creates pages, one per monitored target.
type Opener interface {
	NewPage(ctx context.Context) (Page, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Page, error)

// NewPage implements Opener.
func (f OpenerFunc) NewPage(ctx context.Context) (Page, error) {
	return f(ctx)
}
