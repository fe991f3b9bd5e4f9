// sink.go — Report destinations and fan-out.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dev-console/pagediag/internal/diagnose"
)

// Sink receives finished reports.
type Sink interface {
	Emit(ctx context.Context, r *diagnose.Report) error
}

// JSONSink writes each report as JSON to W.
type JSONSink struct {
	W io.Writer
}

// Emit implements Sink.
func (s JSONSink) Emit(_ context.Context, r *diagnose.Report) error {
	return WriteJSON(s.W, r)
}

// HumanSink writes each report as text to W.
type HumanSink struct {
	W io.Writer
}

// Emit implements Sink.
func (s HumanSink) Emit(_ context.Context, r *diagnose.Report) error {
	return RenderHuman(s.W, r)
}

// HARSink writes each report's correlation table to a HAR file. With several
// reports per run, Path may contain one %s verb, replaced by the session ID.
type HARSink struct {
	Path           string
	CreatorVersion string
}

// Emit implements Sink.
func (s HARSink) Emit(_ context.Context, r *diagnose.Report) error {
	path := s.Path
	if strings.Contains(path, "%s") {
		path = fmt.Sprintf(path, r.SessionID)
	}
	_, err := WriteHARFile(r, s.CreatorVersion, path)
	return err
}

// Multi fans a report out to every sink, in order. All sinks run even when
// one fails; the failures are joined.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(ctx context.Context, r *diagnose.Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
