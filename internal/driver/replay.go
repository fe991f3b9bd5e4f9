// replay.go — Scripted page driver replaying a recorded session file.
// Used for offline diagnosis and in tests: the file carries the events in
// arrival order, the navigation result, the final DOM and artifact bodies.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dev-console/pagediag/internal/types"
)

// Recording is the on-disk form of a replayable session.
type Recording struct {
	Target     string            `json:"target"`
	Status     int               `json:"status"`
	NavError   string            `json:"nav_error,omitempty"`
	HTML       string            `json:"html,omitempty"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
	Events     []types.Event     `json:"events"`
	RealTiming bool              `json:"real_timing,omitempty"`
}

// LoadRecording reads and validates a recording file.
func LoadRecording(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recording_read_failed: %w", err)
	}
	return ParseRecording(data)
}

// ParseRecording decodes and validates recording JSON.
func ParseRecording(data []byte) (*Recording, error) {
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("recording_parse_failed: %w", err)
	}
	for i, ev := range rec.Events {
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("recording_parse_failed: event %d: %w", i, err)
		}
	}
	return &rec, nil
}

// Replay is a Page that emits a recording's events. Events are emitted
// after Navigate is called, in file order; with RealTiming the recorded
// offsets are honored, otherwise events are emitted back to back.
type Replay struct {
	rec *Recording

	mu        sync.Mutex
	navigated chan struct{}
	navOnce   sync.Once
	closed    bool
}

// NewReplay returns a page over rec.
func NewReplay(rec *Recording) *Replay {
	return &Replay{rec: rec, navigated: make(chan struct{})}
}

// Events implements Page. The channel closes after the last event or when
// ctx ends.
func (p *Replay) Events(ctx context.Context) (<-chan types.Event, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("replay_closed: page already closed")
	}

	ch := make(chan types.Event)
	go func() {
		defer close(ch)
		select {
		case <-p.navigated:
		case <-ctx.Done():
			return
		}
		start := time.Now()
		for _, ev := range p.rec.Events {
			if p.rec.RealTiming && ev.Offset > 0 {
				wait := ev.Offset - time.Since(start)
				if wait > 0 {
					timer := time.NewTimer(wait)
					select {
					case <-timer.C:
					case <-ctx.Done():
						timer.Stop()
						return
					}
				}
			}
			select {
			case ch <- ev.Clone():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Navigate implements Page and starts the replay.
func (p *Replay) Navigate(ctx context.Context, url string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.navOnce.Do(func() { close(p.navigated) })
	if p.rec.NavError != "" {
		return p.rec.Status, fmt.Errorf("navigate %s: %s", url, p.rec.NavError)
	}
	return p.rec.Status, nil
}

// FetchArtifact implements Page from the recording's artifact map.
func (p *Replay) FetchArtifact(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, ok := p.rec.Artifacts[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoArtifact, url)
	}
	return []byte(body), nil
}

// HTML implements Page.
func (p *Replay) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.rec.HTML, nil
}

// Close implements Page.
func (p *Replay) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
