// recorder.go — Session handle: event recording, correlation and freezing.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dev-console/pagediag/internal/buffers"
	"github.com/dev-console/pagediag/internal/classify"
	"github.com/dev-console/pagediag/internal/types"
)

// ErrInvalidSessionState is returned when a session is used after it ended.
var ErrInvalidSessionState = errors.New("invalid_session_state")

// Initial capacities for the per-category logs.
const (
	consoleSizeHint = 64
	networkSizeHint = 128
	errorsSizeHint  = 16
)

// Options configures a Session. The zero value is usable.
type Options struct {
	// OnError is called for every error-level console message and every
	// page error, after the event is recorded.
	OnError func(types.Event)
	// OnFinding is called for every finding the recorder emits live.
	OnFinding func(types.Finding)
	// MIME is the policy applied to every response. Nil disables the check.
	MIME *classify.MIMEPolicy
	// Clock supplies timestamps. Defaults to time.Now.
	Clock func() time.Time
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session records one page session.
//
// All fields below mu are protected by it. OnEvent is the single writer in
// normal use (one goroutine drains the driver's event channel), but End may
// race with it from a timeout path, so every method locks.
// Release mu before calling observer callbacks.
type Session struct {
	id        string
	target    string
	startedAt time.Time
	clock     func() time.Time
	logger    *slog.Logger
	onError   func(types.Event)
	onFinding func(types.Finding)
	mime      *classify.MIMEPolicy

	mu sync.Mutex

	ended      bool
	seq        int64         // Monotonic per-session sequence, first event is 1
	lastOffset time.Duration // Offsets never go backwards even if Clock does

	console  *buffers.OrderedLog[types.Event]
	network  *buffers.OrderedLog[types.Event] // Requests and responses interleaved in arrival order
	errors   *buffers.OrderedLog[types.Event]
	orphans  *buffers.OrderedLog[types.Event]
	findings *buffers.OrderedLog[types.Finding]

	// ============================================
	// Correlation Index
	// ============================================

	correlations []types.CorrelationEntry // One entry per request, in request order
	unmatched    map[string][]int         // URL → stack of correlations indices still awaiting a response

	navigation *types.Navigation
}

// Start opens a recording session for target.
func Start(target string, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	s := &Session{
		id:        id,
		target:    target,
		startedAt: clock(),
		clock:     clock,
		logger:    logger.With("session_id", id),
		onError:   opts.OnError,
		onFinding: opts.OnFinding,
		mime:      opts.MIME,
		console:   buffers.NewOrderedLog[types.Event](consoleSizeHint),
		network:   buffers.NewOrderedLog[types.Event](networkSizeHint),
		errors:    buffers.NewOrderedLog[types.Event](errorsSizeHint),
		orphans:   buffers.NewOrderedLog[types.Event](0),
		findings:  buffers.NewOrderedLog[types.Finding](0),
		unmatched: make(map[string][]int),
	}
	s.logger.Debug("session started", "target", target)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Target returns the URL the session observes.
func (s *Session) Target() string { return s.target }

// StartedAt returns when the session was opened.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// ============================================
// Recording
// ============================================

// OnEvent records ev. The caller's value is deep-copied, stamped with the next
// sequence number and appended to its category log. Responses are correlated
// against outstanding requests and checked against the MIME policy.
// OnEvent never blocks on I/O.
func (s *Session) OnEvent(ev types.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return fmt.Errorf("%w: session %s has ended, event %s dropped", ErrInvalidSessionState, s.id, ev.Category)
	}
	rec := s.stamp(ev.Clone())

	var (
		notifyError   bool
		newFindings   []types.Finding
		orphanURL     string
		orphanPending bool
	)
	switch rec.Category {
	case types.CategoryConsole:
		s.console.Append(rec, rec.Timestamp)
		notifyError = rec.IsError()
	case types.CategoryNetworkRequest:
		s.network.Append(rec, rec.Timestamp)
		s.addRequest(rec)
	case types.CategoryNetworkResponse:
		s.network.Append(rec, rec.Timestamp)
		if !s.matchResponse(rec) {
			s.orphans.Append(rec, rec.Timestamp)
			orphanURL, orphanPending = rec.Response.URL, true
		}
		if m, ok := s.mime.Check(rec.Response); ok {
			f := m.Finding(rec.Seq)
			s.findings.Append(f, rec.Timestamp)
			newFindings = append(newFindings, f)
		}
	case types.CategoryPageError:
		s.errors.Append(rec, rec.Timestamp)
		notifyError = true
	}
	s.mu.Unlock()

	if orphanPending {
		s.logger.Warn("orphan response", "url", orphanURL, "seq", rec.Seq)
	}
	if notifyError && s.onError != nil {
		s.onError(rec.Clone())
	}
	for _, f := range newFindings {
		s.logger.Info("finding", "verdict", f.Verdict, "pattern_id", f.PatternID, "url", f.URL)
		if s.onFinding != nil {
			s.onFinding(f)
		}
	}
	return nil
}

// stamp assigns Seq, Timestamp and Offset. Caller holds mu.
func (s *Session) stamp(ev types.Event) types.Event {
	now := s.clock()
	offset := now.Sub(s.startedAt)
	if offset < s.lastOffset {
		offset = s.lastOffset
	}
	s.lastOffset = offset
	s.seq++
	ev.Seq = s.seq
	ev.Timestamp = now
	ev.Offset = offset
	return ev
}

// addRequest opens a correlation entry. Caller holds mu.
func (s *Session) addRequest(ev types.Event) {
	url := ev.Request.URL
	s.correlations = append(s.correlations, types.CorrelationEntry{URL: url, Request: ev})
	s.unmatched[url] = append(s.unmatched[url], len(s.correlations)-1)
}

// matchResponse links ev to the most recently recorded unmatched request for
// the same URL. Caller holds mu.
func (s *Session) matchResponse(ev types.Event) bool {
	url := ev.Response.URL
	stack := s.unmatched[url]
	if len(stack) == 0 {
		return false
	}
	idx := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(s.unmatched, url)
	} else {
		s.unmatched[url] = stack[:len(stack)-1]
	}
	resp := ev
	s.correlations[idx].Response = &resp
	return true
}

// RecordNavigation stores the outcome of the session's navigation. A later
// call replaces an earlier one.
func (s *Session) RecordNavigation(status int, navErr error) error {
	nav := &types.Navigation{Status: status}
	if navErr != nil {
		nav.Error = navErr.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return fmt.Errorf("%w: session %s has ended, navigation dropped", ErrInvalidSessionState, s.id)
	}
	s.navigation = nav
	return nil
}

// ============================================
// Live Stats
// ============================================

// Stats is a point-in-time view of a running session.
type Stats struct {
	Events      int       `json:"events"`
	Pending     int       `json:"pending"`
	Orphans     int       `json:"orphans"`
	Findings    int       `json:"findings"`
	LastEventAt time.Time `json:"last_event_at,omitempty"` // Zero until the first event
}

// Stats returns current counts. Pending is the number of requests still
// awaiting a response.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := 0
	for _, stack := range s.unmatched {
		pending += len(stack)
	}
	st := Stats{
		Events:   s.console.Len() + s.network.Len() + s.errors.Len(),
		Pending:  pending,
		Orphans:  s.orphans.Len(),
		Findings: s.findings.Len(),
	}
	for _, l := range []*buffers.OrderedLog[types.Event]{s.console, s.network, s.errors} {
		if at, ok := l.LastAddedAt(); ok && at.After(st.LastEventAt) {
			st.LastEventAt = at
		}
	}
	return st
}

// ============================================
// Ending
// ============================================

// End closes the observation window and freezes the logs.
func (s *Session) End() (*types.SessionLogs, error) {
	return s.end(false, "")
}

// EndPartial closes the session early, for instance when the observation
// timeout fires. The logs are frozen and marked partial with reason.
func (s *Session) EndPartial(reason string) (*types.SessionLogs, error) {
	if reason == "" {
		reason = types.PartialObservationTimeout
	}
	return s.end(true, reason)
}

func (s *Session) end(partial bool, reason string) (*types.SessionLogs, error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s already ended", ErrInvalidSessionState, s.id)
	}
	s.ended = true

	logs := &types.SessionLogs{
		SessionID:     s.id,
		Target:        s.target,
		StartedAt:     s.startedAt,
		EndedAt:       s.clock(),
		Partial:       partial,
		PartialReason: reason,
		Console:       s.console.Snapshot(),
		Network:       s.network.Snapshot(),
		Errors:        s.errors.Snapshot(),
		Correlations:  make([]types.CorrelationEntry, len(s.correlations)),
		Orphans:       s.orphans.Snapshot(),
		Findings:      s.findings.Snapshot(),
	}
	copy(logs.Correlations, s.correlations)
	if s.navigation != nil {
		nav := *s.navigation
		logs.Navigation = &nav
	}
	s.mu.Unlock()

	incomplete := 0
	for _, c := range logs.Correlations {
		if !c.Complete() {
			incomplete++
		}
	}
	s.logger.Info("session ended",
		"target", s.target,
		"partial", partial,
		"partial_reason", reason,
		"events", logs.EventCount(),
		"incomplete_requests", incomplete,
		"orphans", len(logs.Orphans),
		"findings", len(logs.Findings))
	return logs, nil
}
