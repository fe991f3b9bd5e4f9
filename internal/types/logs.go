// logs.go — Correlation entries and the frozen output of a recording session.
package types

import "time"

// ============================================
// Correlation
// ============================================

// CorrelationEntry links a request to the response that answered it.
// Response is nil while the request is outstanding; an entry still without a
// response when the session ends is incomplete, not failed.
type CorrelationEntry struct {
	URL      string `json:"url"`
	Request  Event  `json:"request"`
	Response *Event `json:"response,omitempty"`
}

// Complete reports whether a response has been linked.
func (c CorrelationEntry) Complete() bool {
	return c.Response != nil
}

// Failed reports whether the linked response was not a 2xx.
// Incomplete entries are never failed.
func (c CorrelationEntry) Failed() bool {
	return c.Response != nil && c.Response.Response != nil && !c.Response.Response.Success
}

// ============================================
// Navigation
// ============================================

// Navigation records the outcome of the session's triggering navigation.
type Navigation struct {
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ============================================
// Session Logs
// ============================================

// Partial reasons recorded on SessionLogs.
const (
	PartialObservationTimeout = "observation_timeout"
	PartialCancelled          = "cancelled"
)

// SessionLogs is the frozen, read-only output of a recording session.
// Slices are owned by the SessionLogs value and are never appended to again.
type SessionLogs struct {
	SessionID  string      `json:"session_id"`
	Target     string      `json:"target"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    time.Time   `json:"ended_at"`
	Navigation *Navigation `json:"navigation,omitempty"`

	Partial       bool   `json:"partial"`
	PartialReason string `json:"partial_reason,omitempty"`

	Console []Event `json:"console"`
	Network []Event `json:"network"`
	Errors  []Event `json:"errors"`

	Correlations []CorrelationEntry `json:"correlations"`
	Orphans      []Event            `json:"orphans"`
	Findings     []Finding          `json:"findings"`
}

// EventCount returns the number of recorded events across all categories.
func (l *SessionLogs) EventCount() int {
	if l == nil {
		return 0
	}
	return len(l.Console) + len(l.Network) + len(l.Errors)
}
