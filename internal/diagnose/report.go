// report.go — Diagnostic report model: counts, critical issues, samples.
package diagnose

import (
	"time"

	"github.com/dev-console/pagediag/internal/types"
)

// MaxSamples caps the samples kept per category.
const MaxSamples = 10

// Report status values.
const (
	StatusOK            = "ok"
	StatusIssues        = "issues"
	StatusPartial       = "partial"
	StatusPartialIssues = "partial_issues"
)

// Critical issue kinds, in report order.
const (
	IssueGenuineErrors         = "genuine_errors"
	IssueFailedRequests        = "failed_requests"
	IssueMimeMismatches        = "mime_mismatches"
	IssueVisibleFailureBanners = "visible_failure_banners"
	IssueScriptLoadErrors      = "script_load_errors"
)

// Report is the immutable result of aggregating one session. Fields are laid
// out category-major: console, network, errors, findings.
type Report struct {
	SessionID     string            `json:"session_id"`
	Target        string            `json:"target"`
	StartedAt     time.Time         `json:"started_at"`
	EndedAt       time.Time         `json:"ended_at"`
	DurationMs    int64             `json:"duration_ms"`
	Navigation    *types.Navigation `json:"navigation,omitempty"`
	Partial       bool              `json:"partial"`
	PartialReason string            `json:"partial_reason,omitempty"`

	Counts         Counts          `json:"counts"`
	CriticalIssues []CriticalIssue `json:"critical_issues"`
	Samples        Samples         `json:"samples"`

	Console      []types.Event            `json:"console"`
	Network      []types.Event            `json:"network"`
	Correlations []types.CorrelationEntry `json:"correlations"`
	Incomplete   []types.CorrelationEntry `json:"incomplete_requests"`
	Orphans      []types.Event            `json:"orphan_responses"`
	Errors       []types.Event            `json:"errors"`
	Findings     []types.Finding          `json:"findings"`
}

// Counts summarizes the session.
type Counts struct {
	ConsoleMessages int `json:"console_messages"`
	ConsoleErrors   int `json:"console_errors"`
	ConsoleWarnings int `json:"console_warnings"`

	TotalRequests      int `json:"total_requests"`
	CompletedRequests  int `json:"completed_requests"`
	FailedRequests     int `json:"failed_requests"`
	IncompleteRequests int `json:"incomplete_requests"`
	OrphanResponses    int `json:"orphan_responses"`

	PageErrors int `json:"page_errors"`

	GenuineErrors          int `json:"genuine_errors"`
	HandledErrorReferences int `json:"handled_error_references"`
	MimeMismatches         int `json:"mime_mismatches"`
	VisibleFailureBanners  int `json:"visible_failure_banners"`
	ScriptLoadErrors       int `json:"script_load_errors"`
}

// CriticalIssue is one category of problem found in the session.
type CriticalIssue struct {
	Kind    string `json:"kind"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// Sample is one representative entry of a category.
type Sample struct {
	Seq       int64  `json:"seq,omitempty"`
	URL       string `json:"url,omitempty"`
	PatternID string `json:"pattern_id,omitempty"`
	Text      string `json:"text"`
}

// Samples holds at most MaxSamples entries per category, oldest first.
type Samples struct {
	ConsoleErrors          []Sample `json:"console_errors"`
	ConsoleWarnings        []Sample `json:"console_warnings"`
	FailedRequests         []Sample `json:"failed_requests"`
	IncompleteRequests     []Sample `json:"incomplete_requests"`
	OrphanResponses        []Sample `json:"orphan_responses"`
	PageErrors             []Sample `json:"page_errors"`
	GenuineErrors          []Sample `json:"genuine_errors"`
	HandledErrorReferences []Sample `json:"handled_error_references"`
	MimeMismatches         []Sample `json:"mime_mismatches"`
	VisibleFailureBanners  []Sample `json:"visible_failure_banners"`
	ScriptLoadErrors       []Sample `json:"script_load_errors"`
}

// Status distinguishes "could not fully observe" from "observed problems".
func (r *Report) Status() string {
	critical := len(r.CriticalIssues) > 0
	switch {
	case r.Partial && critical:
		return StatusPartialIssues
	case r.Partial:
		return StatusPartial
	case critical:
		return StatusIssues
	}
	return StatusOK
}

// HasCritical reports whether any critical issue was found.
func (r *Report) HasCritical() bool {
	return len(r.CriticalIssues) > 0
}
