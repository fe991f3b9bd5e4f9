// finding.go — Classified findings produced by the recorder and classifier.
package types

// Origin names where the classified text came from.
type Origin string

const (
	OriginConsole    Origin = "console"
	OriginScriptBody Origin = "script_body"
	OriginPageError  Origin = "page_error"
	OriginNetwork    Origin = "network"
	OriginDOM        Origin = "dom"
)

// Verdict is the single classification assigned to a finding.
type Verdict string

const (
	VerdictNone                  Verdict = ""
	VerdictHandledErrorReference Verdict = "handled_error_reference"
	VerdictGenuineError          Verdict = "genuine_error"
	VerdictMimeMismatch          Verdict = "mime_mismatch"
	VerdictVisibleFailureBanner  Verdict = "visible_failure_banner"
	// VerdictScriptLoadError marks an artifact that could not be fetched for
	// classification.
	VerdictScriptLoadError Verdict = "script_load_error"
)

// Finding is one classified observation. Findings are values; once appended
// to a log they are never edited.
type Finding struct {
	Origin    Origin  `json:"origin"`
	Verdict   Verdict `json:"verdict"`
	PatternID string  `json:"pattern_id"`
	Text      string  `json:"text"`
	Excerpt   string  `json:"excerpt,omitempty"`
	URL       string  `json:"url,omitempty"`
	EventSeq  int64   `json:"event_seq,omitempty"`

	HandlingMatches int `json:"handling_matches,omitempty"`
	GenuineMatches  int `json:"genuine_matches,omitempty"`
}

// IsCritical reports whether the verdict flags the session as problematic.
func (f Finding) IsCritical() bool {
	switch f.Verdict {
	case VerdictGenuineError, VerdictMimeMismatch, VerdictVisibleFailureBanner, VerdictScriptLoadError:
		return true
	}
	return false
}
