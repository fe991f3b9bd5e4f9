// findings.go — Builds findings from recorded events and fetched artifacts.
package classify

import (
	"fmt"

	"github.com/dev-console/pagediag/internal/types"
)

// ArtifactFetchPatternID identifies findings for scripts that could not be fetched.
const ArtifactFetchPatternID = "artifact_fetch_failure"

// PageErrorPatternID identifies findings raised directly from page errors.
const PageErrorPatternID = "page_error"

// ClassifyConsole classifies an error- or warning-level console message.
// Lower levels, and messages matching no pattern, yield ok=false.
func (c *Classifier) ClassifyConsole(ev types.Event) (types.Finding, bool) {
	if ev.Console == nil {
		return types.Finding{}, false
	}
	if ev.Console.Level != types.LevelError && ev.Console.Level != types.LevelWarn {
		return types.Finding{}, false
	}
	res := c.Classify(ev.Console.Text)
	if res.Verdict == types.VerdictNone {
		return types.Finding{}, false
	}
	f := findingFromResult(types.OriginConsole, ev.Console.Text, res)
	f.EventSeq = ev.Seq
	if ev.Console.Location != nil {
		f.URL = ev.Console.Location.URL
	}
	return f, true
}

// ClassifyPageError turns an uncaught page error into a finding. Page errors
// reached the window's error handler, so a handling-reference match in the
// message text does not demote them; the matched genuine pattern is reported
// when there is one.
func (c *Classifier) ClassifyPageError(ev types.Event) (types.Finding, bool) {
	if ev.PageError == nil {
		return types.Finding{}, false
	}
	text := ev.PageError.Message
	res := c.Classify(text)
	f := types.Finding{
		Origin:          types.OriginPageError,
		Verdict:         types.VerdictGenuineError,
		PatternID:       PageErrorPatternID,
		Text:            text,
		Excerpt:         truncate(text, maxExcerpt),
		EventSeq:        ev.Seq,
		HandlingMatches: res.HandlingMatches,
		GenuineMatches:  res.GenuineMatches,
	}
	if res.Verdict == types.VerdictGenuineError {
		f.PatternID = res.PatternID
		f.Excerpt = res.Excerpt
	}
	return f, true
}

// ClassifyScript classifies a fetched script body as a whole.
func (c *Classifier) ClassifyScript(url string, body []byte) (types.Finding, bool) {
	text := string(body)
	res := c.Classify(text)
	if res.Verdict == types.VerdictNone {
		return types.Finding{}, false
	}
	f := findingFromResult(types.OriginScriptBody, res.Excerpt, res)
	f.URL = url
	return f, true
}

// ArtifactFetchFailure records a script that could not be fetched.
func ArtifactFetchFailure(url string, err error) types.Finding {
	return types.Finding{
		Origin:    types.OriginScriptBody,
		Verdict:   types.VerdictScriptLoadError,
		PatternID: ArtifactFetchPatternID,
		Text:      fmt.Sprintf("script load error: %v", err),
		URL:       url,
	}
}

func findingFromResult(origin types.Origin, text string, res Result) types.Finding {
	return types.Finding{
		Origin:          origin,
		Verdict:         res.Verdict,
		PatternID:       res.PatternID,
		Text:            text,
		Excerpt:         res.Excerpt,
		HandlingMatches: res.HandlingMatches,
		GenuineMatches:  res.GenuineMatches,
	}
}
