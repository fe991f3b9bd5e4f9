// aggregate.go — Pure aggregation of frozen session logs into a Report.
// Aggregate reads its inputs and never writes to them; the same inputs always
// produce the same Report.
package diagnose

import (
	"fmt"

	"github.com/dev-console/pagediag/internal/types"
)

// Aggregate builds a report from frozen logs and the findings produced after
// the session ended (DOM scan, script bodies, artifact failures). Recorder
// findings come first, then findings, each in arrival order. A nil logs value
// is treated as an empty session.
func Aggregate(logs *types.SessionLogs, findings []types.Finding) *Report {
	if logs == nil {
		logs = &types.SessionLogs{}
	}
	r := &Report{
		SessionID:     logs.SessionID,
		Target:        logs.Target,
		StartedAt:     logs.StartedAt,
		EndedAt:       logs.EndedAt,
		Partial:       logs.Partial,
		PartialReason: logs.PartialReason,
		Console:       copyEvents(logs.Console),
		Network:       copyEvents(logs.Network),
		Correlations:  copyEntries(logs.Correlations),
		Incomplete:    make([]types.CorrelationEntry, 0),
		Orphans:       copyEvents(logs.Orphans),
		Errors:        copyEvents(logs.Errors),
		Findings:      make([]types.Finding, 0, len(logs.Findings)+len(findings)),
	}
	if !logs.StartedAt.IsZero() && logs.EndedAt.After(logs.StartedAt) {
		r.DurationMs = logs.EndedAt.Sub(logs.StartedAt).Milliseconds()
	}
	if logs.Navigation != nil {
		nav := *logs.Navigation
		r.Navigation = &nav
	}
	r.Findings = append(r.Findings, logs.Findings...)
	r.Findings = append(r.Findings, findings...)

	r.Samples = emptySamples()
	countConsole(r)
	countNetwork(r)
	countErrors(r)
	countFindings(r)
	r.CriticalIssues = criticalIssues(&r.Counts)
	return r
}

// ============================================
// Per-category counting
// ============================================

func countConsole(r *Report) {
	r.Counts.ConsoleMessages = len(r.Console)
	for _, ev := range r.Console {
		if ev.Console == nil {
			continue
		}
		switch ev.Console.Level {
		case types.LevelError:
			r.Counts.ConsoleErrors++
			r.Samples.ConsoleErrors = addSample(r.Samples.ConsoleErrors, eventSample(ev))
		case types.LevelWarn:
			r.Counts.ConsoleWarnings++
			r.Samples.ConsoleWarnings = addSample(r.Samples.ConsoleWarnings, eventSample(ev))
		}
	}
}

func countNetwork(r *Report) {
	r.Counts.TotalRequests = len(r.Correlations)
	for _, c := range r.Correlations {
		if !c.Complete() {
			r.Counts.IncompleteRequests++
			r.Incomplete = append(r.Incomplete, c)
			r.Samples.IncompleteRequests = addSample(r.Samples.IncompleteRequests, Sample{
				Seq:  c.Request.Seq,
				URL:  c.URL,
				Text: c.Request.Summary(),
			})
			continue
		}
		r.Counts.CompletedRequests++
		if c.Failed() {
			r.Counts.FailedRequests++
			resp := c.Response.Response
			r.Samples.FailedRequests = addSample(r.Samples.FailedRequests, Sample{
				Seq:  c.Response.Seq,
				URL:  c.URL,
				Text: fmt.Sprintf("%d %s %s", resp.Status, requestMethod(c), c.URL),
			})
		}
	}
	r.Counts.OrphanResponses = len(r.Orphans)
	for _, ev := range r.Orphans {
		r.Samples.OrphanResponses = addSample(r.Samples.OrphanResponses, eventSample(ev))
	}
}

func countErrors(r *Report) {
	r.Counts.PageErrors = len(r.Errors)
	for _, ev := range r.Errors {
		r.Samples.PageErrors = addSample(r.Samples.PageErrors, eventSample(ev))
	}
}

func countFindings(r *Report) {
	for _, f := range r.Findings {
		s := findingSample(f)
		switch f.Verdict {
		case types.VerdictGenuineError:
			r.Counts.GenuineErrors++
			r.Samples.GenuineErrors = addSample(r.Samples.GenuineErrors, s)
		case types.VerdictHandledErrorReference:
			r.Counts.HandledErrorReferences++
			r.Samples.HandledErrorReferences = addSample(r.Samples.HandledErrorReferences, s)
		case types.VerdictMimeMismatch:
			r.Counts.MimeMismatches++
			r.Samples.MimeMismatches = addSample(r.Samples.MimeMismatches, s)
		case types.VerdictVisibleFailureBanner:
			r.Counts.VisibleFailureBanners++
			r.Samples.VisibleFailureBanners = addSample(r.Samples.VisibleFailureBanners, s)
		case types.VerdictScriptLoadError:
			r.Counts.ScriptLoadErrors++
			r.Samples.ScriptLoadErrors = addSample(r.Samples.ScriptLoadErrors, s)
		}
	}
}

// criticalIssues lists every non-zero critical category in fixed order.
func criticalIssues(c *Counts) []CriticalIssue {
	out := make([]CriticalIssue, 0, 5)
	add := func(kind string, n int, noun string) {
		if n == 0 {
			return
		}
		out = append(out, CriticalIssue{Kind: kind, Count: n, Message: fmt.Sprintf("%d %s", n, plural(n, noun))})
	}
	add(IssueGenuineErrors, c.GenuineErrors, "genuine error")
	add(IssueFailedRequests, c.FailedRequests, "failed request")
	add(IssueMimeMismatches, c.MimeMismatches, "MIME type mismatch")
	add(IssueVisibleFailureBanners, c.VisibleFailureBanners, "visible failure banner")
	add(IssueScriptLoadErrors, c.ScriptLoadErrors, "script load error")
	return out
}

// ============================================
// Helpers
// ============================================

func addSample(samples []Sample, s Sample) []Sample {
	if len(samples) >= MaxSamples {
		return samples
	}
	return append(samples, s)
}

func eventSample(ev types.Event) Sample {
	s := Sample{Seq: ev.Seq, URL: ev.URL(), Text: ev.Summary()}
	if ev.Console != nil && ev.Console.Location != nil {
		s.URL = ev.Console.Location.URL
	}
	return s
}

func findingSample(f types.Finding) Sample {
	text := f.Excerpt
	if text == "" {
		text = f.Text
	}
	return Sample{Seq: f.EventSeq, URL: f.URL, PatternID: f.PatternID, Text: text}
}

func requestMethod(c types.CorrelationEntry) string {
	if c.Request.Request != nil && c.Request.Request.Method != "" {
		return c.Request.Request.Method
	}
	return "GET"
}

func emptySamples() Samples {
	return Samples{
		ConsoleErrors:          make([]Sample, 0),
		ConsoleWarnings:        make([]Sample, 0),
		FailedRequests:         make([]Sample, 0),
		IncompleteRequests:     make([]Sample, 0),
		OrphanResponses:        make([]Sample, 0),
		PageErrors:             make([]Sample, 0),
		GenuineErrors:          make([]Sample, 0),
		HandledErrorReferences: make([]Sample, 0),
		MimeMismatches:         make([]Sample, 0),
		VisibleFailureBanners:  make([]Sample, 0),
		ScriptLoadErrors:       make([]Sample, 0),
	}
}

func copyEvents(in []types.Event) []types.Event {
	out := make([]types.Event, len(in))
	copy(out, in)
	return out
}

func copyEntries(in []types.CorrelationEntry) []types.CorrelationEntry {
	out := make([]types.CorrelationEntry, len(in))
	copy(out, in)
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
