// human.go — Human-readable report output for terminal use.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dev-console/pagediag/internal/diagnose"
)

// RenderHuman writes r as plain text: a status line, critical issues, counts,
// then up to diagnose.MaxSamples samples per non-empty category.
func RenderHuman(w io.Writer, r *diagnose.Report) error {
	var sb strings.Builder

	switch r.Status() {
	case diagnose.StatusOK:
		sb.WriteString(fmt.Sprintf("[OK] %s\n", r.Target))
	case diagnose.StatusIssues:
		sb.WriteString(fmt.Sprintf("[Issues] %s\n", r.Target))
	default:
		sb.WriteString(fmt.Sprintf("[Partial] %s (%s)\n", r.Target, r.PartialReason))
	}
	sb.WriteString(fmt.Sprintf("   Session: %s  Duration: %dms\n", r.SessionID, r.DurationMs))
	if nav := r.Navigation; nav != nil {
		if nav.Error != "" {
			sb.WriteString(fmt.Sprintf("   Navigation: failed: %s\n", nav.Error))
		} else {
			sb.WriteString(fmt.Sprintf("   Navigation: HTTP %d\n", nav.Status))
		}
	}

	if len(r.CriticalIssues) > 0 {
		sb.WriteString("\nCritical issues:\n")
		for _, ci := range r.CriticalIssues {
			sb.WriteString(fmt.Sprintf("   - %s\n", ci.Message))
		}
	}

	c := r.Counts
	sb.WriteString("\nCounts:\n")
	writeCount(&sb, "Console messages", c.ConsoleMessages)
	writeCount(&sb, "Console errors", c.ConsoleErrors)
	writeCount(&sb, "Console warnings", c.ConsoleWarnings)
	writeCount(&sb, "Requests", c.TotalRequests)
	writeCount(&sb, "Completed", c.CompletedRequests)
	writeCount(&sb, "Failed", c.FailedRequests)
	writeCount(&sb, "Incomplete", c.IncompleteRequests)
	writeCount(&sb, "Orphan responses", c.OrphanResponses)
	writeCount(&sb, "Page errors", c.PageErrors)
	writeCount(&sb, "Genuine errors", c.GenuineErrors)
	writeCount(&sb, "Handled references", c.HandledErrorReferences)
	writeCount(&sb, "MIME mismatches", c.MimeMismatches)
	writeCount(&sb, "Failure banners", c.VisibleFailureBanners)
	writeCount(&sb, "Script load errors", c.ScriptLoadErrors)

	s := r.Samples
	writeSamples(&sb, "Genuine errors", s.GenuineErrors)
	writeSamples(&sb, "Failed requests", s.FailedRequests)
	writeSamples(&sb, "MIME mismatches", s.MimeMismatches)
	writeSamples(&sb, "Failure banners", s.VisibleFailureBanners)
	writeSamples(&sb, "Script load errors", s.ScriptLoadErrors)
	writeSamples(&sb, "Page errors", s.PageErrors)
	writeSamples(&sb, "Console errors", s.ConsoleErrors)
	writeSamples(&sb, "Console warnings", s.ConsoleWarnings)
	writeSamples(&sb, "Incomplete requests", s.IncompleteRequests)
	writeSamples(&sb, "Orphan responses", s.OrphanResponses)
	writeSamples(&sb, "Handled references", s.HandledErrorReferences)

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeCount(sb *strings.Builder, label string, n int) {
	sb.WriteString(fmt.Sprintf("   %-20s %d\n", label+":", n))
}

func writeSamples(sb *strings.Builder, title string, samples []diagnose.Sample) {
	if len(samples) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("\n%s:\n", title))
	for _, s := range samples {
		line := s.Text
		if s.PatternID != "" {
			line = fmt.Sprintf("[%s] %s", s.PatternID, line)
		}
		if s.URL != "" && !strings.Contains(line, s.URL) {
			line = fmt.Sprintf("%s (%s)", line, s.URL)
		}
		sb.WriteString(fmt.Sprintf("   - %s\n", line))
	}
}
