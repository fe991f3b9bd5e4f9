// mime.go — MIME-type policy for script and stylesheet responses.
// A script URL served without a JavaScript media type (or a stylesheet without
// text/css) usually means the server answered with an HTML fallback page, which
// the browser then refuses to execute.
package classify

import (
	"fmt"
	"strings"

	"github.com/dev-console/pagediag/internal/types"
	"github.com/dev-console/pagediag/internal/util"
)

// MIMEPolicy checks response content types against URL extensions.
type MIMEPolicy struct {
	skip  map[int]bool
	rules []mimeRule
}

type mimeRule struct {
	id         string
	extensions []string
	expect     []string
}

// MIMEMismatch describes one failed check.
type MIMEMismatch struct {
	RuleID      string
	URL         string
	Status      int
	ContentType string
	Expected    []string
}

// Describe renders the mismatch as finding text.
func (m MIMEMismatch) Describe() string {
	ct := m.ContentType
	if ct == "" {
		ct = "(none)"
	}
	return fmt.Sprintf("%s served as %s (status %d), expected %s", m.URL, ct, m.Status, strings.Join(m.Expected, " or "))
}

func newMIMEPolicy(spec MIMESpec) *MIMEPolicy {
	p := &MIMEPolicy{skip: make(map[int]bool, len(spec.SkipStatuses))}
	for _, s := range spec.SkipStatuses {
		p.skip[s] = true
	}
	for _, r := range spec.Rules {
		rule := mimeRule{id: r.ID}
		for _, ext := range r.Extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext != "" && !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			if ext != "" {
				rule.extensions = append(rule.extensions, ext)
			}
		}
		for _, e := range r.Expect {
			if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
				rule.expect = append(rule.expect, e)
			}
		}
		if len(rule.extensions) > 0 && len(rule.expect) > 0 {
			p.rules = append(p.rules, rule)
		}
	}
	return p
}

// Check inspects a response. It returns ok=false when the URL has no governed
// extension, the status is exempt, or the content type satisfies the rule.
func (p *MIMEPolicy) Check(resp *types.NetworkResponseEvent) (MIMEMismatch, bool) {
	if p == nil || resp == nil || p.skip[resp.Status] {
		return MIMEMismatch{}, false
	}
	path := strings.ToLower(util.ExtractURLPath(resp.URL))
	contentType := resp.Headers.Get("content-type")
	lowered := strings.ToLower(contentType)
	for _, r := range p.rules {
		if !hasAnySuffix(path, r.extensions) {
			continue
		}
		for _, want := range r.expect {
			if strings.Contains(lowered, want) {
				return MIMEMismatch{}, false
			}
		}
		return MIMEMismatch{
			RuleID:      r.id,
			URL:         resp.URL,
			Status:      resp.Status,
			ContentType: contentType,
			Expected:    append([]string(nil), r.expect...),
		}, true
	}
	return MIMEMismatch{}, false
}

// Finding converts a mismatch into a MimeMismatch finding.
func (m MIMEMismatch) Finding(seq int64) types.Finding {
	return types.Finding{
		Origin:    types.OriginNetwork,
		Verdict:   types.VerdictMimeMismatch,
		PatternID: m.RuleID,
		Text:      m.Describe(),
		URL:       m.URL,
		EventSeq:  seq,
	}
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
