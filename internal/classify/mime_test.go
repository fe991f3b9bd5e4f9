// mime_test.go — Tests for the MIME-type policy.
package classify

import (
	"strings"
	"testing"

	"github.com/dev-console/pagediag/internal/types"
)

func response(url string, status int, contentType string) *types.NetworkResponseEvent {
	headers := types.NewHeaders(map[string]string{})
	if contentType != "" {
		headers = types.NewHeaders(map[string]string{"Content-Type": contentType})
	}
	return types.NewResponse(url, status, "", headers).Response
}

func TestMIMEPolicyCheck(t *testing.T) {
	policy := MustDefaultTable().MIME
	tests := []struct {
		name     string
		resp     *types.NetworkResponseEvent
		wantRule string
		wantHit  bool
	}{
		{"script served as html", response("https://a.test/assets/app.js", 200, "text/html; charset=utf-8"), "script_mime", true},
		{"script 404 served as html", response("https://a.test/assets/app.js", 404, "text/html"), "script_mime", true},
		{"script with query", response("https://a.test/app.mjs?v=3", 200, "text/html"), "script_mime", true},
		{"script missing content type", response("https://a.test/app.cjs", 200, ""), "script_mime", true},
		{"script correct", response("https://a.test/app.js", 200, "application/javascript"), "", false},
		{"script ecmascript", response("https://a.test/app.js", 200, "text/ecmascript"), "", false},
		{"uppercase extension", response("https://a.test/APP.JS", 200, "text/plain"), "script_mime", true},
		{"stylesheet served as html", response("https://a.test/site.css", 200, "text/html"), "stylesheet_mime", true},
		{"stylesheet correct", response("https://a.test/site.css#x", 200, "text/css"), "", false},
		{"not modified skipped", response("https://a.test/app.js", 304, ""), "", false},
		{"no content skipped", response("https://a.test/app.js", 204, ""), "", false},
		{"ungoverned extension", response("https://a.test/index.html", 200, "text/html"), "", false},
		{"json endpoint", response("https://a.test/api/data.json", 200, "text/html"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := policy.Check(tt.resp)
			if hit != tt.wantHit {
				t.Fatalf("Check(%s) hit = %v, want %v", tt.resp.URL, hit, tt.wantHit)
			}
			if got.RuleID != tt.wantRule {
				t.Errorf("RuleID = %q, want %q", got.RuleID, tt.wantRule)
			}
		})
	}
}

func TestMIMEMismatchFinding(t *testing.T) {
	policy := MustDefaultTable().MIME
	m, ok := policy.Check(response("https://a.test/assets/app.js", 200, "text/html"))
	if !ok {
		t.Fatal("expected mismatch")
	}
	f := m.Finding(12)
	if f.Verdict != types.VerdictMimeMismatch || f.Origin != types.OriginNetwork {
		t.Errorf("finding = %+v", f)
	}
	if f.EventSeq != 12 || f.URL != "https://a.test/assets/app.js" {
		t.Errorf("EventSeq/URL = %d/%q", f.EventSeq, f.URL)
	}
	if !strings.Contains(f.Text, "text/html") || !strings.Contains(f.Text, "javascript") {
		t.Errorf("Text = %q, want served and expected types", f.Text)
	}

	empty, _ := policy.Check(response("https://a.test/x.js", 200, ""))
	if !strings.Contains(empty.Describe(), "(none)") {
		t.Errorf("Describe() = %q, want (none) for missing content type", empty.Describe())
	}
}

func TestNilMIMEPolicy(t *testing.T) {
	var p *MIMEPolicy
	if _, ok := p.Check(response("https://a.test/app.js", 200, "text/html")); ok {
		t.Error("nil policy must never report a mismatch")
	}
}
