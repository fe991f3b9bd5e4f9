// aggregate_test.go — Tests for report aggregation.
package diagnose

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/dev-console/pagediag/internal/classify"
	"github.com/dev-console/pagediag/internal/session"
	"github.com/dev-console/pagediag/internal/types"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(5 * time.Millisecond)
		return now
	}
}

func record(t *testing.T, s *session.Session, evs ...types.Event) {
	t.Helper()
	for _, ev := range evs {
		if err := s.OnEvent(ev); err != nil {
			t.Fatalf("OnEvent(%s) error = %v", ev.Summary(), err)
		}
	}
}

func headers(ct string) types.Headers {
	return types.NewHeaders(map[string]string{"Content-Type": ct})
}

// brokenLoginLogs records a login page whose bundle is served as HTML and
// whose feature-flag call fails.
func brokenLoginLogs(t *testing.T) *types.SessionLogs {
	t.Helper()
	s := session.Start("https://app.test/login", session.Options{
		Clock: fixedClock(),
		MIME:  classify.MustDefaultTable().MIME,
	})
	record(t, s,
		types.NewRequest("GET", "https://app.test/login", nil, types.ResourceDocument),
		types.NewResponse("https://app.test/login", 200, "OK", headers("text/html")),
		types.NewRequest("GET", "https://app.test/assets/app.js", nil, types.ResourceScript),
		types.NewResponse("https://app.test/assets/app.js", 200, "OK", headers("text/html")),
		types.NewConsole(types.LevelError, "Uncaught SyntaxError: Unexpected token '<'", nil),
		types.NewConsole(types.LevelWarn, "slow network", nil),
		types.NewRequest("GET", "https://app.test/api/feature-flags", nil, types.ResourceFetch),
		types.NewResponse("https://app.test/api/feature-flags", 404, "Not Found", headers("application/json")),
		types.NewRequest("GET", "https://app.test/api/pending", nil, types.ResourceXHR),
		types.NewPageError("Uncaught SyntaxError: Unexpected token '<'", ""),
	)
	if err := s.RecordNavigation(200, nil); err != nil {
		t.Fatal(err)
	}
	logs, err := s.End()
	if err != nil {
		t.Fatal(err)
	}
	return logs
}

func TestAggregateEmptySession(t *testing.T) {
	for name, logs := range map[string]*types.SessionLogs{
		"nil":   nil,
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			r := Aggregate(logs, nil)
			if !reflect.DeepEqual(r.Counts, Counts{}) {
				t.Errorf("Counts = %+v, want zero", r.Counts)
			}
			if len(r.CriticalIssues) != 0 {
				t.Errorf("CriticalIssues = %+v, want none", r.CriticalIssues)
			}
			if r.Status() != StatusOK {
				t.Errorf("Status() = %q, want ok", r.Status())
			}
			out, err := json.Marshal(r)
			if err != nil {
				t.Fatal(err)
			}
			if bytes.Contains(out, []byte("null")) {
				t.Errorf("empty report serializes null collections: %s", out)
			}
		})
	}
}

func TestAggregateBrokenLogin(t *testing.T) {
	logs := brokenLoginLogs(t)
	c := classify.New(nil)
	var findings []types.Finding
	for _, ev := range logs.Console {
		if f, ok := c.ClassifyConsole(ev); ok {
			findings = append(findings, f)
		}
	}
	for _, ev := range logs.Errors {
		if f, ok := c.ClassifyPageError(ev); ok {
			findings = append(findings, f)
		}
	}

	r := Aggregate(logs, findings)
	want := Counts{
		ConsoleMessages:    2,
		ConsoleErrors:      1,
		ConsoleWarnings:    1,
		TotalRequests:      4,
		CompletedRequests:  3,
		FailedRequests:     1,
		IncompleteRequests: 1,
		PageErrors:         1,
		GenuineErrors:      2,
		MimeMismatches:     1,
	}
	if r.Counts != want {
		t.Errorf("Counts = %+v\nwant     %+v", r.Counts, want)
	}

	kinds := make([]string, 0, len(r.CriticalIssues))
	for _, ci := range r.CriticalIssues {
		kinds = append(kinds, ci.Kind)
	}
	wantKinds := []string{IssueGenuineErrors, IssueFailedRequests, IssueMimeMismatches}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Errorf("critical kinds = %v, want %v", kinds, wantKinds)
	}
	if r.CriticalIssues[0].Message != "2 genuine errors" || r.CriticalIssues[1].Message != "1 failed request" {
		t.Errorf("messages = %q, %q", r.CriticalIssues[0].Message, r.CriticalIssues[1].Message)
	}
	if r.Status() != StatusIssues {
		t.Errorf("Status() = %q, want issues", r.Status())
	}
	if len(r.Incomplete) != 1 || r.Incomplete[0].URL != "https://app.test/api/pending" {
		t.Errorf("Incomplete = %+v", r.Incomplete)
	}
	if got := r.Samples.FailedRequests[0].Text; got != "404 GET https://app.test/api/feature-flags" {
		t.Errorf("failed request sample = %q", got)
	}
	// Recorder findings precede caller findings.
	if r.Findings[0].Verdict != types.VerdictMimeMismatch {
		t.Errorf("first finding = %q, want recorder MIME finding", r.Findings[0].Verdict)
	}
	if r.Navigation == nil || r.Navigation.Status != 200 {
		t.Errorf("Navigation = %+v", r.Navigation)
	}
	if r.DurationMs <= 0 {
		t.Errorf("DurationMs = %d, want > 0", r.DurationMs)
	}
}

func TestAggregateHandledReferenceIsNotCritical(t *testing.T) {
	logs := &types.SessionLogs{}
	c := classify.New(nil)
	f, ok := c.ClassifyScript("https://app.test/assets/index.js",
		[]byte(`if (e.message.includes("SyntaxError")) { return null; }`))
	if !ok {
		t.Fatal("expected handled finding")
	}
	r := Aggregate(logs, []types.Finding{f})
	if r.Counts.HandledErrorReferences != 1 || r.Counts.GenuineErrors != 0 {
		t.Errorf("Counts = %+v", r.Counts)
	}
	if r.HasCritical() {
		t.Errorf("handled reference raised critical issues: %+v", r.CriticalIssues)
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	logs := brokenLoginLogs(t)
	extra := []types.Finding{{Origin: types.OriginDOM, Verdict: types.VerdictVisibleFailureBanner, PatternID: "something_went_wrong", Text: "Something went wrong"}}

	first, err := json.Marshal(Aggregate(logs, extra))
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(Aggregate(logs, extra))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("aggregating the same logs twice produced different JSON")
	}
}

func TestAggregateDoesNotMutateInputs(t *testing.T) {
	logs := brokenLoginLogs(t)
	before, _ := json.Marshal(logs)
	findings := []types.Finding{{Verdict: types.VerdictScriptLoadError, Text: "x"}}

	r := Aggregate(logs, findings)
	r.Console[0].Seq = 999
	r.Findings[0].Text = "changed"

	after, _ := json.Marshal(logs)
	if !bytes.Equal(before, after) {
		t.Error("Aggregate or report edits changed the input logs")
	}
	if findings[0].Text != "x" {
		t.Error("report edits changed the caller's findings")
	}
}

func TestFailedNeverExceedsResponded(t *testing.T) {
	for n := 0; n < 6; n++ {
		logs := &types.SessionLogs{}
		for i := 0; i <= n; i++ {
			url := fmt.Sprintf("https://app.test/r%d", i)
			entry := types.CorrelationEntry{URL: url, Request: types.NewRequest("GET", url, nil, types.ResourceFetch)}
			if i%2 == 0 {
				resp := types.NewResponse(url, 500, "", nil)
				entry.Response = &resp
			}
			logs.Correlations = append(logs.Correlations, entry)
		}
		r := Aggregate(logs, nil)
		if r.Counts.FailedRequests > r.Counts.CompletedRequests {
			t.Errorf("n=%d: failed %d > completed %d", n, r.Counts.FailedRequests, r.Counts.CompletedRequests)
		}
		if r.Counts.CompletedRequests+r.Counts.IncompleteRequests != r.Counts.TotalRequests {
			t.Errorf("n=%d: completed+incomplete != total", n)
		}
	}
}

func TestSamplesAreCapped(t *testing.T) {
	logs := &types.SessionLogs{}
	for i := 0; i < MaxSamples+5; i++ {
		ev := types.NewConsole(types.LevelError, fmt.Sprintf("err %d", i), nil)
		ev.Seq = int64(i + 1)
		logs.Console = append(logs.Console, ev)
	}
	r := Aggregate(logs, nil)
	if r.Counts.ConsoleErrors != MaxSamples+5 {
		t.Errorf("ConsoleErrors = %d", r.Counts.ConsoleErrors)
	}
	if len(r.Samples.ConsoleErrors) != MaxSamples {
		t.Errorf("kept %d samples, want %d", len(r.Samples.ConsoleErrors), MaxSamples)
	}
	if r.Samples.ConsoleErrors[0].Seq != 1 {
		t.Errorf("first sample Seq = %d, want oldest", r.Samples.ConsoleErrors[0].Seq)
	}
}

func TestStatus(t *testing.T) {
	issue := []CriticalIssue{{Kind: IssueGenuineErrors, Count: 1}}
	tests := []struct {
		partial bool
		issues  []CriticalIssue
		want    string
	}{
		{false, nil, StatusOK},
		{false, issue, StatusIssues},
		{true, nil, StatusPartial},
		{true, issue, StatusPartialIssues},
	}
	for _, tt := range tests {
		r := &Report{Partial: tt.partial, CriticalIssues: tt.issues}
		if got := r.Status(); got != tt.want {
			t.Errorf("Status(partial=%v, issues=%d) = %q, want %q", tt.partial, len(tt.issues), got, tt.want)
		}
	}
}
