// main_test.go — End-to-end tests for the CLI commands over recorded sessions.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dev-console/pagediag/internal/report"
)

const brokenRecording = `{
  "target": "https://app.test/login",
  "status": 200,
  "html": "<html><head><script src=\"/assets/index-abc.js\"></script></head><body><h1>Credentials</h1><p>Something went wrong</p></body></html>",
  "artifacts": {"https://app.test/assets/index-abc.js": "<!doctype html><html></html>"},
  "events": [
    {"category": "network_request", "request": {"method": "GET", "url": "https://app.test/assets/index-abc.js", "resource_kind": "script"}},
    {"category": "network_response", "response": {"url": "https://app.test/assets/index-abc.js", "status": 200, "headers": {"Content-Type": "text/html"}, "success": true}},
    {"category": "console", "console": {"level": "error", "text": "Uncaught SyntaxError: Unexpected token '<'"}}
  ]
}`

// isolate points HOME at an empty directory so no user config leaks in.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func runCLI(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeRecording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(brokenRecording), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPatternsCommand(t *testing.T) {
	isolate(t)
	code, out, errOut := runCLI(t, "", "patterns")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, errOut)
	}
	for _, want := range []string{"version:", "handling:", "genuine:", "mime:"} {
		if !strings.Contains(out, want) {
			t.Errorf("patterns output missing %q", want)
		}
	}
}

func TestClassifyCommandJSONFromStdin(t *testing.T) {
	isolate(t)
	code, out, errOut := runCLI(t, "Uncaught TypeError: x is not a function", "classify", "--format", "json")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, errOut)
	}
	var got classification
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.Verdict != "genuine_error" || !got.Uncaught {
		t.Errorf("classification = %+v, want uncaught genuine error", got)
	}
}

func TestClassifyCommandHumanFromFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bundle.js")
	if err := os.WriteFile(path, []byte(`if (e.message.includes("SyntaxError")) { return }`), 0o600); err != nil {
		t.Fatal(err)
	}
	code, out, errOut := runCLI(t, "", "classify", path)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, errOut)
	}
	if !strings.Contains(out, "verdict:  handled_error_reference") {
		t.Errorf("output = %q", out)
	}
}

func TestClassifyCommandNoVerdict(t *testing.T) {
	isolate(t)
	_, out, _ := runCLI(t, "all good", "classify")
	if !strings.Contains(out, "verdict:  none") {
		t.Errorf("output = %q", out)
	}
}

func TestReplayShowAndList(t *testing.T) {
	isolate(t)
	rec := writeRecording(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "reports.db")
	harPath := filepath.Join(dir, "har", "%s.har")

	code, out, errOut := runCLI(t, "", "replay", rec, "--format", "json", "--sqlite", db, "--har-out", harPath)
	if code != 0 {
		t.Fatalf("replay exit %d, stderr: %s", code, errOut)
	}
	r, err := report.DecodeReport([]byte(out))
	if err != nil {
		t.Fatalf("DecodeReport() error = %v\n%s", err, out)
	}
	if r.Target != "https://app.test/login" {
		t.Errorf("Target = %q", r.Target)
	}
	if !r.HasCritical() || r.Counts.MimeMismatches != 1 {
		t.Errorf("report counts = %+v, want a critical MIME mismatch", r.Counts)
	}
	if _, err := os.Stat(filepath.Join(dir, "har", r.SessionID+".har")); err != nil {
		t.Errorf("HAR file not written: %v", err)
	}

	code, out, errOut = runCLI(t, "", "show", r.SessionID, "--format", "json", "--sqlite", db)
	if code != 0 {
		t.Fatalf("show exit %d, stderr: %s", code, errOut)
	}
	stored, err := report.DecodeReport([]byte(out))
	if err != nil {
		t.Fatalf("DecodeReport(show) error = %v", err)
	}
	if stored.SessionID != r.SessionID || stored.Counts != r.Counts {
		t.Errorf("stored report differs: %+v vs %+v", stored.Counts, r.Counts)
	}

	code, out, _ = runCLI(t, "", "show", r.SessionID, "--sqlite", db, "--verdict", "mime_mismatch")
	if code != 0 || !strings.Contains(out, "index-abc.js served as text/html") {
		t.Errorf("show --verdict exit %d output %q", code, out)
	}

	code, out, _ = runCLI(t, "", "list", "--sqlite", db)
	if code != 0 || !strings.Contains(out, r.SessionID) {
		t.Errorf("list exit %d output %q", code, out)
	}
}

func TestReplayHumanOutput(t *testing.T) {
	isolate(t)
	code, out, errOut := runCLI(t, "", "replay", writeRecording(t))
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, errOut)
	}
	if !strings.Contains(out, "[Issues]") || !strings.Contains(out, "Critical issues:") {
		t.Errorf("human output = %q", out)
	}
}

func TestErrors(t *testing.T) {
	isolate(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"run without url", []string{"run"}, "requires at least 1 arg"},
		{"show without store", []string{"show", "abc"}, "no_report_store"},
		{"missing recording", []string{"replay", "/nonexistent/rec.json"}, "rec.json"},
		{"bad format", []string{"patterns", "--format", "csv"}, "format"},
		{"zero max scripts", []string{"run", "https://app.test/", "--max-scripts", "0"}, "max_scripts must be at least 1"},
		{"bad pattern file", []string{"patterns", "--patterns", "/nonexistent/p.yaml"}, "p.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, "", tt.args...)
			if code != 1 {
				t.Errorf("exit = %d, want 1", code)
			}
			if !strings.Contains(errOut, tt.want) {
				t.Errorf("stderr %q does not mention %q", errOut, tt.want)
			}
		})
	}
}
