// har.go — HAR 1.2 export of a session's correlation table.
// Converts correlated request/response pairs into HTTP Archive format for
// import into browser DevTools, Charles Proxy, and other HAR consumers.
// Incomplete requests are exported with status 0 and a comment.
package report

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chromedp/cdproto/har"

	"github.com/dev-console/pagediag/internal/diagnose"
	"github.com/dev-console/pagediag/internal/types"
)

// HARCreatorName is recorded as the creator of exported archives.
const HARCreatorName = "pagediag"

// HARExportResult is returned when saving HAR to a file.
type HARExportResult struct {
	SavedTo       string `json:"saved_to"`
	EntriesCount  int    `json:"entries_count"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// ============================================
// Export Functions
// ============================================

// BuildHAR converts the report's correlation table into a HAR log. Entries
// follow request order.
func BuildHAR(r *diagnose.Report, creatorVersion string) *har.HAR {
	entries := make([]*har.Entry, 0, len(r.Correlations))
	for _, c := range r.Correlations {
		entries = append(entries, correlationToHAREntry(c))
	}
	return &har.HAR{
		Log: &har.Log{
			Version: "1.2",
			Creator: &har.Creator{Name: HARCreatorName, Version: creatorVersion},
			Entries: entries,
			Comment: fmt.Sprintf("session %s for %s", r.SessionID, r.Target),
		},
	}
}

// WriteHARFile writes the report's HAR log to path, creating parent
// directories as needed.
func WriteHARFile(r *diagnose.Report, creatorVersion, path string) (HARExportResult, error) {
	if strings.Contains(filepath.ToSlash(path), "../") {
		return HARExportResult{}, fmt.Errorf("har_path_unsafe: path must not traverse upward: %s", path)
	}
	log := BuildHAR(r, creatorVersion)
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return HARExportResult{}, fmt.Errorf("har_marshal_failed: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return HARExportResult{}, fmt.Errorf("mkdir_failed: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return HARExportResult{}, fmt.Errorf("write_file_failed: %w", err)
	}
	return HARExportResult{
		SavedTo:       path,
		EntriesCount:  len(log.Log.Entries),
		FileSizeBytes: int64(len(data)),
	}, nil
}

// ============================================
// Conversion
// ============================================

func correlationToHAREntry(c types.CorrelationEntry) *har.Entry {
	entry := &har.Entry{
		StartedDateTime: c.Request.Timestamp.UTC().Format(time.RFC3339Nano),
		Request:         buildHARRequest(c.Request),
		Response:        buildHARResponse(c.Response),
		Cache:           &har.Cache{},
		Timings:         &har.Timings{Send: -1, Wait: -1, Receive: -1},
	}
	if c.Response != nil {
		elapsed := float64(c.Response.Offset-c.Request.Offset) / float64(time.Millisecond)
		if elapsed < 0 {
			elapsed = 0
		}
		entry.Time = elapsed
		entry.Timings.Wait = elapsed
	} else {
		entry.Comment = "incomplete: no response observed before the session ended"
	}
	return entry
}

func buildHARRequest(ev types.Event) *har.Request {
	req := &har.Request{
		Method:      "GET",
		HTTPVersion: "HTTP/1.1",
		Cookies:     make([]*har.Cookie, 0),
		Headers:     make([]*har.NameValuePair, 0),
		QueryString: make([]*har.NameValuePair, 0),
		HeadersSize: -1,
		BodySize:    0,
	}
	if r := ev.Request; r != nil {
		if r.Method != "" {
			req.Method = r.Method
		}
		req.URL = r.URL
		req.Headers = headerPairs(r.Headers)
		req.QueryString = parseQueryString(r.URL)
		req.Comment = string(r.ResourceKind)
	}
	return req
}

func buildHARResponse(ev *types.Event) *har.Response {
	resp := &har.Response{
		HTTPVersion: "HTTP/1.1",
		Cookies:     make([]*har.Cookie, 0),
		Headers:     make([]*har.NameValuePair, 0),
		Content:     &har.Content{Size: -1},
		HeadersSize: -1,
		BodySize:    -1,
	}
	if ev == nil || ev.Response == nil {
		return resp
	}
	r := ev.Response
	resp.Status = int64(r.Status)
	resp.StatusText = r.StatusText
	if resp.StatusText == "" {
		resp.StatusText = httpStatusText(r.Status)
	}
	resp.Headers = headerPairs(r.Headers)
	resp.Content.MimeType = r.Headers.Get("content-type")
	resp.RedirectURL = r.Headers.Get("location")
	return resp
}

// ============================================
// Helpers
// ============================================

// headerPairs renders headers sorted by name for stable output.
func headerPairs(h types.Headers) []*har.NameValuePair {
	out := make([]*har.NameValuePair, 0, len(h))
	for name, value := range h {
		out = append(out, &har.NameValuePair{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// parseQueryString extracts query parameters from a URL as name/value pairs,
// sorted by name.
func parseQueryString(rawURL string) []*har.NameValuePair {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return make([]*har.NameValuePair, 0)
	}
	params := parsed.Query()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	result := make([]*har.NameValuePair, 0, len(params))
	for _, name := range names {
		for _, val := range params[name] {
			result = append(result, &har.NameValuePair{Name: name, Value: val})
		}
	}
	return result
}

// httpStatusText returns the standard text for an HTTP status code.
func httpStatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 204:
		return "No Content"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	default:
		return ""
	}
}
