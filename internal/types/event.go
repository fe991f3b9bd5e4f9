// event.go — Uniform event sum type delivered by driver adapters.
// Every event carries a category tag and exactly one payload. The recorder
// stamps Seq, Timestamp and Offset when the event is recorded.
package types

import (
	"fmt"
	"strings"
	"time"
)

// ============================================
// Categories
// ============================================

// Category tags which payload an Event carries.
type Category string

const (
	CategoryConsole         Category = "console"
	CategoryNetworkRequest  Category = "network_request"
	CategoryNetworkResponse Category = "network_response"
	CategoryPageError       Category = "page_error"
)

// ============================================
// Console
// ============================================

// ConsoleLevel is the normalized severity of a console message.
type ConsoleLevel string

const (
	LevelLog   ConsoleLevel = "log"
	LevelInfo  ConsoleLevel = "info"
	LevelWarn  ConsoleLevel = "warn"
	LevelError ConsoleLevel = "error"
)

// ParseConsoleLevel maps browser-native console types onto the four levels.
// CDP reports "warning", "verbose", "debug", "trace", "assert" and others;
// anything unrecognized is treated as a plain log.
func ParseConsoleLevel(s string) ConsoleLevel {
	switch strings.ToLower(s) {
	case "error", "assert":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "info":
		return LevelInfo
	default:
		return LevelLog
	}
}

// SourceLocation points at the script position that produced a console message.
type SourceLocation struct {
	URL    string `json:"url,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// ConsoleEvent is a single console message.
type ConsoleEvent struct {
	Level    ConsoleLevel    `json:"level"`
	Text     string          `json:"text"`
	Location *SourceLocation `json:"location,omitempty"`
}

// ============================================
// Network
// ============================================

// ResourceKind classifies what a request fetches.
type ResourceKind string

const (
	ResourceDocument   ResourceKind = "document"
	ResourceScript     ResourceKind = "script"
	ResourceStylesheet ResourceKind = "stylesheet"
	ResourceImage      ResourceKind = "image"
	ResourceFont       ResourceKind = "font"
	ResourceXHR        ResourceKind = "xhr"
	ResourceFetch      ResourceKind = "fetch"
	ResourceOther      ResourceKind = "other"
)

// ParseResourceKind normalizes driver resource type names ("Script",
// "Stylesheet", "XHR", ...).
func ParseResourceKind(s string) ResourceKind {
	switch k := ResourceKind(strings.ToLower(s)); k {
	case ResourceDocument, ResourceScript, ResourceStylesheet, ResourceImage,
		ResourceFont, ResourceXHR, ResourceFetch:
		return k
	default:
		return ResourceOther
	}
}

// NetworkRequestEvent is an outgoing request observed on the page.
type NetworkRequestEvent struct {
	Method       string       `json:"method"`
	URL          string       `json:"url"`
	Headers      Headers      `json:"headers,omitempty"`
	ResourceKind ResourceKind `json:"resource_kind"`
}

// NetworkResponseEvent is a response observed on the page.
type NetworkResponseEvent struct {
	URL        string  `json:"url"`
	Status     int     `json:"status"`
	StatusText string  `json:"status_text,omitempty"`
	Headers    Headers `json:"headers,omitempty"`
	Success    bool    `json:"success"`
}

// IsSuccessStatus reports whether status is in the 2xx range.
func IsSuccessStatus(status int) bool {
	return status >= 200 && status <= 299
}

// ============================================
// Page Errors
// ============================================

// PageErrorEvent is an uncaught script error raised by the page.
type PageErrorEvent struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ============================================
// Event
// ============================================

// Event is the tagged union recorded by a session. Exactly one payload pointer
// is non-nil and it matches Category.
type Event struct {
	Seq       int64         `json:"seq"`
	Category  Category      `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Offset    time.Duration `json:"offset_ns"`

	Console   *ConsoleEvent         `json:"console,omitempty"`
	Request   *NetworkRequestEvent  `json:"request,omitempty"`
	Response  *NetworkResponseEvent `json:"response,omitempty"`
	PageError *PageErrorEvent       `json:"page_error,omitempty"`
}

// NewConsole wraps a console payload.
func NewConsole(level ConsoleLevel, text string, loc *SourceLocation) Event {
	return Event{Category: CategoryConsole, Console: &ConsoleEvent{Level: level, Text: text, Location: loc}}
}

// NewRequest wraps a request payload.
func NewRequest(method, url string, headers Headers, kind ResourceKind) Event {
	return Event{Category: CategoryNetworkRequest, Request: &NetworkRequestEvent{
		Method:       method,
		URL:          url,
		Headers:      headers,
		ResourceKind: kind,
	}}
}

// NewResponse wraps a response payload. Success is derived from status.
func NewResponse(url string, status int, statusText string, headers Headers) Event {
	return Event{Category: CategoryNetworkResponse, Response: &NetworkResponseEvent{
		URL:        url,
		Status:     status,
		StatusText: statusText,
		Headers:    headers,
		Success:    IsSuccessStatus(status),
	}}
}

// NewPageError wraps a page error payload.
func NewPageError(message, stack string) Event {
	return Event{Category: CategoryPageError, PageError: &PageErrorEvent{Message: message, Stack: stack}}
}

// Validate checks that exactly one payload is set and that it matches Category.
func (e Event) Validate() error {
	set := 0
	for _, ok := range []bool{e.Console != nil, e.Request != nil, e.Response != nil, e.PageError != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("event_invalid: event must carry exactly one payload, got %d", set)
	}
	var ok bool
	switch e.Category {
	case CategoryConsole:
		ok = e.Console != nil
	case CategoryNetworkRequest:
		ok = e.Request != nil
	case CategoryNetworkResponse:
		ok = e.Response != nil
	case CategoryPageError:
		ok = e.PageError != nil
	default:
		return fmt.Errorf("event_invalid: unknown category %q", e.Category)
	}
	if !ok {
		return fmt.Errorf("event_invalid: payload does not match category %q", e.Category)
	}
	return nil
}

// Clone returns a deep copy so a recorded event shares no memory with the
// caller's value.
func (e Event) Clone() Event {
	out := e
	if e.Console != nil {
		c := *e.Console
		if e.Console.Location != nil {
			loc := *e.Console.Location
			c.Location = &loc
		}
		out.Console = &c
	}
	if e.Request != nil {
		r := *e.Request
		r.Headers = e.Request.Headers.Clone()
		out.Request = &r
	}
	if e.Response != nil {
		r := *e.Response
		r.Headers = e.Response.Headers.Clone()
		out.Response = &r
	}
	if e.PageError != nil {
		p := *e.PageError
		out.PageError = &p
	}
	return out
}

// URL returns the request or response URL, or "" for other categories.
func (e Event) URL() string {
	switch {
	case e.Request != nil:
		return e.Request.URL
	case e.Response != nil:
		return e.Response.URL
	}
	return ""
}

// IsError reports whether the event is an error-severity console message or
// a page error.
func (e Event) IsError() bool {
	if e.PageError != nil {
		return true
	}
	return e.Console != nil && e.Console.Level == LevelError
}

// Summary renders a one-line description for logs and human reports.
func (e Event) Summary() string {
	switch {
	case e.Console != nil:
		return fmt.Sprintf("[%s] %s", e.Console.Level, e.Console.Text)
	case e.Request != nil:
		return fmt.Sprintf("%s %s", e.Request.Method, e.Request.URL)
	case e.Response != nil:
		return fmt.Sprintf("%d %s", e.Response.Status, e.Response.URL)
	case e.PageError != nil:
		return e.PageError.Message
	}
	return string(e.Category)
}
