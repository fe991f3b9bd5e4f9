// page.go — driver.Page over a go-rod page (Chrome DevTools Protocol).
// Console calls, browser log entries, uncaught exceptions, request starts and
// response headers are translated into types.Event values.
package rodpage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/dev-console/pagediag/internal/driver"
	"github.com/dev-console/pagediag/internal/types"
)

// maxArtifactBytes caps a fetched script body.
const maxArtifactBytes = 8 << 20

// Page adapts one rod page.
type Page struct {
	page     *rod.Page
	release  func() error // Disposes the page's browser context; nil when shared
	client   *http.Client
	fetchTTL time.Duration
	maxBytes int64
	logger   *slog.Logger

	mu        sync.Mutex
	docStatus int // Status of the latest main document response
}

var _ driver.Page = (*Page)(nil)

func newPage(p *rod.Page, client *http.Client, fetchTTL time.Duration, logger *slog.Logger) *Page {
	return &Page{page: p, client: client, fetchTTL: fetchTTL, maxBytes: maxArtifactBytes, logger: logger}
}

// Events implements driver.Page.
func (p *Page) Events(ctx context.Context) (<-chan types.Event, error) {
	page := p.page.Context(ctx)
	if err := (proto.RuntimeEnable{}).Call(page); err != nil {
		return nil, fmt.Errorf("cdp_enable_failed: runtime: %w", err)
	}
	if err := (proto.LogEnable{}).Call(page); err != nil {
		return nil, fmt.Errorf("cdp_enable_failed: log: %w", err)
	}
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, fmt.Errorf("cdp_enable_failed: network: %w", err)
	}

	ch := make(chan types.Event, 64)
	emit := func(ev types.Event) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}

	wait := page.EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			emit(consoleEvent(e))
		},
		func(e *proto.LogEntryAdded) {
			if e.Entry != nil {
				emit(logEntryEvent(e.Entry))
			}
		},
		func(e *proto.RuntimeExceptionThrown) {
			if e.ExceptionDetails != nil {
				emit(exceptionEvent(e.ExceptionDetails))
			}
		},
		func(e *proto.NetworkRequestWillBeSent) {
			if e.Request != nil {
				emit(types.NewRequest(e.Request.Method, e.Request.URL, headers(e.Request.Headers), types.ParseResourceKind(string(e.Type))))
			}
		},
		func(e *proto.NetworkResponseReceived) {
			if e.Response == nil {
				return
			}
			if e.Type == proto.NetworkResourceTypeDocument {
				p.mu.Lock()
				p.docStatus = e.Response.Status
				p.mu.Unlock()
			}
			emit(types.NewResponse(e.Response.URL, e.Response.Status, e.Response.StatusText, headers(e.Response.Headers)))
		},
	)

	go func() {
		defer close(ch)
		wait()
	}()
	return ch, nil
}

// Navigate implements driver.Page. It waits for the load event and returns
// the main document's status.
func (p *Page) Navigate(ctx context.Context, url string) (int, error) {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return 0, fmt.Errorf("navigate_failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return p.status(), fmt.Errorf("navigate_load_failed: %w", err)
	}
	return p.status(), nil
}

func (p *Page) status() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.docStatus
}

// FetchArtifact implements driver.Page with a plain HTTP GET bounded by the
// configured per-fetch timeout.
func (p *Page) FetchArtifact(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.fetchTTL)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("artifact_request_invalid: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact_fetch_failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("artifact_fetch_failed: %s returned HTTP %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("artifact_read_failed: %w", err)
	}
	if int64(len(body)) > p.maxBytes {
		body = body[:p.maxBytes]
		p.logger.Warn("artifact truncated, classifying a prefix only", "url", url, "limit_bytes", p.maxBytes)
	}
	return body, nil
}

// HTML implements driver.Page.
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("dom_capture_failed: %w", err)
	}
	return html, nil
}

// Close implements driver.Page. It closes the page, then disposes the
// incognito context NewPage created for it.
func (p *Page) Close() error {
	var errs []error
	if p.page != nil {
		if err := p.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("page_close_failed: %w", err))
		}
	}
	if p.release != nil {
		if err := p.release(); err != nil {
			errs = append(errs, fmt.Errorf("context_close_failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ============================================
// CDP → Event translation
// ============================================

func consoleEvent(e *proto.RuntimeConsoleAPICalled) types.Event {
	var loc *types.SourceLocation
	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		f := e.StackTrace.CallFrames[0]
		loc = &types.SourceLocation{URL: f.URL, Line: f.LineNumber + 1, Column: f.ColumnNumber + 1}
	}
	return types.NewConsole(types.ParseConsoleLevel(string(e.Type)), stringifyArgs(e.Args), loc)
}

func logEntryEvent(entry *proto.LogLogEntry) types.Event {
	var loc *types.SourceLocation
	if entry.URL != "" {
		loc = &types.SourceLocation{URL: entry.URL}
	}
	return types.NewConsole(types.ParseConsoleLevel(string(entry.Level)), entry.Text, loc)
}

// exceptionEvent builds a page error. CDP puts "Uncaught" in Text and the
// "Kind: message\n    at ..." form in the exception's description.
func exceptionEvent(d *proto.RuntimeExceptionDetails) types.Event {
	message := d.Text
	stack := ""
	if d.Exception != nil && d.Exception.Description != "" {
		first, rest, _ := strings.Cut(d.Exception.Description, "\n")
		if message == "" {
			message = first
		} else if !strings.Contains(message, first) {
			message = message + " " + first
		}
		stack = rest
	}
	if stack == "" && d.StackTrace != nil {
		lines := make([]string, 0, len(d.StackTrace.CallFrames))
		for _, f := range d.StackTrace.CallFrames {
			lines = append(lines, fmt.Sprintf("    at %s (%s:%d:%d)", f.FunctionName, f.URL, f.LineNumber+1, f.ColumnNumber+1))
		}
		stack = strings.Join(lines, "\n")
	}
	return types.NewPageError(message, stack)
}

func stringifyArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

func headers(h proto.NetworkHeaders) types.Headers {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v.String()
	}
	return types.NewHeaders(out)
}
