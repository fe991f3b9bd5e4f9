// monitor.go — Observation window, post-session classification and fan-out.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dev-console/pagediag/internal/classify"
	"github.com/dev-console/pagediag/internal/diagnose"
	"github.com/dev-console/pagediag/internal/driver"
	"github.com/dev-console/pagediag/internal/session"
	"github.com/dev-console/pagediag/internal/types"
	"github.com/dev-console/pagediag/internal/util"
)

// Defaults applied to zero Options fields.
const (
	DefaultWindow             = 3 * time.Second
	DefaultTimeout            = 30 * time.Second
	DefaultMaxScripts         = 25
	DefaultScriptFetchTimeout = 10 * time.Second
)

// Options configures a run.
type Options struct {
	// Window is how long to keep observing after navigation settles.
	Window time.Duration
	// Timeout bounds the whole observation; when it fires the session ends
	// as partial.
	Timeout time.Duration
	// MaxScripts caps how many script bodies are fetched and classified.
	// Zero selects DefaultMaxScripts.
	MaxScripts int
	// ScriptFetchTimeout bounds each artifact fetch and the DOM capture.
	ScriptFetchTimeout time.Duration

	Classifier *classify.Classifier
	OnError    func(types.Event)
	OnFinding  func(types.Finding)
	Logger     *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxScripts <= 0 {
		o.MaxScripts = DefaultMaxScripts
	}
	if o.ScriptFetchTimeout <= 0 {
		o.ScriptFetchTimeout = DefaultScriptFetchTimeout
	}
	if o.Classifier == nil {
		o.Classifier = classify.New(nil)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Run observes target on page and returns its report. Errors are returned
// only when no report can be produced; problems with the page itself are
// part of the report.
func Run(ctx context.Context, page driver.Page, target string, opts Options) (*diagnose.Report, error) {
	opts = opts.withDefaults()
	c := opts.Classifier

	sess := session.Start(target, session.Options{
		OnError:   opts.OnError,
		OnFinding: opts.OnFinding,
		MIME:      c.Table().MIME,
		Logger:    opts.Logger,
	})
	logger := opts.Logger.With("session_id", sess.ID(), "url", target)

	obsCtx, cancelObs := context.WithTimeout(ctx, opts.Timeout)
	defer cancelObs()

	events, err := page.Events(obsCtx)
	if err != nil {
		return nil, fmt.Errorf("subscribe_failed: %w", err)
	}

	drained := make(chan struct{})
	util.SafeGo(func() {
		defer close(drained)
		for ev := range events {
			if err := sess.OnEvent(ev); err != nil && !errors.Is(err, session.ErrInvalidSessionState) {
				logger.Warn("event dropped", "error", err)
			}
		}
	})

	status, navErr := page.Navigate(obsCtx, target)
	if navErr != nil {
		logger.Warn("navigation failed", "status", status, "error", navErr)
	}
	_ = sess.RecordNavigation(status, navErr)

	window := time.NewTimer(opts.Window)
	select {
	case <-window.C:
	case <-drained:
		window.Stop()
	case <-obsCtx.Done():
		window.Stop()
	}

	reason := partialReason(ctx, obsCtx)
	st := sess.Stats()
	attrs := []any{"reason", reason, "events", st.Events, "pending", st.Pending,
		"orphans", st.Orphans, "observed_for", time.Since(sess.StartedAt())}
	if !st.LastEventAt.IsZero() {
		attrs = append(attrs, "quiet_for", time.Since(st.LastEventAt))
	}
	logger.Debug("observation window closed", attrs...)

	// DOM capture happens while events are still being recorded.
	var html string
	if reason != types.PartialCancelled {
		html = captureHTML(ctx, page, opts.ScriptFetchTimeout, logger)
	}

	cancelObs()
	<-drained

	var logs *types.SessionLogs
	if reason == "" {
		logs, err = sess.End()
	} else {
		logs, err = sess.EndPartial(reason)
	}
	if err != nil {
		return nil, err
	}

	findings := classifyEvents(c, logs)
	if reason != types.PartialCancelled {
		findings = append(findings, scanDOM(c, html, logger)...)
		findings = append(findings, classifyScripts(ctx, page, c, logs, html, opts, logger)...)
	}
	if opts.OnFinding != nil {
		for _, f := range findings {
			opts.OnFinding(f)
		}
	}

	r := diagnose.Aggregate(logs, findings)
	logger.Info("diagnosis complete", "status", r.Status(), "critical_issues", len(r.CriticalIssues), "findings", len(r.Findings))
	return r, nil
}

// partialReason reports why observation ended early, or "" if it did not.
func partialReason(parent, obs context.Context) string {
	switch {
	case parent.Err() != nil:
		return types.PartialCancelled
	case errors.Is(obs.Err(), context.DeadlineExceeded):
		return types.PartialObservationTimeout
	}
	return ""
}

// ============================================
// Post-session classification
// ============================================

func classifyEvents(c *classify.Classifier, logs *types.SessionLogs) []types.Finding {
	out := make([]types.Finding, 0)
	for _, ev := range logs.Console {
		if f, ok := c.ClassifyConsole(ev); ok {
			out = append(out, f)
		}
	}
	for _, ev := range logs.Errors {
		if f, ok := c.ClassifyPageError(ev); ok {
			out = append(out, f)
		}
	}
	return out
}

func captureHTML(ctx context.Context, page driver.Page, timeout time.Duration, logger *slog.Logger) string {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	html, err := page.HTML(fctx)
	if err != nil {
		logger.Warn("dom capture failed", "error", err)
		return ""
	}
	return html
}

func scanDOM(c *classify.Classifier, html string, logger *slog.Logger) []types.Finding {
	if html == "" {
		return nil
	}
	findings, err := c.ScanDOM(html)
	if err != nil {
		logger.Warn("dom scan failed", "error", err)
		return nil
	}
	return findings
}

// scriptURLs lists scripts referenced by the DOM, then script requests seen on
// the network, without duplicates, capped at limit.
func scriptURLs(html, target string, logs *types.SessionLogs, limit int) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	add := func(u string) {
		if u == "" || seen[u] || len(out) >= limit {
			return
		}
		seen[u] = true
		out = append(out, u)
	}
	if html != "" {
		if urls, err := classify.DiscoverScripts(html, target); err == nil {
			for _, u := range urls {
				add(u)
			}
		}
	}
	for _, ev := range logs.Network {
		if ev.Request != nil && ev.Request.ResourceKind == types.ResourceScript {
			add(ev.Request.URL)
		}
	}
	return out
}

func classifyScripts(ctx context.Context, page driver.Page, c *classify.Classifier, logs *types.SessionLogs, html string, opts Options, logger *slog.Logger) []types.Finding {
	urls := scriptURLs(html, logs.Target, logs, opts.MaxScripts)
	results := make([][]types.Finding, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		util.SafeGo(func() {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.ScriptFetchTimeout)
			defer cancel()
			body, err := page.FetchArtifact(fctx, u)
			if err != nil {
				logger.Warn("script fetch failed", "script", u, "error", err)
				results[i] = []types.Finding{classify.ArtifactFetchFailure(u, err)}
				return
			}
			if f, ok := c.ClassifyScript(u, body); ok {
				results[i] = []types.Finding{f}
			}
		})
	}
	wg.Wait()

	out := make([]types.Finding, 0, len(urls))
	for _, fs := range results {
		out = append(out, fs...)
	}
	return out
}
