// browser.go — Chrome lifecycle for the go-rod page driver.
package rodpage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/dev-console/pagediag/internal/driver"
)

// Config selects how Chrome is reached.
type Config struct {
	// ControlURL attaches to a running browser's DevTools endpoint. When
	// empty a browser is launched.
	ControlURL string
	// Bin is the browser executable to launch. Empty lets the launcher
	// find or download one.
	Bin      string
	Headless bool
	// FetchTimeout bounds each artifact download. Zero means 10s.
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// Browser owns one Chrome connection and opens a page per target.
type Browser struct {
	browser  *rod.Browser
	launch   *launcher.Launcher
	client   *http.Client
	logger   *slog.Logger
	fetchTTL time.Duration
}

var _ driver.Opener = (*Browser)(nil)

// Connect launches or attaches to Chrome.
func Connect(ctx context.Context, cfg Config) (*Browser, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Browser{
		client:   &http.Client{},
		logger:   logger,
		fetchTTL: cfg.FetchTimeout,
	}
	if b.fetchTTL <= 0 {
		b.fetchTTL = 10 * time.Second
	}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser_launch_failed: %w", err)
		}
		b.launch = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		b.killLauncher()
		return nil, fmt.Errorf("browser_connect_failed: %w", err)
	}
	b.browser = browser
	logger.Debug("browser connected", "control_url", controlURL, "launched", b.launch != nil)
	return b, nil
}

// NewPage implements driver.Opener with a blank page in its own incognito
// context, so concurrent targets share no cookies or storage. Closing the page
// disposes the context.
func (b *Browser) NewPage(ctx context.Context) (driver.Page, error) {
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("page_open_failed: %w", err)
	}
	p, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("page_open_failed: %w", err)
	}
	page := newPage(p.Context(ctx), b.client, b.fetchTTL, b.logger)
	page.release = incognito.Close
	return page, nil
}

// Close disconnects and, if Connect launched the browser, kills it.
func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	b.killLauncher()
	return err
}

func (b *Browser) killLauncher() {
	if b.launch != nil {
		b.launch.Kill()
		b.launch = nil
	}
}
