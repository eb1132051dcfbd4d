// Package browser implements the page retriever on top of headless Chromium
// via rod. One automation page is opened per fetch and released on every
// exit path; the browser process itself is owned by the Retriever lifecycle.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/partpicker/pricesync/internal/domain"
)

// Options configures the browser retriever.
type Options struct {
	Bin          string // explicit browser binary, auto-detected when empty
	Headless     bool
	FetchTimeout time.Duration
}

// Retriever fetches rendered vendor pages through a shared headless browser.
type Retriever struct {
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRetriever creates a retriever. Call Open before the first Fetch and
// Close on shutdown.
func NewRetriever(opts Options) *Retriever {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	return &Retriever{opts: opts}
}

// Open launches the browser process and connects to it.
func (r *Retriever) Open() error {
	l := launcher.New().
		Headless(r.opts.Headless).
		NoSandbox(true).
		Leakless(false)
	if r.opts.Bin != "" {
		l = l.Bin(r.opts.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return fmt.Errorf("connecting to browser: %w", err)
	}

	r.launcher = l
	r.browser = b
	return nil
}

// Close shuts the browser down and cleans up the launcher.
func (r *Retriever) Close() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Cleanup()
		r.launcher = nil
	}
	return err
}

// Fetch renders one vendor page under the given identity. The automation
// page is always closed before return, including on error.
func (r *Retriever) Fetch(ctx context.Context, rawURL string, identity domain.Identity) (*domain.RenderedPage, error) {
	if r.browser == nil {
		return nil, fmt.Errorf("%w: retriever not opened", domain.ErrNetwork)
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidURL, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
	defer cancel()

	start := time.Now()

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, classifyFetchErr(ctx, err)
	}
	defer page.Close()

	page = page.Context(ctx)

	if identity.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: identity.UserAgent}); err != nil {
			return nil, classifyFetchErr(ctx, err)
		}
	}
	if identity.ViewportWidth > 0 && identity.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             identity.ViewportWidth,
			Height:            identity.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			return nil, classifyFetchErr(ctx, err)
		}
	}

	if err := page.Navigate(u.String()); err != nil {
		return nil, classifyFetchErr(ctx, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, classifyFetchErr(ctx, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, classifyFetchErr(ctx, err)
	}
	if looksBlocked(html) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNavigationBlocked, u.Host)
	}

	return &domain.RenderedPage{
		URL:       u.String(),
		HTML:      html,
		FetchedAt: time.Now(),
		Elapsed:   time.Since(start),
	}, nil
}

// classifyFetchErr folds rod/CDP errors into the engine's error taxonomy.
func classifyFetchErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "net::ERR_BLOCKED") || strings.Contains(msg, "net::ERR_ABORTED") {
		return fmt.Errorf("%w: %v", domain.ErrNavigationBlocked, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
}

// blockMarkers are page-body fingerprints of common anti-automation walls.
var blockMarkers = []string{
	"captcha",
	"access denied",
	"verify you are human",
	"attention required! | cloudflare",
}

func looksBlocked(html string) bool {
	h := strings.ToLower(html)
	for _, marker := range blockMarkers {
		if strings.Contains(h, marker) {
			return true
		}
	}
	return false
}
