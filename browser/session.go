// Package browser drives one headless Chromium session against the public
// results page: navigate, intercept matching search payloads in flight, read
// the rendered DOM when interception comes up empty, and scroll for more.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/openadlib/adlib/cards"
	"github.com/openadlib/adlib/config"
	"github.com/openadlib/adlib/models"
)

// Session owns a launched browser, a single stealth page, and the capture
// queue fed by network interception. One session serves one traversal.
type Session struct {
	cfg      config.BrowserConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	envelope cards.EnvelopeFunc
	blocked  map[proto.NetworkResourceType]struct{}

	mu      sync.Mutex
	pending []*models.RecordBatch
	notify  chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New launches a browser and opens a stealth page wired for capture. It fails
// fast with BROWSER_UNAVAILABLE when no Chromium binary can be found, before
// any network activity. envelope decides which intercepted bodies count as
// search payloads; nil means cards.DefaultEnvelope.
//
// headers are applied to every request the page makes, on top of what the
// browser sends anyway.
func New(cfg config.BrowserConfig, headers map[string]string, envelope cards.EnvelopeFunc) (*Session, error) {
	if envelope == nil {
		envelope = cards.DefaultEnvelope
	}

	bin := cfg.BrowserBin
	if bin == "" {
		path, has := launcher.LookPath()
		if !has {
			return nil, models.NewTraversalError(
				models.ErrCodeBrowserUnavailable,
				"no Chromium or Chrome binary found; install one or set ADLIB_BROWSER_BIN",
				nil,
			)
		}
		bin = path
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox).
		Bin(bin)

	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}
	if cfg.UserAgent != "" {
		l.Set(flags.Flag("user-agent"), cfg.UserAgent)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewTraversalError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Debug("browser launched", "controlURL", controlURL, "bin", bin)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, models.NewTraversalError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		l.Cleanup()
		return nil, models.NewTraversalError(
			models.ErrCodeBrowserCrash,
			"failed to open stealth page",
			err,
		)
	}

	if len(headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(headers),
		}.Call(page)
	}

	s := &Session{
		cfg:      cfg,
		launcher: l,
		browser:  b,
		page:     page,
		envelope: envelope,
		blocked:  blockedSet(cfg.BlockedResourceTypes),
		notify:   make(chan struct{}, 1),
	}

	// The capture router must be running before the first navigation;
	// payloads fired during page load are the ones most worth having.
	s.router = s.setupCapture(page)

	return s, nil
}

// Navigate loads rawURL and waits for the DOM to settle. The capture router
// is already running, so payloads fired during load are queued.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(rawURL); err != nil {
		return categorizeError(err, "navigation to results page failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("DOM did not stabilise, proceeding with current state", "error", err)
	}
	return nil
}

// WaitCapture blocks until an intercepted payload batch is available or the
// window elapses. A quiet window returns (nil, nil); that is the caller's cue
// to fall back to the DOM.
func (s *Session) WaitCapture(ctx context.Context, window time.Duration) (*models.RecordBatch, error) {
	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		if batch := s.takePending(); batch != nil {
			return batch, nil
		}
		select {
		case <-s.notify:
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, categorizeError(ctx.Err(), "traversal canceled while waiting for capture")
		}
	}
}

// QueryDOM parses the current rendered markup into records.
func (s *Session) QueryDOM(ctx context.Context) ([]models.Record, error) {
	p := s.page.Context(ctx)
	htmlStr, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to read rendered page")
	}
	return cards.ParseHTML(htmlStr)
}

// Interact nudges the page for more content: one viewport scroll, an optional
// "see more" click, then a settle pause so late XHRs can land.
func (s *Session) Interact(ctx context.Context) error {
	p := s.page.Context(ctx)

	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return categorizeError(err, "failed to read viewport height")
	}
	if err := p.Mouse.Scroll(0, float64(res.Value.Int()), 0); err != nil {
		return categorizeError(err, "scroll failed")
	}

	if sel := s.cfg.SeeMoreSelector; sel != "" {
		if has, el, err := p.Has(sel); err == nil && has {
			if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
				slog.Debug("see-more click failed", "selector", sel, "error", err)
			}
		}
	}

	select {
	case <-time.After(s.cfg.SettleDelay):
	case <-ctx.Done():
		return categorizeError(ctx.Err(), "traversal canceled while settling")
	}
	return nil
}

// Close tears the session down: capture router, page, browser process, in
// that order. Safe to call more than once and from any exit path.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if s.page != nil {
			_ = s.page.Close()
		}
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Cleanup()
		}
		slog.Debug("browser session closed")
	})
	return s.closeErr
}

func (s *Session) takePending() *models.RecordBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending[0]
	s.pending = s.pending[1:]
	return batch
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw rod errors into typed TraversalErrors.
func categorizeError(err error, msg string) *models.TraversalError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewTraversalError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewTraversalError(models.ErrCodeTimeout, "traversal canceled", err)
	default:
		return models.NewTraversalError(models.ErrCodeNavigation, msg, err)
	}
}
