// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// ErrNotLaunched is returned by page operations before Launch succeeded.
var ErrNotLaunched = errors.New("browser session has not been launched")

// selectFocusedScript selects the content of the focused field so the next
// text insertion replaces it.
const selectFocusedScript = `(function () {
  const el = document.activeElement;
  if (el && typeof el.select === 'function') { el.select(); return true; }
  document.execCommand('selectAll');
  return false;
})()`

// Session owns one Chrome process with a single tab and implements
// agent.BrowserDriver on it.
type Session struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

var _ agent.BrowserDriver = (*Session)(nil)

// NewSession prepares a session. Chrome is started by Launch.
func NewSession(cfg config.BrowserConfig, logger *zap.Logger) *Session {
	return &Session{cfg: cfg, logger: logger.Named("browser")}
}

// Launch starts Chrome if needed and opens rawURL in the tab.
func (s *Session) Launch(ctx context.Context, rawURL string) error {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return fmt.Errorf("cannot launch browser: %w", err)
	}
	if err := s.start(ctx); err != nil {
		return err
	}
	return s.navigate(ctx, target)
}

func (s *Session) start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tabCtx != nil {
		return nil
	}

	s.logger.Info("Starting browser", zap.Bool("headless", s.cfg.Headless))
	// Chrome lives as long as the session, not as long as the caller's ctx.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), DefaultAllocatorOptions(s.cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(s.logger.Sugar().Debugf),
		chromedp.WithErrorf(s.logger.Sugar().Debugf),
	)

	// The first Run starts the process; it must not carry a timeout or the
	// browser would die with it.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("browser failed to start: %w", err)
	}

	s.allocCancel = allocCancel
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel

	err := s.runLocked(ctx, s.cfg.ActionTimeout,
		emulation.SetDeviceMetricsOverride(int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight), 1, false),
	)
	if err != nil {
		s.logger.Warn("Failed to apply viewport override", zap.Error(err))
	}
	return nil
}

// GetPageURL returns the URL of the current document.
func (s *Session) GetPageURL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read page url: %w", err)
	}
	return location, nil
}

// MouseClick performs a left click at viewport coordinates.
func (s *Session) MouseClick(ctx context.Context, x, y float64) error {
	if err := s.run(ctx, s.cfg.ActionTimeout, clickAt(x, y)); err != nil {
		return fmt.Errorf("click at (%.0f, %.0f) failed: %w", x, y, err)
	}
	return nil
}

// FillInput focuses the field at coord and replaces its content with text.
func (s *Session) FillInput(ctx context.Context, text string, coord schemas.Coordinate) error {
	var selected bool
	err := s.run(ctx, s.cfg.ActionTimeout,
		clickAt(coord.X, coord.Y),
		chromedp.Evaluate(selectFocusedScript, &selected),
		input.InsertText(text),
	)
	if err != nil {
		return fmt.Errorf("fill at (%.0f, %.0f) failed: %w", coord.X, coord.Y, err)
	}
	return nil
}

// ScrollDown scrolls one viewport height down.
func (s *Session) ScrollDown(ctx context.Context) error {
	return s.scroll(ctx, float64(s.cfg.ViewportHeight))
}

// ScrollUp scrolls one viewport height up.
func (s *Session) ScrollUp(ctx context.Context) error {
	return s.scroll(ctx, -float64(s.cfg.ViewportHeight))
}

func (s *Session) scroll(ctx context.Context, deltaY float64) error {
	x, y := float64(s.cfg.ViewportWidth)/2, float64(s.cfg.ViewportHeight)/2
	err := s.run(ctx, s.cfg.ActionTimeout,
		input.DispatchMouseEvent(input.MouseWheel, x, y).WithDeltaX(0).WithDeltaY(deltaY),
	)
	if err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// GoToURL navigates the tab to rawURL.
func (s *Session) GoToURL(ctx context.Context, rawURL string) error {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return s.navigate(ctx, target)
}

func (s *Session) navigate(ctx context.Context, target string) error {
	s.logger.Debug("Navigating", zap.String("url", target))
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(target)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", target, err)
	}
	return nil
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Close shuts the tab and the browser process down. It is safe to call more
// than once and on a session that never launched.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tabCtx == nil {
		return nil
	}

	tabCtx := s.tabCtx
	err := cancelWithin(ctx, func() error { return chromedp.Cancel(tabCtx) })
	s.tabCancel()
	s.allocCancel()
	s.tabCtx, s.tabCancel, s.allocCancel = nil, nil, nil

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	s.logger.Info("Browser closed")
	return nil
}

// cancelWithin runs cancel and stops waiting for it when ctx ends first.
func cancelWithin(ctx context.Context, cancel func() error) error {
	done := make(chan error, 1)
	go func() { done <- cancel() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes actions on the tab bounded by timeout and by the caller's ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLocked(ctx, timeout, actions...)
}

func (s *Session) runLocked(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.tabCtx == nil {
		return ErrNotLaunched
	}
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func clickAt(x, y float64) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, x, y).WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, x, y).WithButton(input.Left).WithClickCount(1).Do(ctx)
	})
}
