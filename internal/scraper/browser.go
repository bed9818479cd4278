package scraper

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/pkg/types"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/sirupsen/logrus"
)

func NewChromedpLocator(opts BrowserOptions, logger *logrus.Logger) Locator {
	return &sessionLocator{
		name:   config.EngineChromedp,
		opts:   opts,
		logger: logger,
		open: func(ctx context.Context) (pageSession, error) {
			return openChromedpSession(ctx, opts, logger)
		},
	}
}

type chromedpSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func openChromedpSession(ctx context.Context, opts BrowserOptions, logger *logrus.Logger) (*chromedpSession, error) {
	execPath, err := DetectBrowser(opts.ExecPath)
	if err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if runtime.GOOS == "windows" {
		allocOpts = append(allocOpts, chromedp.Flag("disable-features", "VizDisplayCompositor"))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Debugf))

	// An empty Run starts the browser so launch errors surface here.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	return &chromedpSession{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}, nil
}

// run executes actions on the tab, bounded by ctx's deadline.
func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (s *chromedpSession) navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromedpSession) setCookies(ctx context.Context, cookies []Cookie) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, cookie := range cookies {
			err := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(cookie.Domain).
				WithPath(cookie.Path).
				WithSecure(cookie.Secure).
				WithHTTPOnly(cookie.HttpOnly).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("cookie %s: %w", cookie.Name, err)
			}
		}
		return nil
	}))
}

func (s *chromedpSession) pressEscape(ctx context.Context) error {
	return s.run(ctx, chromedp.KeyEvent(kb.Escape))
}

func (s *chromedpSession) primarySource(ctx context.Context, xpath string, timeout time.Duration) (string, error) {
	var (
		src string
		ok  bool
	)
	err := withTimeout(ctx, timeout, func(ctx context.Context) error {
		return s.run(ctx,
			chromedp.WaitVisible(xpath, chromedp.BySearch),
			chromedp.AttributeValue(xpath, "src", &src, &ok, chromedp.BySearch),
		)
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("image element has no src attribute")
	}
	return src, nil
}

func (s *chromedpSession) collectImages(ctx context.Context) ([]types.ImageCandidate, error) {
	var images []types.ImageCandidate
	if err := s.run(ctx, chromedp.Evaluate("("+collectImagesFn+")()", &images)); err != nil {
		return nil, err
	}
	return images, nil
}

func (s *chromedpSession) html(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromedpSession) screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *chromedpSession) close() error {
	// Cancel waits for the browser process to exit.
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	return err
}
