package scraper

import (
	"context"
	"fmt"
	"time"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/pkg/types"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

func NewPlaywrightLocator(opts BrowserOptions, logger *logrus.Logger) Locator {
	return &sessionLocator{
		name:   config.EnginePlaywright,
		opts:   opts,
		logger: logger,
		open: func(ctx context.Context) (pageSession, error) {
			return openPlaywrightSession(opts)
		},
	}
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func openPlaywrightSession(opts BrowserOptions) (*playwrightSession, error) {
	pw, err := playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true})
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.chromeArgs(),
	}
	if opts.ExecPath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecPath)
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch chromium: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.WindowWidth, Height: opts.WindowHeight},
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("could not create page: %w", err)
	}

	return &playwrightSession{pw: pw, browser: browser, page: page}, nil
}

// remainingMs converts ctx's deadline into a playwright timeout.
func remainingMs(ctx context.Context, fallback time.Duration) *float64 {
	d := fallback
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d || d <= 0 {
			d = left
		}
		if d < time.Millisecond {
			d = time.Millisecond
		}
	}
	if d <= 0 {
		// playwright's default timeout applies
		return nil
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (s *playwrightSession) navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   remainingMs(ctx, 0),
	})
	return err
}

func (s *playwrightSession) setCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, cookie := range cookies {
		params = append(params, playwright.OptionalCookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   playwright.String(cookie.Domain),
			Path:     playwright.String(cookie.Path),
			Secure:   playwright.Bool(cookie.Secure),
			HttpOnly: playwright.Bool(cookie.HttpOnly),
		})
	}
	return s.page.Context().AddCookies(params)
}

func (s *playwrightSession) pressEscape(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.page.Keyboard().Press("Escape")
}

func (s *playwrightSession) primarySource(ctx context.Context, xpath string, timeout time.Duration) (string, error) {
	loc := s.page.Locator("xpath=" + xpath).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: remainingMs(ctx, timeout),
	})
	if err != nil {
		return "", err
	}
	return loc.GetAttribute("src")
}

func (s *playwrightSession) collectImages(ctx context.Context) ([]types.ImageCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.page.Evaluate(collectImagesFn)
	if err != nil {
		return nil, err
	}
	return decodeImages(raw)
}

func (s *playwrightSession) html(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Content()
}

func (s *playwrightSession) screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.page.Screenshot()
}

func (s *playwrightSession) close() error {
	err := s.browser.Close()
	if stopErr := s.pw.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}
