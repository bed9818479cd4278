package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/pkg/types"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"
)

func NewRodLocator(opts BrowserOptions, logger *logrus.Logger) Locator {
	return &sessionLocator{
		name:   config.EngineRod,
		opts:   opts,
		logger: logger,
		open: func(ctx context.Context) (pageSession, error) {
			return openRodSession(ctx, opts, logger)
		},
	}
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func openRodSession(ctx context.Context, opts BrowserOptions, logger *logrus.Logger) (*rodSession, error) {
	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("window-size", fmt.Sprintf("%d,%d", opts.WindowWidth, opts.WindowHeight))
	if runtime.GOOS == "windows" {
		l = l.Set("disable-features", "VizDisplayCompositor")
	}

	// Without a local browser rod downloads its own Chromium.
	if execPath, err := DetectBrowser(opts.ExecPath); err == nil {
		l = l.Bin(execPath)
	} else {
		logger.Infof("No local browser found, rod will fetch Chromium: %v", err)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			logger.Warnf("Failed to set user agent: %v", err)
		}
	}

	return &rodSession{launcher: l, browser: browser, page: page}, nil
}

func (s *rodSession) navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (s *rodSession) setCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, cookie := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Secure:   cookie.Secure,
			HTTPOnly: cookie.HttpOnly,
		})
	}
	return s.page.Context(ctx).SetCookies(params)
}

func (s *rodSession) pressEscape(ctx context.Context) error {
	return s.page.Context(ctx).Keyboard.Type(input.Escape)
}

func (s *rodSession) primarySource(ctx context.Context, xpath string, timeout time.Duration) (string, error) {
	el, err := s.page.Context(ctx).Timeout(timeout).ElementX(xpath)
	if err != nil {
		return "", err
	}
	if err := el.WaitVisible(); err != nil {
		return "", err
	}
	src, err := el.Attribute("src")
	if err != nil {
		return "", err
	}
	if src == nil {
		return "", fmt.Errorf("image element has no src attribute")
	}
	return *src, nil
}

func (s *rodSession) collectImages(ctx context.Context) ([]types.ImageCandidate, error) {
	res, err := s.page.Context(ctx).Eval(collectImagesFn)
	if err != nil {
		return nil, err
	}
	var images []types.ImageCandidate
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &images); err != nil {
		return nil, fmt.Errorf("failed to decode script result: %w", err)
	}
	return images, nil
}

func (s *rodSession) html(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, nil)
}

func (s *rodSession) close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}
