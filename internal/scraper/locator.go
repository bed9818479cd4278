package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/pkg/types"

	"github.com/sirupsen/logrus"
)

// PrimaryImageXPath matches the image element of the photo viewer.
const PrimaryImageXPath = `//img[@data-visualcompletion='media-vc-image'] | //img[contains(@class, 'i09qtzwb')]`

// collectImagesFn returns every <img> on the page with its natural size.
// Selection happens in Go, see SelectCandidate.
const collectImagesFn = `() => Array.from(document.querySelectorAll('img')).map(img => ({
	src: img.currentSrc || img.src || '',
	width: img.naturalWidth || 0,
	height: img.naturalHeight || 0,
	visual: img.getAttribute('data-visualcompletion') || '',
	class: typeof img.className === 'string' ? img.className : ''
}))`

// Locator finds the photo's image URL on a Facebook photo page.
type Locator interface {
	Locate(ctx context.Context, pageURL string) (*types.ImageCandidate, error)
	Name() string
}

type BrowserOptions struct {
	ExecPath        string
	DriverPath      string
	Headless        bool
	WindowWidth     int
	WindowHeight    int
	UserAgent       string
	PageLoadTimeout time.Duration
	SettleDelay     time.Duration
	DismissDelay    time.Duration
	ElementTimeout  time.Duration
	SeleniumPort    int
	Cookies         []Cookie
	DebugDir        string
}

func OptionsFromConfig(cfg config.BrowserConfig) BrowserOptions {
	return BrowserOptions{
		ExecPath:        cfg.ExecPath,
		DriverPath:      cfg.DriverPath,
		Headless:        cfg.Headless,
		WindowWidth:     cfg.WindowWidth,
		WindowHeight:    cfg.WindowHeight,
		UserAgent:       cfg.UserAgent,
		PageLoadTimeout: cfg.PageLoadTimeout.Std(),
		SettleDelay:     cfg.SettleDelay.Std(),
		DismissDelay:    cfg.DismissDelay.Std(),
		ElementTimeout:  cfg.ElementTimeout.Std(),
		SeleniumPort:    cfg.SeleniumPort,
		DebugDir:        cfg.DebugDir,
	}
}

// chromeArgs are the command-line switches every Chrome-based engine passes.
func (o BrowserOptions) chromeArgs() []string {
	args := []string{
		"--disable-gpu",
		"--no-sandbox",
		"--disable-dev-shm-usage",
		fmt.Sprintf("--window-size=%d,%d", o.WindowWidth, o.WindowHeight),
	}
	if o.Headless {
		args = append([]string{"--headless"}, args...)
	}
	if o.UserAgent != "" {
		args = append(args, "--user-agent="+o.UserAgent)
	}
	if runtime.GOOS == "windows" {
		args = append(args, "--disable-features=VizDisplayCompositor")
	}
	return args
}

// NewLocator returns the locator for the configured engine.
func NewLocator(engine string, opts BrowserOptions, logger *logrus.Logger) (Locator, error) {
	switch strings.ToLower(engine) {
	case config.EngineChromedp, "":
		return NewChromedpLocator(opts, logger), nil
	case config.EngineSelenium:
		return NewSeleniumLocator(opts, logger), nil
	case config.EngineRod:
		return NewRodLocator(opts, logger), nil
	case config.EnginePlaywright:
		return NewPlaywrightLocator(opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser engine: %q", engine)
	}
}

// pageSession is one open browser tab driven by an engine.
type pageSession interface {
	navigate(ctx context.Context, url string) error
	setCookies(ctx context.Context, cookies []Cookie) error
	pressEscape(ctx context.Context) error
	primarySource(ctx context.Context, xpath string, timeout time.Duration) (string, error)
	collectImages(ctx context.Context) ([]types.ImageCandidate, error)
	html(ctx context.Context) (string, error)
	screenshot(ctx context.Context) ([]byte, error)
	close() error
}

type sessionOpener func(ctx context.Context) (pageSession, error)

// sessionLocator opens a fresh browser for every Locate call and always
// closes it.
type sessionLocator struct {
	name   string
	open   sessionOpener
	opts   BrowserOptions
	logger *logrus.Logger
}

func (l *sessionLocator) Name() string {
	return l.name
}

func (l *sessionLocator) Locate(ctx context.Context, pageURL string) (*types.ImageCandidate, error) {
	log := l.logger.WithFields(logrus.Fields{"engine": l.name, "url": pageURL})

	session, err := l.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s session: %w", l.name, err)
	}
	defer func() {
		if err := session.close(); err != nil {
			log.Warnf("Failed to close browser: %v", err)
		}
	}()

	return runSequence(ctx, session, pageURL, l.opts, log)
}

// runSequence drives the fixed page interaction: navigate, settle, Escape to
// leave the photo viewer, settle, then read the image source.
func runSequence(ctx context.Context, s pageSession, pageURL string, opts BrowserOptions, log *logrus.Entry) (*types.ImageCandidate, error) {
	if len(opts.Cookies) > 0 {
		if err := withTimeout(ctx, opts.PageLoadTimeout, func(ctx context.Context) error {
			return s.navigate(ctx, FacebookHome)
		}); err != nil {
			return nil, fmt.Errorf("failed to navigate to Facebook: %w", err)
		}
		if err := s.setCookies(ctx, opts.Cookies); err != nil {
			log.Warnf("Failed to set cookies: %v", err)
		} else {
			log.Debugf("Set %d cookies", len(opts.Cookies))
		}
	}

	log.Info("Opening URL")
	if err := withTimeout(ctx, opts.PageLoadTimeout, func(ctx context.Context) error {
		return s.navigate(ctx, pageURL)
	}); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", pageURL, err)
	}

	if err := sleep(ctx, opts.SettleDelay); err != nil {
		return nil, err
	}
	if err := s.pressEscape(ctx); err != nil {
		log.Warnf("Failed to dismiss photo viewer: %v", err)
	}
	if err := sleep(ctx, opts.DismissDelay); err != nil {
		return nil, err
	}

	primary, err := s.primarySource(ctx, PrimaryImageXPath, opts.ElementTimeout)
	if err != nil {
		log.Warnf("Primary image selector failed: %v", err)
	}

	var (
		images []types.ImageCandidate
		source string
	)
	if !IsUsableSource(primary) {
		if images, err = s.collectImages(ctx); err != nil {
			log.Warnf("Failed to collect page images: %v", err)
		}
		if _, ok := SelectCandidate(images); !ok {
			if source, err = s.html(ctx); err != nil {
				log.Warnf("Failed to read page source: %v", err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidate, err := resolveCandidate(primary, images, source)
	if err != nil {
		saveDebugScreenshot(ctx, s, opts.DebugDir, log)
		return nil, err
	}

	log.WithField("strategy", candidate.Strategy).Infof("Found image URL: %s", candidate.URL)
	return candidate, nil
}

func resolveCandidate(primary string, images []types.ImageCandidate, source string) (*types.ImageCandidate, error) {
	if primary = strings.TrimSpace(primary); IsUsableSource(primary) {
		return &types.ImageCandidate{URL: primary, Strategy: StrategyPrimary}, nil
	}
	if candidate, ok := SelectCandidate(images); ok {
		return candidate, nil
	}
	if source != "" {
		if candidate, err := ExtractImageFromHTML(source); err == nil {
			return candidate, nil
		}
	}
	return nil, ErrImageNotFound
}

func saveDebugScreenshot(ctx context.Context, s pageSession, dir string, log *logrus.Entry) {
	if dir == "" {
		return
	}
	shot, err := s.screenshot(ctx)
	if err != nil {
		log.Warnf("Failed to take debug screenshot: %v", err)
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warnf("Failed to create debug directory: %v", err)
		return
	}
	path := filepath.Join(dir, "debug_screenshot.png")
	if err := os.WriteFile(path, shot, 0644); err != nil {
		log.Warnf("Failed to save debug screenshot: %v", err)
		return
	}
	log.Infof("Saved page screenshot for debugging: %s", path)
}

func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
