package scraper

import (
	"fmt"

	"fb-photo-downloader/internal/config"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

// InstallBrowser fetches a browser usable by engine. Selenium still needs a
// chromedriver matching the installed Chrome.
func InstallBrowser(engine string, logger *logrus.Logger) (string, error) {
	switch engine {
	case config.EnginePlaywright:
		logger.Info("Installing Playwright driver and Chromium browser...")
		err := playwright.Install(&playwright.RunOptions{
			Browsers: []string{"chromium"},
			Verbose:  true,
		})
		if err != nil {
			return "", fmt.Errorf("failed to install Playwright browsers: %w", err)
		}
		return "playwright-managed chromium", nil
	case config.EngineChromedp, config.EngineRod, config.EngineSelenium:
		logger.Info("Downloading Chromium...")
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return "", fmt.Errorf("failed to download Chromium: %w", err)
		}
		if engine == config.EngineSelenium {
			logger.Warn("Selenium also needs a chromedriver matching this Chromium build")
		}
		return path, nil
	default:
		return "", fmt.Errorf("unknown browser engine: %q", engine)
	}
}
