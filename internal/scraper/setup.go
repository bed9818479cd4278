package scraper

import (
	"fb-photo-downloader/internal/config"

	"github.com/sirupsen/logrus"
)

// NewDownloaderFromConfig wires the configured engine, cookies and fetcher.
// A broken cookies file is logged and the run continues logged out.
func NewDownloaderFromConfig(cfg *config.Config, logger *logrus.Logger) (*Downloader, error) {
	opts := OptionsFromConfig(cfg.Browser)

	if cfg.Browser.CookiesFile != "" {
		cookies, err := LoadCookies(cfg.Browser.CookiesFile)
		switch {
		case err != nil:
			logger.Warnf("Continuing without cookies: %v", err)
		default:
			if err := ValidateCookies(cookies); err != nil {
				logger.Warnf("Cookies may not be logged in: %v", err)
			}
			opts.Cookies = cookies
			logger.Infof("Loaded %d Facebook cookies", len(cookies))
		}
	}

	locator, err := NewLocator(cfg.Browser.Engine, opts, logger)
	if err != nil {
		return nil, err
	}
	fetcher := NewImageFetcher(cfg.Download, cfg.Browser.UserAgent, logger)

	return NewDownloader(locator, fetcher, cfg.Download, logger), nil
}
