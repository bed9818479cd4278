package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

func NewSeleniumLocator(opts BrowserOptions, logger *logrus.Logger) Locator {
	return &sessionLocator{
		name:   config.EngineSelenium,
		opts:   opts,
		logger: logger,
		open: func(ctx context.Context) (pageSession, error) {
			return openSeleniumSession(opts, logger)
		},
	}
}

type seleniumSession struct {
	driver  selenium.WebDriver
	service *selenium.Service
	logger  *logrus.Logger
}

func openSeleniumSession(opts BrowserOptions, logger *logrus.Logger) (*seleniumSession, error) {
	driverPath, err := DetectDriver(opts.DriverPath)
	if err != nil {
		return nil, err
	}

	chromeCaps := chrome.Capabilities{
		Args: opts.chromeArgs(),
		Prefs: map[string]interface{}{
			"profile.default_content_setting_values.notifications": 2,
		},
	}
	// chromedriver finds Chrome on its own when no binary is detected.
	if execPath, err := DetectBrowser(opts.ExecPath); err == nil {
		chromeCaps.Path = execPath
	}

	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chromeCaps)

	port := opts.SeleniumPort
	if port == 0 {
		port = 4444
	}
	selenium.SetDebug(false)

	service, err := selenium.NewChromeDriverService(driverPath, port)
	if err != nil {
		return nil, fmt.Errorf("failed to start ChromeDriver service: %w", err)
	}

	driver, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d", port))
	if err != nil {
		service.Stop()
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	if opts.PageLoadTimeout > 0 {
		if err := driver.SetPageLoadTimeout(opts.PageLoadTimeout); err != nil {
			logger.Warnf("Failed to set page load timeout: %v", err)
		}
	}

	return &seleniumSession{
		driver:  driver,
		service: service,
		logger:  logger,
	}, nil
}

// WebDriver calls block without a context; ctx is checked between them.
func (s *seleniumSession) navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.driver.Get(url)
}

func (s *seleniumSession) setCookies(ctx context.Context, cookies []Cookie) error {
	set := 0
	for _, cookie := range cookies {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.driver.AddCookie(&selenium.Cookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: cookie.Domain,
			Path:   cookie.Path,
			Secure: cookie.Secure,
		})
		if err != nil {
			// Continue with other cookies instead of failing completely
			s.logger.Warnf("Failed to set cookie %s: %v", cookie.Name, err)
			continue
		}
		set++
	}
	if set == 0 && len(cookies) > 0 {
		return fmt.Errorf("none of %d cookies were accepted", len(cookies))
	}
	return nil
}

func (s *seleniumSession) pressEscape(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	active, err := s.driver.ActiveElement()
	if err != nil {
		active, err = s.driver.FindElement(selenium.ByTagName, "body")
		if err != nil {
			return fmt.Errorf("no element to receive keys: %w", err)
		}
	}
	return active.SendKeys(selenium.EscapeKey)
}

func (s *seleniumSession) primarySource(ctx context.Context, xpath string, timeout time.Duration) (string, error) {
	var found selenium.WebElement
	err := s.driver.WaitWithTimeout(func(wd selenium.WebDriver) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		elems, err := wd.FindElements(selenium.ByXPATH, xpath)
		if err != nil {
			return false, nil
		}
		for _, elem := range elems {
			if visible, err := elem.IsDisplayed(); err == nil && visible {
				found = elem
				return true, nil
			}
		}
		return false, nil
	}, timeout)
	if err != nil {
		return "", err
	}
	return found.GetAttribute("src")
}

func (s *seleniumSession) collectImages(ctx context.Context) ([]types.ImageCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.driver.ExecuteScript("return ("+collectImagesFn+")();", nil)
	if err != nil {
		return nil, err
	}
	return decodeImages(raw)
}

func (s *seleniumSession) html(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.driver.PageSource()
}

func (s *seleniumSession) screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.driver.Screenshot()
}

func (s *seleniumSession) close() error {
	var quitErr error
	if s.driver != nil {
		quitErr = s.driver.Quit()
	}
	if s.service != nil {
		if err := s.service.Stop(); err != nil && quitErr == nil {
			quitErr = err
		}
	}
	return quitErr
}

// decodeImages converts a script result made of plain JSON values.
func decodeImages(raw interface{}) ([]types.ImageCandidate, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode script result: %w", err)
	}
	var images []types.ImageCandidate
	if err := json.Unmarshal(data, &images); err != nil {
		return nil, fmt.Errorf("failed to decode script result: %w", err)
	}
	return images, nil
}
