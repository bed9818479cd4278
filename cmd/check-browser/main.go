package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/internal/scraper"

	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile = flag.String("config", "configs/config.yaml", "Configuration file path")
		engine     = flag.String("engine", "", "Browser engine to check, overrides browser.engine")
		install    = flag.Bool("install", false, "Download a browser for the engine when none is found")
	)
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *engine != "" {
		cfg.Browser.Engine = *engine
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("==================================================")
	fmt.Printf("Browser check for engine %q\n", cfg.Browser.Engine)
	fmt.Println("==================================================")

	ok := true
	browserMajor := 0

	browserPath, err := scraper.DetectBrowser(cfg.Browser.ExecPath)
	if err != nil && *install {
		fmt.Println("No browser found, installing...")
		browserPath, err = scraper.InstallBrowser(cfg.Browser.Engine, logger)
		if err == nil {
			fmt.Printf("✓ Installed: %s\n", browserPath)
			fmt.Println("  Set browser.exec_path or CHROME_EXECUTABLE_PATH to use it with chromedp or selenium")
		}
	}
	switch {
	case err != nil:
		fmt.Printf("✗ Browser: %v\n", err)
		if cfg.Browser.Engine != config.EngineRod {
			ok = false
		} else {
			fmt.Println("  rod will download Chromium on first use")
		}
	case cfg.Browser.Engine == config.EnginePlaywright && *install:
		// playwright manages its own browser path
	default:
		fmt.Printf("✓ Browser found at %s\n", browserPath)
		version, major, verr := scraper.BinaryVersion(ctx, browserPath)
		if verr != nil {
			fmt.Printf("  Could not read version: %v\n", verr)
		} else {
			fmt.Printf("✓ Version: %s (major %d)\n", version, major)
			browserMajor = major
		}
	}

	if cfg.Browser.Engine == config.EngineSelenium {
		driverPath, err := scraper.DetectDriver(cfg.Browser.DriverPath)
		if err != nil {
			fmt.Printf("✗ ChromeDriver: %v\n", err)
			ok = false
		} else {
			fmt.Printf("✓ ChromeDriver found at %s\n", driverPath)
			version, major, verr := scraper.BinaryVersion(ctx, driverPath)
			switch {
			case verr != nil:
				fmt.Printf("  Could not read version: %v\n", verr)
			case browserMajor != 0 && major != browserMajor:
				fmt.Printf("✗ ChromeDriver %s does not match browser major version %d\n", version, browserMajor)
				ok = false
			default:
				fmt.Printf("✓ Version: %s\n", version)
			}
		}
	}

	if cfg.Browser.CookiesFile != "" {
		fmt.Println("Testing cookie loading...")
		cookies, err := scraper.LoadCookies(cfg.Browser.CookiesFile)
		switch {
		case err != nil:
			fmt.Printf("✗ Cookies: %v\n", err)
		default:
			if err := scraper.ValidateCookies(cookies); err != nil {
				fmt.Printf("✗ Cookies: %v\n", err)
			} else {
				fmt.Printf("✓ %d cookies loaded, session cookies present\n", len(cookies))
			}
		}
	}

	if !ok {
		os.Exit(1)
	}
	fmt.Println("✅ Browser setup looks good")
}
