package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/internal/database"
	"fb-photo-downloader/internal/monitoring"
	"fb-photo-downloader/internal/scraper"
	"fb-photo-downloader/internal/utils"
)

func main() {
	var (
		configFile = flag.String("config", "configs/config.yaml", "Configuration file path")
		engine     = flag.String("engine", "", "Browser engine: chromedp, selenium, rod or playwright")
		outDir     = flag.String("out", "", "Download directory")
		filename   = flag.String("filename", "", "Output filename, overrides the configured one")
		openDir    = flag.Bool("open", false, "Open the download folder when done")
		strict     = flag.Bool("strict", false, "Refuse URLs outside facebook.com")
		show       = flag.Bool("show", false, "Show the browser window instead of running headless")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	pageURL := strings.TrimSpace(flag.Arg(0))
	if pageURL == "" {
		fmt.Println("No URL provided!")
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *engine != "" {
		cfg.Browser.Engine = strings.ToLower(*engine)
	}
	if *outDir != "" {
		cfg.Download.Dir = *outDir
	}
	if *filename != "" {
		cfg.Download.Filename = *filename
	}
	if *show {
		cfg.Browser.Headless = false
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	cfg.Download.RequireFacebookURL = *strict
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, logFile, err := utils.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	downloader, err := scraper.NewDownloaderFromConfig(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create downloader: %v", err)
	}
	downloader.WithMonitor(monitoring.NewMonitor(logger, cfg.MetricsFile))

	if cfg.Database.Enabled {
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Warnf("Download history disabled: %v", err)
		} else {
			defer db.Close()
			if err := db.RunMigrations(); err != nil {
				logger.Warnf("Failed to run migrations: %v", err)
			}
			downloader.WithHistory(db)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := "headless"
	if !cfg.Browser.Headless {
		mode = "windowed"
	}
	fmt.Printf("Downloading profile picture in %s mode with %s...\n", mode, cfg.Browser.Engine)

	result, err := downloader.Download(ctx, pageURL)
	if err != nil {
		fmt.Printf("\nDownload failed: %v\n", err)
		for _, tip := range troubleshootingTips(err) {
			fmt.Printf("  - %s\n", tip)
		}
		os.Exit(1)
	}

	absPath, err := filepath.Abs(result.FilePath)
	if err != nil {
		absPath = result.FilePath
	}
	fmt.Println("\n--- DOWNLOAD COMPLETE ---")
	fmt.Printf("Image saved successfully to: %s\n", absPath)

	if *openDir {
		fmt.Println("Opening the downloads folder...")
		if err := utils.OpenFolder(filepath.Dir(absPath)); err != nil {
			logger.Warnf("Failed to open folder: %v", err)
		}
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <facebook_photo_url>\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(os.Stderr, "Example: %s \"https://www.facebook.com/photo/?fbid=105948795901555&set=a.105948809234887\"\n\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func troubleshootingTips(err error) []string {
	switch {
	case errors.Is(err, scraper.ErrEmptyURL), errors.Is(err, scraper.ErrInvalidURL):
		return []string{"Pass a full photo URL such as https://www.facebook.com/photo/?fbid=..."}
	case errors.Is(err, scraper.ErrNotFacebookURL):
		return []string{"Run without -strict to try non-Facebook URLs anyway"}
	case errors.Is(err, scraper.ErrNoBrowser):
		return []string{
			"Install Google Chrome or Chromium, or run check-browser -install",
			"Set CHROME_EXECUTABLE_PATH to a browser binary",
			"Use -engine rod to let rod download its own Chromium",
		}
	case errors.Is(err, scraper.ErrNoDriver):
		return []string{
			"Install a chromedriver matching your Chrome major version",
			"Set CHROMEDRIVER_PATH, or use -engine chromedp which needs no driver",
		}
	case errors.Is(err, scraper.ErrImageNotFound):
		return []string{
			"The photo might be private or unavailable",
			"Set browser.cookies_file to download photos that need a login",
			"Set browser.debug_dir to keep a screenshot of the page",
		}
	case errors.Is(err, context.Canceled):
		return nil
	}

	tips := []string{"Run check-browser to verify the browser setup"}
	if strings.Contains(err.Error(), "WinError 193") || strings.Contains(err.Error(), "exec format error") {
		tips = append(tips, "This usually means a 32/64-bit mismatch between the browser, driver and this program")
	}
	return tips
}
