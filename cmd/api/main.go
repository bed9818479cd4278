package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fb-photo-downloader/internal/api"
	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/internal/database"
	"fb-photo-downloader/internal/monitoring"
	"fb-photo-downloader/internal/scraper"
	"fb-photo-downloader/internal/utils"
)

func main() {
	var (
		configFile = flag.String("config", "configs/config.yaml", "Configuration file path")
		host       = flag.String("host", "", "Listen address, overrides server.host")
		port       = flag.Int("port", 0, "Listen port, overrides server.port")
	)
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
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

	monitor := monitoring.NewMonitor(logger, cfg.MetricsFile)
	downloader.WithMonitor(monitor)

	opts := api.Options{
		Server:         cfg.Server,
		DownloadDir:    cfg.Download.Dir,
		AttachmentName: config.DefaultFilename,
		Monitor:        monitor,
	}

	if cfg.Database.Enabled {
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.RunMigrations(); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		downloader.WithHistory(db)
		opts.History = db
	}

	if err := os.MkdirAll(cfg.Download.Dir, 0755); err != nil {
		logger.Fatalf("Failed to create download directory: %v", err)
	}

	server := api.NewServer(downloader, opts, logger)

	logger.Info("Available endpoints:")
	logger.Info("  GET  /              - Download form")
	logger.Info("  POST /download      - Download a Facebook photo")
	logger.Info("  GET  /download_file - Last downloaded photo")
	logger.Info("  GET  /images/*      - Downloaded photos")
	logger.Info("  GET  /health        - Health check")
	logger.Info("  GET  /api/stats     - Download statistics")
	logger.Info("  GET  /api/history   - Recent downloads")

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Infof("Received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Forced shutdown: %v", err)
	} else {
		logger.Info("Server stopped")
	}
}
