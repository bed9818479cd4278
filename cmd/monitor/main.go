package main

import (
	"flag"
	"fmt"
	"log"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/internal/database"
	"fb-photo-downloader/internal/monitoring"
	"fb-photo-downloader/internal/utils"

	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile  = flag.String("config", "configs/config.yaml", "Configuration file path")
		metricsFile = flag.String("metrics", "", "Metrics file path, overrides metrics_file")
		report      = flag.Bool("report", false, "Generate and display monitoring report")
		alerts      = flag.Bool("alerts", false, "Check and display alerts")
	)
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *metricsFile != "" {
		cfg.MetricsFile = *metricsFile
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if cfg.Logging.File != "" {
		fileLogger, logFile, err := utils.NewLogger(cfg.Logging.Level, cfg.Logging.File)
		if err != nil {
			log.Fatalf("Failed to set up logging: %v", err)
		}
		defer logFile.Close()
		logger = fileLogger
	}

	monitor := monitoring.NewMonitor(logger, cfg.MetricsFile)

	if *report {
		fmt.Println(monitor.GenerateReport())
		printHistoryStats(cfg, logger)
		return
	}

	if *alerts {
		alertManager := monitoring.NewAlertManager(monitor, logger)
		active := alertManager.CheckAlerts()

		if len(active) == 0 {
			fmt.Println("✅ No alerts - system is healthy")
		} else {
			fmt.Println("⚠️  Active Alerts:")
			for _, alert := range active {
				fmt.Printf("  - %s\n", alert)
			}
			if cfg.Logging.File != "" {
				alertManager.SendAlerts(active)
			}
		}
		return
	}

	health := monitor.GetHealthStatus()
	fmt.Println("Facebook Photo Downloader Status:")
	fmt.Printf("- Status: %s\n", health["status"])
	fmt.Printf("- Last Run: %s\n", health["last_run"])
	fmt.Printf("- Total Runs: %v\n", health["total_runs"])
	fmt.Printf("- Error Rate: %s\n", health["error_rate"])
	fmt.Printf("- Average Runtime: %s\n", health["average_runtime"])

	if warning, exists := health["warning"]; exists {
		fmt.Printf("- Warning: %s\n", warning)
	}
}

func printHistoryStats(cfg *config.Config, logger *logrus.Logger) {
	if !cfg.Database.Enabled {
		return
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		return
	}
	defer db.Close()

	stats, err := db.GetDownloadStats()
	if err != nil {
		logger.Errorf("Failed to get database stats: %v", err)
		return
	}

	fmt.Println("\nDownload History:")
	fmt.Printf("- Total Attempts: %d\n", stats.Total)
	fmt.Printf("- Succeeded: %d\n", stats.Succeeded)
	fmt.Printf("- Failed: %d\n", stats.Failed)
	fmt.Printf("- Bytes Saved: %d\n", stats.TotalBytes)
	fmt.Printf("- Average Duration: %.0fms\n", stats.AvgDuration)
	for engine, count := range stats.ByEngine {
		fmt.Printf("- Engine %s: %d\n", engine, count)
	}
	if stats.LastDownload != nil {
		fmt.Printf("- Last Download: %s\n", utils.FormatTimestamp(*stats.LastDownload))
	}

	recent, err := db.GetRecentDownloads(5)
	if err != nil {
		logger.Errorf("Failed to get recent downloads: %v", err)
		return
	}
	if len(recent) > 0 {
		fmt.Println("\nRecent Downloads:")
	}
	for _, d := range recent {
		state := "ok"
		if !d.Success {
			state = "failed: " + d.Error
		}
		fmt.Printf("- %s %s [%s] %s\n", utils.FormatTimestamp(d.DownloadedAt), d.PageURL, d.Engine, state)
	}
}
