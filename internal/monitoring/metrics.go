package monitoring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"fb-photo-downloader/internal/utils"

	"github.com/sirupsen/logrus"
)

type Metrics struct {
	DownloadRuns        int                     `json:"download_runs"`
	SuccessfulDownloads int                     `json:"successful_downloads"`
	FailedDownloads     int                     `json:"failed_downloads"`
	TotalBytes          int64                   `json:"total_bytes"`
	LastRun             time.Time               `json:"last_run"`
	LastSuccess         time.Time               `json:"last_success"`
	AverageRunTime      time.Duration           `json:"average_run_time"`
	ErrorRate           float64                 `json:"error_rate"`
	EngineMetrics       map[string]EngineMetric `json:"engine_metrics"`
}

type EngineMetric struct {
	Runs           int           `json:"runs"`
	Failures       int           `json:"failures"`
	Bytes          int64         `json:"bytes"`
	LastRun        time.Time     `json:"last_run"`
	AverageRunTime time.Duration `json:"average_run_time"`
}

type Monitor struct {
	mu          sync.Mutex
	metrics     *Metrics
	logger      *logrus.Logger
	metricsFile string
	now         func() time.Time
}

func NewMonitor(logger *logrus.Logger, metricsFile string) *Monitor {
	monitor := &Monitor{
		metrics: &Metrics{
			EngineMetrics: make(map[string]EngineMetric),
		},
		logger:      logger,
		metricsFile: metricsFile,
		now:         time.Now,
	}

	monitor.loadMetrics()
	return monitor
}

func (m *Monitor) RecordDownloadRun(engine string, success bool, bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.metrics.DownloadRuns++
	m.metrics.LastRun = now
	if success {
		m.metrics.SuccessfulDownloads++
		m.metrics.TotalBytes += bytes
		m.metrics.LastSuccess = now
	} else {
		m.metrics.FailedDownloads++
	}
	m.metrics.AverageRunTime = runningMean(m.metrics.AverageRunTime, duration, m.metrics.DownloadRuns)
	m.metrics.ErrorRate = float64(m.metrics.FailedDownloads) / float64(m.metrics.DownloadRuns) * 100

	engineMetric := m.metrics.EngineMetrics[engine]
	engineMetric.Runs++
	engineMetric.LastRun = now
	if success {
		engineMetric.Bytes += bytes
	} else {
		engineMetric.Failures++
	}
	engineMetric.AverageRunTime = runningMean(engineMetric.AverageRunTime, duration, engineMetric.Runs)
	m.metrics.EngineMetrics[engine] = engineMetric

	m.saveMetrics()

	m.logger.Infof("Recorded download run for engine %s: success=%t, %d bytes, %v duration",
		engine, success, bytes, duration.Round(time.Millisecond))
}

func runningMean(mean, sample time.Duration, n int) time.Duration {
	if n <= 1 {
		return sample
	}
	return mean + (sample-mean)/time.Duration(n)
}

// GetMetrics returns a copy of the current metrics.
func (m *Monitor) GetMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := *m.metrics
	snapshot.EngineMetrics = make(map[string]EngineMetric, len(m.metrics.EngineMetrics))
	for k, v := range m.metrics.EngineMetrics {
		snapshot.EngineMetrics[k] = v
	}
	return snapshot
}

func (m *Monitor) GetHealthStatus() map[string]interface{} {
	metrics := m.GetMetrics()
	status := map[string]interface{}{
		"status":          "healthy",
		"last_run":        utils.FormatTimestamp(metrics.LastRun),
		"total_runs":      metrics.DownloadRuns,
		"error_rate":      fmt.Sprintf("%.2f%%", metrics.ErrorRate),
		"average_runtime": metrics.AverageRunTime.String(),
	}

	if metrics.DownloadRuns > 0 && metrics.ErrorRate > 10 {
		status["status"] = "warning"
		status["warning"] = "High error rate detected"
	}

	return status
}

func (m *Monitor) GenerateReport() string {
	metrics := m.GetMetrics()

	var report strings.Builder
	fmt.Fprintf(&report, `
Facebook Photo Downloader Report
================================
Generated: %s

Overall Statistics:
- Total Download Runs: %d
- Successful Downloads: %d
- Failed Downloads: %d
- Bytes Downloaded: %d
- Error Rate: %.2f%%
- Average Run Time: %s
- Last Run: %s
- Last Success: %s

Engine Performance:
`,
		utils.FormatTimestamp(m.now()),
		metrics.DownloadRuns,
		metrics.SuccessfulDownloads,
		metrics.FailedDownloads,
		metrics.TotalBytes,
		metrics.ErrorRate,
		metrics.AverageRunTime.Round(time.Millisecond),
		utils.FormatTimestamp(metrics.LastRun),
		utils.FormatTimestamp(metrics.LastSuccess),
	)

	engines := make([]string, 0, len(metrics.EngineMetrics))
	for engine := range metrics.EngineMetrics {
		engines = append(engines, engine)
	}
	sort.Strings(engines)

	for _, engine := range engines {
		metric := metrics.EngineMetrics[engine]
		fmt.Fprintf(&report, `
- Engine %s:
  Runs: %d
  Failures: %d
  Bytes: %d
  Last Run: %s
  Average Runtime: %s
`,
			engine,
			metric.Runs,
			metric.Failures,
			metric.Bytes,
			utils.FormatTimestamp(metric.LastRun),
			metric.AverageRunTime.Round(time.Millisecond),
		)
	}

	return report.String()
}

func (m *Monitor) loadMetrics() {
	if m.metricsFile == "" {
		return
	}
	data, err := os.ReadFile(m.metricsFile)
	if os.IsNotExist(err) {
		m.logger.Info("No existing metrics file found, starting fresh")
		return
	}
	if err != nil {
		m.logger.Warnf("Failed to read metrics file: %v", err)
		return
	}

	if err := json.Unmarshal(data, m.metrics); err != nil {
		m.logger.Warnf("Failed to parse metrics file: %v", err)
		return
	}
	if m.metrics.EngineMetrics == nil {
		m.metrics.EngineMetrics = make(map[string]EngineMetric)
	}

	m.logger.Info("Loaded existing metrics from file")
}

// saveMetrics must be called with mu held.
func (m *Monitor) saveMetrics() {
	if m.metricsFile == "" {
		return
	}
	data, err := json.MarshalIndent(m.metrics, "", "  ")
	if err != nil {
		m.logger.Errorf("Failed to marshal metrics: %v", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(m.metricsFile), 0755); err != nil {
		m.logger.Errorf("Failed to create metrics directory: %v", err)
		return
	}
	if err := os.WriteFile(m.metricsFile, data, 0644); err != nil {
		m.logger.Errorf("Failed to save metrics: %v", err)
	}
}

// AlertManager handles alerting based on metrics
type AlertManager struct {
	monitor *Monitor
	logger  *logrus.Logger
}

func NewAlertManager(monitor *Monitor, logger *logrus.Logger) *AlertManager {
	return &AlertManager{
		monitor: monitor,
		logger:  logger,
	}
}

func (am *AlertManager) CheckAlerts() []string {
	var alerts []string
	metrics := am.monitor.GetMetrics()

	if metrics.DownloadRuns == 0 {
		return append(alerts, "ALERT: No downloads have been attempted")
	}

	if metrics.ErrorRate > 15 {
		alerts = append(alerts, fmt.Sprintf("ALERT: High error rate: %.2f%%", metrics.ErrorRate))
	}

	if metrics.SuccessfulDownloads == 0 {
		alerts = append(alerts, "ALERT: No download has succeeded yet")
	} else if utils.IsOlderThan(metrics.LastSuccess, 7*24*time.Hour) {
		alerts = append(alerts, "ALERT: No successful download in the last 7 days")
	}

	var engineAlerts []string
	for engine, metric := range metrics.EngineMetrics {
		if metric.Runs >= 3 && metric.Failures == metric.Runs {
			engineAlerts = append(engineAlerts, fmt.Sprintf("ALERT: Engine %s failed all %d runs", engine, metric.Runs))
		}
	}
	sort.Strings(engineAlerts)

	return append(alerts, engineAlerts...)
}

// SendAlerts writes each alert to the log at warning level.
func (am *AlertManager) SendAlerts(alerts []string) {
	for _, alert := range alerts {
		am.logger.Warn(alert)
	}
}
