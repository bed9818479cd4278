package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/internal/database/models"
	"fb-photo-downloader/internal/monitoring"
	"fb-photo-downloader/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PhotoDownloader is the part of scraper.Downloader the server drives.
type PhotoDownloader interface {
	Download(ctx context.Context, pageURL string) (*types.DownloadResult, error)
	LastFile() (string, error)
}

type MetricsSource interface {
	GetMetrics() monitoring.Metrics
	GetHealthStatus() map[string]interface{}
}

type HistorySource interface {
	GetRecentDownloads(limit int) ([]*models.Download, error)
	GetDownloadsByEngine(engines []string, limit int) ([]*models.Download, error)
	GetDownloadStats() (*models.DownloadStats, error)
	Ping() error
}

type Options struct {
	Server config.ServerConfig

	// DownloadDir is served under /images/.
	DownloadDir string
	// AttachmentName is the filename offered by /download_file.
	AttachmentName string

	Monitor MetricsSource
	History HistorySource
}

type Server struct {
	downloader PhotoDownloader
	opts       Options
	logger     *logrus.Logger
	started    time.Time
	router     *gin.Engine
	httpServer *http.Server

	stop     chan struct{}
	stopOnce sync.Once
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Count   int         `json:"count,omitempty"`
}

type DownloadRequest struct {
	URL string `json:"url" form:"url"`
}

type DownloadResponse struct {
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
	ImageURL    string `json:"image_url"`
	Bytes       int64  `json:"bytes"`
	ContentType string `json:"content_type"`
	Engine      string `json:"engine"`
	Strategy    string `json:"strategy"`
	DurationMs  int64  `json:"duration_ms"`
}

func NewServer(downloader PhotoDownloader, opts Options, logger *logrus.Logger) *Server {
	if opts.AttachmentName == "" {
		opts.AttachmentName = config.DefaultFilename
	}
	s := &Server{
		downloader: downloader,
		opts:       opts,
		logger:     logger,
		started:    time.Now(),
		stop:       make(chan struct{}),
	}
	s.router = s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Server.Host, opts.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() *gin.Engine {
	if s.opts.Server.Mode != "" {
		gin.SetMode(s.opts.Server.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	r.Use(corsMiddleware(s.opts.Server.CORSOrigins))

	r.GET("/", s.handleIndex)
	r.GET("/health", s.handleHealth)
	r.GET("/download_file", s.handleDownloadFile)
	if s.opts.DownloadDir != "" {
		r.Static("/images", s.opts.DownloadDir)
	}

	limited := r.Group("")
	if s.opts.Server.RequestsPerSecond > 0 {
		limiters := newIPLimiters(s.opts.Server.RequestsPerSecond, s.opts.Server.Burst)
		go limiters.cleanup(s.stop, 5*time.Minute, time.Hour)
		limited.Use(rateLimit(limiters))
	}
	limited.POST("/download", s.handleDownload)

	api := r.Group("/api")
	api.GET("/", s.handleAPIRoot)
	api.GET("/stats", s.handleStats)
	api.GET("/history", s.handleHistory)

	return r
}

// Start blocks until the server stops. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Infof("Starting web server on http://%s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// Shutdown stops background work and drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, APIResponse{Success: true, Data: data})
}

func (s *Server) writeError(c *gin.Context, message string, status int) {
	c.JSON(status, APIResponse{Success: false, Error: message})
}
