package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fb-photo-downloader/internal/database"
	"fb-photo-downloader/internal/database/models"
	"fb-photo-downloader/internal/scraper"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

const (
	msgNoURL          = "No URL provided"
	msgInvalidURL     = "Invalid Facebook URL"
	msgDownloadFailed = "Failed to download profile picture. The photo might be private or unavailable."
)

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
}

func (s *Server) handleDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBind(&req); err != nil {
		s.logger.Debugf("Failed to bind download request: %v", err)
	}
	pageURL := strings.TrimSpace(req.URL)

	result, err := s.downloader.Download(c.Request.Context(), pageURL)
	if err != nil {
		s.logger.Errorf("Download of %q failed: %v", pageURL, err)
		switch {
		case errors.Is(err, scraper.ErrEmptyURL):
			s.writeError(c, msgNoURL, http.StatusBadRequest)
		case errors.Is(err, scraper.ErrInvalidURL), errors.Is(err, scraper.ErrNotFacebookURL):
			s.writeError(c, msgInvalidURL, http.StatusBadRequest)
		case scraper.IsLocalError(err):
			s.writeError(c, "An error occurred: "+err.Error(), http.StatusInternalServerError)
		default:
			s.writeError(c, msgDownloadFailed, http.StatusBadRequest)
		}
		return
	}

	s.writeJSON(c, http.StatusOK, DownloadResponse{
		DownloadURL: imageURL(c.Request, result.FileName),
		FileName:    result.FileName,
		ImageURL:    result.ImageURL,
		Bytes:       result.Bytes,
		ContentType: result.ContentType,
		Engine:      result.Engine,
		Strategy:    result.Strategy,
		DurationMs:  result.Duration.Milliseconds(),
	})
}

// imageURL is where /images/ serves name to the requesting client.
func imageURL(r *http.Request, name string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host + "/images/" + url.PathEscape(name)
}

func (s *Server) handleDownloadFile(c *gin.Context) {
	path, err := s.downloader.LastFile()
	if errors.Is(err, scraper.ErrNoFile) {
		s.writeError(c, "No file available for download", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeError(c, "Error serving file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		s.writeError(c, "Error serving file: "+err.Error(), http.StatusInternalServerError)
		return
	}
	c.Header("Content-Type", mtype.String())
	c.FileAttachment(path, s.opts.AttachmentName)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}
	if s.opts.Monitor != nil {
		body["monitor"] = s.opts.Monitor.GetHealthStatus()
	}
	if s.opts.History != nil {
		if err := s.opts.History.Ping(); err != nil {
			s.logger.Warnf("Health check: database unreachable: %v", err)
			body["status"] = "degraded"
			body["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}
	c.JSON(status, body)
}

func (s *Server) handleAPIRoot(c *gin.Context) {
	s.writeJSON(c, http.StatusOK, gin.H{
		"message": "Facebook Photo Downloader API",
		"version": "1.0.0",
		"endpoints": gin.H{
			"POST /download":     "Download the photo behind a Facebook photo URL",
			"GET /download_file": "Fetch the last downloaded photo",
			"GET /images/:name":  "Downloaded photos",
			"GET /health":        "Health check",
			"GET /api/stats":     "Download statistics",
			"GET /api/history":   "Recent downloads",
		},
	})
}

func (s *Server) handleStats(c *gin.Context) {
	data := gin.H{}
	if s.opts.Monitor != nil {
		data["metrics"] = s.opts.Monitor.GetMetrics()
	}
	if s.opts.History != nil {
		stats, err := s.opts.History.GetDownloadStats()
		if err != nil {
			s.writeError(c, "Failed to fetch stats: "+err.Error(), http.StatusInternalServerError)
			return
		}
		data["history"] = stats
	}
	s.writeJSON(c, http.StatusOK, data)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.opts.History == nil {
		s.writeError(c, "Download history is not enabled", http.StatusNotFound)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	limit = database.ClampLimit(limit)

	var (
		downloads []*models.Download
		err       error
	)
	if engines := splitList(c.Query("engine")); len(engines) > 0 {
		downloads, err = s.opts.History.GetDownloadsByEngine(engines, limit)
	} else {
		downloads, err = s.opts.History.GetRecentDownloads(limit)
	}
	if err != nil {
		s.writeError(c, "Failed to fetch history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    downloads,
		Count:   len(downloads),
	})
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
