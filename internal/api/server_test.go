package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/internal/database/models"
	"fb-photo-downloader/internal/monitoring"
	"fb-photo-downloader/internal/scraper"
	"fb-photo-downloader/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type fakeDownloader struct {
	result *types.DownloadResult
	err    error
	last   string
	gotURL string
}

func (f *fakeDownloader) Download(ctx context.Context, pageURL string) (*types.DownloadResult, error) {
	f.gotURL = pageURL
	return f.result, f.err
}

func (f *fakeDownloader) LastFile() (string, error) {
	if f.last == "" {
		return "", scraper.ErrNoFile
	}
	return f.last, nil
}

type fakeHistory struct {
	rows      []*models.Download
	lastLimit int
	pingErr   error
}

func (h *fakeHistory) Ping() error { return h.pingErr }

func (h *fakeHistory) GetRecentDownloads(limit int) ([]*models.Download, error) {
	h.lastLimit = limit
	if limit < len(h.rows) {
		return h.rows[:limit], nil
	}
	return h.rows, nil
}

func (h *fakeHistory) GetDownloadsByEngine(engines []string, limit int) ([]*models.Download, error) {
	var out []*models.Download
	for _, row := range h.rows {
		for _, engine := range engines {
			if row.Engine == engine {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (h *fakeHistory) GetDownloadStats() (*models.DownloadStats, error) {
	return &models.DownloadStats{Total: len(h.rows), Succeeded: len(h.rows)}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(dl PhotoDownloader, opts Options) *Server {
	opts.Server.Mode = "test"
	return NewServer(dl, opts, quietLogger())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func postDownload(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestIndexServesForm(t *testing.T) {
	s := newTestServer(&fakeDownloader{}, Options{})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `id="downloadForm"`)
	assert.Contains(t, rec.Body.String(), "/download_file")
}

func TestDownloadErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"empty url", scraper.ErrEmptyURL, http.StatusBadRequest, msgNoURL},
		{"invalid url", fmt.Errorf("%w: missing host", scraper.ErrInvalidURL), http.StatusBadRequest, msgInvalidURL},
		{"not facebook", scraper.ErrNotFacebookURL, http.StatusBadRequest, msgInvalidURL},
		{"image not found", scraper.ErrImageNotFound, http.StatusBadRequest, msgDownloadFailed},
		{"image host status", &scraper.StatusError{Code: 404}, http.StatusBadRequest, msgDownloadFailed},
		{"browser missing", scraper.ErrNoBrowser, http.StatusBadRequest, msgDownloadFailed},
		{"page load timeout", fmt.Errorf("failed to open https://www.facebook.com/photo: %w", context.DeadlineExceeded), http.StatusBadRequest, msgDownloadFailed},
		{"navigation error", errors.New("page load error net::ERR_NAME_NOT_RESOLVED"), http.StatusBadRequest, msgDownloadFailed},
		{"fetch transport error", fmt.Errorf("failed to download image: %w", errors.New("connection reset by peer")), http.StatusBadRequest, msgDownloadFailed},
		{"save failure", &scraper.SaveError{Op: "failed to save image", Err: os.ErrPermission}, http.StatusInternalServerError, "An error occurred: failed to save image: permission denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeDownloader{err: tt.err}, Options{})
			rec := postDownload(s, `{"url": "https://www.facebook.com/photo/?fbid=1"}`)

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Error)
		})
	}
}

func TestDownloadSuccess(t *testing.T) {
	dl := &fakeDownloader{result: &types.DownloadResult{
		FileName:    "Free_FB_Zone_Profile_Picture.png",
		ImageURL:    "https://scontent.xx.fbcdn.net/v/photo.jpg",
		Bytes:       68,
		ContentType: "image/png",
		Engine:      "chromedp",
		Strategy:    "primary",
		Duration:    1500 * time.Millisecond,
	}}
	s := newTestServer(dl, Options{})

	rec := postDownload(s, `{"url": "  https://www.facebook.com/photo/?fbid=1  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://www.facebook.com/photo/?fbid=1", dl.gotURL)

	var resp struct {
		Success bool             `json:"success"`
		Data    DownloadResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "http://example.com/images/Free_FB_Zone_Profile_Picture.png", resp.Data.DownloadURL)
	assert.Equal(t, int64(1500), resp.Data.DurationMs)
	assert.Equal(t, "primary", resp.Data.Strategy)
}

func TestDownloadAcceptsFormValue(t *testing.T) {
	dl := &fakeDownloader{err: scraper.ErrImageNotFound}
	s := newTestServer(dl, Options{})

	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader("url=https%3A%2F%2Fwww.facebook.com%2Fphoto"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "https://www.facebook.com/photo", dl.gotURL)
}

func TestImageURLHonorsForwardedProto(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/download", nil)
	req.Host = "photos.example.org"
	req.Header.Set("X-Forwarded-Proto", "https, http")

	assert.Equal(t, "https://photos.example.org/images/a%20b.png", imageURL(req, "a b.png"))
}

func TestDownloadFile(t *testing.T) {
	t.Run("nothing downloaded", func(t *testing.T) {
		s := newTestServer(&fakeDownloader{}, Options{})
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download_file", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "No file available for download", decode(t, rec).Error)
	})

	t.Run("serves last file as attachment", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "saved.bin")
		require.NoError(t, os.WriteFile(path, pngPixel, 0644))

		s := newTestServer(&fakeDownloader{last: path}, Options{AttachmentName: "Free_FB_Zone_Profile_Picture.png"})
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download_file", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "Free_FB_Zone_Profile_Picture.png")
		assert.Equal(t, pngPixel, rec.Body.Bytes())
	})
}

func TestImagesServedFromDownloadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pic.png"), pngPixel, 0644))

	s := newTestServer(&fakeDownloader{}, Options{DownloadDir: dir})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images/pic.png", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngPixel, rec.Body.Bytes())
}

func TestHealth(t *testing.T) {
	monitor := monitoring.NewMonitor(quietLogger(), "")
	s := newTestServer(&fakeDownloader{}, Options{Monitor: monitor})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotEmpty(t, body["uptime"])
	assert.Contains(t, body, "monitor")
	assert.NotContains(t, body, "database")
}

func TestHealthPingsDatabase(t *testing.T) {
	history := &fakeHistory{}
	s := newTestServer(&fakeDownloader{}, Options{History: history})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)

	history.pingErr = errors.New("connection refused")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestAPIRootAndStats(t *testing.T) {
	monitor := monitoring.NewMonitor(quietLogger(), "")
	monitor.RecordDownloadRun("rod", true, 10, time.Second)
	s := newTestServer(&fakeDownloader{}, Options{Monitor: monitor})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Metrics monitoring.Metrics `json:"metrics"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Metrics.DownloadRuns)
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(&fakeDownloader{}, Options{})
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		history := &fakeHistory{rows: []*models.Download{
			{ID: "a", Engine: "rod"}, {ID: "b", Engine: "chromedp"}, {ID: "c", Engine: "rod"},
		}}
		s := newTestServer(&fakeDownloader{}, Options{History: history})
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=2", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, decode(t, rec).Count)

		rec = httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?engine=chromedp,%20", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decode(t, rec).Count)
	})

	t.Run("limit is clamped", func(t *testing.T) {
		history := &fakeHistory{}
		s := newTestServer(&fakeDownloader{}, Options{History: history})

		for query, want := range map[string]int{"": 20, "?limit=abc": 20, "?limit=250": 250, "?limit=9999": 500} {
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history"+query, nil))
			require.Equal(t, http.StatusOK, rec.Code, query)
			assert.Equal(t, want, history.lastLimit, query)
		}
	})
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(&fakeDownloader{err: scraper.ErrImageNotFound}, Options{
		Server: config.ServerConfig{RequestsPerSecond: 0.001, Burst: 1},
	})

	first := postDownload(s, `{"url": "https://www.facebook.com/photo"}`)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := postDownload(s, `{"url": "https://www.facebook.com/photo"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestIPLimitersEvictIdle(t *testing.T) {
	limiters := newIPLimiters(1, 1)
	limiters.get("10.0.0.1")
	limiters.get("10.0.0.2")

	limiters.mu.Lock()
	limiters.entries["10.0.0.1"].lastSeen = time.Now().Add(-2 * time.Hour)
	limiters.mu.Unlock()

	assert.Equal(t, 1, limiters.evict(time.Now().Add(-time.Hour)))
	assert.Equal(t, 0, limiters.evict(time.Now().Add(time.Minute)))
}

func TestIPLimitersCleanupStops(t *testing.T) {
	limiters := newIPLimiters(1, 1)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		limiters.cleanup(stop, time.Millisecond, time.Hour)
		close(done)
	}()

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not return after stop")
	}
}

func TestShutdownIsRepeatable(t *testing.T) {
	s := newTestServer(&fakeDownloader{}, Options{
		Server: config.ServerConfig{RequestsPerSecond: 1, Burst: 1},
	})
	assert.NoError(t, s.Shutdown(context.Background()))
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestCORS(t *testing.T) {
	s := newTestServer(&fakeDownloader{}, Options{
		Server: config.ServerConfig{CORSOrigins: []string{"https://app.example.com"}},
	})

	req := httptest.NewRequest(http.MethodOptions, "/download", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://other.example.com")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRedirectRouter(t *testing.T) {
	h := NewRedirectRouter("", quietLogger())

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/anything/here", nil))
		assert.Equal(t, http.StatusFound, rec.Code, method)
		assert.Equal(t, "/api/", rec.Header().Get("Location"), method)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestShutdownWithoutStart(t *testing.T) {
	s := newTestServer(&fakeDownloader{}, Options{})
	assert.NoError(t, s.Shutdown(context.Background()))
}
