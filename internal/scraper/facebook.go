package scraper

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/internal/database/models"
	"fb-photo-downloader/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	fallbackFilename  = "profile_picture"
	defaultRunTimeout = 2 * time.Minute
)

// HistoryStore persists one row per download attempt.
type HistoryStore interface {
	SaveDownload(download *models.Download) error
}

// RunRecorder receives the outcome of every download attempt.
type RunRecorder interface {
	RecordDownloadRun(engine string, success bool, bytes int64, duration time.Duration)
}

// Downloader locates the photo on a Facebook page, fetches it and writes it
// to the download directory.
type Downloader struct {
	locator Locator
	fetcher Fetcher
	cfg     config.DownloadConfig
	logger  *logrus.Logger
	history HistoryStore
	monitor RunRecorder

	group singleflight.Group

	mu   sync.Mutex
	last string
}

func NewDownloader(locator Locator, fetcher Fetcher, cfg config.DownloadConfig, logger *logrus.Logger) *Downloader {
	return &Downloader{
		locator: locator,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
	}
}

func (d *Downloader) WithHistory(history HistoryStore) *Downloader {
	d.history = history
	return d
}

func (d *Downloader) WithMonitor(monitor RunRecorder) *Downloader {
	d.monitor = monitor
	return d
}

// Download saves the photo shown at pageURL. Concurrent calls for the same
// URL share a single browser run. The shared run is detached from any one
// caller: a caller whose ctx ends gets ctx.Err() while the run continues for
// the others, bounded by the run timeout.
func (d *Downloader) Download(ctx context.Context, pageURL string) (*types.DownloadResult, error) {
	pageURL = strings.TrimSpace(pageURL)
	if err := ValidatePhotoURL(pageURL); err != nil {
		if !errors.Is(err, ErrNotFacebookURL) || d.cfg.RequireFacebookURL {
			return nil, err
		}
		d.logger.Warnf("%v: %s, trying anyway", err, pageURL)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := d.group.DoChan(pageURL, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.runTimeout())
		defer cancel()
		return d.download(runCtx, pageURL)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			d.logger.Debugf("Shared download result for %s", pageURL)
		}
		return res.Val.(*types.DownloadResult), nil
	}
}

func (d *Downloader) runTimeout() time.Duration {
	if t := d.cfg.RunTimeout.Std(); t > 0 {
		return t
	}
	return defaultRunTimeout
}

func (d *Downloader) download(ctx context.Context, pageURL string) (*types.DownloadResult, error) {
	start := time.Now()
	result := &types.DownloadResult{
		ID:      uuid.NewString(),
		PageURL: pageURL,
		Engine:  d.locator.Name(),
	}
	log := d.logger.WithFields(logrus.Fields{
		"id":     result.ID,
		"engine": result.Engine,
	})
	log.Infof("Downloading photo from %s", pageURL)

	err := d.run(ctx, result, log)
	result.Duration = time.Since(start)
	d.record(result, err, log)
	if err != nil {
		return nil, err
	}

	log.Infof("Profile picture downloaded successfully: %s", result)
	return result, nil
}

func (d *Downloader) run(ctx context.Context, result *types.DownloadResult, log *logrus.Entry) error {
	candidate, err := d.locator.Locate(ctx, result.PageURL)
	if err != nil {
		return err
	}
	result.ImageURL = candidate.URL
	result.Strategy = candidate.Strategy

	image, err := d.fetcher.Fetch(ctx, candidate.URL)
	if err != nil {
		return err
	}
	log.Debugf("Fetched %d bytes (%s)", len(image.Data), image.ContentType)

	name := OutputFilename(d.cfg.Filename, candidate.URL, image.Extension)
	filePath, err := d.save(name, image.Data)
	if err != nil {
		return err
	}

	result.FilePath = filePath
	result.FileName = name
	result.Bytes = int64(len(image.Data))
	result.ContentType = image.ContentType
	result.DownloadedAt = time.Now()
	return nil
}

// save writes data next to its destination and renames it into place.
func (d *Downloader) save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.cfg.Dir, 0755); err != nil {
		return "", &SaveError{Op: "failed to create download directory", Err: err}
	}

	tmp, err := os.CreateTemp(d.cfg.Dir, ".download-*")
	if err != nil {
		return "", &SaveError{Op: "failed to create temp file", Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", &SaveError{Op: "failed to write image", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &SaveError{Op: "failed to write image", Err: err}
	}

	dest := filepath.Join(d.cfg.Dir, name)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.Rename(tmpName, dest); err != nil {
		return "", &SaveError{Op: "failed to save image", Err: err}
	}
	d.last = dest
	return dest, nil
}

func (d *Downloader) record(result *types.DownloadResult, err error, log *logrus.Entry) {
	if d.monitor != nil {
		d.monitor.RecordDownloadRun(result.Engine, err == nil, result.Bytes, result.Duration)
	}
	if d.history == nil {
		return
	}

	row := &models.Download{
		ID:           result.ID,
		PageURL:      result.PageURL,
		ImageURL:     result.ImageURL,
		FilePath:     result.FilePath,
		Bytes:        result.Bytes,
		ContentType:  result.ContentType,
		Engine:       result.Engine,
		Strategy:     result.Strategy,
		Success:      err == nil,
		DurationMs:   result.Duration.Milliseconds(),
		DownloadedAt: time.Now(),
	}
	if err != nil {
		row.Error = err.Error()
	}
	if saveErr := d.history.SaveDownload(row); saveErr != nil {
		log.Warnf("Failed to save download history: %v", saveErr)
	}
}

// LastFile returns the most recently saved file, or ErrNoFile when nothing
// has been saved or the file is gone.
func (d *Downloader) LastFile() (string, error) {
	d.mu.Lock()
	last := d.last
	d.mu.Unlock()

	if last == "" || !fileExists(last) {
		return "", ErrNoFile
	}
	return last, nil
}

// OutputFilename returns configured when set, otherwise a name taken from
// the image URL path. Names that could leave the download directory fall
// back to profile_picture.
func OutputFilename(configured, imageURL, ext string) string {
	if configured != "" {
		return configured
	}
	if ext == "" {
		ext = ".jpg"
	}

	name := ""
	if u, err := url.Parse(imageURL); err == nil {
		name = path.Base(u.Path)
	}
	// %5C decodes to a backslash, a separator on Windows.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = filepath.Base(name)
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return fallbackFilename + ext
	}
	if path.Ext(name) == "" {
		name += ext
	}
	return name
}
