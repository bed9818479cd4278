package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fb-photo-downloader/internal/config"
	"fb-photo-downloader/internal/database/models"
	"fb-photo-downloader/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocator struct {
	candidate *types.ImageCandidate
	err       error
	calls     int32
	hold      chan struct{}
	started   chan struct{}
	ctxErr    error
}

func (f *fakeLocator) Name() string { return "fake" }

func (f *fakeLocator) Locate(ctx context.Context, pageURL string) (*types.ImageCandidate, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		close(f.started)
	}
	if f.hold != nil {
		<-f.hold
	}
	f.ctxErr = ctx.Err()
	return f.candidate, f.err
}

type fakeFetcher struct {
	image *FetchedImage
	err   error
	got   string
}

func (f *fakeFetcher) Fetch(ctx context.Context, imageURL string) (*FetchedImage, error) {
	f.got = imageURL
	return f.image, f.err
}

type recordedRun struct {
	engine  string
	success bool
	bytes   int64
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []recordedRun
	rows []*models.Download
}

func (r *fakeRecorder) RecordDownloadRun(engine string, success bool, bytes int64, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, recordedRun{engine, success, bytes})
}

func (r *fakeRecorder) SaveDownload(d *models.Download) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, d)
	return nil
}

func downloadConfig(dir string) config.DownloadConfig {
	return config.DownloadConfig{
		Dir:                dir,
		Filename:           config.DefaultFilename,
		RequireFacebookURL: true,
	}
}

func TestDownloaderSavesImage(t *testing.T) {
	dir := t.TempDir()
	locator := &fakeLocator{candidate: &types.ImageCandidate{URL: "https://scontent.fbcdn.net/v/p.jpg", Strategy: StrategyPrimary}}
	fetcher := &fakeFetcher{image: &FetchedImage{Data: pngPixel, ContentType: "image/png", Extension: ".png"}}
	recorder := &fakeRecorder{}

	d := NewDownloader(locator, fetcher, downloadConfig(dir), quietLogger()).
		WithHistory(recorder).
		WithMonitor(recorder)

	result, err := d.Download(context.Background(), " "+photoPage+" ")
	require.NoError(t, err)

	assert.Equal(t, photoPage, result.PageURL)
	assert.Equal(t, "https://scontent.fbcdn.net/v/p.jpg", fetcher.got)
	assert.Equal(t, filepath.Join(dir, config.DefaultFilename), result.FilePath)
	assert.Equal(t, config.DefaultFilename, result.FileName)
	assert.Equal(t, int64(len(pngPixel)), result.Bytes)
	assert.Equal(t, "fake", result.Engine)
	assert.Equal(t, StrategyPrimary, result.Strategy)
	assert.NotEmpty(t, result.ID)

	data, err := os.ReadFile(result.FilePath)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, data)

	last, err := d.LastFile()
	require.NoError(t, err)
	assert.Equal(t, result.FilePath, last)

	require.Len(t, recorder.runs, 1)
	assert.Equal(t, recordedRun{"fake", true, int64(len(pngPixel))}, recorder.runs[0])
	require.Len(t, recorder.rows, 1)
	assert.True(t, recorder.rows[0].Success)
	assert.Equal(t, result.ID, recorder.rows[0].ID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestDownloaderOverwritesFixedFilename(t *testing.T) {
	dir := t.TempDir()
	locator := &fakeLocator{candidate: &types.ImageCandidate{URL: "https://scontent.fbcdn.net/a.jpg"}}
	fetcher := &fakeFetcher{image: &FetchedImage{Data: []byte("first"), ContentType: "image/jpeg"}}
	d := NewDownloader(locator, fetcher, downloadConfig(dir), quietLogger())

	_, err := d.Download(context.Background(), photoPage)
	require.NoError(t, err)

	fetcher.image = &FetchedImage{Data: []byte("second"), ContentType: "image/jpeg"}
	result, err := d.Download(context.Background(), photoPage+"&set=2")
	require.NoError(t, err)

	data, err := os.ReadFile(result.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestDownloaderURLPolicy(t *testing.T) {
	locator := &fakeLocator{err: ErrImageNotFound}
	fetcher := &fakeFetcher{}

	strict := NewDownloader(locator, fetcher, downloadConfig(t.TempDir()), quietLogger())
	_, err := strict.Download(context.Background(), "https://example.com/photo")
	assert.ErrorIs(t, err, ErrNotFacebookURL)
	assert.Equal(t, int32(0), atomic.LoadInt32(&locator.calls))

	_, err = strict.Download(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyURL)

	cfg := downloadConfig(t.TempDir())
	cfg.RequireFacebookURL = false
	lenient := NewDownloader(locator, fetcher, cfg, quietLogger())
	_, err = lenient.Download(context.Background(), "https://example.com/photo")
	assert.ErrorIs(t, err, ErrImageNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&locator.calls))

	_, err = lenient.Download(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestDownloaderRecordsFailure(t *testing.T) {
	recorder := &fakeRecorder{}
	locator := &fakeLocator{candidate: &types.ImageCandidate{URL: "https://scontent.fbcdn.net/a.jpg"}}
	fetcher := &fakeFetcher{err: &StatusError{Code: http.StatusForbidden}}

	d := NewDownloader(locator, fetcher, downloadConfig(t.TempDir()), quietLogger()).
		WithHistory(recorder).
		WithMonitor(recorder)

	_, err := d.Download(context.Background(), photoPage)
	require.Error(t, err)
	assert.False(t, IsLocalError(err))

	require.Len(t, recorder.runs, 1)
	assert.False(t, recorder.runs[0].success)
	require.Len(t, recorder.rows, 1)
	assert.Equal(t, "https://scontent.fbcdn.net/a.jpg", recorder.rows[0].ImageURL)
	assert.Contains(t, recorder.rows[0].Error, "status code 403")

	_, err = d.LastFile()
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestDownloaderSharesConcurrentRuns(t *testing.T) {
	locator := &fakeLocator{
		candidate: &types.ImageCandidate{URL: "https://scontent.fbcdn.net/a.jpg"},
		hold:      make(chan struct{}),
	}
	fetcher := &fakeFetcher{image: &FetchedImage{Data: pngPixel, ContentType: "image/png"}}
	d := NewDownloader(locator, fetcher, downloadConfig(t.TempDir()), quietLogger())

	var wg sync.WaitGroup
	results := make([]*types.DownloadResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = d.Download(context.Background(), photoPage)
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(locator.hold)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&locator.calls))
	require.NotNil(t, results[0])
	assert.Same(t, results[0], results[1])
}

func TestDownloaderSharedRunOutlivesCancelledCaller(t *testing.T) {
	locator := &fakeLocator{
		candidate: &types.ImageCandidate{URL: "https://scontent.fbcdn.net/a.jpg"},
		hold:      make(chan struct{}),
		started:   make(chan struct{}),
	}
	fetcher := &fakeFetcher{image: &FetchedImage{Data: pngPixel, ContentType: "image/png"}}
	d := NewDownloader(locator, fetcher, downloadConfig(t.TempDir()), quietLogger())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	firstErr := make(chan error, 1)
	go func() {
		_, err := d.Download(firstCtx, photoPage)
		firstErr <- err
	}()
	<-locator.started

	type outcome struct {
		result *types.DownloadResult
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		result, err := d.Download(context.Background(), photoPage)
		second <- outcome{result, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(locator.hold)
	got := <-second
	require.NoError(t, got.err)
	assert.NotEmpty(t, got.result.FilePath)
	assert.NoError(t, locator.ctxErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&locator.calls))
}

func TestDownloaderRunTimeout(t *testing.T) {
	locator := &blockingLocator{}
	cfg := downloadConfig(t.TempDir())
	cfg.RunTimeout = config.Duration(20 * time.Millisecond)
	d := NewDownloader(locator, &fakeFetcher{}, cfg, quietLogger())

	_, err := d.Download(context.Background(), photoPage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDownloaderCancelledBeforeStart(t *testing.T) {
	locator := &fakeLocator{err: ErrImageNotFound}
	d := NewDownloader(locator, &fakeFetcher{}, downloadConfig(t.TempDir()), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Download(ctx, photoPage)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&locator.calls))
}

type blockingLocator struct{}

func (blockingLocator) Name() string { return "blocking" }

func (blockingLocator) Locate(ctx context.Context, pageURL string) (*types.ImageCandidate, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDownloaderWithRealFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngPixel)
	}))
	defer srv.Close()

	cfg := downloadConfig(t.TempDir())
	cfg.Filename = ""
	locator := &fakeLocator{candidate: &types.ImageCandidate{URL: srv.URL + "/v/t1.6435-9/12345_n"}}
	d := NewDownloader(locator, testFetcher(1<<20), cfg, quietLogger())

	result, err := d.Download(context.Background(), photoPage)
	require.NoError(t, err)
	assert.Equal(t, "12345_n.png", result.FileName)
	assert.Equal(t, "image/png", result.ContentType)
}

func TestDownloaderSaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	locator := &fakeLocator{candidate: &types.ImageCandidate{URL: "https://scontent.fbcdn.net/a.jpg"}}
	fetcher := &fakeFetcher{image: &FetchedImage{Data: pngPixel}}
	d := NewDownloader(locator, fetcher, downloadConfig(filepath.Join(blocker, "sub")), quietLogger())

	_, err := d.Download(context.Background(), photoPage)
	assert.ErrorContains(t, err, "failed to create download directory")
	assert.True(t, IsLocalError(err))
	assert.False(t, errors.Is(err, ErrImageNotFound))
}

func TestOutputFilename(t *testing.T) {
	tests := []struct {
		configured, imageURL, ext, want string
	}{
		{"fixed.png", "https://scontent.fbcdn.net/a.jpg", ".jpg", "fixed.png"},
		{"", "https://scontent.fbcdn.net/v/t39/123_n.jpg?stp=dst", ".jpg", "123_n.jpg"},
		{"", "https://scontent.fbcdn.net/v/t39/123_n", ".webp", "123_n.webp"},
		{"", "https://scontent.fbcdn.net/", ".png", "profile_picture.png"},
		{"", "https://scontent.fbcdn.net", "", "profile_picture.jpg"},
		{"", "https://scontent.fbcdn.net/..", ".png", "profile_picture.png"},
		{"", "https://scontent.fbcdn.net/v/..%2F..%2Fetc", ".png", "etc.png"},
		{"", "https://scontent.fbcdn.net/v/..%5C..%5Cevil.jpg", ".png", "evil.jpg"},
		{"", "https://scontent.fbcdn.net/v/x%5C..", ".png", "profile_picture.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputFilename(tt.configured, tt.imageURL, tt.ext), tt.imageURL)
	}
}
