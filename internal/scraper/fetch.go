package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fb-photo-downloader/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

type FetchedImage struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Fetcher retrieves image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string) (*FetchedImage, error)
}

type ImageFetcher struct {
	client     *http.Client
	userAgent  string
	maxBytes   int64
	attempts   int
	retryDelay time.Duration
	logger     *logrus.Logger
}

func NewImageFetcher(cfg config.DownloadConfig, userAgent string, logger *logrus.Logger) *ImageFetcher {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &ImageFetcher{
		client: &http.Client{
			Timeout: cfg.Timeout.Std(),
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent:  userAgent,
		maxBytes:   cfg.MaxBytes,
		attempts:   attempts,
		retryDelay: cfg.RetryDelay.Std(),
		logger:     logger,
	}
}

func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) (*FetchedImage, error) {
	policy := backoff.NewExponentialBackOff()
	if f.retryDelay > 0 {
		policy.InitialInterval = f.retryDelay
	}
	policy.MaxElapsedTime = 0

	var image *FetchedImage
	operation := func() error {
		img, err := f.fetchOnce(ctx, imageURL)
		if err != nil {
			return err
		}
		image = img
		return nil
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(f.attempts-1)), ctx),
		func(err error, next time.Duration) {
			f.logger.Warnf("Image download failed, retrying in %s: %v", next.Round(time.Millisecond), err)
		})
	if err != nil {
		return nil, err
	}
	return image, nil
}

func (f *ImageFetcher) fetchOnce(ctx context.Context, imageURL string) (*FetchedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrInvalidURL, err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{Code: resp.StatusCode, URL: imageURL}
		if statusErr.Retryable() {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, backoff.Permanent(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes))
	}
	if len(data) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("%w: empty body", ErrNotImage))
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, backoff.Permanent(fmt.Errorf("%w: got %s", ErrNotImage, mtype.String()))
	}

	return &FetchedImage{
		Data:        data,
		ContentType: mtype.String(),
		Extension:   mtype.Extension(),
	}, nil
}
