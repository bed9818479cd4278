package scraper

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyURL       = errors.New("no URL provided")
	ErrInvalidURL     = errors.New("invalid URL")
	ErrNotFacebookURL = errors.New("not a Facebook URL")
	ErrNoBrowser      = errors.New("no suitable browser found for automation")
	ErrNoDriver       = errors.New("chromedriver not found")
	ErrImageNotFound  = errors.New("could not find profile image on the page")
	ErrNotImage       = errors.New("downloaded content is not an image")
	ErrTooLarge       = errors.New("image exceeds size limit")
	ErrNoFile         = errors.New("no file available for download")
)

// StatusError is returned when the image host answers with anything but 200.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to download image: status code %d", e.Code)
}

// Retryable reports whether another attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// SaveError is a failure to write the fetched image to the download
// directory.
type SaveError struct {
	Op  string
	Err error
}

func (e *SaveError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// IsLocalError reports whether err comes from the local filesystem rather
// than from the browser, the page or the image host.
func IsLocalError(err error) bool {
	var saveErr *SaveError
	return errors.As(err, &saveErr)
}
