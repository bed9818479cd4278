package scraper

import (
	"fmt"
	"net/url"
	"strings"
)

const FacebookHome = "https://www.facebook.com"

// ValidatePhotoURL checks raw the way every entry point does. It returns
// ErrNotFacebookURL for well-formed URLs that point elsewhere so callers can
// choose between warning and rejecting.
func ValidatePhotoURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if u.Scheme != "https" || !isFacebookHost(u.Hostname()) {
		return ErrNotFacebookURL
	}
	return nil
}

func isFacebookHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	switch {
	case host == "facebook.com", host == "fb.com":
		return true
	case strings.HasSuffix(host, ".facebook.com"):
		return true
	}
	return false
}
