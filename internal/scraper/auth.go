// internal/scraper/auth.go
package scraper

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HttpOnly bool   `json:"httpOnly"`
	Expires  string `json:"expires,omitempty"`
}

// ExpiresAt parses Expires as RFC 3339. ok is false for session cookies.
func (c Cookie) ExpiresAt() (time.Time, bool) {
	if c.Expires == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, c.Expires)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// LoadCookies reads the Facebook cookies from a file shaped like
// {"facebook.com": [{"name": ..., "value": ...}]}. Expired cookies are
// dropped and missing domain/path get Facebook defaults.
func LoadCookies(cookiesFile string) ([]Cookie, error) {
	data, err := os.ReadFile(cookiesFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("cookies file not found: %s", cookiesFile)
		}
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}

	var cookieStore map[string][]Cookie
	if err := json.Unmarshal(data, &cookieStore); err != nil {
		return nil, fmt.Errorf("failed to parse cookies file: %w", err)
	}

	facebookCookies, exists := cookieStore["facebook.com"]
	if !exists {
		return nil, fmt.Errorf("no Facebook cookies found in cookies file")
	}

	return normalizeCookies(facebookCookies, time.Now()), nil
}

func normalizeCookies(cookies []Cookie, now time.Time) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, cookie := range cookies {
		if cookie.Name == "" {
			continue
		}
		if expires, ok := cookie.ExpiresAt(); ok && expires.Before(now) {
			continue
		}
		if cookie.Domain == "" {
			cookie.Domain = ".facebook.com"
		} else if !strings.HasPrefix(cookie.Domain, ".") && cookie.Domain != "facebook.com" {
			cookie.Domain = "." + cookie.Domain
		}
		if cookie.Path == "" {
			cookie.Path = "/"
		}
		out = append(out, cookie)
	}
	return out
}

// ValidateCookies checks that a logged-in session is present.
func ValidateCookies(cookies []Cookie) error {
	have := make(map[string]bool, len(cookies))
	for _, cookie := range cookies {
		have[cookie.Name] = cookie.Value != ""
	}
	var missing []string
	for _, name := range []string{"c_user", "xs"} {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("session cookies missing: %s", strings.Join(missing, ", "))
	}
	return nil
}
