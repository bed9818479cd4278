package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

var (
	browserNames = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"}
	browserEnv   = []string{"CHROME_EXECUTABLE_PATH", "CHROME_PATH"}
	driverNames  = []string{"chromedriver"}
	driverEnv    = []string{"CHROMEDRIVER_PATH"}

	versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)(?:\.(\d+))?`)
)

// Finder looks up binaries: configured path, environment, PATH, then
// well-known install locations.
type Finder struct {
	GOOS     string
	Getenv   func(string) string
	LookPath func(string) (string, error)
	Exists   func(string) bool
}

var DefaultFinder = Finder{
	GOOS:     runtime.GOOS,
	Getenv:   os.Getenv,
	LookPath: exec.LookPath,
	Exists:   fileExists,
}

func DetectBrowser(configured string) (string, error) {
	return DefaultFinder.Browser(configured)
}

func DetectDriver(configured string) (string, error) {
	return DefaultFinder.Driver(configured)
}

func (f Finder) Browser(configured string) (string, error) {
	if path, ok := f.find(configured, browserEnv, browserNames, f.browserCandidates()); ok {
		return path, nil
	}
	return "", ErrNoBrowser
}

func (f Finder) Driver(configured string) (string, error) {
	if path, ok := f.find(configured, driverEnv, driverNames, f.driverCandidates()); ok {
		return path, nil
	}
	return "", ErrNoDriver
}

func (f Finder) find(configured string, envKeys, names, candidates []string) (string, bool) {
	if configured != "" {
		if f.Exists(configured) {
			return configured, true
		}
		if path, err := f.LookPath(configured); err == nil {
			return path, true
		}
	}
	for _, key := range envKeys {
		if v := f.Getenv(key); v != "" && f.Exists(v) {
			return v, true
		}
	}
	for _, name := range names {
		if path, err := f.LookPath(name); err == nil {
			return path, true
		}
	}
	for _, path := range candidates {
		if f.Exists(path) {
			return path, true
		}
	}
	return "", false
}

func (f Finder) browserCandidates() []string {
	switch f.GOOS {
	case "windows":
		paths := []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
		if local := f.Getenv("LOCALAPPDATA"); local != "" {
			paths = append(paths, filepath.Join(local, "Google", "Chrome", "Application", "chrome.exe"))
		}
		return paths
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	default:
		return []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
			"/opt/google/chrome/chrome",
		}
	}
}

func (f Finder) driverCandidates() []string {
	switch f.GOOS {
	case "windows":
		return []string{`C:\chromedriver\chromedriver.exe`}
	case "darwin":
		return []string{"/opt/homebrew/bin/chromedriver", "/usr/local/bin/chromedriver"}
	default:
		return []string{
			"/usr/local/bin/chromedriver",
			"/usr/bin/chromedriver",
			"/usr/lib/chromium/chromedriver",
			"/usr/lib/chromium-browser/chromedriver",
		}
	}
}

// BinaryVersion runs "bin --version" and returns the output with its major
// version number.
func BinaryVersion(ctx context.Context, bin string) (string, int, error) {
	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", 0, fmt.Errorf("failed to run %s --version: %w", bin, err)
	}
	text := strings.TrimSpace(string(out))
	major, err := ParseMajorVersion(text)
	if err != nil {
		return text, 0, err
	}
	return text, major, nil
}

// ParseMajorVersion extracts 120 from "Google Chrome 120.0.6099.109".
func ParseMajorVersion(s string) (int, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("no version number in %q", s)
	}
	return strconv.Atoi(m[1])
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
