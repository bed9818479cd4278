package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	EngineChromedp   = "chromedp"
	EngineSelenium   = "selenium"
	EngineRod        = "rod"
	EnginePlaywright = "playwright"

	DefaultFilename  = "Free_FB_Zone_Profile_Picture.png"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

type Config struct {
	Browser     BrowserConfig  `yaml:"browser"`
	Download    DownloadConfig `yaml:"download"`
	Server      ServerConfig   `yaml:"server"`
	Redirect    RedirectConfig `yaml:"redirect"`
	Database    DatabaseConfig `yaml:"database"`
	Logging     LoggingConfig  `yaml:"logging"`
	MetricsFile string         `yaml:"metrics_file"`
}

type BrowserConfig struct {
	Engine          string   `yaml:"engine"`
	ExecPath        string   `yaml:"exec_path"`
	DriverPath      string   `yaml:"driver_path"`
	Headless        bool     `yaml:"headless"`
	WindowWidth     int      `yaml:"window_width"`
	WindowHeight    int      `yaml:"window_height"`
	UserAgent       string   `yaml:"user_agent"`
	PageLoadTimeout Duration `yaml:"page_load_timeout"`
	SettleDelay     Duration `yaml:"settle_delay"`
	DismissDelay    Duration `yaml:"dismiss_delay"`
	ElementTimeout  Duration `yaml:"element_timeout"`
	SeleniumPort    int      `yaml:"selenium_port"`
	CookiesFile     string   `yaml:"cookies_file"`
	DebugDir        string   `yaml:"debug_dir"`
}

type DownloadConfig struct {
	Dir                string   `yaml:"dir"`
	Filename           string   `yaml:"filename"`
	Timeout            Duration `yaml:"timeout"`
	RunTimeout         Duration `yaml:"run_timeout"`
	MaxBytes           int64    `yaml:"max_bytes"`
	RetryAttempts      int      `yaml:"retry_attempts"`
	RetryDelay         Duration `yaml:"retry_delay"`
	RequireFacebookURL bool     `yaml:"require_facebook_url"`
}

type ServerConfig struct {
	Host              string   `yaml:"host"`
	Port              int      `yaml:"port"`
	Mode              string   `yaml:"mode"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	CORSOrigins       []string `yaml:"cors_origins"`
}

type RedirectConfig struct {
	Port   int    `yaml:"port"`
	Target string `yaml:"target"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Duration is a time.Duration read from YAML strings such as "2s" or "500ms".
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Engine:          EngineChromedp,
			Headless:        true,
			WindowWidth:     1920,
			WindowHeight:    1080,
			UserAgent:       DefaultUserAgent,
			PageLoadTimeout: Duration(30 * time.Second),
			SettleDelay:     Duration(2 * time.Second),
			DismissDelay:    Duration(2 * time.Second),
			ElementTimeout:  Duration(10 * time.Second),
			SeleniumPort:    4444,
		},
		Download: DownloadConfig{
			Dir:                "downloads",
			Filename:           DefaultFilename,
			Timeout:            Duration(30 * time.Second),
			RunTimeout:         Duration(2 * time.Minute),
			MaxBytes:           25 << 20,
			RetryAttempts:      3,
			RetryDelay:         Duration(time.Second),
			RequireFacebookURL: true,
		},
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              5000,
			Mode:              "release",
			RequestsPerSecond: 0.5,
			Burst:             3,
			CORSOrigins:       []string{"*"},
		},
		Redirect: RedirectConfig{
			Port:   8000,
			Target: "/api/",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			Name:    "fb_photos",
			User:    "postgres",
			SSLMode: "disable",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		MetricsFile: "data/metrics.json",
	}
}

// Load reads configFile on top of the defaults. The file must exist.
func Load(configFile string) (*Config, error) {
	// .env file is optional
	_ = godotenv.Load()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configFile)
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when configFile
// does not exist.
func LoadOrDefault(configFile string) (*Config, error) {
	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
		_ = godotenv.Load()
		cfg := Default()
		cfg.applyEnv()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(configFile)
}

// Parse decodes YAML over the defaults without consulting the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BROWSER_ENGINE"); v != "" {
		c.Browser.Engine = strings.ToLower(v)
	}
	if v := os.Getenv("CHROME_EXECUTABLE_PATH"); v != "" {
		c.Browser.ExecPath = v
	} else if v := os.Getenv("CHROME_PATH"); v != "" {
		c.Browser.ExecPath = v
	}
	if v := os.Getenv("CHROMEDRIVER_PATH"); v != "" {
		c.Browser.DriverPath = v
	}
	if v := os.Getenv("DOWNLOAD_DIR"); v != "" {
		c.Download.Dir = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
			c.Redirect.Port = port
		}
	}

	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		c.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			c.Database.Port = port
		}
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		c.Database.User = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		c.Database.Name = dbName
	}
	if sslMode := os.Getenv("DB_SSL_MODE"); sslMode != "" {
		c.Database.SSLMode = sslMode
	}
}

func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case EngineChromedp, EngineSelenium, EngineRod, EnginePlaywright:
	default:
		return fmt.Errorf("unknown browser engine: %q", c.Browser.Engine)
	}

	timeouts := map[string]Duration{
		"browser.page_load_timeout": c.Browser.PageLoadTimeout,
		"browser.element_timeout":   c.Browser.ElementTimeout,
		"download.timeout":          c.Download.Timeout,
		"download.run_timeout":      c.Download.RunTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Browser.SettleDelay < 0 || c.Browser.DismissDelay < 0 {
		return errors.New("browser delays must not be negative")
	}

	if strings.ContainsAny(c.Download.Filename, `/\`) || c.Download.Filename == "." || c.Download.Filename == ".." {
		return fmt.Errorf("download.filename must be a bare file name: %q", c.Download.Filename)
	}
	if c.Download.Dir == "" {
		return errors.New("download.dir is required")
	}
	if c.Download.RetryAttempts < 1 {
		c.Download.RetryAttempts = 1
	}

	for name, port := range map[string]int{"server.port": c.Server.Port, "redirect.port": c.Redirect.Port} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	return nil
}
