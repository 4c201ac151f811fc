package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PaperSize is a paper format in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Config is the full service configuration.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Limits struct {
		MaxEnvelopeBytes int `yaml:"max_envelope_bytes"`
		MaxPDFBytes      int `yaml:"max_pdf_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		PDFCacheEnabled bool          `yaml:"pdf_cache_enabled"`
		PDFCacheTTL     time.Duration `yaml:"pdf_cache_ttl"`
		RedisHost       string        `yaml:"redis_host"`
		RateLimitDB     int           `yaml:"redis_rate_db"`
		PDFCacheDB      int           `yaml:"redis_pdf_db"`
	} `yaml:"cache"`

	RateLimiter struct {
		UserLimit int           `yaml:"user_limit"`
		Interval  time.Duration `yaml:"interval"`
		UseRedis  bool          `yaml:"use_redis"`
	} `yaml:"rate_limiter"`

	PDF struct {
		DefaultPaper    string               `yaml:"default_paper"`
		PaperSizes      map[string]PaperSize `yaml:"paper_sizes"`
		Margin          float64              `yaml:"margin"`
		PrintBackground bool                 `yaml:"print_background"`
		TimeoutSecs     int                  `yaml:"timeout_secs"`
		ChromePath      string               `yaml:"chrome_path"`
		ChromeNoSandbox bool                 `yaml:"chrome_no_sandbox"`
		ChromePoolSize  int                  `yaml:"chrome_pool_size"`
		UserDataDir     string               `yaml:"user_data_dir"`
		AutoDownload    bool                 `yaml:"auto_download"`
	} `yaml:"pdf"`

	Raster struct {
		Engine   string  `yaml:"engine"`
		DPI      float64 `yaml:"dpi"`
		MaxWidth int     `yaml:"max_width"`
		Workers  int     `yaml:"workers"`
	} `yaml:"raster"`
}

const (
	EnginePDFium = "pdfium"
	EngineFitz   = "fitz"
)

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":8080"

	cfg.Limits.MaxEnvelopeBytes = 6 * 1024 * 1024
	cfg.Limits.MaxPDFBytes = 20 * 1024 * 1024

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 7

	cfg.Cache.PDFCacheTTL = 24 * time.Hour
	cfg.Cache.RedisHost = "127.0.0.1:6379"
	cfg.Cache.PDFCacheDB = 1

	cfg.RateLimiter.Interval = time.Minute

	cfg.PDF.DefaultPaper = "A4"
	cfg.PDF.PaperSizes = map[string]PaperSize{
		"A4":     {Width: 8.27, Height: 11.69},
		"LETTER": {Width: 8.5, Height: 11},
	}
	cfg.PDF.Margin = 0.4
	cfg.PDF.PrintBackground = true
	cfg.PDF.TimeoutSecs = 0
	cfg.PDF.ChromeNoSandbox = true
	cfg.PDF.ChromePoolSize = 1

	cfg.Raster.Engine = EnginePDFium
	cfg.Raster.DPI = 200
	cfg.Raster.Workers = 1
	return cfg
}

// Load reads .env (if present) and the YAML file named by CONFIG_PATH,
// falling back to ./config.yaml.
func Load() Config {
	_ = godotenv.Load(".env")

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads the YAML file at path on top of Default. A missing file
// yields the defaults. Invalid values panic.
func LoadFrom(path string) Config {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("config: parse %s: %v", path, err))
		}
	}

	// Allow common container env var to override chrome_path.
	if cfg.PDF.ChromePath == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.PDF.ChromePath = v
		}
	}
	cfg.PDF.DefaultPaper = strings.ToUpper(cfg.PDF.DefaultPaper)
	cfg.Raster.Engine = strings.ToLower(cfg.Raster.Engine)

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %s: %v", path, err))
	}
	return cfg
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Limits.MaxEnvelopeBytes <= 0 {
		return errors.New("limits.max_envelope_bytes must be positive")
	}
	if c.Limits.MaxPDFBytes <= 0 {
		return errors.New("limits.max_pdf_bytes must be positive")
	}
	if c.RateLimiter.UserLimit < 0 {
		return errors.New("rate_limiter.user_limit must not be negative")
	}
	if c.RateLimiter.UserLimit > 0 && c.RateLimiter.Interval <= 0 {
		return errors.New("rate_limiter.interval must be positive when user_limit is set")
	}
	if _, ok := c.PDF.PaperSizes[c.PDF.DefaultPaper]; !ok {
		return fmt.Errorf("pdf.default_paper %q is not in pdf.paper_sizes", c.PDF.DefaultPaper)
	}
	if c.PDF.Margin < 0 || c.PDF.Margin > 2 {
		return errors.New("pdf.margin must be between 0 and 2 inches")
	}
	if c.PDF.TimeoutSecs < 0 {
		return errors.New("pdf.timeout_secs must not be negative")
	}
	if c.PDF.ChromePoolSize < 0 {
		return errors.New("pdf.chrome_pool_size must not be negative")
	}
	if c.Raster.Engine != EnginePDFium && c.Raster.Engine != EngineFitz {
		return fmt.Errorf("raster.engine %q must be %q or %q", c.Raster.Engine, EnginePDFium, EngineFitz)
	}
	if c.Raster.DPI <= 0 || c.Raster.DPI > 1200 {
		return errors.New("raster.dpi must be in (0, 1200]")
	}
	if c.Raster.MaxWidth < 0 {
		return errors.New("raster.max_width must not be negative")
	}
	if c.Raster.Workers <= 0 {
		return errors.New("raster.workers must be positive")
	}
	return nil
}

// Timeout returns the render timeout; zero means unbounded.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.PDF.TimeoutSecs) * time.Second
}

// Paper returns the default paper size.
func (c Config) Paper() PaperSize {
	return c.PDF.PaperSizes[c.PDF.DefaultPaper]
}
