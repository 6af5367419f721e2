package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kkdl-dev/kkdl/internal/domain"
)

const (
	DefaultAPIBaseURL = "https://learn-api.kodekloud.com/api"
	DefaultQuizURL    = "https://mcq-backend-main.kodekloud.com/api"
	DefaultReferer    = "https://learn.kodekloud.com/"
	DefaultUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

type Config struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type APIConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	QuizURL   string `mapstructure:"quiz_url" yaml:"quiz_url"`
	Referer   string `mapstructure:"referer" yaml:"referer"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	PageSize  int    `mapstructure:"page_size" yaml:"page_size"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type AuthConfig struct {
	Cookie string `mapstructure:"cookie" yaml:"cookie"`
	Token  string `mapstructure:"token" yaml:"token"`
}

type DownloadConfig struct {
	OutputDir         string        `mapstructure:"output_dir" yaml:"output_dir"`
	Quality           string        `mapstructure:"quality" yaml:"quality"`
	MaxDuplicateCount int           `mapstructure:"max_duplicate_count" yaml:"max_duplicate_count"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Progress          bool          `mapstructure:"progress" yaml:"progress"`
	// Courses pre-selects course slugs when no course URL is given, skipping the prompt.
	Courses []string `mapstructure:"courses" yaml:"courses"`
}

type LogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level"`
}

// New returns a viper instance carrying defaults and the KKDL_ environment binding.
// Callers bind their command flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("api.base_url", DefaultAPIBaseURL)
	v.SetDefault("api.quiz_url", DefaultQuizURL)
	v.SetDefault("api.referer", DefaultReferer)
	v.SetDefault("api.user_agent", DefaultUserAgent)
	v.SetDefault("api.page_size", 100)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("auth.cookie", "")
	v.SetDefault("auth.token", "")
	v.SetDefault("download.output_dir", defaultOutputDir())
	v.SetDefault("download.quality", string(domain.Quality1080p))
	v.SetDefault("download.max_duplicate_count", 3)
	v.SetDefault("download.timeout", time.Duration(0))
	v.SetDefault("download.progress", true)
	v.SetDefault("download.courses", []string{})
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "warn")

	v.SetEnvPrefix("KKDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads .env and the optional config file into v and returns the validated Config.
// An explicitly given path must exist; otherwise kkdl.yaml in the working directory and
// $XDG_CONFIG_HOME/kkdl/config.yaml are tried.
func Load(v *viper.Viper, path string) (*Config, error) {
	// Populate the process environment from .env so AutomaticEnv sees KKDL_TOKEN etc.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: config file not found: %s", domain.ErrUsage, path)
		}
	} else {
		path = findConfigFile()
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := domain.ParseQuality(c.Download.Quality); err != nil {
		return err
	}

	if c.Download.MaxDuplicateCount <= 0 {
		return domain.Usagef("max duplicate count must be positive, got %d", c.Download.MaxDuplicateCount)
	}

	for name, raw := range map[string]string{"api.base_url": c.API.BaseURL, "api.quiz_url": c.API.QuizURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return domain.Usagef("%s is not a valid URL: %q", name, raw)
		}
	}

	if c.API.PageSize <= 0 {
		c.API.PageSize = 100
	}

	if c.Download.OutputDir == "" {
		c.Download.OutputDir = defaultOutputDir()
	}

	return nil
}

// Quality returns the validated download quality.
func (c *Config) Quality() domain.Quality {
	q, _ := domain.ParseQuality(c.Download.Quality)
	return q
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./downloads"
	}
	return filepath.Join(home, "Downloads")
}

func findConfigFile() string {
	candidates := []string{"kkdl.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "kkdl", "config.yaml"))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
