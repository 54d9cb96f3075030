package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Pacing   PacingConfig   `mapstructure:"pacing" yaml:"pacing"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Mux      MuxConfig      `mapstructure:"mux" yaml:"mux"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

type DownloadConfig struct {
	OutDir       string        `mapstructure:"out_dir" yaml:"out_dir"`
	VideoFile    string        `mapstructure:"video_file" yaml:"video_file"`
	AudioFile    string        `mapstructure:"audio_file" yaml:"audio_file"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	MaxBackoff   time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	// RateLimit is in bytes per second, 0 disables throttling.
	RateLimit int64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

type PacingConfig struct {
	Initial int64 `mapstructure:"initial" yaml:"initial"`
	Min     int64 `mapstructure:"min" yaml:"min"`
	Max     int64 `mapstructure:"max" yaml:"max"`
	Step    int64 `mapstructure:"step" yaml:"step"`
}

type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	Referer   string        `mapstructure:"referer" yaml:"referer"`
}

type MuxConfig struct {
	Binary         string `mapstructure:"binary" yaml:"binary"`
	Args           string `mapstructure:"args" yaml:"args"`
	OutputDir      string `mapstructure:"output_dir" yaml:"output_dir"`
	OutputEncoding string `mapstructure:"output_encoding" yaml:"output_encoding"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

const (
	DefaultMuxArgs   = "-y -i {video} -i {audio} -vcodec copy -acodec copy {output}"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Load reads path (config.yaml by default) and applies DASHDL_* overrides.
// A missing default config file is not an error: every key has a default.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		// FALLBACK: Docker images mount their config under /config
		if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
			path = "/config/config.yaml"
		} else {
			path = ""
		}
	}

	v := viper.New()

	// Set Defaults
	v.SetDefault("port", "8080")
	v.SetDefault("download.out_dir", "./downloads")
	v.SetDefault("download.video_file", "video_temp.m4s")
	v.SetDefault("download.audio_file", "audio_temp.m4s")
	v.SetDefault("download.max_retries", 5)
	v.SetDefault("download.retry_backoff", "0s")
	v.SetDefault("download.max_backoff", "30s")
	v.SetDefault("download.rate_limit", 0)
	v.SetDefault("pacing.initial", 8192)
	v.SetDefault("pacing.min", 512)
	v.SetDefault("pacing.max", 262144)
	v.SetDefault("pacing.step", 512)
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("http.referer", "")
	v.SetDefault("mux.binary", "ffmpeg")
	v.SetDefault("mux.args", DefaultMuxArgs)
	v.SetDefault("mux.output_dir", ".")
	v.SetDefault("mux.output_encoding", "utf-8")
	v.SetDefault("log.path", "dashdl.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "dashdl.db")
	v.SetDefault("store.postgres_dsn", "")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("DASHDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	if c.Download.OutDir == "" {
		c.Download.OutDir = "./downloads"
	}

	if c.Download.VideoFile == "" || c.Download.AudioFile == "" {
		return errors.New("download.video_file and download.audio_file are required")
	}

	if c.Download.VideoFile == c.Download.AudioFile {
		return fmt.Errorf("video and audio sinks must differ, both are %q", c.Download.VideoFile)
	}

	if c.Download.MaxRetries < 0 {
		return fmt.Errorf("download.max_retries must be >= 0, got %d", c.Download.MaxRetries)
	}

	if c.Download.RateLimit < 0 {
		return fmt.Errorf("download.rate_limit must be >= 0, got %d", c.Download.RateLimit)
	}

	p := c.Pacing
	if p.Min <= 0 || p.Step <= 0 || p.Max < p.Min || p.Initial < p.Min || p.Initial > p.Max {
		return fmt.Errorf("invalid pacing bounds: initial=%d min=%d max=%d step=%d", p.Initial, p.Min, p.Max, p.Step)
	}

	if c.Mux.Binary == "" {
		c.Mux.Binary = "ffmpeg"
	}

	if !strings.Contains(c.Mux.Args, "{output}") {
		return errors.New("mux.args must reference {output}")
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q (want sqlite or postgres)", c.Store.Driver)
	}

	return nil
}
