package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Download.VideoFile != "video_temp.m4s" || cfg.Download.AudioFile != "audio_temp.m4s" {
		t.Errorf("sinks = %q/%q", cfg.Download.VideoFile, cfg.Download.AudioFile)
	}
	if cfg.Download.MaxRetries != 5 {
		t.Errorf("max_retries = %d, want 5", cfg.Download.MaxRetries)
	}
	if cfg.Pacing.Initial != 8192 || cfg.Pacing.Min != 512 || cfg.Pacing.Max != 262144 || cfg.Pacing.Step != 512 {
		t.Errorf("pacing = %+v", cfg.Pacing)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("http.timeout = %v", cfg.HTTP.Timeout)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("store.driver = %q", cfg.Store.Driver)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
port: "9090"
download:
  out_dir: /tmp/dl
  max_retries: 2
  retry_backoff: 250ms
pacing:
  initial: 1024
http:
  referer: https://www.example.com/
mux:
  output_encoding: gbk
`)
	t.Setenv("DASHDL_LOG_LEVEL", "debug")
	t.Setenv("DASHDL_DOWNLOAD_RATE_LIMIT", "1048576")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != "9090" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.Download.OutDir != "/tmp/dl" || cfg.Download.MaxRetries != 2 {
		t.Errorf("download = %+v", cfg.Download)
	}
	if cfg.Download.RetryBackoff != 250*time.Millisecond {
		t.Errorf("retry_backoff = %v", cfg.Download.RetryBackoff)
	}
	if cfg.Download.RateLimit != 1<<20 {
		t.Errorf("rate_limit = %d", cfg.Download.RateLimit)
	}
	if cfg.Pacing.Initial != 1024 || cfg.Pacing.Max != 262144 {
		t.Errorf("pacing = %+v", cfg.Pacing)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if cfg.Mux.OutputEncoding != "gbk" {
		t.Errorf("mux.output_encoding = %q", cfg.Mux.OutputEncoding)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative retries", "download:\n  max_retries: -1\n"},
		{"same sinks", "download:\n  video_file: a.m4s\n  audio_file: a.m4s\n"},
		{"initial above max", "pacing:\n  initial: 999999\n"},
		{"zero step", "pacing:\n  step: 0\n"},
		{"unknown driver", "store:\n  driver: mongo\n"},
		{"postgres without dsn", "store:\n  driver: postgres\n"},
		{"mux args without output", "mux:\n  args: -i {video}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}
