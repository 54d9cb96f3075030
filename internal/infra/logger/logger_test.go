package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"error":   LevelError,
		"bananas": LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerWritesFileAndFiltersLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashdl.log")

	log, err := New(path, LevelInfo, false)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("hidden %d", 1)
	log.Info("piece %d of %s", 3, "video")
	log.Warn("slow")
	_, _ = log.Write([]byte("GET /api/sessions 200\n"))
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(raw)

	if strings.Contains(out, "hidden") {
		t.Errorf("debug entry leaked into info log:\n%s", out)
	}
	for _, want := range []string{"INFO piece 3 of video", "WARN slow", "GET /api/sessions 200"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Info("nothing %s", "here")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
}
