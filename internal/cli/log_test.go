package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestCacheDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name string
		xdg  string
		want string
	}{
		{"home", "", filepath.Join(home, ".cache", appName)},
		{"xdg", "/tmp/xdg-cache", filepath.Join("/tmp/xdg-cache", appName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CACHE_HOME", tt.xdg)
			got, err := cacheDir()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("cacheDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		level log.Level
		debug bool
		warn  bool
	}{
		{log.DebugLevel, true, true},
		{log.InfoLevel, false, true},
		{LogWarn, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(&buf, tt.level)
			l.Debug("expanding family", "family", "F0003")
			if got := strings.Contains(buf.String(), "expanding family"); got != tt.debug {
				t.Errorf("debug written = %v, want %v", got, tt.debug)
			}
			l.Warn("layout retried")
			if got := strings.Contains(buf.String(), "layout retried"); got != tt.warn {
				t.Errorf("warn written = %v, want %v", got, tt.warn)
			}
		})
	}
}

func TestLoggerPrefix(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, log.InfoLevel).Info("ready")
	if !strings.Contains(buf.String(), appName) {
		t.Errorf("log line %q has no %s prefix", buf.String(), appName)
	}
}

func TestProgressDone(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(newLogger(&buf, log.InfoLevel))
	p.done("Rendered chart")
	out := buf.String()
	if !strings.Contains(out, "Rendered chart (") || !strings.Contains(out, "s)") {
		t.Errorf("progress output = %q", out)
	}
}

func TestLoggerContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("empty context should fall back to log.Default")
	}
	var buf bytes.Buffer
	l := newLogger(&buf, log.InfoLevel)
	if got := loggerFromContext(withLogger(context.Background(), l)); got != l {
		t.Error("logger not carried by context")
	}
}
