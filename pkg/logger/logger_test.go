package logger

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/stockhunter/stockhunter/pkg/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"garbage", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWithFieldChaining(t *testing.T) {
	log := NewNop()

	child := log.WithField("module", "store").WithError(nil)
	if child == log {
		t.Error("WithField should return a new logger")
	}

	// Must not panic
	child.Debug("debug")
	child.Info("info")
	child.Warn("warn")
	child.Error("error")
	child.Infof("count=%d", 3)
}

func TestNewFormats(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		cfg := &config.Config{Env: "development", LogLevel: "debug", LogFormat: format}
		log := New(cfg)
		if log == nil {
			t.Fatalf("New returned nil for format %s", format)
		}
		log.Debug("hello")
	}
}
