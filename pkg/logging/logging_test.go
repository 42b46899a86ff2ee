package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for input, want := range cases {
		if got := Level(input); got != want {
			t.Fatalf("Level(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestConfigFormats(t *testing.T) {
	if enc := Config("info", "json").Encoding; enc != "json" {
		t.Fatalf("expected json encoding, got %q", enc)
	}
	cfg := Config("debug", "console")
	if cfg.Encoding != "console" {
		t.Fatalf("expected console encoding, got %q", cfg.Encoding)
	}
	if !cfg.Level.Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug level should be enabled")
	}
}

func TestNew(t *testing.T) {
	logger, err := New("error", "json")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at error level")
	}
}
