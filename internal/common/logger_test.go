package common

import (
	"log/slog"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		expected slog.Level
	}{
		{"error level", LogLevelError, slog.LevelError},
		{"warn level", LogLevelWarn, slog.LevelWarn},
		{"info level", LogLevelInfo, slog.LevelInfo},
		{"debug level", LogLevelDebug, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.level)
			if logger == nil {
				t.Fatal("expected logger, got nil")
			}
			if logger.Logger == nil {
				t.Fatal("expected slog.Logger, got nil")
			}
			if logger.Level() != tt.level {
				t.Errorf("expected level %v, got %v", tt.level, logger.Level())
			}
			if got := tt.level.ToSlogLevel(); got != tt.expected {
				t.Errorf("expected slog level %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNewJSONLogger(t *testing.T) {
	logger := NewJSONLogger(LogLevelInfo)
	if logger == nil {
		t.Fatal("expected logger, got nil")
	}
	if logger.Logger == nil {
		t.Fatal("expected slog.Logger, got nil")
	}
}

func TestNewColorLogger(t *testing.T) {
	logger := NewColorLogger(LogLevelDebug)
	if logger == nil {
		t.Fatal("expected logger, got nil")
	}
	if _, ok := logger.Logger.Handler().(*ColorHandler); !ok {
		t.Fatalf("expected ColorHandler, got %T", logger.Logger.Handler())
	}
}

func TestLoggerWithContext(t *testing.T) {
	logger := NewLogger(LogLevelInfo)

	componentLogger := logger.WithComponent("engine")
	if componentLogger == nil {
		t.Fatal("expected logger with component, got nil")
	}

	migrationLogger := logger.WithMigration("create_shipments_table", "1")
	if migrationLogger == nil {
		t.Fatal("expected logger with migration, got nil")
	}

	runLogger := logger.WithRun("01JA0000000000000000000000")
	if runLogger == nil {
		t.Fatal("expected logger with run, got nil")
	}

	storeLogger := logger.WithStore("sqlite")
	if storeLogger == nil {
		t.Fatal("expected logger with store, got nil")
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LogLevelError, "error"},
		{LogLevelWarn, "warn"},
		{LogLevelInfo, "info"},
		{LogLevelDebug, "debug"},
		{LogLevel(99), "info"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestDefaultLogger(t *testing.T) {
	orig := GetLogger()
	t.Cleanup(func() { SetDefaultLogger(orig) })

	replacement := NewLogger(LogLevelDebug)
	SetDefaultLogger(replacement)

	if GetLogger() != replacement {
		t.Fatal("expected default logger to be replaced")
	}
}
