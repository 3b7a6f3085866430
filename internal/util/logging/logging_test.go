package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestZapLevel(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		want  zapcore.Level
	}{
		{name: "debug", level: slog.LevelDebug, want: zapcore.DebugLevel},
		{name: "below debug", level: slog.LevelDebug - 4, want: zapcore.DebugLevel},
		{name: "info", level: slog.LevelInfo, want: zapcore.InfoLevel},
		{name: "warn", level: slog.LevelWarn, want: zapcore.WarnLevel},
		{name: "error", level: slog.LevelError, want: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ZapLevel(tt.level))
		})
	}
}

func TestSetup_DebugEnablesVerbosity(t *testing.T) {
	logger := SetupDevelopment()
	assert.True(t, logger.V(1).Enabled())

	logger = SetupDefault()
	assert.True(t, logger.Enabled())
	assert.False(t, logger.V(1).Enabled())
}
