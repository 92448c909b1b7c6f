package observability

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledProviderIsInert(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	// None of these may panic without initialized providers.
	assert.NotNil(t, p.Tracer())
	p.RecordEvaluation(context.Background(), "failed", time.Second)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "verdict", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.True(t, cfg.Enabled)
}

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		level   string
		enabled slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		l := NewLogger(tc.level, false)
		assert.True(t, l.Enabled(context.Background(), tc.enabled), tc.level)
		if tc.enabled > slog.LevelDebug {
			assert.False(t, l.Enabled(context.Background(), tc.enabled-4), tc.level)
		}
	}
}
