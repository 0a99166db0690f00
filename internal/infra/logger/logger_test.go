package logger

import (
	"testing"

	"github.com/sifan077/linkgate/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Level(t *testing.T) {
	l, err := New(Options{Level: "WARN"})
	require.NoError(t, err)

	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.ErrorContains(t, err, "invalid level")
}

func TestFromConfig(t *testing.T) {
	opts := FromConfig(config.AppConfig{Env: "production", LogLevel: "debug"})

	assert.False(t, opts.Development)
	assert.Equal(t, "debug", opts.Level)
}

func TestNew_DevelopmentConsole(t *testing.T) {
	off := false
	l, err := New(Options{Development: true, Color: &off})
	require.NoError(t, err)

	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
