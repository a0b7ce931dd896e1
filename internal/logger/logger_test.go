package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("json info", func(t *testing.T) {
		l, err := New(Options{Level: "info", Format: "json"})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("console debug", func(t *testing.T) {
		l, err := New(Options{Level: "DEBUG", Format: "console"})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := New(Options{Level: "loud", Format: "json"})
		assert.Error(t, err)
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := New(Options{Level: "info", Format: "xml"})
		assert.Error(t, err)
	})
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
