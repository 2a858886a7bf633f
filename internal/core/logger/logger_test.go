package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit(t *testing.T) {
	t.Run("Development", func(t *testing.T) {
		require.NoError(t, Init("development", "debug"))
		assert.True(t, Get().Core().Enabled(zap.DebugLevel))
	})

	t.Run("Production", func(t *testing.T) {
		require.NoError(t, Init("production", "info"))
		assert.False(t, Get().Core().Enabled(zap.DebugLevel))
		assert.True(t, Get().Core().Enabled(zap.InfoLevel))
	})

	t.Run("InvalidLevelKeepsDefault", func(t *testing.T) {
		require.NoError(t, Init("production", "loud"))
		assert.True(t, Get().Core().Enabled(zap.InfoLevel))
		assert.False(t, Get().Core().Enabled(zap.DebugLevel))
	})
}

func TestGet_BeforeInit(t *testing.T) {
	globalLogger.Store(nil)

	l := Get()

	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zap.ErrorLevel))
}

func TestNamed(t *testing.T) {
	require.NoError(t, Init("development", "info"))

	l := Named("orders")

	assert.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
}

func TestSync(t *testing.T) {
	globalLogger.Store(nil)
	Sync()

	require.NoError(t, Init("development", "info"))
	Sync()
}
