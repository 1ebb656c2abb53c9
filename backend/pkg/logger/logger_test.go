package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGet_FallbackIsBuiltOnce(t *testing.T) {
	Set(nil)
	t.Cleanup(func() { Set(nil) })

	first := Get()
	require.NotNil(t, first)
	assert.Same(t, first, Get())
}

func TestGet_ReturnsInstalledLogger(t *testing.T) {
	t.Cleanup(func() { Set(nil) })

	l := zap.NewNop()
	Set(l)
	assert.Same(t, l, Get())
}

func TestInit(t *testing.T) {
	t.Cleanup(func() { Set(nil) })

	require.NoError(t, Init("production", ""))
	assert.True(t, Get().Core().Enabled(zap.InfoLevel))
	assert.False(t, Get().Core().Enabled(zap.DebugLevel))

	require.NoError(t, Init("development", "warn"))
	assert.False(t, Get().Core().Enabled(zap.InfoLevel))

	assert.Error(t, Init("development", "loud"))
}
