package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSet_RoutesPackageHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	Warn("replicator queue full", zap.String("user", "u1"))
	Debug("noise")

	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "replicator queue full", entry.Message)
	assert.Equal(t, "u1", entry.ContextMap()["user"])
}

func TestInit_FallsBackToInfo(t *testing.T) {
	require.NoError(t, Init("not-a-level", "json"))
	t.Cleanup(func() { Set(nil) })
	assert.True(t, L().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, L().Core().Enabled(zapcore.DebugLevel))
}
