package temporal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapterFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewZapAdapter(zap.New(core))

	a.With("workflow_id", "wf-1").Info("Layer completed", "layer", 2, "error", errors.New("boom"), 7, "seven", "dangling")

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "Layer completed", entries[0].Message)
	assert.Equal(t, "wf-1", ctx["workflow_id"])
	assert.EqualValues(t, 2, ctx["layer"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, "seven", ctx["7"])
	assert.Equal(t, "<missing>", ctx["dangling"])
}

func TestZapAdapterUnloggableValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewZapAdapter(zap.New(core))

	a.Warn("odd values", "fn", func() {}, "ch", make(chan int), "nil", nil)

	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "<func()>", ctx["fn"])
	assert.Equal(t, "<chan int>", ctx["ch"])
	assert.Equal(t, "<nil>", ctx["nil"])
}

func TestZapAdapterLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	a := NewZapAdapter(zap.New(core))

	a.Debug("hidden")
	a.Info("info")
	a.Error("error")
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
}
