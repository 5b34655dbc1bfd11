package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" INFO ", zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel},
		{"warn", zapcore.WarnLevel},
		{"", zapcore.WarnLevel},
		{"loud", zapcore.WarnLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestFieldsAndModule(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).Named("audit")

	log.Warn("append failed", map[string]interface{}{"path": "/tmp/a.jsonl"})
	log.Error("index", errors.New("locked"), nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "append failed", entries[0].Message)
	assert.Equal(t, "/tmp/a.jsonl", entries[0].ContextMap()["path"])
	assert.Equal(t, "audit", entries[0].ContextMap()["mod"])
	assert.Equal(t, "locked", entries[1].ContextMap()["error"])
}

func TestSetLevel(t *testing.T) {
	log := New("warn", "json")
	assert.False(t, log.level.Enabled(zapcore.InfoLevel))

	log.SetLevel("debug")
	assert.True(t, log.Named("x").level.Enabled(zapcore.DebugLevel))
}
