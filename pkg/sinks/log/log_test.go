package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
)

func TestSinkLogsRecord(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := New("", "daily", zap.New(core))
	assert.Equal(t, Type, s.Name())

	rec := &record.Record{Sequence: 3, Namespaces: []string{"headers"}, Values: map[string]any{"headers": map[string]string{"title": "Go"}}}
	require.NoError(t, s.Import(context.Background(), rec))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "product record", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, int64(3), ctx["sequence"])
	assert.Equal(t, `{"title":"Go"}`, ctx["headers"])
	assert.Equal(t, Type, ctx["sink"])
}

func TestSinkRegistered(t *testing.T) {
	sink, err := registry.CreateSink(context.Background(), config.SinkConfig{Type: Type, Name: "audit"})
	require.NoError(t, err)
	assert.Equal(t, "audit", sink.Name())
}
