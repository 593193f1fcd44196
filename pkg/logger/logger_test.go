package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitRejectsBadLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInitWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "onix.log")
	require.NoError(t, Init(Config{Level: "debug", OutputPaths: []string{path}}))
	t.Cleanup(func() { _ = Init(Config{Level: "info"}) })

	ctx := context.WithValue(context.Background(), FeedKey, "daily")
	WithContext(ctx, nil).Info("parsed", zap.Int("products", 3))
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"parsed"`)
	assert.Contains(t, string(data), `"feed":"daily"`)
	assert.Contains(t, string(data), `"products":3`)
}

func TestGetReturnsLogger(t *testing.T) {
	assert.NotNil(t, Get())
	assert.NotNil(t, With(zap.String("k", "v")))
}

func TestWithContextUsesBase(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := context.WithValue(context.Background(), RunIDKey, "daily-1")
	ctx = context.WithValue(ctx, FeedKey, "s3://drops/daily.xml")

	WithContext(ctx, zap.New(core)).Info("started")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "daily-1", fields["run_id"])
	assert.Equal(t, "s3://drops/daily.xml", fields["feed"])
}
