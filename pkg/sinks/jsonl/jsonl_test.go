package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/onix/pkg/compression"
	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/sinks"
)

func records(n int) []*record.Record {
	out := make([]*record.Record, n)
	for i := range out {
		out[i] = &record.Record{Sequence: i, Namespaces: []string{"n"}, Values: map[string]any{"n": i}}
	}
	return out
}

func readLines(t *testing.T, alg compression.Algorithm, data []byte) []sinks.Document {
	r, err := compression.NewReader(alg, bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	var docs []sinks.Document
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var d sinks.Document
		require.NoError(t, json.Unmarshal(sc.Bytes(), &d))
		docs = append(docs, d)
	}
	require.NoError(t, sc.Err())
	return docs
}

func TestWritesOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	s, err := New("", "daily", &buf, compression.None, compression.Default, zaptest.NewLogger(t))
	require.NoError(t, err)
	for _, r := range records(3) {
		require.NoError(t, s.Import(context.Background(), r))
	}
	require.NoError(t, s.Close(context.Background()))

	docs := readLines(t, compression.None, buf.Bytes())
	require.Len(t, docs, 3)
	assert.Equal(t, 2, docs[2].Sequence)
	assert.Equal(t, "daily#2", docs[2].Key)
	assert.JSONEq(t, "2", string(docs[2].Fields["n"]))

	err = s.Import(context.Background(), records(1)[0])
	assert.Error(t, err)
	assert.NoError(t, s.Close(context.Background()))
}

func TestOpenCompressesByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl.zst")
	sink, err := Open(context.Background(), config.SinkConfig{
		Type:    Type,
		Name:    "archive",
		Options: map[string]string{"path": path, "level": "best"},
	})
	require.NoError(t, err)
	for _, r := range records(10) {
		require.NoError(t, sink.Import(context.Background(), r))
	}
	require.NoError(t, sink.(record.Closer).Close(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	docs := readLines(t, compression.Zstd, data)
	assert.Len(t, docs, 10)
}

func TestOpenOptionErrors(t *testing.T) {
	_, err := Open(context.Background(), config.SinkConfig{Type: Type, Name: "j"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Open(context.Background(), config.SinkConfig{Type: Type, Name: "j", Options: map[string]string{
		"path": filepath.Join(t.TempDir(), "x"), "level": "max",
	}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Open(context.Background(), config.SinkConfig{Type: Type, Name: "j", Options: map[string]string{
		"path": filepath.Join(t.TempDir(), "missing", "x.jsonl"),
	}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestRegistered(t *testing.T) {
	assert.True(t, registry.GetRegistry().HasSink(Type))
}
