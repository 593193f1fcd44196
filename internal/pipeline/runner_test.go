package pipeline

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/fields"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/sinks"
	_ "github.com/ajitpratap0/onix/pkg/sinks/jsonl"
	_ "github.com/ajitpratap0/onix/pkg/sinks/log"
)

const feedDoc = `<?xml version="1.0" encoding="UTF-8"?>
<ONIXMessage release="2.1">
  <Header>
    <FromCompany>Acme Books</FromCompany>
    <SentDate>20240102</SentDate>
  </Header>
  <Product>
    <RecordReference>acme-1</RecordReference>
    <NotificationType>03</NotificationType>
    <Title><TitleText>First</TitleText></Title>
  </Product>
  <Product>
    <RecordReference>acme-2</RecordReference>
    <NotificationType>03</NotificationType>
    <Title><TitleText>Second</TitleText></Title>
  </Product>
</ONIXMessage>`

func writeFeed(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "feed.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunWritesEveryProduct(t *testing.T) {
	out := filepath.Join(t.TempDir(), "products.jsonl")
	cfg := config.Default()
	cfg.Name = "acme"
	cfg.Source.URI = writeFeed(t, feedDoc)
	cfg.Plugins = []string{fields.Headers, fields.Identifiers}
	cfg.Sinks = []config.SinkConfig{{Type: "jsonl", Options: map[string]string{"path": out}}}

	runner, err := NewRunner(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Products)
	assert.Equal(t, record.Stats{Processed: 2, Imported: 2}, summary.Stats)
	assert.Zero(t, summary.RecordErrors)
	require.NotNil(t, summary.Header)
	assert.Equal(t, "Acme Books", summary.Header.FromCompany)
	assert.Equal(t, len(feedDoc), summary.Bytes)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	var docs []sinks.Document
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var d sinks.Document
		require.NoError(t, json.Unmarshal(sc.Bytes(), &d))
		docs = append(docs, d)
	}
	require.Len(t, docs, 2)
	assert.Equal(t, "acme-1", docs[0].Key)
	assert.Equal(t, "acme", docs[0].Feed)
	assert.Contains(t, string(docs[1].Fields[fields.Headers]), `"title":"Second"`)
}

func TestRunReportsMalformedFeed(t *testing.T) {
	cfg := config.Default()
	cfg.Source.URI = writeFeed(t, `<ONIXMessage><Product><A/></Product>`)

	runner, err := NewRunner(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	summary, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedDocument))
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Products)
}

func TestRunMissingSource(t *testing.T) {
	cfg := config.Default()
	cfg.Source.URI = filepath.Join(t.TempDir(), "missing.xml")

	runner, err := NewRunner(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestNewRunnerValidates(t *testing.T) {
	_, err := NewRunner(nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewRunner(config.Default())
	require.Error(t, err)
	field, ok := errors.Detail(err, "field")
	require.True(t, ok)
	assert.Equal(t, "source.uri", field)
}

type memorySink struct {
	mu      sync.Mutex
	name    string
	feed    string
	fail    int
	calls   int
	records []int
	closed  bool
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Import(_ context.Context, r *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail > 0 {
		s.fail--
		return errors.New(errors.ErrorTypeConnection, "unavailable")
	}
	s.records = append(s.records, r.Sequence)
	return nil
}

func (s *memorySink) Close(context.Context) error {
	s.closed = true
	return nil
}

func testRegistry(t *testing.T, sink *memorySink) *registry.Registry {
	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterField(fields.Headers, func() record.FieldPlugin { return fields.HeadersPlugin{} }))
	require.NoError(t, reg.RegisterSink("memory", func(_ context.Context, cfg config.SinkConfig) (record.Sink, error) {
		sink.name = cfg.Name
		sink.feed = cfg.Option("feed", "")
		return sink, nil
	}))
	return reg
}

func TestBuildWrapsRetryingSinks(t *testing.T) {
	sink := &memorySink{fail: 1}
	cfg := config.Default()
	cfg.Name = "daily"
	cfg.Source.URI = writeFeed(t, feedDoc)
	cfg.Plugins = []string{fields.Headers}
	cfg.Sinks = []config.SinkConfig{{
		Type:  "memory",
		Retry: config.RetryConfig{Attempts: 3, Delay: 1, Multiplier: 1, MaxDelay: 1},
	}}

	runner, err := NewRunner(cfg, WithLogger(zaptest.NewLogger(t)), WithRegistry(testRegistry(t, sink)))
	require.NoError(t, err)
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "memory", sink.name)
	assert.Equal(t, "daily", sink.feed)
	assert.Equal(t, []int{0, 1}, sink.records)
	assert.Equal(t, 3, sink.calls)
	assert.Equal(t, 2, summary.Stats.Imported)
	assert.True(t, sink.closed)
}

func TestBuildRejectsUnknownPlugin(t *testing.T) {
	cfg := config.Default()
	cfg.Source.URI = "feed.xml"
	cfg.Plugins = []string{"nope"}

	runner, err := NewRunner(cfg, WithLogger(zaptest.NewLogger(t)), WithRegistry(testRegistry(t, &memorySink{})))
	require.NoError(t, err)
	_, err = runner.Build(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestBuildDefaultsToAllFieldPlugins(t *testing.T) {
	cfg := config.Default()
	cfg.Source.URI = "feed.xml"

	runner, err := NewRunner(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	pipe, err := runner.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fields.Default, pipe.Fields().Namespaces())
}

func TestRunLogsCarryRunIDAndFeed(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := config.Default()
	cfg.Name = "acme"
	cfg.Source.URI = writeFeed(t, feedDoc)
	cfg.Sinks = []config.SinkConfig{{Type: "log"}}

	runner, err := NewRunner(cfg, WithLogger(zap.New(core)))
	require.NoError(t, err)
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(summary.RunID, "acme-"), summary.RunID)

	done := logs.FilterMessage("run completed").All()
	require.Len(t, done, 1)
	ctxFields := done[0].ContextMap()
	assert.Equal(t, summary.RunID, ctxFields["run_id"])
	assert.Equal(t, cfg.Source.URI, ctxFields["feed"])
}
