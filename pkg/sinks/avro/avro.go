// Package avro provides a sink that archives records in an Avro object
// container file. Namespace values are stored as JSON strings in a map so
// the schema does not change when plugins do.
package avro

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/linkedin/goavro/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/sinks"
)

// Type is the sink type name.
const Type = "avro"

// Schema is the writer schema of the container file.
const Schema = `{
	"type": "record",
	"name": "Product",
	"namespace": "onix",
	"fields": [
		{"name": "key", "type": "string"},
		{"name": "feed", "type": "string"},
		{"name": "sequence", "type": "int"},
		{"name": "fields", "type": {"type": "map", "values": "string"}}
	]
}`

const defaultBatch = 100

func init() {
	if err := registry.RegisterSink(Type, Open); err != nil {
		panic(err)
	}
}

// Sink appends records to an OCF writer in blocks.
type Sink struct {
	name  string
	feed  string
	batch int

	mu      sync.Mutex
	ocf     *goavro.OCFWriter
	buffer  []any
	written int
	file    io.Closer
	logger  *zap.Logger
}

// Open creates the container file. Options:
//
//	path         output file (required)
//	compression  null, deflate or snappy, default snappy
//	batch        records per block, default 100
func Open(_ context.Context, cfg config.SinkConfig) (record.Sink, error) {
	path, err := cfg.RequireOption("path")
	if err != nil {
		return nil, err
	}
	batch, err := cfg.OptionInt("batch", defaultBatch)
	if err != nil {
		return nil, err
	}
	codecName, err := compressionName(cfg.Option("compression", "snappy"))
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}
	s, err := New(cfg.Name, cfg.Option("feed", ""), f, codecName, batch, logger.Get())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.file = f
	s.logger.Info("avro sink ready", zap.String("path", path), zap.String("compression", codecName))
	return s, nil
}

func compressionName(s string) (string, error) {
	switch s {
	case "none", "null":
		return goavro.CompressionNullLabel, nil
	case "deflate":
		return goavro.CompressionDeflateLabel, nil
	case "", "snappy":
		return goavro.CompressionSnappyLabel, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported avro compression %q", s)
	}
}

// New creates a sink writing a container file to w.
func New(name, feed string, w io.Writer, compression string, batch int, l *zap.Logger) (*Sink, error) {
	if name == "" {
		name = Type
	}
	if batch <= 0 {
		batch = defaultBatch
	}
	if l == nil {
		l = zap.NewNop()
	}
	codec, err := goavro.NewCodec(Schema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Avro codec")
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: compression,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Avro writer")
	}
	return &Sink{
		name:   name,
		feed:   feed,
		batch:  batch,
		ocf:    ocf,
		buffer: make([]any, 0, batch),
		logger: l.With(zap.String("sink", name)),
	}, nil
}

// Name implements record.Sink.
func (s *Sink) Name() string { return s.name }

// Import implements record.Sink. Records are buffered and written one block
// at a time.
func (s *Sink) Import(_ context.Context, r *record.Record) error {
	doc, err := sinks.Encode(s.feed, r)
	if err != nil {
		return err
	}
	values := make(map[string]any, len(doc.Fields))
	for ns, raw := range doc.Fields {
		values[ns] = string(raw)
	}
	native := map[string]any{
		"key":      doc.Key,
		"feed":     doc.Feed,
		"sequence": int32(doc.Sequence), //nolint:gosec // product counts fit in int32
		"fields":   values,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ocf == nil {
		return errors.New(errors.ErrorTypeFile, "sink is closed")
	}
	s.buffer = append(s.buffer, native)
	if len(s.buffer) >= s.batch {
		return s.flushBatch()
	}
	return nil
}

func (s *Sink) flushBatch() error {
	if len(s.buffer) == 0 {
		return nil
	}
	if err := s.ocf.Append(s.buffer); err != nil {
		s.buffer = s.buffer[:0]
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write Avro block")
	}
	s.written += len(s.buffer)
	s.buffer = s.buffer[:0]
	return nil
}

// Close writes the pending block and closes the file it opened.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ocf == nil {
		return nil
	}

	err := s.flushBatch()
	s.ocf = nil
	if s.file != nil {
		if cerr := s.file.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output")
		}
	}
	s.logger.Info("avro sink closed", zap.Int("records", s.written))
	return err
}
