// Package jsonl provides a sink that appends each record as one JSON line
// to a file, compressed according to the file extension.
package jsonl

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/compression"
	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/sinks"
)

// Type is the sink type name.
const Type = "jsonl"

func init() {
	if err := registry.RegisterSink(Type, Open); err != nil {
		panic(err)
	}
}

// Sink writes JSON lines.
type Sink struct {
	name string
	feed string

	mu     sync.Mutex
	buf    *bufio.Writer
	codec  io.WriteCloser
	file   io.Closer
	lines  int
	logger *zap.Logger
}

// Open creates the output file. Options:
//
//	path         output file (required), truncated when it exists
//	compression  algorithm name, default from the path extension
//	level        fastest, default, better or best
func Open(_ context.Context, cfg config.SinkConfig) (record.Sink, error) {
	path, err := cfg.RequireOption("path")
	if err != nil {
		return nil, err
	}
	alg := compression.FromExtension(path)
	if v := cfg.Option("compression", ""); v != "" {
		if alg, err = compression.Parse(v); err != nil {
			return nil, err
		}
	}
	level, err := ParseLevel(cfg.Option("level", "default"))
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}
	s, err := New(cfg.Name, cfg.Option("feed", ""), f, alg, level, logger.Get())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.file = f
	s.logger.Info("jsonl sink ready", zap.String("path", path), zap.String("compression", string(alg)))
	return s, nil
}

// ParseLevel maps a level name to compression.Level.
func ParseLevel(s string) (compression.Level, error) {
	switch s {
	case "fastest":
		return compression.Fastest, nil
	case "", "default":
		return compression.Default, nil
	case "better":
		return compression.Better, nil
	case "best":
		return compression.Best, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "unknown compression level %q", s)
	}
}

// New creates a sink writing to w. w is not closed by Close.
func New(name, feed string, w io.Writer, alg compression.Algorithm, level compression.Level, l *zap.Logger) (*Sink, error) {
	if name == "" {
		name = Type
	}
	if l == nil {
		l = zap.NewNop()
	}
	codec, err := compression.NewWriter(alg, w, level)
	if err != nil {
		return nil, err
	}
	return &Sink{
		name:   name,
		feed:   feed,
		codec:  codec,
		buf:    bufio.NewWriterSize(codec, 64*1024),
		logger: l.With(zap.String("sink", name)),
	}, nil
}

// Name implements record.Sink.
func (s *Sink) Name() string { return s.name }

// Import implements record.Sink.
func (s *Sink) Import(_ context.Context, r *record.Record) error {
	doc, err := sinks.Encode(s.feed, r)
	if err != nil {
		return err
	}
	line, err := doc.Marshal()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return errors.New(errors.ErrorTypeFile, "sink is closed")
	}
	if _, err := s.buf.Write(line); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record").WithDetail("sequence", r.Sequence)
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record").WithDetail("sequence", r.Sequence)
	}
	s.lines++
	return nil
}

// Close flushes the buffer and the codec, then closes the file it opened.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return nil
	}

	var errs []error
	if err := s.buf.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := s.codec.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.buf = nil
	s.logger.Info("jsonl sink closed", zap.Int("lines", s.lines))

	if err := errors.Join(errs...); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close output")
	}
	return nil
}
