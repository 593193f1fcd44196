// Package log provides a sink that writes each record as a structured log
// line. It is the default sink of an inspection run.
package log

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/sinks"
)

// Type is the sink type name.
const Type = "log"

func init() {
	if err := registry.RegisterSink(Type, func(_ context.Context, cfg config.SinkConfig) (record.Sink, error) {
		return New(cfg.Name, cfg.Option("feed", ""), logger.Get()), nil
	}); err != nil {
		panic(err)
	}
}

// Sink logs records at info level.
type Sink struct {
	name   string
	feed   string
	logger *zap.Logger
}

// New creates a log sink.
func New(name, feed string, l *zap.Logger) *Sink {
	if name == "" {
		name = Type
	}
	return &Sink{name: name, feed: feed, logger: l.With(zap.String("sink", name))}
}

// Name implements record.Sink.
func (s *Sink) Name() string { return s.name }

// Import implements record.Sink.
func (s *Sink) Import(_ context.Context, r *record.Record) error {
	doc, err := sinks.Encode(s.feed, r)
	if err != nil {
		return err
	}
	fields := make([]zap.Field, 0, len(r.Namespaces)+1)
	fields = append(fields, zap.Int("sequence", r.Sequence))
	for _, ns := range r.Namespaces {
		fields = append(fields, zap.ByteString(ns, doc.Fields[ns]))
	}
	s.logger.Info("product record", fields...)
	return nil
}
