package record

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/feed"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/metrics"
	"github.com/ajitpratap0/onix/pkg/observability"
	"github.com/ajitpratap0/onix/pkg/xmltree"
)

// Stats counts pipeline outcomes.
type Stats struct {
	Processed      int `json:"processed"`
	DecodeFailures int `json:"decode_failures"`
	PluginFailures int `json:"plugin_failures"`
	ImportFailures int `json:"import_failures"`
	Imported       int `json:"imported"`
}

// Pipeline is the Product consumer.
type Pipeline struct {
	decoder Decoder
	fields  *Fields
	sinks   *Sinks
	logger  *zap.Logger
	tracer  *observability.StageTracer

	mu    sync.Mutex
	stats Stats
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDecoder replaces the default xmltree decoder.
func WithDecoder(d Decoder) Option {
	return func(p *Pipeline) { p.decoder = d }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline with empty registries.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		decoder: xmltree.Decoder{},
		fields:  NewFields(),
		sinks:   NewSinks(),
		tracer:  observability.NewStageTracer("record"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get()
	}
	p.logger = p.logger.With(zap.String("component", "record_pipeline"))
	return p
}

// RegisterField registers plugin under namespace.
func (p *Pipeline) RegisterField(namespace string, plugin FieldPlugin) error {
	return p.fields.Register(namespace, plugin)
}

// AddSink registers sink after the existing ones.
func (p *Pipeline) AddSink(sink Sink) error {
	return p.sinks.Add(sink)
}

// Fields returns the field registry.
func (p *Pipeline) Fields() *Fields { return p.fields }

// Sinks returns the sink registry.
func (p *Pipeline) Sinks() *Sinks { return p.sinks }

// Update implements feed.Consumer. Notifications other than Product are
// ignored.
func (p *Pipeline) Update(ctx context.Context, n feed.Notification) error {
	if n.Tag != feed.TagProduct {
		return nil
	}
	return p.process(ctx, n)
}

// Process decodes fragment, extracts the registered fields and imports the
// record into every sink. The returned error is of type decode, plugin, or
// a join of import errors.
func (p *Pipeline) Process(ctx context.Context, sequence int, fragment string) error {
	return p.process(ctx, feed.Notification{Tag: feed.TagProduct, Sequence: sequence, Fragment: fragment})
}

func (p *Pipeline) process(ctx context.Context, n feed.Notification) (err error) {
	sequence, fragment := n.Sequence, n.Fragment
	ctx, span := p.tracer.StartSpan(ctx, "process")
	span.SetAttribute("onix.sequence", sequence)
	if n.Span.Sealed() {
		span.AddEvent("sealed",
			attribute.Int("onix.span.start", n.Span.Start),
			attribute.Int("onix.span.end", n.Span.End))
	}
	defer func() {
		span.Finish(err)
		span.End()
		p.record(func(s *Stats) { s.Processed++ })
		if err != nil {
			metrics.RecordsTotal.WithLabelValues(metrics.StatusFailure).Inc()
		} else {
			metrics.RecordsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
		}
	}()

	node, err := p.decode(ctx, sequence, fragment)
	if err != nil {
		p.record(func(s *Stats) { s.DecodeFailures++ })
		p.logger.Warn("fragment decode failed", zap.Int("sequence", sequence), zap.Error(err))
		return err
	}

	rec, err := p.extract(ctx, sequence, node)
	if err != nil {
		p.record(func(s *Stats) { s.PluginFailures++ })
		p.logger.Warn("field extraction failed", zap.Int("sequence", sequence), zap.Error(err))
		return err
	}

	return p.importRecord(ctx, rec)
}

func (p *Pipeline) decode(ctx context.Context, sequence int, fragment string) (*xmltree.Node, error) {
	var node *xmltree.Node
	err := p.tracer.Trace(ctx, "decode", func(context.Context) error {
		timer := metrics.NewTimer("decode")
		defer timer.ObserveStage()

		n, err := p.decoder.Decode(fragment)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeDecode, "failed to decode product fragment").
				WithDetail("sequence", sequence)
		}
		node = n
		return nil
	})
	return node, err
}

func (p *Pipeline) extract(ctx context.Context, sequence int, node *xmltree.Node) (*Record, error) {
	rec := &Record{
		Sequence:   sequence,
		Namespaces: make([]string, 0, p.fields.Len()),
		Values:     make(map[string]any, p.fields.Len()),
	}
	if p.fields.Len() == 0 {
		return rec, nil
	}

	err := p.tracer.Trace(ctx, "fields", func(context.Context) error {
		timer := metrics.NewTimer("fields")
		defer timer.ObserveStage()

		for _, e := range p.fields.entries {
			v, err := e.plugin.Parse(node)
			if err != nil {
				metrics.PluginErrors.WithLabelValues(e.namespace).Inc()
				return errors.Wrap(err, errors.ErrorTypePlugin, "field plugin failed").
					WithDetail("namespace", e.namespace).
					WithDetail("sequence", sequence)
			}
			rec.Namespaces = append(rec.Namespaces, e.namespace)
			rec.Values[e.namespace] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Pipeline) importRecord(ctx context.Context, rec *Record) error {
	if p.sinks.Len() == 0 {
		return nil
	}

	var errs []error
	for _, sink := range p.sinks.sinks {
		name := sink.Name()
		err := p.tracer.Trace(ctx, "import", func(ctx context.Context) error {
			timer := metrics.NewTimer("import")
			defer timer.ObserveStage()
			return sink.Import(ctx, rec)
		})
		if err != nil {
			metrics.SinkImports.WithLabelValues(name, metrics.StatusFailure).Inc()
			p.record(func(s *Stats) { s.ImportFailures++ })
			p.logger.Warn("sink import failed",
				zap.String("sink", name),
				zap.Int("sequence", rec.Sequence),
				zap.Error(err))
			errs = append(errs, errors.Wrap(err, errors.ErrorTypeImport, "sink import failed").
				WithDetail("sink", name).
				WithDetail("sequence", rec.Sequence))
			continue
		}
		metrics.SinkImports.WithLabelValues(name, metrics.StatusSuccess).Inc()
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	p.record(func(s *Stats) { s.Imported++ })
	return nil
}

func (p *Pipeline) record(fn func(*Stats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.stats)
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close closes every sink implementing Closer, in registration order.
func (p *Pipeline) Close(ctx context.Context) error {
	var errs []error
	for _, sink := range p.sinks.sinks {
		c, ok := sink.(Closer)
		if !ok {
			continue
		}
		if err := c.Close(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, errors.ErrorTypeImport, "failed to close sink").
				WithDetail("sink", sink.Name()))
		}
	}
	return errors.Join(errs...)
}
