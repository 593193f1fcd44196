// Package pipeline wires a configured extraction run: the feed source, the
// parser with its Header and Product consumers, the field plugins and the
// sinks, plus the run summary and shutdown.
//
// # Basic Usage
//
//	cfg, err := config.Load("onix.yaml")
//	...
//	runner, err := pipeline.NewRunner(cfg, pipeline.WithLogger(logger.Get()))
//	...
//	summary, err := runner.Run(ctx)
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/feed"
	"github.com/ajitpratap0/onix/pkg/fields"
	"github.com/ajitpratap0/onix/pkg/header"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/metrics"
	"github.com/ajitpratap0/onix/pkg/observability"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/sinks"
	"github.com/ajitpratap0/onix/pkg/source"
)

// Summary describes a finished run.
type Summary struct {
	RunID        string                 `json:"run_id"`
	Name         string                 `json:"name"`
	URI          string                 `json:"uri"`
	Header       *header.Header         `json:"header,omitempty"`
	Products     int                    `json:"products"`
	RecordErrors int                    `json:"record_errors"`
	Stats        record.Stats           `json:"stats"`
	StoredBytes  int                    `json:"stored_bytes"`
	Bytes        int                    `json:"bytes"`
	Duration     time.Duration          `json:"duration"`
	Throughput   float64                `json:"records_per_second"`
	Memory       metrics.MemorySnapshot `json:"memory"`
}

// Runner executes one configured extraction.
type Runner struct {
	cfg        *config.Config
	logger     *zap.Logger
	registry   *registry.Registry
	sourceOpts []source.Option
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithRegistry replaces the global plugin registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(r *Runner) { r.registry = reg }
}

// WithSourceOptions passes options to source.Open.
func WithSourceOptions(opts ...source.Option) Option {
	return func(r *Runner) { r.sourceOpts = append(r.sourceOpts, opts...) }
}

// NewRunner validates cfg and creates a Runner.
func NewRunner(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{cfg: cfg, registry: registry.GetRegistry()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	r.logger = r.logger.With(zap.String("component", "runner"), zap.String("run", cfg.Name))
	return r, nil
}

// Build creates the record pipeline with the configured plugins and sinks.
// An empty plugin list selects fields.Default. Sinks created before a
// failure are closed.
func (r *Runner) Build(ctx context.Context) (*record.Pipeline, error) {
	pipe := record.NewPipeline(record.WithLogger(logger.WithContext(ctx, r.logger)))

	names := r.cfg.Plugins
	if len(names) == 0 {
		names = fields.Default
	}
	for _, name := range names {
		plugin, err := r.registry.CreateField(name)
		if err != nil {
			return nil, err
		}
		if err := pipe.RegisterField(name, plugin); err != nil {
			return nil, err
		}
	}

	for _, sc := range r.cfg.Sinks {
		sink, err := r.createSink(ctx, sc)
		if err == nil {
			err = pipe.AddSink(sink)
		}
		if err != nil {
			if cerr := pipe.Close(ctx); cerr != nil {
				r.logger.Warn("failed to close sinks", zap.Error(cerr))
			}
			return nil, err
		}
	}

	r.logger.Info("pipeline built",
		zap.Strings("plugins", pipe.Fields().Namespaces()),
		zap.Strings("sinks", pipe.Sinks().Names()))
	return pipe, nil
}

func (r *Runner) createSink(ctx context.Context, sc config.SinkConfig) (record.Sink, error) {
	options := make(map[string]string, len(sc.Options)+1)
	for k, v := range sc.Options {
		options[k] = v
	}
	if options["feed"] == "" {
		options["feed"] = r.cfg.Name
	}
	sc.Options = options

	sink, err := r.registry.CreateSink(ctx, sc)
	if err != nil {
		return nil, err
	}
	if sc.Retry.Attempts > 1 {
		sink = sinks.WithRetry(sink, sinks.NewRetryPolicy(sc.Retry), r.logger)
	}
	return sink, nil
}

// Run loads the feed, parses it through the pipeline and closes the sinks.
// The summary is returned even when the parse fails.
func (r *Runner) Run(ctx context.Context) (summary *Summary, err error) {
	start := time.Now()
	obs := r.cfg.Observability

	runID := fmt.Sprintf("%s-%d", r.cfg.Name, start.UnixNano())
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	ctx = context.WithValue(ctx, logger.FeedKey, r.cfg.Source.URI)
	log := logger.WithContext(ctx, r.logger)

	if obs.EnableTracing {
		tc := observability.DefaultTracingConfig()
		tc.Enabled = true
		tc.ServiceName = r.cfg.Name
		tc.SamplingRate = obs.TracingSampleRate
		if err := observability.Init(tc); err != nil {
			return nil, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := observability.Shutdown(shutdownCtx); serr != nil {
				log.Warn("failed to flush traces", zap.Error(serr))
			}
		}()
	}

	if obs.EnableMetrics {
		metricsCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if serr := metrics.Serve(metricsCtx, obs.MetricsAddr); serr != nil {
				log.Error("metrics server stopped", zap.Error(serr))
			}
		}()
	}

	pipe, err := r.Build(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := pipe.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Error("failed to close sinks", zap.Error(cerr))
			err = errors.Join(err, cerr)
		}
	}()

	src, err := source.Open(ctx, r.cfg.Source, append([]source.Option{source.WithLogger(log)}, r.sourceOpts...)...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			log.Warn("failed to release feed", zap.Error(cerr))
		}
	}()

	headers := header.NewConsumer(nil, log)
	parser := feed.NewParser(
		feed.WithLogger(log),
		feed.WithFailFast(r.cfg.Parser.FailFast),
	)
	parser.Attach(headers).Attach(pipe)

	throughput := metrics.NewThroughputTracker(r.cfg.Name)
	timer := metrics.NewTimer("parse")
	parseErr := parser.Parse(ctx, src.Bytes())
	timer.ObserveStage()

	stats := pipe.Stats()
	throughput.Increment(int64(stats.Processed))
	summary = &Summary{
		RunID:        runID,
		Name:         r.cfg.Name,
		URI:          r.cfg.Source.URI,
		Products:     parser.ProductCount(),
		RecordErrors: len(parser.RecordErrors()),
		Stats:        stats,
		StoredBytes:  src.StoredBytes,
		Bytes:        len(src.Bytes()),
		Throughput:   throughput.GetAndReset(),
	}
	if h, ok := headers.Header(); ok {
		summary.Header = &h
	}
	if mem, merr := metrics.SampleMemory(); merr == nil {
		summary.Memory = mem
	} else {
		log.Debug("memory sample unavailable", zap.Error(merr))
	}
	summary.Duration = time.Since(start)

	logFields := []zap.Field{
		zap.Int("products", summary.Products),
		zap.Int("imported", stats.Imported),
		zap.Int("record_errors", summary.RecordErrors),
		zap.Duration("duration", summary.Duration),
		zap.Float64("records_per_second", summary.Throughput),
		zap.Uint64("resident_bytes", summary.Memory.ResidentBytes),
	}
	if parseErr != nil {
		log.Error("run failed", append(logFields, zap.Error(parseErr))...)
		return summary, parseErr
	}
	log.Info("run completed", logFields...)
	return summary, nil
}
