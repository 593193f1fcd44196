// Package metrics provides Prometheus instrumentation for feed extraction.
// Every collector is registered on the default registry at package init, so
// importing the package is enough to have its series exported by Serve.
//
// # Basic Usage
//
//	// Count a sealed section
//	metrics.SectionsExtracted.WithLabelValues("Product").Inc()
//
//	// Time a pipeline stage
//	timer := metrics.NewTimer("decode")
//	node, err := decoder.Decode(fragment)
//	timer.ObserveStage()
//
//	// Track throughput over a run
//	tracker := metrics.NewThroughputTracker("onix-daily")
//	tracker.Increment(1)
//	rate := tracker.GetAndReset()
package metrics

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/logger"
)

// Record outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// SectionsExtracted counts sealed sections.
	// Labels: tag (Header/Product)
	SectionsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onix_sections_extracted_total",
			Help: "Total number of sealed feed sections",
		},
		[]string{"tag"},
	)

	// FragmentBytes tracks the size distribution of sealed fragments.
	FragmentBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "onix_fragment_bytes",
			Help: "Size of sealed feed fragments in bytes",
			Buckets: []float64{
				256,
				1024,
				4096,
				16384,
				65536,
				262144,
				1048576,
			},
		},
		[]string{"tag"},
	)

	// RecordsTotal counts processed product records by outcome.
	// Labels: status (success/failure)
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onix_records_total",
			Help: "Total number of product records processed",
		},
		[]string{"status"},
	)

	// PluginErrors counts field plugin failures.
	// Labels: namespace
	PluginErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onix_plugin_errors_total",
			Help: "Total number of field plugin failures",
		},
		[]string{"namespace"},
	)

	// SinkImports counts sink imports by outcome.
	// Labels: sink, status (success/failure)
	SinkImports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onix_sink_imports_total",
			Help: "Total number of sink import calls",
		},
		[]string{"sink", "status"},
	)

	// StageLatency tracks the latency of pipeline stages in seconds.
	// Labels: stage (decode/fields/import/parse)
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "onix_stage_latency_seconds",
			Help: "Pipeline stage latency in seconds",
			Buckets: []float64{
				1e-5, // 10μs
				1e-4,
				1e-3, // 1ms
				1e-2,
				1e-1,
				1,
				10,
			},
		},
		[]string{"stage"},
	)

	// Throughput tracks products per second for a feed.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "onix_throughput_records_per_second",
			Help: "Current throughput in product records per second",
		},
		[]string{"feed"},
	)

	// MemoryResident tracks the resident set size of the process.
	MemoryResident = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "onix_process_resident_bytes",
			Help: "Resident memory of the extractor process in bytes",
		},
	)
)

// Timer measures the duration of one pipeline stage.
type Timer struct {
	start time.Time
	stage string
}

// NewTimer starts timing stage.
func NewTimer(stage string) *Timer {
	return &Timer{start: time.Now(), stage: stage}
}

// Stop returns the elapsed time since creation. It can be called repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveStage records the elapsed time in StageLatency and returns it.
func (t *Timer) ObserveStage() time.Duration {
	d := t.Stop()
	StageLatency.WithLabelValues(t.stage).Observe(d.Seconds())
	return d
}

// ThroughputTracker tracks records per second over a window.
// Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	feed      string
}

// NewThroughputTracker creates a tracker labelled with feed.
func NewThroughputTracker(feed string) *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now(), feed: feed}
}

// Increment adds n to the record count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// Count returns the records counted since the last reset.
func (t *ThroughputTracker) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// GetAndReset computes the current rate, publishes it to Throughput and
// starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}
	rate := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()
	Throughput.WithLabelValues(t.feed).Set(rate)
	return rate
}

// MemorySnapshot is the memory state reported at the end of a run.
type MemorySnapshot struct {
	ResidentBytes uint64  `json:"resident_bytes"`
	SystemTotal   uint64  `json:"system_total"`
	SystemUsedPct float64 `json:"system_used_pct"`
}

// SampleMemory reads the process and system memory and updates
// MemoryResident.
func SampleMemory() (MemorySnapshot, error) {
	var snap MemorySnapshot

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return snap, errors.Wrap(err, errors.ErrorTypeInternal, "failed to open process handle")
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return snap, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read process memory")
	}
	snap.ResidentBytes = info.RSS

	vm, err := mem.VirtualMemory()
	if err != nil {
		return snap, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read system memory")
	}
	snap.SystemTotal = vm.Total
	snap.SystemUsedPct = vm.UsedPercent

	MemoryResident.Set(float64(snap.ResidentBytes))
	return snap, nil
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve exposes Handler on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, errors.ErrorTypeConnection, "metrics server failed").
				WithDetail("addr", addr)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
