// Package profiler - Periodic runtime and pipeline metrics reports.
package profiler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/nvr-ai/live-classify/internal/log"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// CollectorFunc adapts a function to the MetricsCollector interface.
type CollectorFunc func() map[string]float64

// CollectMetrics calls f.
func (f CollectorFunc) CollectMetrics() map[string]float64 { return f() }

// RuntimeProfiler samples runtime statistics and registered collectors, and logs
// a periodic report. It is safe for concurrent use.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool

	startTime   time.Time
	memStats    runtime.MemStats
	lastGCCount uint32

	metrics    map[string]*MetricTracker
	collectors []MetricsCollector
	operations map[string]*TimeTracker
}

// MetricTracker tracks a sliding window of values for one metric.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	last   float64
}

func (t *MetricTracker) add(value float64, limit int) {
	if len(t.values) == 0 {
		t.min, t.max = value, value
	}
	t.values = append(t.values, value)
	t.sum += value
	if len(t.values) > limit {
		t.sum -= t.values[0]
		t.values = t.values[1:]
	}
	t.min = min(t.min, value)
	t.max = max(t.max, value)
	t.last = value
}

// TimeTracker tracks a sliding window of durations for one operation.
type TimeTracker struct {
	durations []time.Duration
	total     time.Duration
	min       time.Duration
	max       time.Duration
	count     int64
}

func (t *TimeTracker) add(d time.Duration, limit int) {
	if t.count == 0 {
		t.min, t.max = d, d
	}
	t.durations = append(t.durations, d)
	t.total += d
	if len(t.durations) > limit {
		t.total -= t.durations[0]
		t.durations = t.durations[1:]
	}
	t.min = min(t.min, d)
	t.max = max(t.max, d)
	t.count++
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to log a report (default: 10s)
	ReportInterval time.Duration
	// SampleInterval specifies how often to collect samples (default: 500ms)
	SampleInterval time.Duration
	// MaxSamples specifies the window kept per metric (default: 600)
	MaxSamples int
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
//   - opts: Configuration options for the profiler.
//
// Returns:
//   - *RuntimeProfiler: A configured profiler. Call Start to begin sampling.
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 500 * time.Millisecond
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		startTime:      time.Now(),
		metrics:        make(map[string]*MetricTracker),
		operations:     make(map[string]*TimeTracker),
	}
}

// Start begins sampling and reporting until ctx is done or Stop is called.
// Calling Start on a running profiler does nothing.
func (rp *RuntimeProfiler) Start(ctx context.Context) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	rp.startTime = time.Now()

	ctx, rp.cancel = context.WithCancel(ctx)

	rp.wg.Add(2)
	go rp.loop(ctx, rp.sampleInterval, rp.Sample)
	go rp.loop(ctx, rp.reportInterval, rp.Report)
}

func (rp *RuntimeProfiler) loop(ctx context.Context, interval time.Duration, fn func()) {
	defer rp.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Stop stops the profiler and waits for its goroutines.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	cancel := rp.cancel
	rp.mu.Unlock()

	cancel()
	rp.wg.Wait()
}

// AddMetricsCollector registers a collector sampled on every tick.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func(): Call when the operation completes.
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.recordOperationTime(name, time.Since(start))
	}
}

func (rp *RuntimeProfiler) recordOperationTime(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, ok := rp.operations[name]
	if !ok {
		tracker = &TimeTracker{}
		rp.operations[name] = tracker
	}
	tracker.add(d, rp.maxSamples)
}

// Sample reads runtime memory statistics and every registered collector once.
func (rp *RuntimeProfiler) Sample() {
	rp.mu.RLock()
	collectors := append([]MetricsCollector(nil), rp.collectors...)
	rp.mu.RUnlock()

	// Collectors may take their own locks, so call them outside ours.
	collected := make([]map[string]float64, 0, len(collectors))
	for _, c := range collectors {
		collected = append(collected, c.CollectMetrics())
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)
	rp.record("goroutines", float64(runtime.NumGoroutine()))
	rp.record("cgo_calls", float64(runtime.NumCgoCall()))
	for _, metrics := range collected {
		for name, value := range metrics {
			rp.record(name, value)
		}
	}
}

// record must be called with rp.mu held.
func (rp *RuntimeProfiler) record(name string, value float64) {
	tracker, ok := rp.metrics[name]
	if !ok {
		tracker = &MetricTracker{values: make([]float64, 0, rp.maxSamples)}
		rp.metrics[name] = tracker
	}
	tracker.add(value, rp.maxSamples)
}

// Report logs one status report with memory, metric and operation statistics.
func (rp *RuntimeProfiler) Report() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	attrs := []any{
		"uptime", time.Since(rp.startTime).Truncate(time.Millisecond),
		"goroutines", runtime.NumGoroutine(),
		slog.Group("memory",
			"alloc", formatBytes(rp.memStats.Alloc),
			"sys", formatBytes(rp.memStats.Sys),
			"heap_objects", rp.memStats.HeapObjects,
		),
	}
	if rp.memStats.NumGC > rp.lastGCCount {
		attrs = append(attrs, slog.Group("gc",
			"cycles", rp.memStats.NumGC,
			"new", rp.memStats.NumGC-rp.lastGCCount,
			"cpu_fraction", fmt.Sprintf("%.4f%%", rp.memStats.GCCPUFraction*100),
		))
		rp.lastGCCount = rp.memStats.NumGC
	}
	for _, name := range sortedKeys(rp.metrics) {
		t := rp.metrics[name]
		if len(t.values) == 0 {
			continue
		}
		attrs = append(attrs, name, fmt.Sprintf("last=%.2f avg=%.2f min=%.2f max=%.2f",
			t.last, t.sum/float64(len(t.values)), t.min, t.max))
	}
	for _, name := range sortedKeys(rp.operations) {
		t := rp.operations[name]
		if len(t.durations) == 0 {
			continue
		}
		avg := t.total / time.Duration(len(t.durations))
		attrs = append(attrs, "op_"+name, fmt.Sprintf("avg=%v min=%v max=%v count=%d",
			avg.Truncate(time.Microsecond), t.min.Truncate(time.Microsecond),
			t.max.Truncate(time.Microsecond), t.count))
	}

	log.Info("📊 runtime report", attrs...)
}

// Stats is a point-in-time view of one tracked metric.
type Stats struct {
	Last    float64
	Avg     float64
	Min     float64
	Max     float64
	Samples int
}

// OperationStats is a point-in-time view of one timed operation.
type OperationStats struct {
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
	Count int64
}

// Metric returns the statistics for a sampled metric.
func (rp *RuntimeProfiler) Metric(name string) (Stats, bool) {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	t, ok := rp.metrics[name]
	if !ok || len(t.values) == 0 {
		return Stats{}, false
	}
	return Stats{
		Last:    t.last,
		Avg:     t.sum / float64(len(t.values)),
		Min:     t.min,
		Max:     t.max,
		Samples: len(t.values),
	}, true
}

// Operation returns the timing statistics for an operation.
func (rp *RuntimeProfiler) Operation(name string) (OperationStats, bool) {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	t, ok := rp.operations[name]
	if !ok || len(t.durations) == 0 {
		return OperationStats{}, false
	}
	return OperationStats{
		Avg:   t.total / time.Duration(len(t.durations)),
		Min:   t.min,
		Max:   t.max,
		Count: t.count,
	}, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
