// Package metrics provides the live metrics registry shared by the load
// generator and the runtime classifier.
package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/samber/lo"
)

const (
	// trendMaxMicros is the largest recordable trend sample (1 hour).
	trendMaxMicros int64 = 3600000000

	// trendSigFigs is the HDR histogram precision.
	trendSigFigs = 3
)

// Registry holds every named metric of a run.
//
// Metrics are created lazily on first access and live for the whole run.
// Lookups take a read lock; updates on the returned metric are lock-free
// for counters, rates and checks, and mutex-protected for trends and gauges.
//
// # Thread Safety
//
// Registry and all metric types are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	rates    map[string]*Rate
	trends   map[string]*Trend
	checks   map[string]*Check
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		rates:    make(map[string]*Rate),
		trends:   make(map[string]*Trend),
		checks:   make(map[string]*Check),
	}
}

// Counter returns the counter with the given name, creating it if needed.
func (r *Registry) Counter(name string) *Counter {
	return getOrCreate(&r.mu, r.counters, name, func() *Counter { return &Counter{} })
}

// Gauge returns the gauge with the given name, creating it if needed.
func (r *Registry) Gauge(name string) *Gauge {
	return getOrCreate(&r.mu, r.gauges, name, func() *Gauge { return &Gauge{} })
}

// Rate returns the rate with the given name, creating it if needed.
func (r *Registry) Rate(name string) *Rate {
	return getOrCreate(&r.mu, r.rates, name, func() *Rate { return &Rate{} })
}

// Trend returns the trend with the given name, creating it if needed.
func (r *Registry) Trend(name string) *Trend {
	return getOrCreate(&r.mu, r.trends, name, newTrend)
}

// Check returns the check with the given name, creating it if needed.
func (r *Registry) Check(name string) *Check {
	return getOrCreate(&r.mu, r.checks, name, func() *Check { return &Check{} })
}

// HasTrend reports whether a trend with the given name was ever created.
func (r *Registry) HasTrend(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.trends[name]
	return ok
}

// Checks returns a summary of every registered check keyed by name.
func (r *Registry) Checks() map[string]CheckSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.MapValues(r.checks, func(c *Check, _ string) CheckSummary {
		return c.Summary()
	})
}

// Names returns the sorted names of all registered metrics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.counters)+len(r.gauges)+len(r.rates)+len(r.trends))
	names = append(names, lo.Keys(r.counters)...)
	names = append(names, lo.Keys(r.gauges)...)
	names = append(names, lo.Keys(r.rates)...)
	names = append(names, lo.Keys(r.trends)...)
	sort.Strings(names)

	return lo.Uniq(names)
}

func getOrCreate[T any](mu *sync.RWMutex, m map[string]*T, name string, create func() *T) *T {
	mu.RLock()
	v, ok := m[name]
	mu.RUnlock()
	if ok {
		return v
	}

	mu.Lock()
	defer mu.Unlock()

	if v, ok = m[name]; ok {
		return v
	}
	v = create()
	m[name] = v
	return v
}

// Counter is a monotonically increasing integer metric.
type Counter struct {
	v atomic.Int64
}

// Add increments the counter by n and returns the new value.
func (c *Counter) Add(n int64) int64 {
	return c.v.Add(n)
}

// Inc increments the counter by one.
func (c *Counter) Inc() {
	c.v.Add(1)
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	return c.v.Load()
}

// Gauge tracks the last value set along with the observed min and max.
type Gauge struct {
	mu    sync.Mutex
	value float64
	min   float64
	max   float64
	set   bool
}

// Set records a new gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.value = v
	if !g.set || v < g.min {
		g.min = v
	}
	if !g.set || v > g.max {
		g.max = v
	}
	g.set = true
}

// Summary returns the gauge's current value, min and max.
func (g *Gauge) Summary() GaugeSummary {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GaugeSummary{Value: g.value, Min: g.min, Max: g.max}
}

// Rate tracks the fraction of non-zero (true) samples.
type Rate struct {
	trues atomic.Int64
	total atomic.Int64
}

// Add records one boolean sample.
func (r *Rate) Add(v bool) {
	if v {
		r.trues.Add(1)
	}
	r.total.Add(1)
}

// Value returns trues/total, or 0 when no samples were recorded.
func (r *Rate) Value() float64 {
	total := r.total.Load()
	if total == 0 {
		return 0
	}
	return float64(r.trues.Load()) / float64(total)
}

// Summary returns the rate value with its raw counts.
func (r *Rate) Summary() RateSummary {
	trues := r.trues.Load()
	total := r.total.Load()
	return RateSummary{
		Value:  r.Value(),
		Passes: trues,
		Fails:  total - trues,
	}
}

// Check counts passing and failing evaluations of a named assertion.
type Check struct {
	passes atomic.Int64
	fails  atomic.Int64
}

// Record adds one evaluation result.
func (c *Check) Record(ok bool) {
	if ok {
		c.passes.Add(1)
		return
	}
	c.fails.Add(1)
}

// Summary returns pass and fail counts.
func (c *Check) Summary() CheckSummary {
	return CheckSummary{Passes: c.passes.Load(), Fails: c.fails.Load()}
}

// Trend is a distribution of millisecond samples backed by an HDR histogram.
//
// The histogram stores microseconds, which gives sub-millisecond percentile
// resolution. Min, max and the sum are tracked exactly alongside it.
type Trend struct {
	mu    sync.Mutex
	hist  *hdrhistogram.Histogram
	sum   float64
	min   float64
	max   float64
	count int64
}

func newTrend() *Trend {
	return &Trend{hist: hdrhistogram.New(1, trendMaxMicros, trendSigFigs)}
}

// Add records a sample in milliseconds. Negative and NaN samples are
// recorded as zero.
func (t *Trend) Add(ms float64) {
	if ms < 0 || math.IsNaN(ms) {
		ms = 0
	}

	micros := int64(math.Round(ms * 1000))
	if micros > trendMaxMicros {
		micros = trendMaxMicros
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// NOTE: HDR histogram RecordValue is not thread-safe.
	_ = t.hist.RecordValue(micros)

	if t.count == 0 || ms < t.min {
		t.min = ms
	}
	if t.count == 0 || ms > t.max {
		t.max = ms
	}
	t.sum += ms
	t.count++
}

// Count returns the number of samples recorded.
func (t *Trend) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Summary returns avg/min/med/max/p90/p95/p99 in milliseconds.
// An empty trend yields a zero summary.
func (t *Trend) Summary() TrendSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return TrendSummary{}
	}

	return TrendSummary{
		Avg:   t.sum / float64(t.count),
		Min:   t.min,
		Med:   t.quantile(50),
		Max:   t.max,
		P90:   t.quantile(90),
		P95:   t.quantile(95),
		P99:   t.quantile(99),
		Count: t.count,
	}
}

// quantile must be called with t.mu held. The result is clamped to the
// exact min/max so histogram bucketing never reports values outside them.
func (t *Trend) quantile(q float64) float64 {
	v := float64(t.hist.ValueAtQuantile(q)) / 1000
	return math.Min(math.Max(v, t.min), t.max)
}

// TrendSummary is a point-in-time view of a trend.
type TrendSummary struct {
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Med   float64 `json:"med"`
	Max   float64 `json:"max"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int64   `json:"count"`
}

// GaugeSummary is a point-in-time view of a gauge.
type GaugeSummary struct {
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// RateSummary is a point-in-time view of a rate.
type RateSummary struct {
	Value  float64 `json:"value"`
	Passes int64   `json:"passes"`
	Fails  int64   `json:"fails"`
}

// CheckSummary is a point-in-time view of a check.
type CheckSummary struct {
	Passes int64 `json:"passes"`
	Fails  int64 `json:"fails"`
}
