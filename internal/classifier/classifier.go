// Package classifier buckets completed requests by latency and status while
// a load test is running, and trips the run abort after sustained failures.
package classifier

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/loadcheck/internal/metrics"
	"github.com/wesleyorama2/loadcheck/internal/profile"
)

const (
	// FastThresholdMs separates fast responses from degraded ones.
	FastThresholdMs = 1000

	// SpikeThresholdMs is the minimum duration recorded as spike latency.
	SpikeThresholdMs = 2000

	// AbortThreshold is the number of non-200 responses that aborts the run.
	AbortThreshold = 70

	// AbortReason is passed to the Aborter when the run is aborted.
	AbortReason = "too many non-200 responses"
)

// Aborter stops the run. It is called at most once per classifier.
type Aborter interface {
	Abort(reason string)
}

// AborterFunc adapts a function to the Aborter interface.
type AborterFunc func(reason string)

// Abort calls f(reason).
func (f AborterFunc) Abort(reason string) { f(reason) }

// RunContext carries the per-run collaborators of a classifier.
type RunContext struct {
	Registry   *metrics.Registry
	Descriptor profile.Descriptor
	Aborter    Aborter
	Logger     *zap.Logger

	// Clock is used when an outcome carries no timestamp. Defaults to time.Now.
	Clock func() time.Time
}

// Outcome describes one completed request.
type Outcome struct {
	Timestamp  time.Time
	DurationMs float64

	// Status is the HTTP status code, 0 when no response was received.
	Status       int
	BodyNonEmpty bool

	// QueuedAt and SentAt are optional; queue wait is recorded only when
	// both are set.
	QueuedAt time.Time
	SentAt   time.Time

	VU int
}

// LatencyBuckets holds the per-range request counts.
type LatencyBuckets struct {
	Under1s   int64 `json:"under_1s"`
	From1To2s int64 `json:"1_to_2s"`
	From2To5s int64 `json:"2_to_5s"`
	Over5s    int64 `json:"over_5s"`
}

// State is a copy of the classifier's accumulated state.
type State struct {
	Non200Count   int64
	CurrentSecond int64
	CurrentCount  int64
	Latency       LatencyBuckets
	StatusGroups  map[string]int64
	Aborted       bool
	AbortReason   string
}

// Classifier accumulates request outcomes into the run's metrics registry.
//
// Observe is safe for concurrent use by many VUs. The non-200 counter is an
// atomic whose Add result decides the abort, so exactly one caller observes
// the threshold.
type Classifier struct {
	rc     *RunContext
	logger *zap.Logger
	clock  func() time.Time

	total        *metrics.Counter
	fast         *metrics.Counter
	degraded     *metrics.Counter
	slow         *metrics.Counter
	slow1To2     *metrics.Counter
	slow2To5     *metrics.Counter
	slow5Plus    *metrics.Counter
	under1sTotal *metrics.Counter
	under1sFail  *metrics.Counter
	duration     *metrics.Trend
	spike        *metrics.Trend
	rps          *metrics.Trend
	queueWait    *metrics.Trend
	failureRate  *metrics.Rate
	statusGroups map[string]*metrics.Counter
	statusCheck  *metrics.Check
	bodyCheck    *metrics.Check
	vuGauge      *metrics.Gauge
	vuApprox     *metrics.Counter

	non200      atomic.Int64
	aborted     atomic.Bool
	abortReason atomic.Value

	bucketMu     sync.Mutex
	bucketSecond int64
	bucketCount  int64
	bucketOpen   bool
}

// New creates a classifier bound to the given run context.
func New(rc *RunContext) *Classifier {
	logger := rc.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := rc.Clock
	if clock == nil {
		clock = time.Now
	}

	reg := rc.Registry
	c := &Classifier{
		rc:           rc,
		logger:       logger,
		clock:        clock,
		total:        reg.Counter(metrics.TotalRequests),
		fast:         reg.Counter(metrics.FastResponses),
		degraded:     reg.Counter(metrics.DegradedResponses),
		slow:         reg.Counter(metrics.SlowResponses),
		slow1To2:     reg.Counter(metrics.Slow1To2s),
		slow2To5:     reg.Counter(metrics.Slow2To5s),
		slow5Plus:    reg.Counter(metrics.Slow5sPlus),
		under1sTotal: reg.Counter(metrics.RequestsTotalUnder1s),
		under1sFail:  reg.Counter(metrics.RequestsFailedUnder1s),
		duration:     reg.Trend(metrics.CustomHTTPReqDuration),
		spike:        reg.Trend(metrics.SpikeLatencyDuration),
		rps:          reg.Trend(metrics.RequestsPerSecond),
		queueWait:    reg.Trend(metrics.RequestQueueWaitTime),
		failureRate:  reg.Rate(metrics.CustomFailureRate),
		statusGroups: make(map[string]*metrics.Counter, len(metrics.StatusGroups)),
		statusCheck:  reg.Check(metrics.CheckStatusIs200),
		bodyCheck:    reg.Check(metrics.CheckBodyNotEmpty),
		vuGauge:      reg.Gauge(metrics.ActiveVUsGauge),
		vuApprox:     reg.Counter(metrics.ActiveVUApprox),
	}
	for _, g := range metrics.StatusGroups {
		c.statusGroups[g] = reg.Counter(metrics.StatusGroupMetric(g))
	}
	c.abortReason.Store("")

	return c
}

// BeginIteration records that a VU started an iteration.
func (c *Classifier) BeginIteration(vu int) {
	c.vuGauge.Set(float64(vu))
	c.vuApprox.Inc()
}

// Observe classifies one completed request. It never fails.
func (c *Classifier) Observe(o Outcome) {
	d := o.DurationMs
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		c.logger.Warn("invalid request duration recorded as 0",
			zap.Float64("duration_ms", d),
			zap.Int("vu", o.VU),
		)
		d = 0
	}

	c.total.Inc()
	c.duration.Add(d)

	if d < FastThresholdMs {
		c.fast.Inc()
		c.under1sTotal.Inc()
		if o.Status == 0 || o.Status >= 400 {
			c.under1sFail.Inc()
		}
	} else {
		c.degraded.Inc()
		c.slow.Inc()
		switch {
		case d < 2000:
			c.slow1To2.Inc()
		case d < 5000:
			c.slow2To5.Inc()
		default:
			c.slow5Plus.Inc()
		}
	}

	if d >= SpikeThresholdMs {
		c.spike.Add(d)
	}

	success := o.Status != 0 && o.Status < 400
	c.failureRate.Add(!success)

	c.statusGroups[StatusGroup(o.Status)].Inc()

	c.statusCheck.Record(o.Status == 200)
	c.bodyCheck.Record(o.BodyNonEmpty)

	if o.Status != 200 {
		c.logger.Debug("non-200 response", zap.Int("status", o.Status), zap.Int("vu", o.VU))
		if c.non200.Add(1) == AbortThreshold {
			c.abort(AbortReason)
		}
	}

	ts := o.Timestamp
	if ts.IsZero() {
		ts = c.clock()
	}
	c.trackSecond(ts.Unix())

	if !o.QueuedAt.IsZero() && !o.SentAt.IsZero() {
		wait := float64(o.SentAt.Sub(o.QueuedAt)) / float64(time.Millisecond)
		c.queueWait.Add(math.Max(wait, 0))
	}
}

func (c *Classifier) abort(reason string) {
	if !c.aborted.CompareAndSwap(false, true) {
		return
	}
	c.abortReason.Store(reason)

	c.logger.Error("aborting run",
		zap.String("reason", reason),
		zap.Int64("non_200_count", c.non200.Load()),
	)

	if c.rc.Aborter != nil {
		c.rc.Aborter.Abort(reason)
	}
}

// trackSecond flushes the previous second's count into the RPS trend when
// the wall-clock second moves forward. Outcomes stamped before the open
// second lost the race for bucketMu; they count into the open bucket and
// never flush it.
func (c *Classifier) trackSecond(second int64) {
	c.bucketMu.Lock()
	defer c.bucketMu.Unlock()

	if c.bucketOpen && second <= c.bucketSecond {
		c.bucketCount++
		return
	}

	if c.bucketOpen {
		c.rps.Add(float64(c.bucketCount))
	}
	c.bucketSecond = second
	c.bucketCount = 1
	c.bucketOpen = true
}

// Aborted reports whether the abort threshold was reached.
func (c *Classifier) Aborted() bool {
	return c.aborted.Load()
}

// State returns a copy of the accumulated state.
func (c *Classifier) State() State {
	c.bucketMu.Lock()
	second, count := c.bucketSecond, c.bucketCount
	c.bucketMu.Unlock()

	groups := make(map[string]int64, len(c.statusGroups))
	for g, counter := range c.statusGroups {
		groups[g] = counter.Value()
	}

	return State{
		Non200Count:   c.non200.Load(),
		CurrentSecond: second,
		CurrentCount:  count,
		Latency: LatencyBuckets{
			Under1s:   c.fast.Value(),
			From1To2s: c.slow1To2.Value(),
			From2To5s: c.slow2To5.Value(),
			Over5s:    c.slow5Plus.Value(),
		},
		StatusGroups: groups,
		Aborted:      c.aborted.Load(),
		AbortReason:  c.abortReason.Load().(string),
	}
}

// StatusGroup maps a status code to its group key. Absent and
// out-of-range codes map to "0".
func StatusGroup(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "0"
	}
}
