package classifier

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wesleyorama2/loadcheck/internal/metrics"
)

type recordingAborter struct {
	mu      sync.Mutex
	calls   int
	reasons []string
}

func (a *recordingAborter) Abort(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.reasons = append(a.reasons, reason)
}

func newTestClassifier(t *testing.T) (*Classifier, *metrics.Registry, *recordingAborter) {
	t.Helper()
	reg := metrics.NewRegistry()
	ab := &recordingAborter{}
	c := New(&RunContext{Registry: reg, Aborter: ab, Logger: zap.NewNop()})
	return c, reg, ab
}

func TestObserve_FastSuccess(t *testing.T) {
	c, reg, ab := newTestClassifier(t)
	start := time.Unix(1700000000, 0)

	for i := 0; i < 1000; i++ {
		c.Observe(Outcome{
			Timestamp:    start.Add(time.Duration(i) * time.Millisecond),
			DurationMs:   500,
			Status:       200,
			BodyNonEmpty: true,
		})
	}

	st := c.State()
	assert.Equal(t, int64(1000), st.Latency.Under1s)
	assert.Equal(t, int64(0), reg.Counter(metrics.DegradedResponses).Value())
	assert.Equal(t, int64(0), st.Non200Count)
	assert.False(t, st.Aborted)
	assert.Equal(t, 0, ab.calls)

	assert.Equal(t, int64(1000), reg.Counter(metrics.TotalRequests).Value())
	assert.Equal(t, int64(1000), reg.Counter(metrics.RequestsTotalUnder1s).Value())
	assert.Equal(t, int64(0), reg.Counter(metrics.RequestsFailedUnder1s).Value())
	assert.Equal(t, int64(1000), st.StatusGroups["2xx"])
	assert.Equal(t, 0.0, reg.Rate(metrics.CustomFailureRate).Value())
	assert.Equal(t, int64(0), reg.Trend(metrics.SpikeLatencyDuration).Count())

	checks := reg.Checks()
	assert.Equal(t, int64(1000), checks[metrics.CheckStatusIs200].Passes)
	assert.Equal(t, int64(1000), checks[metrics.CheckBodyNotEmpty].Passes)
}

func TestObserve_AbortsExactlyOn70th(t *testing.T) {
	c, _, ab := newTestClassifier(t)

	for i := 1; i < AbortThreshold; i++ {
		c.Observe(Outcome{DurationMs: 100, Status: 500})
		require.False(t, c.Aborted(), "aborted after %d failures", i)
	}
	require.Equal(t, 0, ab.calls)

	c.Observe(Outcome{DurationMs: 100, Status: 500})
	assert.True(t, c.Aborted())
	assert.Equal(t, 1, ab.calls)
	assert.Equal(t, []string{AbortReason}, ab.reasons)

	// Further failures never re-trigger the abort.
	for i := 0; i < 10; i++ {
		c.Observe(Outcome{DurationMs: 100, Status: 503})
	}
	assert.Equal(t, 1, ab.calls)

	st := c.State()
	assert.True(t, st.Aborted)
	assert.Equal(t, AbortReason, st.AbortReason)
	assert.Equal(t, int64(80), st.Non200Count)
	assert.Equal(t, int64(80), st.StatusGroups["5xx"])
}

func TestObserve_ConcurrentAbortIsOneShot(t *testing.T) {
	reg := metrics.NewRegistry()
	var calls atomic.Int32
	c := New(&RunContext{
		Registry: reg,
		Aborter:  AborterFunc(func(string) { calls.Add(1) }),
	})

	var wg sync.WaitGroup
	for w := 0; w < 20; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				c.Observe(Outcome{DurationMs: 50, Status: 404})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(200), c.State().Non200Count)
	assert.Equal(t, int64(200), reg.Counter(metrics.TotalRequests).Value())
}

func TestObserve_LatencyBoundaries(t *testing.T) {
	tests := []struct {
		durationMs float64
		want       LatencyBuckets
		spike      int64
	}{
		{999.99, LatencyBuckets{Under1s: 1}, 0},
		{1000, LatencyBuckets{From1To2s: 1}, 0},
		{1999, LatencyBuckets{From1To2s: 1}, 0},
		{2000, LatencyBuckets{From2To5s: 1}, 1},
		{4999, LatencyBuckets{From2To5s: 1}, 1},
		{5000, LatencyBuckets{Over5s: 1}, 1},
	}

	for _, tt := range tests {
		c, reg, _ := newTestClassifier(t)
		c.Observe(Outcome{DurationMs: tt.durationMs, Status: 200})

		st := c.State()
		assert.Equal(t, tt.want, st.Latency, "duration %v", tt.durationMs)
		assert.Equal(t, tt.spike, reg.Trend(metrics.SpikeLatencyDuration).Count(), "duration %v", tt.durationMs)

		degraded := reg.Counter(metrics.DegradedResponses).Value()
		slow := reg.Counter(metrics.SlowResponses).Value()
		if tt.durationMs >= FastThresholdMs {
			assert.Equal(t, int64(1), degraded)
			assert.Equal(t, int64(1), slow)
		} else {
			assert.Equal(t, int64(0), degraded)
		}
	}
}

func TestObserve_FailuresUnder1s(t *testing.T) {
	c, reg, _ := newTestClassifier(t)

	c.Observe(Outcome{DurationMs: 10, Status: 0})
	c.Observe(Outcome{DurationMs: 10, Status: 404})
	c.Observe(Outcome{DurationMs: 10, Status: 302})
	c.Observe(Outcome{DurationMs: 1500, Status: 500})

	assert.Equal(t, int64(3), reg.Counter(metrics.RequestsTotalUnder1s).Value())
	assert.Equal(t, int64(2), reg.Counter(metrics.RequestsFailedUnder1s).Value())
	assert.Equal(t, 0.75, reg.Rate(metrics.CustomFailureRate).Value())
}

func TestStatusGroup(t *testing.T) {
	tests := map[int]string{
		0:   "0",
		101: "0",
		200: "2xx",
		204: "2xx",
		301: "3xx",
		404: "4xx",
		503: "5xx",
		600: "0",
	}
	for status, want := range tests {
		assert.Equal(t, want, StatusGroup(status), "status %d", status)
	}
}

func TestObserve_RPSBuckets(t *testing.T) {
	c, reg, _ := newTestClassifier(t)
	base := time.Unix(1700000000, 0)

	// Three requests in the first second, two in the next, one in the third.
	for _, offset := range []time.Duration{0, 100 * time.Millisecond, 900 * time.Millisecond,
		1100 * time.Millisecond, 1500 * time.Millisecond, 2 * time.Second} {
		c.Observe(Outcome{Timestamp: base.Add(offset), DurationMs: 10, Status: 200})
	}

	rps := reg.Trend(metrics.RequestsPerSecond).Summary()
	assert.Equal(t, int64(2), rps.Count)
	assert.Equal(t, 3.0, rps.Max)
	assert.Equal(t, 2.0, rps.Min)

	st := c.State()
	assert.Equal(t, base.Unix()+2, st.CurrentSecond)
	assert.Equal(t, int64(1), st.CurrentCount)
}

func TestObserve_FirstObservationDoesNotFlush(t *testing.T) {
	c, reg, _ := newTestClassifier(t)
	c.Observe(Outcome{Timestamp: time.Unix(1700000000, 0), DurationMs: 10, Status: 200})
	assert.Equal(t, int64(0), reg.Trend(metrics.RequestsPerSecond).Count())
}

func TestObserve_UsesClockWhenTimestampMissing(t *testing.T) {
	reg := metrics.NewRegistry()
	now := time.Unix(1700000042, 0)
	c := New(&RunContext{Registry: reg, Clock: func() time.Time { return now }})

	c.Observe(Outcome{DurationMs: 10, Status: 200})
	assert.Equal(t, now.Unix(), c.State().CurrentSecond)
}

func TestObserve_QueueWait(t *testing.T) {
	c, reg, _ := newTestClassifier(t)
	queued := time.Unix(1700000000, 0)

	c.Observe(Outcome{DurationMs: 10, Status: 200, QueuedAt: queued, SentAt: queued.Add(25 * time.Millisecond)})
	c.Observe(Outcome{DurationMs: 10, Status: 200, QueuedAt: queued})

	wait := reg.Trend(metrics.RequestQueueWaitTime).Summary()
	assert.Equal(t, int64(1), wait.Count)
	assert.Equal(t, 25.0, wait.Max)
}

func TestObserve_NegativeDurationLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := metrics.NewRegistry()
	c := New(&RunContext{Registry: reg, Logger: zap.New(core)})

	c.Observe(Outcome{DurationMs: -12, Status: 200})

	assert.Equal(t, int64(1), c.State().Latency.Under1s)
	assert.Equal(t, 0.0, reg.Trend(metrics.CustomHTTPReqDuration).Summary().Max)
	require.Equal(t, 1, logs.FilterMessage("invalid request duration recorded as 0").Len())
}

func TestBeginIteration(t *testing.T) {
	c, reg, _ := newTestClassifier(t)
	c.BeginIteration(3)
	c.BeginIteration(1)
	c.BeginIteration(7)

	g := reg.Gauge(metrics.ActiveVUsGauge).Summary()
	assert.Equal(t, 7.0, g.Value)
	assert.Equal(t, 1.0, g.Min)
	assert.Equal(t, 7.0, g.Max)
	assert.Equal(t, int64(3), reg.Counter(metrics.ActiveVUApprox).Value())
}

func TestObserve_RPSBucketsOutOfOrder(t *testing.T) {
	c, reg, _ := newTestClassifier(t)
	base := time.Unix(1700000000, 0)

	// The 0.999s outcome reaches the bucket after the 1.001s one.
	for _, offset := range []time.Duration{900 * time.Millisecond, 1001 * time.Millisecond,
		999 * time.Millisecond, 1500 * time.Millisecond, 2100 * time.Millisecond} {
		c.Observe(Outcome{Timestamp: base.Add(offset), DurationMs: 10, Status: 200})
	}

	rps := reg.Trend(metrics.RequestsPerSecond).Summary()
	assert.Equal(t, int64(2), rps.Count)
	assert.Equal(t, 1.0, rps.Min)
	assert.Equal(t, 3.0, rps.Max)

	st := c.State()
	assert.Equal(t, base.Unix()+2, st.CurrentSecond)
	assert.Equal(t, int64(1), st.CurrentCount)
}
