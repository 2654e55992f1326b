package aggregate

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/loadcheck/internal/classifier"
	"github.com/wesleyorama2/loadcheck/internal/metrics"
	"github.com/wesleyorama2/loadcheck/internal/profile"
)

func testInfo() RunInfo {
	return RunInfo{
		RunID: "6f1c2a9e-3b7d-4f0a-9c55-2d8e1b4a7c10",
		Descriptor: profile.Descriptor{
			Name:             profile.RampingArrivalRate,
			SubScenario:      profile.SubStress,
			TargetRPS:        29,
			TargetResponseMs: 1000,
		},
		Environment: "staging",
		Endpoint:    "v1/orders",
		GivenVUs:    100,
	}
}

func populatedRun(t *testing.T) (*metrics.Registry, classifier.State) {
	t.Helper()
	reg := metrics.NewRegistry()
	c := classifier.New(&classifier.RunContext{Registry: reg})
	base := time.Unix(1700000000, 0)

	for i := 0; i < 120; i++ {
		status := 200
		if i%40 == 0 {
			status = 503
		}
		d := 300.0
		if i%10 == 0 {
			d = 2500
		}
		c.Observe(outcome(base.Add(time.Duration(i)*50*time.Millisecond), d, status))
		reg.Counter(metrics.HTTPReqs).Inc()
		reg.Trend(metrics.HTTPReqDuration).Add(d)
		reg.Rate(metrics.HTTPReqFailed).Add(status >= 400)
	}
	reg.Counter(metrics.DataSent).Add(20480)
	reg.Counter(metrics.DataReceived).Add(51200)

	return reg, c.State()
}

func outcome(ts time.Time, d float64, status int) classifier.Outcome {
	return classifier.Outcome{Timestamp: ts, DurationMs: d, Status: status, BodyNonEmpty: true}
}

func TestAggregate_Fields(t *testing.T) {
	reg, state := populatedRun(t)

	s := Aggregate(reg, state, testInfo(), 6*time.Second)

	assert.Equal(t, "ramping_arrival_rate", s.Scenario.Name)
	assert.Equal(t, "stress", s.Scenario.SubScenario)
	assert.Equal(t, "staging", s.Scenario.Environment)
	assert.Equal(t, 100, s.Scenario.GivenVUs)

	assert.Equal(t, int64(120), s.Metrics.TotalRequests)
	assert.Equal(t, 20.0, s.Metrics.AvgRPS)
	assert.Equal(t, int64(108), s.Metrics.RequestsSuccessUnder1s)
	assert.Equal(t, int64(12), s.Metrics.DegradedResponses)
	assert.Equal(t, int64(12), s.Metrics.Requests2To5s)
	assert.Equal(t, int64(12), s.Metrics.SpikeLatencyDuration.Count)
	assert.Equal(t, 2500.0, s.Metrics.SpikeLatencyDuration.Max)
	assert.Equal(t, int64(117), s.Metrics.HTTPStatus2xx)
	assert.Equal(t, int64(3), s.Metrics.HTTPStatus5xx)
	assert.Equal(t, int64(20480), s.Metrics.DataSent)
	assert.Equal(t, int64(51200), s.Metrics.DataReceived)
	assert.InDelta(t, 0.025, s.Metrics.FailedRequests, 1e-9)

	assert.Equal(t, int64(3), s.State.Non200Count)
	assert.False(t, s.State.Aborted)
	assert.Equal(t, 6000.0, s.State.TestRunDurationMs)
	assert.Equal(t, DefaultThresholds(), s.Thresholds)
	assert.Equal(t, int64(3), s.Metrics.Checks[metrics.CheckStatusIs200].Fails)
}

func TestAggregate_EmptyRunHasNoNaN(t *testing.T) {
	reg := metrics.NewRegistry()
	c := classifier.New(&classifier.RunContext{Registry: reg})

	s := Aggregate(reg, c.State(), testInfo(), 0)

	assert.Equal(t, 0.0, s.Metrics.AvgRPS)
	assert.Equal(t, metrics.TrendSummary{}, s.Metrics.HTTPReqDuration)
	assert.Equal(t, int64(0), s.Metrics.SpikeLatencyDuration.Count)

	data, err := Encode(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "NaN")
	assert.True(t, gjson.ValidBytes(data))
	assert.Equal(t, int64(0), gjson.GetBytes(data, "metrics.request_queue_wait_time.count").Int())
}

func TestAvgRPS(t *testing.T) {
	assert.Equal(t, 29.0, AvgRPS(290, 10000))
	assert.Equal(t, 33.33, AvgRPS(100, 3000))
	assert.Equal(t, 5000.0, AvgRPS(5, 0))
	assert.Equal(t, 5000.0, AvgRPS(5, math.NaN()))
}

func TestEncode_RoundTrip(t *testing.T) {
	reg, state := populatedRun(t)
	s := Aggregate(reg, state, testInfo(), 7*time.Second)

	first, err := Encode(s)
	require.NoError(t, err)

	decoded, err := Decode(first)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)

	second, err := Encode(decoded)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second), "re-encoded snapshot differs")

	assert.True(t, bytes.HasSuffix(first, []byte("}\n")))
	assert.Contains(t, string(first), "\n  \"metrics\": {")
	assert.Contains(t, string(first), `"p(90)<1000"`)
}

func TestWriteReadFile(t *testing.T) {
	reg, state := populatedRun(t)
	s := Aggregate(reg, state, testInfo(), 5*time.Second)

	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, WriteFile(path, s))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestNewRunInfo(t *testing.T) {
	a := NewRunInfo(testInfo().Descriptor, "prod", "users", 50)
	b := NewRunInfo(testInfo().Descriptor, "prod", "users", 50)
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
}
