package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/wesleyorama2/loadcheck/internal/classifier"
	"github.com/wesleyorama2/loadcheck/internal/metrics"
	"github.com/wesleyorama2/loadcheck/internal/profile"
)

// RunInfo carries the run identity and operator settings into the snapshot.
type RunInfo struct {
	RunID       string
	Descriptor  profile.Descriptor
	Environment string
	Endpoint    string
	GivenVUs    int

	// Thresholds defaults to DefaultThresholds when nil.
	Thresholds map[string][]string
}

// NewRunInfo creates a RunInfo with a fresh run id.
func NewRunInfo(d profile.Descriptor, environment, endpoint string, givenVUs int) RunInfo {
	return RunInfo{
		RunID:       uuid.NewString(),
		Descriptor:  d,
		Environment: environment,
		Endpoint:    endpoint,
		GivenVUs:    givenVUs,
	}
}

// Aggregate builds the end-of-run snapshot from the registry and the final
// classifier state. Recorded values are only read.
func Aggregate(reg *metrics.Registry, state classifier.State, info RunInfo, runDuration time.Duration) *Snapshot {
	durationMs := float64(runDuration) / float64(time.Millisecond)
	total := reg.Counter(metrics.TotalRequests).Value()

	thresholds := info.Thresholds
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}

	checks := reg.Checks()

	return &Snapshot{
		RunID: info.RunID,
		Scenario: ScenarioInfo{
			Name:             string(info.Descriptor.Name),
			SubScenario:      string(info.Descriptor.SubScenario),
			Environment:      info.Environment,
			Endpoint:         info.Endpoint,
			TargetRPS:        finite(info.Descriptor.TargetRPS),
			TargetResponseMs: finite(info.Descriptor.TargetResponseMs),
			GivenVUs:         info.GivenVUs,
		},
		Metrics: Metrics{
			AvgRPS:   AvgRPS(total, durationMs),
			HTTPReqs: reg.Counter(metrics.HTTPReqs).Value(),

			TotalRequests:          total,
			RequestsSuccessUnder1s: state.Latency.Under1s,
			DegradedResponses:      reg.Counter(metrics.DegradedResponses).Value(),
			SlowResponses:          reg.Counter(metrics.SlowResponses).Value(),
			Requests1To2s:          state.Latency.From1To2s,
			Requests2To5s:          state.Latency.From2To5s,
			RequestsOver5s:         state.Latency.Over5s,
			RequestsTotalUnder1s:   reg.Counter(metrics.RequestsTotalUnder1s).Value(),
			RequestsFailedUnder1s:  reg.Counter(metrics.RequestsFailedUnder1s).Value(),

			DataSent:     reg.Counter(metrics.DataSent).Value(),
			DataReceived: reg.Counter(metrics.DataReceived).Value(),

			FailedRequests:    finite(reg.Rate(metrics.HTTPReqFailed).Value()),
			CustomFailureRate: finite(reg.Rate(metrics.CustomFailureRate).Value()),

			HTTPReqDuration:       trend(reg, metrics.HTTPReqDuration),
			CustomHTTPReqDuration: trend(reg, metrics.CustomHTTPReqDuration),
			SpikeLatencyDuration:  trend(reg, metrics.SpikeLatencyDuration),
			RequestQueueWaitTime:  trend(reg, metrics.RequestQueueWaitTime),
			RequestsPerSecond:     trend(reg, metrics.RequestsPerSecond),

			ActiveVUs:         gauge(reg, metrics.ActiveVUsGauge),
			ActiveVUApprox:    reg.Counter(metrics.ActiveVUApprox).Value(),
			VUs:               gauge(reg, metrics.VUs),
			VUsMax:            finite(reg.Gauge(metrics.VUsMax).Summary().Max),
			Iterations:        reg.Counter(metrics.Iterations).Value(),
			DroppedIterations: reg.Counter(metrics.DroppedIterations).Value(),

			HTTPStatus0:   state.StatusGroups["0"],
			HTTPStatus2xx: state.StatusGroups["2xx"],
			HTTPStatus3xx: state.StatusGroups["3xx"],
			HTTPStatus4xx: state.StatusGroups["4xx"],
			HTTPStatus5xx: state.StatusGroups["5xx"],

			Checks: checks,
		},
		Thresholds: thresholds,
		State: RunState{
			TestRunDurationMs: finite(durationMs),
			Aborted:           state.Aborted,
			AbortReason:       state.AbortReason,
			Non200Count:       state.Non200Count,
		},
	}
}

// AvgRPS returns total/seconds rounded to two decimals, flooring the
// duration at 1ms.
func AvgRPS(total int64, durationMs float64) float64 {
	if durationMs < 1 || math.IsNaN(durationMs) {
		durationMs = 1
	}
	return finite(math.Round(float64(total)/(durationMs/1000)*100) / 100)
}

func trend(reg *metrics.Registry, name string) metrics.TrendSummary {
	if !reg.HasTrend(name) {
		return metrics.TrendSummary{}
	}
	s := reg.Trend(name).Summary()
	return metrics.TrendSummary{
		Avg:   finite(s.Avg),
		Min:   finite(s.Min),
		Med:   finite(s.Med),
		Max:   finite(s.Max),
		P90:   finite(s.P90),
		P95:   finite(s.P95),
		P99:   finite(s.P99),
		Count: s.Count,
	}
}

func gauge(reg *metrics.Registry, name string) metrics.GaugeSummary {
	s := reg.Gauge(name).Summary()
	return metrics.GaugeSummary{Value: finite(s.Value), Min: finite(s.Min), Max: finite(s.Max)}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Encode serializes the snapshot as 2-space indented JSON with a trailing
// newline.
func Encode(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot document.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}

// WriteFile encodes the snapshot to path.
func WriteFile(path string, s *Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	return nil
}

// ReadFile reads and decodes the snapshot at path.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	return Decode(data)
}
