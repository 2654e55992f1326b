// Package aggregate folds the live metrics of a finished run into a
// persisted JSON snapshot.
package aggregate

import (
	"github.com/wesleyorama2/loadcheck/internal/metrics"
)

// Snapshot is the end-of-run document written to summary.json.
type Snapshot struct {
	RunID      string              `json:"run_id"`
	Scenario   ScenarioInfo        `json:"scenario"`
	Metrics    Metrics             `json:"metrics"`
	Thresholds map[string][]string `json:"thresholds"`
	State      RunState            `json:"state"`
}

// ScenarioInfo describes what was run and against which target.
type ScenarioInfo struct {
	Name             string  `json:"name"`
	SubScenario      string  `json:"sub_scenario"`
	Environment      string  `json:"environment"`
	Endpoint         string  `json:"endpoint"`
	TargetRPS        float64 `json:"target_rps"`
	TargetResponseMs float64 `json:"target_response_ms"`
	GivenVUs         int     `json:"given_vus"`
}

// Metrics holds the raw numbers of a run. No verdicts are stored here.
type Metrics struct {
	AvgRPS   float64 `json:"avg_rps"`
	HTTPReqs int64   `json:"http_reqs"`

	TotalRequests          int64 `json:"total_requests"`
	RequestsSuccessUnder1s int64 `json:"requests_success_under_1s"`
	DegradedResponses      int64 `json:"degraded_responses"`
	SlowResponses          int64 `json:"slow_responses"`
	Requests1To2s          int64 `json:"requests_1_2s"`
	Requests2To5s          int64 `json:"requests_2_5s"`
	RequestsOver5s         int64 `json:"requests_over_5s"`
	RequestsTotalUnder1s   int64 `json:"requests_total_under_1s"`
	RequestsFailedUnder1s  int64 `json:"requests_failed_under_1s"`

	// DataSent and DataReceived are in bytes.
	DataSent     int64 `json:"data_sent"`
	DataReceived int64 `json:"data_received"`

	// FailedRequests is the http_req_failed rate in [0,1].
	FailedRequests    float64 `json:"failed_requests"`
	CustomFailureRate float64 `json:"custom_failure_rate"`

	HTTPReqDuration       metrics.TrendSummary `json:"http_req_duration"`
	CustomHTTPReqDuration metrics.TrendSummary `json:"custom_http_req_duration"`
	SpikeLatencyDuration  metrics.TrendSummary `json:"spike_latency_duration"`
	RequestQueueWaitTime  metrics.TrendSummary `json:"request_queue_wait_time"`
	RequestsPerSecond     metrics.TrendSummary `json:"requests_per_second"`

	ActiveVUs         metrics.GaugeSummary `json:"active_vus_gauge"`
	ActiveVUApprox    int64                `json:"active_vu_approx"`
	VUs               metrics.GaugeSummary `json:"vus"`
	VUsMax            float64              `json:"vus_max"`
	Iterations        int64                `json:"iterations"`
	DroppedIterations int64                `json:"dropped_iterations"`

	HTTPStatus0   int64 `json:"http_status_0"`
	HTTPStatus2xx int64 `json:"http_status_2xx"`
	HTTPStatus3xx int64 `json:"http_status_3xx"`
	HTTPStatus4xx int64 `json:"http_status_4xx"`
	HTTPStatus5xx int64 `json:"http_status_5xx"`

	Checks map[string]metrics.CheckSummary `json:"checks"`
}

// RunState records how the run ended.
type RunState struct {
	TestRunDurationMs float64 `json:"test_run_duration_ms"`
	Aborted           bool    `json:"aborted"`
	AbortReason       string  `json:"abort_reason"`
	Non200Count       int64   `json:"non_200_count"`
}

// DefaultThresholds returns the threshold expressions declared for every run.
func DefaultThresholds() map[string][]string {
	return map[string][]string{
		metrics.HTTPReqDuration:       {"p(90)<1000", "p(95)<1100", "p(99)<1200"},
		metrics.CustomHTTPReqDuration: {"p(50)<600"},
		metrics.SpikeLatencyDuration:  {"p(90)<2000", "p(95)<2500"},
		metrics.HTTPReqFailed:         {"rate<0.01"},
		metrics.CustomFailureRate:     {"rate<0.01"},
		metrics.RequestsTotalUnder1s:  {"count>0"},
		metrics.RequestsFailedUnder1s: {"count>=0"},
	}
}
