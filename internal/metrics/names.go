package metrics

// Engine metrics, recorded by the load generator.
const (
	HTTPReqs          = "http_reqs"
	HTTPReqDuration   = "http_req_duration"
	HTTPReqFailed     = "http_req_failed"
	DataSent          = "data_sent"
	DataReceived      = "data_received"
	VUs               = "vus"
	VUsMax            = "vus_max"
	Iterations        = "iterations"
	DroppedIterations = "dropped_iterations"
)

// Classifier metrics, recorded once per observed request.
const (
	TotalRequests         = "total_requests"
	FastResponses         = "fast_responses"
	DegradedResponses     = "degraded_responses"
	SlowResponses         = "slow_responses"
	Slow1To2s             = "slow_1_to_2s"
	Slow2To5s             = "slow_2_to_5s"
	Slow5sPlus            = "slow_5s_plus"
	RequestsTotalUnder1s  = "requests_total_under_1s"
	RequestsFailedUnder1s = "requests_failed_under_1s"
	CustomHTTPReqDuration = "custom_http_req_duration"
	CustomFailureRate     = "custom_failure_rate"
	SpikeLatencyDuration  = "spike_latency_duration"
	RequestsPerSecond     = "requests_per_second"
	RequestQueueWaitTime  = "request_queue_wait_time"
	ActiveVUsGauge        = "active_vus_gauge"
	ActiveVUApprox        = "active_vu_approx"
	HTTPStatusPrefix      = "http_status_"
	CheckStatusIs200      = "status is 200"
	CheckBodyNotEmpty     = "response body is not empty"
)

// StatusGroups lists the status group suffixes in reporting order.
var StatusGroups = []string{"0", "2xx", "3xx", "4xx", "5xx"}

// StatusGroupMetric returns the counter name for a status group.
func StatusGroupMetric(group string) string {
	return HTTPStatusPrefix + group
}
