package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/loadcheck/internal/output"
)

const (
	notAvailable = "N/A"

	// msSwitch is where durations switch from ms to seconds.
	msSwitch = 1000

	passGlyph = "✅"
	failGlyph = "❌"
)

// Fixed report thresholds.
const (
	P90BoundMs      = 1000
	P95BoundMs      = 1100
	P99BoundMs      = 1200
	MinBoundMs      = 100
	MaxBoundMs      = 1000
	AvgBoundMs      = 1000
	FailureRateMax  = 0.01
	AvgRPSBound     = 29
	BorderlineMs    = 1000
	AbortNon200Mark = 69
)

// Row is one line of a metric/goal/result/status table.
type Row struct {
	Metric string
	Goal   string
	Result string
	Status string
}

// SlowRange is one line of the slow request table.
type SlowRange struct {
	Range string
	Count string
	Note  string
}

// StatusGroupRow is one line of the status code table.
type StatusGroupRow struct {
	Group string
	Total int64
}

// View holds every value rendered into the Markdown report.
type View struct {
	AbortStatus   string
	Environment   string
	Endpoint      string
	Scenario      string
	SubScenario   string
	Duration      string
	GivenVUs      string
	ActiveVUsAvg  string
	ActiveVUsMax  string
	ActiveVUsEnd  string
	TotalRequests string
	Passed        string
	SuccessRate   string
	AvgRPS        string
	RPSVerdict    string
	AvgResponse   string
	FastRequests  string
	SlowRequests  string
	Degraded      string
	CustomFailure string

	Thresholds   []Row
	SlowRanges   []SlowRange
	Spike        []Row
	QueueWait    []Row
	StatusGroups []StatusGroupRow
	DataSentKB   string
	DataRecvKB   string

	AllPassed bool
}

// field is a lenient numeric read of one snapshot path.
type field struct {
	v  float64
	ok bool
}

func read(doc gjson.Result, path string) field {
	return numeric(doc.Get(path))
}

func numeric(r gjson.Result) field {
	if !r.Exists() || r.Type == gjson.Null {
		return field{}
	}
	switch r.Type {
	case gjson.Number:
		return field{v: r.Num, ok: true}
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return field{}
		}
		return field{v: v, ok: true}
	default:
		return field{}
	}
}

func (f field) or(fallback float64) float64 {
	if !f.ok {
		return fallback
	}
	return f.v
}

func (f field) ms() string {
	if !f.ok {
		return notAvailable
	}
	return output.FormatMs(f.v, msSwitch)
}

func (f field) percent() string {
	if !f.ok {
		return notAvailable
	}
	return output.Percent(f.v)
}

func (f field) count() string {
	return output.Count(int64(f.or(0)))
}

// below reports a strict-less-than pass; a missing value never passes.
func (f field) below(bound float64) bool {
	return f.ok && f.v < bound
}

func glyph(f field, bound float64, fail string) string {
	if !f.ok {
		return notAvailable
	}
	if f.below(bound) {
		return passGlyph
	}
	return fail
}

// verdictLabel grades a spike latency value against its bound.
func verdictLabel(f field, bound float64) string {
	switch {
	case !f.ok:
		return notAvailable
	case f.v < bound:
		return "✅ Good"
	case f.v < BorderlineMs:
		return "⚠️ Borderline (<1s)"
	default:
		return "❌ Exceeds Target"
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func stringOr(doc gjson.Result, path, fallback string) string {
	if s := doc.Get(path).String(); s != "" {
		return s
	}
	return fallback
}

// subScenarioLabel returns the sub-scenario shown in the report. Ramping
// runs only name stress and spike.
func subScenarioLabel(scenario, sub string) string {
	if sub == "" {
		return notAvailable
	}
	switch scenario {
	case "constant_arrival_rate":
		return sub
	case "ramping_arrival_rate":
		if sub == "stress" || sub == "spike" {
			return sub
		}
	}
	return notAvailable
}

func buildView(doc gjson.Result) *View {
	m := doc.Get("metrics")
	scenario := stringOr(doc, "scenario.name", notAvailable)

	non200 := read(doc, "state.non_200_count").or(0)
	aborted := doc.Get("state.aborted").Bool() || non200 > AbortNon200Mark
	abortStatus := "Test is not aborted."
	if aborted {
		abortStatus = "Test Aborted."
	}

	durationMs := read(doc, "state.test_run_duration_ms").or(1)
	if durationMs <= 0 {
		durationMs = 1
	}

	givenVUs := notAvailable
	if g := read(doc, "scenario.given_vus"); g.ok && g.v > 0 {
		givenVUs = formatNumber(g.v)
	}

	vuMin := read(m, "active_vus_gauge.min").or(0)
	vuMax := read(m, "active_vus_gauge.max").or(0)

	total := read(m, "total_requests").or(0)
	passed := read(m, "http_status_2xx").or(0) + read(m, "http_status_3xx").or(0)
	successRate := 0.0
	if total > 0 {
		successRate = passed / total
	}

	avgRPS := read(m, "avg_rps")
	rpsText, rpsVerdict := notAvailable, notAvailable
	if avgRPS.ok {
		rpsText = fmt.Sprintf("%.2f", avgRPS.v)
		rpsVerdict = "✅ Reached expected load"
		if avgRPS.v < AvgRPSBound {
			rpsVerdict = "⚠️ Couldn’t reach full load target (slow responses)"
		}
	}

	slow1 := read(m, "requests_1_2s")
	slow2 := read(m, "requests_2_5s")
	slow5 := read(m, "requests_over_5s")

	v := &View{
		AbortStatus:   abortStatus,
		Environment:   stringOr(doc, "scenario.environment", notAvailable),
		Endpoint:      stringOr(doc, "scenario.endpoint", notAvailable),
		Scenario:      scenario,
		SubScenario:   subScenarioLabel(scenario, doc.Get("scenario.sub_scenario").String()),
		Duration:      fmt.Sprintf("%.2fs", durationMs/1000),
		GivenVUs:      givenVUs,
		ActiveVUsAvg:  formatNumber((vuMin + vuMax) / 2),
		ActiveVUsMax:  formatNumber(vuMax),
		ActiveVUsEnd:  formatNumber(read(m, "active_vus_gauge.value").or(0)),
		TotalRequests: output.Count(int64(total)),
		Passed:        output.Count(int64(passed)),
		SuccessRate:   output.Percent(successRate),
		AvgRPS:        rpsText,
		RPSVerdict:    rpsVerdict,
		AvgResponse:   read(m, "http_req_duration.avg").ms(),
		FastRequests:  read(m, "requests_success_under_1s").count(),
		SlowRequests:  output.Count(int64(slow1.or(0) + slow2.or(0) + slow5.or(0))),
		Degraded:      read(m, "degraded_responses").count(),
		CustomFailure: read(m, "custom_failure_rate").percent(),
		SlowRanges: []SlowRange{
			{"1–2s", slow1.count(), "Slightly slow – not ideal, but usually acceptable."},
			{"2–5s", slow2.count(), "Noticeably slow – may impact user experience"},
			{"5s+", slow5.count(), "Very slow – should be investigated immediately."},
		},
		DataSentKB:   output.KB(int64(read(m, "data_sent").or(0))),
		DataRecvKB:   output.KB(int64(read(m, "data_received").or(0))),
		StatusGroups: statusGroups(m),
	}

	v.Thresholds, v.AllPassed = thresholdRows(m)
	v.Spike = spikeRows(m.Get("spike_latency_duration"))
	v.QueueWait = queueRows(m.Get("request_queue_wait_time"))

	return v
}

func thresholdRows(m gjson.Result) ([]Row, bool) {
	p90 := read(m, "http_req_duration.p90")
	p95 := read(m, "http_req_duration.p95")
	p99 := read(m, "http_req_duration.p99")
	avg := read(m, "http_req_duration.avg")
	minRT := read(m, "http_req_duration.min")
	maxRT := read(m, "http_req_duration.max")
	failed := read(m, "failed_requests")

	statusFails := read(m, `checks.status is 200.fails`).or(0)
	checksPassed := statusFails == 0
	checksGlyph := passGlyph
	if !checksPassed {
		checksGlyph = failGlyph
	}

	rows := []Row{
		{"Response time (p90)", fmt.Sprintf("< %dms", P90BoundMs), p90.ms(), glyph(p90, P90BoundMs, failGlyph)},
		{"Response time (p95)", fmt.Sprintf("< %dms", P95BoundMs), p95.ms(), glyph(p95, P95BoundMs, failGlyph)},
		{"Response time (p99)", fmt.Sprintf("< %dms", P99BoundMs), p99.ms(), glyph(p99, P99BoundMs, failGlyph)},
		{"Response time (avg)", "-", avg.ms(), glyph(avg, AvgBoundMs, failGlyph)},
		{"Response time (min)", fmt.Sprintf("< %dms", MinBoundMs), minRT.ms(), glyph(minRT, MinBoundMs, "⚠️ Too high")},
		{"Response time (max)", fmt.Sprintf("< %dms", MaxBoundMs), maxRT.ms(), glyph(maxRT, MaxBoundMs, "❌ Too slow")},
		{"Request failures", "< 1%", failed.percent(), glyph(failed, FailureRateMax, failGlyph)},
		{"Custom checks passed", "All passed", output.Count(int64(statusFails)) + " failed", checksGlyph},
	}

	allPassed := p90.below(P90BoundMs) &&
		p95.below(P95BoundMs) &&
		p99.below(P99BoundMs) &&
		failed.below(FailureRateMax) &&
		checksPassed

	return rows, allPassed
}

type spikeSpec struct {
	label string
	key   string
	bound float64
}

func spikeRows(spike gjson.Result) []Row {
	// An empty trend carries zero stats; show it as missing.
	empty := read(spike, "count").or(0) == 0
	get := func(key string) field {
		if empty {
			return field{}
		}
		return read(spike, key)
	}

	specs := []spikeSpec{
		{"p(90)", "p90", 800},
		{"p(95)", "p95", 900},
		{"p(99)", "p99", 1000},
		{"Max", "max", 1200},
		{"Min", "min", 800},
		{"Avg", "avg", 500},
		{"Median", "med", 500},
	}

	return lo.Map(specs, func(s spikeSpec, _ int) Row {
		f := get(s.key)
		return Row{Metric: s.label, Result: f.ms(), Status: verdictLabel(f, s.bound)}
	})
}

func queueRows(q gjson.Result) []Row {
	return lo.Map([]string{"avg", "p95", "p99", "max"}, func(key string, _ int) Row {
		return Row{Metric: strings.ToUpper(key[:1]) + key[1:], Result: read(q, key).ms()}
	})
}

var statusGroupOrder = []string{"1xx", "2xx", "3xx", "4xx", "5xx", "Others"}

// statusGroups folds every metrics.http_status_* key into its leading-digit
// group. Keys that do not start with 1-5 count as Others.
func statusGroups(m gjson.Result) []StatusGroupRow {
	totals := lo.SliceToMap(statusGroupOrder, func(g string) (string, int64) { return g, 0 })

	m.ForEach(func(key, value gjson.Result) bool {
		code, ok := strings.CutPrefix(key.String(), "http_status_")
		if !ok {
			return true
		}
		group := "Others"
		if code != "" && code[0] >= '1' && code[0] <= '5' {
			group = code[:1] + "xx"
		}
		if value.IsObject() {
			value = value.Get("count")
		}
		totals[group] += int64(numeric(value).or(0))
		return true
	})

	return lo.Map(statusGroupOrder, func(g string, _ int) StatusGroupRow {
		return StatusGroupRow{Group: g, Total: totals[g]}
	})
}
