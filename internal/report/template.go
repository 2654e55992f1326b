package report

import (
	"text/template"

	"github.com/wesleyorama2/loadcheck/internal/output"
)

const verdictPassed = `Your API handled the simulated load very well.
✅ Most requests were fast.
⚠️ Some were slower than 1 second — worth reviewing, but overall performance is **strong**.`

const verdictFailed = `❌ Some thresholds or checks failed under load.
🔍 Please investigate failing requests or performance degradation.`

var reportFuncs = template.FuncMap{
	"count": output.Count,
	"verdictHeading": func(passed bool) string {
		if passed {
			return "✅ Final Verdict"
		}
		return "❌ Final Verdict"
	},
	"verdictText": func(passed bool) string {
		if passed {
			return verdictPassed
		}
		return verdictFailed
	},
}

var reportTemplate = template.Must(template.New("report").Funcs(reportFuncs).Parse(markdownTemplate))

const markdownTemplate = `# 🚀 Overall Summary

| Key Metric | Value |
|------------|-------|
| Test | Load testing, {{.AbortStatus}} |
| API Endpoint Tested | {{.Environment}}_{{.Endpoint}} |
| Load Pattern (Scenario) | {{.Scenario}} |
| Test Type (Sub-Scenario) | {{.SubScenario}} |
| Test Duration | {{.Duration}} |
| Given VUs | {{.GivenVUs}} |
| Active VUs (Avg) | {{.ActiveVUsAvg}} |
| Max Active VUs (Max) | {{.ActiveVUsMax}} (peak) |
| Active VUs on test end | {{.ActiveVUsEnd}} |
| Total Requests Sent | {{.TotalRequests}} requests |
| Total Requests Passed | {{.Passed}} ({{.SuccessRate}}) |
| Average RPS | {{.AvgRPS}} requests/sec, {{.RPSVerdict}} |
| Average Response Time | {{.AvgResponse}} |
| Fast Requests (<1s) | {{.FastRequests}} |
| Slow Requests (>1s) | {{.SlowRequests}} |
| Degraded Count | {{.Degraded}} |
| Custom Failure Rate | {{.CustomFailure}} |

---

## ✅ Threshold Summary

| Metric | Goal | Result | Status |
|--------|------|--------|--------|
{{- range .Thresholds}}
| {{.Metric}} | {{.Goal}} | {{.Result}} | {{.Status}} |
{{- end}}

---

## 🐢 Slow Request Ranges

| Range | Count | Notes |
|-------|-------|-------|
{{- range .SlowRanges}}
| {{.Range}} | {{.Count}} | {{.Note}} |
{{- end}}

---

### 🔺 Spike Latency Duration

| Metric | Value | Verdict |
|--------|-------|---------|
{{- range .Spike}}
| {{.Metric}} | {{.Result}} | {{.Status}} |
{{- end}}

---

## ⏳ Request Queueing / Wait Time

| Metric | Value |
|--------|-------|
{{- range .QueueWait}}
| {{.Metric}} | {{.Result}} |
{{- end}}

---

## 📊 HTTP Status Code Summary

| Group | Total Count |
|-------|-------------|
{{- range .StatusGroups}}
| {{.Group}} | {{count .Total}} |
{{- end}}

---

## 📦 Network Data

| Metric | Value |
|--------|-------|
| Total Data Sent | ~{{.DataSentKB}} KB |
| Total Data Received | ~{{.DataRecvKB}} KB |

---

## {{verdictHeading .AllPassed}}

{{verdictText .AllPassed}}

---

*Generated from loadcheck summary.json*
`
