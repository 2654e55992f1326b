package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/loadcheck/internal/aggregate"
	"github.com/wesleyorama2/loadcheck/internal/classifier"
	"github.com/wesleyorama2/loadcheck/internal/metrics"
	"github.com/wesleyorama2/loadcheck/internal/profile"
	"github.com/wesleyorama2/loadcheck/internal/report"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestProfileCmd_Constant(t *testing.T) {
	out, _, err := execute(t, "profile",
		"--scenario", "constant_arrival_rate",
		"--sub-scenario", "steady_smoke_test",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "scenario: constant_arrival_rate")
	assert.Contains(t, out, "executor: constant-arrival-rate")
	assert.Contains(t, out, "rate: 29")
	assert.Contains(t, out, "timeUnit: 1s")
	assert.NotContains(t, out, "stages:")
}

func TestProfileCmd_Ramping(t *testing.T) {
	out, _, err := execute(t, "profile",
		"--scenario", "ramping_arrival_rate",
		"--sub-scenario", "stress",
		"--target-rps", "40",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "executor: ramping-arrival-rate")
	assert.Contains(t, out, "stages:")
	assert.Contains(t, out, "maxVUs: 500")
}

func TestProfileCmd_LegacyEnvironment(t *testing.T) {
	t.Setenv("choose_scenario", "ramping_arrival_rate")
	t.Setenv("choose_sub_scenario", "spike")

	out, _, err := execute(t, "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "sub_scenario: spike")
}

func TestProfileCmd_InvalidScenario(t *testing.T) {
	_, _, err := execute(t, "profile", "--scenario", "soak")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid settings")
}

func TestReportCmd(t *testing.T) {
	dir := t.TempDir()
	summary := filepath.Join(dir, "summary.json")

	reg := metrics.NewRegistry()
	cls := classifier.New(&classifier.RunContext{Registry: reg})
	for i := 0; i < 10; i++ {
		cls.Observe(classifier.Outcome{Status: http.StatusOK, BodyNonEmpty: true, DurationMs: 120})
	}

	desc := profile.Descriptor{
		Name:             profile.ConstantArrivalRate,
		SubScenario:      profile.SubSteadySmoke,
		TargetRPS:        29,
		TargetResponseMs: 1000,
	}
	info := aggregate.NewRunInfo(desc, "qa", "v1/orders", 50)
	snapshot := aggregate.Aggregate(reg, cls.State(), info, time.Minute)
	require.NoError(t, aggregate.WriteFile(summary, snapshot))

	outDir := filepath.Join(dir, "out")
	out, _, err := execute(t, "report", "--summary", summary, "--out", outDir)
	require.NoError(t, err)

	want := filepath.Join(outDir, "qa", "constant_arrival_rate_steady_smoke_test_orders_(0).md")
	assert.Contains(t, out, "Report written to")
	assert.FileExists(t, want)
}

func TestReportCmd_MissingSnapshot(t *testing.T) {
	_, _, err := execute(t, "report", "--summary", filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, report.ErrSnapshotNotFound)
}

func TestRunCmd_AbortWritesSnapshot(t *testing.T) {
	var userAgent, path atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	envFile := filepath.Join(dir, "environments.yaml")
	require.NoError(t, os.WriteFile(envFile, []byte("environments:\n  local:\n    baseUrl: "+server.URL+"\n"), 0o644))

	summary := filepath.Join(dir, "summary.json")
	outDir := filepath.Join(dir, "out")

	out, _, err := execute(t, "run",
		"--scenario", "constant_arrival_rate",
		"--sub-scenario", "steady_smoke_test",
		"--env", "local",
		"--environments", envFile,
		"--endpoint", "v1/orders",
		"--perform-login=false",
		"--target-rps", "100",
		"--summary", summary,
		"--log-level", "error",
		"--quiet",
		"--no-color",
		"--report",
		"--out", outDir,
	)
	require.NoError(t, err)

	snapshot, err := aggregate.ReadFile(summary)
	require.NoError(t, err)
	assert.True(t, snapshot.State.Aborted)
	assert.Equal(t, classifier.AbortReason, snapshot.State.AbortReason)
	assert.GreaterOrEqual(t, snapshot.State.Non200Count, int64(classifier.AbortThreshold))
	assert.Equal(t, "local", snapshot.Scenario.Environment)
	assert.Positive(t, snapshot.Metrics.HTTPStatus5xx)
	assert.Equal(t, "loadcheck/"+version, userAgent.Load())
	assert.Equal(t, "/rest_api/v1/orders", path.Load())

	assert.Contains(t, out, "Report written to")
	assert.FileExists(t, filepath.Join(outDir, "local", "constant_arrival_rate_steady_smoke_test_orders_(0).md"))
}

func TestRunCmd_InvalidMethod(t *testing.T) {
	_, _, err := execute(t, "run",
		"--scenario", "constant_arrival_rate",
		"--method", "DELETE",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method")
}
