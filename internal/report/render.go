// Package report renders a run snapshot into a Markdown report.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrSnapshotNotFound is returned when the snapshot file does not exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrMalformedSnapshot is returned when the snapshot cannot be decoded
	// or lacks required keys.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrDirectoryUnwritable is returned when the report directory cannot
	// be created or written.
	ErrDirectoryUnwritable = errors.New("report directory unwritable")
)

// pathPlaceholder replaces empty or unsafe path segments.
const pathPlaceholder = "NA"

// Render reads the snapshot at snapshotPath and writes a Markdown report
// under outputDir/<environment>/. It returns the report path.
func Render(snapshotPath, outputDir string) (string, error) {
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotPath)
		}
		return "", fmt.Errorf("%w: %v", ErrSnapshotNotFound, err)
	}

	if err := ValidateSnapshot(data); err != nil {
		return "", err
	}

	doc := gjson.ParseBytes(data)

	dir := filepath.Join(outputDir, pathSegment(doc.Get("scenario.environment").String()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDirectoryUnwritable, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDirectoryUnwritable, err)
	}

	body, err := Markdown(data)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_(%d).md", BaseName(doc), len(entries)))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDirectoryUnwritable, err)
	}

	return path, nil
}

// Markdown renders the report body for a snapshot document.
func Markdown(data []byte) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedSnapshot)
	}

	view := buildView(gjson.ParseBytes(data))

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

// BaseName derives the report file name without the run ordinal:
// scenario_[sub_]lastEndpointSegment. The sub-scenario is included for
// constant runs and for ramping stress and spike runs.
func BaseName(doc gjson.Result) string {
	scenario := pathSegment(doc.Get("scenario.name").String())
	sub := doc.Get("scenario.sub_scenario").String()

	endpoint := strings.TrimRight(doc.Get("scenario.endpoint").String(), "/")
	last := endpoint
	if i := strings.LastIndex(endpoint, "/"); i >= 0 {
		last = endpoint[i+1:]
	}
	last = pathSegment(last)

	label := subScenarioLabel(scenario, sub)
	includeSub := scenario == "constant_arrival_rate" ||
		(scenario == "ramping_arrival_rate" && (sub == "stress" || sub == "spike"))
	if !includeSub {
		return scenario + "_" + last
	}
	if label == notAvailable {
		label = pathPlaceholder
	}
	return scenario + "_" + label + "_" + last
}

// pathSegment makes s safe as a single path element.
func pathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == notAvailable || s == "." || s == ".." {
		return pathPlaceholder
	}
	return strings.NewReplacer("/", "_", `\`, "_").Replace(s)
}
