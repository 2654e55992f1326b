// Package output provides console output and value formatting for load test
// runs.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/wesleyorama2/loadcheck/internal/aggregate"
)

const (
	boxHorizontal = "━"
	ruleWidth     = 56
)

// Progress contains the periodic run statistics printed while a test runs.
type Progress struct {
	Elapsed   time.Duration
	Total     time.Duration
	ActiveVUs int
	Requests  int64
	Failed    int64
	RPS       float64
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer  io.Writer
	NoColor bool
	Quiet   bool

	// ForceColors enables colors even when Writer is not a terminal.
	ForceColors bool
}

// Console prints run headers, progress lines and the end-of-run summary.
type Console struct {
	mu      sync.Mutex
	writer  io.Writer
	scheme  *ColorScheme
	noColor bool
	quiet   bool
}

// NewConsole creates a console writer.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	useColors := !config.NoColor && (config.ForceColors || isTerminal(config.Writer))
	scheme := NoColorScheme()
	if useColors {
		scheme = ForcedColorScheme()
	}

	return &Console{
		writer:  config.Writer,
		scheme:  scheme,
		noColor: !useColors,
		quiet:   config.Quiet,
	}
}

// isTerminal checks if the writer is a terminal.
func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return checkIsTerminal(f)
	}
	return false
}

// PrintHeader prints the run header.
func (c *Console) PrintHeader(name, executor string, total time.Duration) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rule := c.scheme.Rule.Sprint(strings.Repeat(boxHorizontal, ruleWidth))
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - Running [%s, %s]", c.scheme.Title.Sprint(name), executor, Duration(total)))
	c.writeln(rule)
	c.writeln("")
}

// PrintProgress prints a one-line status update.
func (c *Console) PrintProgress(p Progress) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pct := 0.0
	if p.Total > 0 {
		pct = min(float64(p.Elapsed)/float64(p.Total), 1) * 100
	}

	c.writeln(fmt.Sprintf("[%s] Progress: %.0f%% | VUs: %d | Reqs: %s | RPS: %.1f | Failed: %s",
		Duration(p.Elapsed), pct, p.ActiveVUs, Count(p.Requests), p.RPS, Count(p.Failed)))
}

// PrintSummary prints the end-of-run summary for a snapshot.
func (c *Console) PrintSummary(s *aggregate.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := s.Metrics
	passed := !s.State.Aborted && m.FailedRequests < 0.01

	if c.quiet {
		if passed {
			c.writeln(c.scheme.Pass.Sprint("PASSED"))
		} else {
			c.writeln(c.scheme.Fail.Sprint("FAILED"))
		}
		return
	}

	var status string
	switch {
	case s.State.Aborted:
		status = c.scheme.Fail.Sprintf("Aborted %s: %s", ErrorIcon(true), s.State.AbortReason)
	case !passed:
		status = c.scheme.Warn.Sprintf("Completed %s (failure rate above 1%%)", WarningIcon(true))
	default:
		status = c.scheme.Pass.Sprint("Completed " + SuccessIcon(true))
	}

	name := s.Scenario.Name
	if s.Scenario.SubScenario != "" {
		name += "/" + s.Scenario.SubScenario
	}

	rule := c.scheme.Rule.Sprint(strings.Repeat(boxHorizontal, ruleWidth))
	c.writeln("")
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - %s", c.scheme.Title.Sprint(name), status))
	c.writeln(rule)
	c.writeln("")

	duration := time.Duration(s.State.TestRunDurationMs * float64(time.Millisecond))
	c.row("Environment", s.Scenario.Environment)
	c.row("Endpoint", s.Scenario.Endpoint)
	c.row("Duration", Duration(duration))
	c.row("Total Reqs", Count(m.TotalRequests))
	c.row("Avg RPS", fmt.Sprintf("%.2f req/s", m.AvgRPS))
	c.row("Failed", c.rateColor(m.FailedRequests).Sprint(Percent(m.FailedRequests)))
	c.row("Max VUs", fmt.Sprintf("%.0f", m.VUsMax))
	c.writeln("")

	d := m.HTTPReqDuration
	c.writeln(c.scheme.Title.Sprint("Latency Distribution:"))
	c.writeln(fmt.Sprintf("  Min:       %s", FormatMs(d.Min, 1000)))
	c.writeln(fmt.Sprintf("  Med:       %s", FormatMs(d.Med, 1000)))
	c.writeln(fmt.Sprintf("  P90:       %s", FormatMs(d.P90, 1000)))
	c.writeln(fmt.Sprintf("  P95:       %s", FormatMs(d.P95, 1000)))
	c.writeln(fmt.Sprintf("  P99:       %s", FormatMs(d.P99, 1000)))
	c.writeln(fmt.Sprintf("  Max:       %s", FormatMs(d.Max, 1000)))
	c.writeln("")

	c.writeln(c.scheme.Title.Sprint("Latency Buckets:"))
	c.writeln(fmt.Sprintf("  <1s: %s | 1-2s: %s | 2-5s: %s | 5s+: %s",
		Count(m.RequestsSuccessUnder1s), Count(m.Requests1To2s), Count(m.Requests2To5s), Count(m.RequestsOver5s)))
	c.writeln("")

	c.writeln(c.scheme.Title.Sprint("Status Groups:"))
	c.writeln(fmt.Sprintf("  2xx: %s | 3xx: %s | 4xx: %s | 5xx: %s | none: %s",
		Count(m.HTTPStatus2xx), Count(m.HTTPStatus3xx), Count(m.HTTPStatus4xx), Count(m.HTTPStatus5xx), Count(m.HTTPStatus0)))
	c.writeln("")

	if len(m.Checks) > 0 {
		c.writeln(c.scheme.Title.Sprint("Checks:"))
		names := make([]string, 0, len(m.Checks))
		for name := range m.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			chk := m.Checks[name]
			icon := SuccessIcon(c.noColor)
			if chk.Fails > 0 {
				icon = ErrorIcon(c.noColor)
			}
			c.writeln(fmt.Sprintf("  %s %s (%s / %s)", icon, name, Count(chk.Passes), Count(chk.Passes+chk.Fails)))
		}
		c.writeln("")
	}
}

func (c *Console) rateColor(rate float64) *color.Color {
	switch {
	case rate >= 0.05:
		return c.scheme.Fail
	case rate >= 0.01:
		return c.scheme.Warn
	default:
		return c.scheme.Pass
	}
}

func (c *Console) row(label, value string) {
	c.writeln(fmt.Sprintf("%s %s", c.scheme.Label.Sprintf("%-14s", label+":"), c.scheme.Value.Sprint(value)))
}

// writeln writes to the output with a newline.
func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}
