// Package loadgen drives arrival-rate load against a target: it paces
// iteration starts to an executor profile, runs them on a bounded VU pool
// and stops early when the run is aborted.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/loadcheck/internal/metrics"
	"github.com/wesleyorama2/loadcheck/internal/output"
	"github.com/wesleyorama2/loadcheck/internal/profile"
	"github.com/wesleyorama2/loadcheck/internal/rate"
)

const (
	defaultGracefulStop     = 30 * time.Second
	defaultRateInterval     = 100 * time.Millisecond
	defaultProgressInterval = time.Second
)

// AbortError is the cancellation cause of an aborted run.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("run aborted: %s", e.Reason)
}

// errGracefulStopExpired cancels iterations still running after the
// graceful stop window.
var errGracefulStopExpired = errors.New("graceful stop expired")

// Iteration is one unit of work executed by a VU.
type Iteration interface {
	Run(ctx context.Context, vu int)
}

// IterationFunc adapts a function to the Iteration interface.
type IterationFunc func(ctx context.Context, vu int)

// Run calls f(ctx, vu).
func (f IterationFunc) Run(ctx context.Context, vu int) { f(ctx, vu) }

// Result summarizes a finished run.
type Result struct {
	Duration   time.Duration
	Iterations int64
	Dropped    int64

	// Scheduled is the number of iteration starts the pacer released.
	Scheduled   int64
	MaxVUs      int
	Aborted     bool
	AbortReason string
}

// Runner executes an ExecutorProfile.
type Runner struct {
	profile  *profile.ExecutorProfile
	registry *metrics.Registry
	logger   *zap.Logger

	gracefulStop     time.Duration
	rateInterval     time.Duration
	progressInterval time.Duration
	onProgress       func(output.Progress)
	now              func() time.Time

	iterations *metrics.Counter
	dropped    *metrics.Counter

	mu     sync.Mutex
	cancel context.CancelCauseFunc
	abort  *AbortError
}

// Option configures a Runner.
type Option func(*Runner)

// WithGracefulStop sets how long in-flight iterations may run after the
// profile's duration has elapsed.
func WithGracefulStop(d time.Duration) Option {
	return func(r *Runner) {
		r.gracefulStop = d
	}
}

// WithProgress registers a callback invoked periodically during the run.
func WithProgress(interval time.Duration, fn func(output.Progress)) Option {
	return func(r *Runner) {
		r.progressInterval = interval
		r.onProgress = fn
	}
}

// WithRateInterval sets how often the target rate is recomputed.
func WithRateInterval(d time.Duration) Option {
	return func(r *Runner) {
		r.rateInterval = d
	}
}

// NewRunner creates a runner for a validated profile.
func NewRunner(p *profile.ExecutorProfile, registry *metrics.Registry, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		profile:          p,
		registry:         registry,
		logger:           logger,
		gracefulStop:     defaultGracefulStop,
		rateInterval:     defaultRateInterval,
		progressInterval: defaultProgressInterval,
		now:              time.Now,
		iterations:       registry.Counter(metrics.Iterations),
		dropped:          registry.Counter(metrics.DroppedIterations),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Abort stops the run with the given reason. Only the first call has an
// effect. It is safe to call before or during Run.
func (r *Runner) Abort(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.abort != nil {
		return
	}
	r.abort = &AbortError{Reason: reason}
	if r.cancel != nil {
		r.cancel(r.abort)
	}
}

func (r *Runner) aborted() *AbortError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abort
}

// Run paces iterations until the profile's duration elapses, the run is
// aborted or ctx is done. It returns an *AbortError when aborted and the
// context's cause when ctx ends the run early.
func (r *Runner) Run(ctx context.Context, it Iteration) (Result, error) {
	if err := r.profile.Validate(); err != nil {
		return Result{}, err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	r.mu.Lock()
	r.cancel = cancel
	if r.abort != nil {
		cancel(r.abort)
	}
	r.mu.Unlock()

	total := r.profile.TotalDuration()
	r.registry.Gauge(metrics.VUsMax).Set(float64(r.profile.MaxVUs))
	pool := newVUPool(r.profile.PreAllocatedVUs, r.profile.MaxVUs, r.registry.Gauge(metrics.VUs))

	start := r.now()
	pacer := rate.NewPacer(r.rateAt(0))

	r.logger.Info("run started",
		zap.String("executor", string(r.profile.Type)),
		zap.Duration("duration", total),
		zap.Int("pre_allocated_vus", r.profile.PreAllocatedVUs),
		zap.Int("max_vus", r.profile.MaxVUs),
	)

	schedCtx, stopScheduling := context.WithTimeout(runCtx, total)
	defer stopScheduling()

	var inflight sync.WaitGroup
	g, gctx := errgroup.WithContext(schedCtx)

	g.Go(func() error {
		ticker := time.NewTicker(r.rateInterval)
		defer ticker.Stop()

		var lastProgress time.Time
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				elapsed := now.Sub(start)
				pacer.SetRate(r.rateAt(elapsed))

				if r.onProgress != nil && now.Sub(lastProgress) >= r.progressInterval {
					lastProgress = now
					r.onProgress(r.progress(elapsed, total, pool))
				}
			}
		}
	})

	g.Go(func() error {
		for {
			if err := pacer.Wait(gctx); err != nil {
				return nil
			}

			vu, ok := pool.acquire()
			if !ok {
				r.dropped.Inc()
				continue
			}

			inflight.Add(1)
			go func() {
				defer inflight.Done()
				defer pool.release(vu)

				it.Run(runCtx, vu)
				r.iterations.Inc()
			}()
		}
	})

	_ = g.Wait()
	r.drain(&inflight, cancel)

	stats := pacer.Stats()
	r.logger.Debug("pacer stopped",
		zap.Float64("rate", stats.Rate),
		zap.Int64("released", stats.TotalIterations),
		zap.Duration("wait_time", stats.TotalWaitTime),
	)

	result := Result{
		Duration:   r.now().Sub(start),
		Iterations: r.iterations.Value(),
		Dropped:    r.dropped.Value(),
		Scheduled:  stats.TotalIterations,
		MaxVUs:     pool.size(),
	}

	if abort := r.aborted(); abort != nil {
		result.Aborted = true
		result.AbortReason = abort.Reason
		r.logger.Warn("run aborted", zap.String("reason", abort.Reason))
		return result, abort
	}

	if err := ctx.Err(); err != nil {
		return result, context.Cause(ctx)
	}

	r.logger.Info("run finished",
		zap.Duration("duration", result.Duration),
		zap.Int64("iterations", result.Iterations),
		zap.Int64("dropped_iterations", result.Dropped),
	)
	return result, nil
}

// drain waits for in-flight iterations, cancelling them once the graceful
// stop window has passed.
func (r *Runner) drain(inflight *sync.WaitGroup, cancel context.CancelCauseFunc) {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(r.gracefulStop)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		r.logger.Warn("graceful stop expired, cancelling in-flight iterations",
			zap.Duration("graceful_stop", r.gracefulStop))
		cancel(errGracefulStopExpired)
		<-done
	}
}

func (r *Runner) progress(elapsed, total time.Duration, pool *vuPool) output.Progress {
	requests := r.registry.Counter(metrics.HTTPReqs).Value()
	failed := r.registry.Rate(metrics.HTTPReqFailed).Summary().Passes

	rps := 0.0
	if s := elapsed.Seconds(); s > 0 {
		rps = float64(requests) / s
	}

	return output.Progress{
		Elapsed:   elapsed,
		Total:     total,
		ActiveVUs: pool.size(),
		Requests:  requests,
		Failed:    failed,
		RPS:       rps,
	}
}

// rateAt returns the target iterations per second at elapsed. Ramping
// profiles start at StartRate and interpolate linearly to each stage target.
func (r *Runner) rateAt(elapsed time.Duration) float64 {
	p := r.profile
	unit := p.TimeUnit.Seconds()

	switch p.Type {
	case profile.TypeConstantArrivalRate:
		return p.Rate / unit

	case profile.TypeRampingArrivalRate:
		from := p.StartRate
		var stageStart time.Duration
		for _, stage := range p.Stages {
			stageEnd := stageStart + stage.Duration
			if elapsed < stageEnd {
				progress := float64(elapsed-stageStart) / float64(stage.Duration)
				progress = min(max(progress, 0), 1)
				return (from + (stage.Target-from)*progress) / unit
			}
			from = stage.Target
			stageStart = stageEnd
		}
		return from / unit
	}

	return 0
}
