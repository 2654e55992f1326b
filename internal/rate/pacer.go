// Package rate paces iteration starts at a target arrival rate.
package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// maxSleep bounds a single sleep so rate changes take effect promptly.
	maxSleep = 100 * time.Millisecond

	// idleAfter is the gap between calls after which the pacer counts as
	// idle. Waiters poll at least every maxSleep.
	idleAfter = maxSleep + 50*time.Millisecond
)

// Pacer is a leaky bucket that releases one iteration per 1/rate seconds.
//
// It keeps the time of the next release and advances it by one interval
// per release, so late timer wake-ups are caught up instead of lost. A
// backlog is dropped only when nobody called the pacer for a while. A rate
// of zero pauses the pacer.
//
// Pacer is safe for concurrent use.
type Pacer struct {
	mu       sync.Mutex
	rate     float64
	next     time.Time
	lastCall time.Time

	totalIterations atomic.Int64
	totalWaitTime   atomic.Int64
}

// NewPacer creates a pacer at the given rate in iterations per second.
// The first iteration is released after 1/rate.
func NewPacer(rate float64) *Pacer {
	now := time.Now()
	p := &Pacer{
		rate:     max(rate, 0),
		lastCall: now,
	}
	if p.rate > 0 {
		p.next = now.Add(p.interval())
	}
	return p
}

func (p *Pacer) interval() time.Duration {
	return time.Duration(float64(time.Second) / p.rate)
}

// SetRate changes the rate. The pending release keeps its phase: the
// fraction of the old interval still to wait is rescaled to the new rate.
func (p *Pacer) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rate = max(rate, 0)
	now := time.Now()
	if p.rate > 0 && rate > 0 && now.Before(p.next) {
		remaining := float64(p.next.Sub(now)) * p.rate / rate
		p.next = now.Add(time.Duration(remaining))
	}
	p.rate = rate
}

// take consumes one iteration if it is due, otherwise returns how long to
// sleep before trying again.
func (p *Pacer) take(now time.Time) (bool, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idle := now.Sub(p.lastCall) > idleAfter
	p.lastCall = now

	if p.rate <= 0 {
		p.next = time.Time{}
		return false, maxSleep
	}

	interval := p.interval()
	if p.next.IsZero() {
		p.next = now.Add(interval)
	}
	if now.Before(p.next) {
		return false, min(max(p.next.Sub(now), time.Microsecond), maxSleep)
	}

	if idle {
		p.next = now
	}
	p.next = p.next.Add(interval)
	return true, 0
}

// Wait blocks until the next iteration may start or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()
	for {
		ok, wait := p.take(time.Now())
		if ok {
			p.totalIterations.Add(1)
			p.totalWaitTime.Add(int64(time.Since(start)))
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Stats returns counters about the pacer's operation.
func (p *Pacer) Stats() Stats {
	p.mu.Lock()
	rate := p.rate
	p.mu.Unlock()

	return Stats{
		Rate:            rate,
		TotalIterations: p.totalIterations.Load(),
		TotalWaitTime:   time.Duration(p.totalWaitTime.Load()),
	}
}

// Stats contains statistics about a pacer.
type Stats struct {
	Rate            float64       `json:"rate"`
	TotalIterations int64         `json:"totalIterations"`
	TotalWaitTime   time.Duration `json:"totalWaitTime"`
}
