package loadgen

import (
	"sync"

	"github.com/wesleyorama2/loadcheck/internal/metrics"
)

// vuPool hands out VU numbers. It starts with the pre-allocated VUs and
// grows on demand up to max. acquire never blocks.
type vuPool struct {
	mu    sync.Mutex
	idle  []int
	total int
	max   int
	vus   *metrics.Gauge
}

func newVUPool(preAllocated, maxVUs int, vus *metrics.Gauge) *vuPool {
	p := &vuPool{
		idle:  make([]int, 0, maxVUs),
		total: preAllocated,
		max:   maxVUs,
		vus:   vus,
	}
	for i := preAllocated; i >= 1; i-- {
		p.idle = append(p.idle, i)
	}
	vus.Set(float64(preAllocated))
	return p
}

// acquire returns an idle VU, allocating a new one when none is idle and
// the pool is below max. ok is false when every VU is busy.
func (p *vuPool) acquire() (vu int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.idle); n > 0 {
		vu = p.idle[n-1]
		p.idle = p.idle[:n-1]
		return vu, true
	}

	if p.total >= p.max {
		return 0, false
	}

	p.total++
	p.vus.Set(float64(p.total))
	return p.total, true
}

func (p *vuPool) release(vu int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = append(p.idle, vu)
}

func (p *vuPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}
