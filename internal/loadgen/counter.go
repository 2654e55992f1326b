package loadgen

import (
	"github.com/wesleyorama2/loadcheck/internal/metrics"
)

// WireCounter feeds connection byte counts into data_sent and
// data_received.
type WireCounter struct {
	sent     *metrics.Counter
	received *metrics.Counter
}

// NewWireCounter binds a WireCounter to the registry.
func NewWireCounter(reg *metrics.Registry) *WireCounter {
	return &WireCounter{
		sent:     reg.Counter(metrics.DataSent),
		received: reg.Counter(metrics.DataReceived),
	}
}

// AddSent records bytes written.
func (w *WireCounter) AddSent(n int64) { w.sent.Add(n) }

// AddReceived records bytes read.
func (w *WireCounter) AddReceived(n int64) { w.received.Add(n) }
