package http

import (
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// TimingInfo holds the phases of one request.
type TimingInfo struct {
	StartTime           time.Time
	DNSLookupTime       time.Duration
	TCPConnectTime      time.Duration
	TLSHandshakeTime    time.Duration
	SendingTime         time.Duration
	TimeToFirstByte     time.Duration
	ContentTransferTime time.Duration
	TotalTime           time.Duration
	ConnReused          bool
}

// RequestDuration is the time spent sending, waiting and receiving.
// Connection setup is excluded.
func (t TimingInfo) RequestDuration() time.Duration {
	d := t.TotalTime - t.DNSLookupTime - t.TCPConnectTime - t.TLSHandshakeTime
	if d < 0 {
		return 0
	}
	return d
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	Timing     TimingInfo
}

// JSON returns a lenient view of a JSON body.
func (r *Response) JSON() gjson.Result {
	return gjson.ParseBytes(r.Body)
}

// DurationMs returns RequestDuration in milliseconds.
func (r *Response) DurationMs() float64 {
	return float64(r.Timing.RequestDuration()) / float64(time.Millisecond)
}
