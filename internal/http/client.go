// Package http is the load generator's HTTP client. It records per-phase
// timing for every request and counts the bytes moved on the wire.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"
)

// Client represents an HTTP client with customizable options
type Client struct {
	httpClient *http.Client
	transport  *http.Transport
	baseURL    string
	headers    map[string]string
	counter    ByteCounter
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a new HTTP client with the given options
func NewClient(options ...ClientOption) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 100

	client := &Client{
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
		transport: transport,
		headers:   make(map[string]string),
	}

	for _, option := range options {
		option(client)
	}

	if client.counter != nil {
		dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
		transport.DialContext = countingDialer(dialer.DialContext, client.counter)
	}

	return client
}

// WithBaseURL sets the base URL for the client
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the timeout for the client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHeader adds a header to the client
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithByteCounter counts every byte written to and read from connections
// opened by the client.
func WithByteCounter(counter ByteCounter) ClientOption {
	return func(c *Client) {
		c.counter = counter
	}
}

// WithMaxConnsPerHost caps the open connections per host. Zero means no limit.
func WithMaxConnsPerHost(n int) ClientOption {
	return func(c *Client) {
		c.transport.MaxConnsPerHost = n
		if n > c.transport.MaxIdleConnsPerHost {
			c.transport.MaxIdleConnsPerHost = n
		}
	}
}

// CloseIdleConnections closes idle keep-alive connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Do executes an HTTP request and returns the response with detailed timing
// information. The body is read completely before Do returns.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := req.Build(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}

	for key, value := range c.headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}

	timing := TimingInfo{
		StartTime: time.Now(),
	}

	var dnsStart, connectStart, tlsHandshakeStart time.Time
	var wroteRequest time.Time
	lastPhaseEnd := timing.StartTime

	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			dnsStart = time.Now()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			end := time.Now()
			timing.DNSLookupTime = end.Sub(dnsStart)
			lastPhaseEnd = end
		},
		ConnectStart: func(network, addr string) {
			connectStart = time.Now()
		},
		ConnectDone: func(network, addr string, err error) {
			if err == nil && !connectStart.IsZero() {
				end := time.Now()
				timing.TCPConnectTime = end.Sub(connectStart)
				lastPhaseEnd = end
			}
		},
		TLSHandshakeStart: func() {
			tlsHandshakeStart = time.Now()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err == nil && !tlsHandshakeStart.IsZero() {
				end := time.Now()
				timing.TLSHandshakeTime = end.Sub(tlsHandshakeStart)
				lastPhaseEnd = end
			}
		},
		GotConn: func(info httptrace.GotConnInfo) {
			timing.ConnReused = info.Reused
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			wroteRequest = time.Now()
			timing.SendingTime = wroteRequest.Sub(lastPhaseEnd)
		},
		GotFirstResponseByte: func() {
			first := time.Now()
			if !wroteRequest.IsZero() {
				timing.TimeToFirstByte = first.Sub(wroteRequest)
			} else {
				timing.TimeToFirstByte = first.Sub(lastPhaseEnd)
			}
		},
	}

	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), trace))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, httpReq.URL.Path, err)
	}
	defer httpResp.Body.Close()

	contentTransferStart := time.Now()
	body, err := io.ReadAll(httpResp.Body)
	timing.ContentTransferTime = time.Since(contentTransferStart)
	timing.TotalTime = time.Since(timing.StartTime)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       body,
		Timing:     timing,
	}, nil
}
