package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type testCounter struct {
	sent     atomic.Int64
	received atomic.Int64
}

func (c *testCounter) AddSent(n int64)     { c.sent.Add(n) }
func (c *testCounter) AddReceived(n int64) { c.received.Add(n) }

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("Expected method GET, got %s", r.Method)
		}
		if r.URL.Path != "/rest_api/orders" {
			t.Errorf("Expected path /rest_api/orders, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Test-Header") != "test-value" {
			t.Errorf("Expected header X-Test-Header: test-value, got %s", r.Header.Get("X-Test-Header"))
		}
		if r.Header.Get("User-Agent") != "loadcheck-test" {
			t.Errorf("Expected client header User-Agent, got %s", r.Header.Get("User-Agent"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"success","data":{"id":7}}`))
	}))
	defer server.Close()

	client := NewClient(
		WithTimeout(5*time.Second),
		WithHeader("User-Agent", "loadcheck-test"),
		WithBaseURL(server.URL+"/rest_api"),
	)

	req := NewRequest("GET", "orders")
	req.WithHeader("X-Test-Header", "test-value")

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if string(resp.Body) != `{"message":"success","data":{"id":7}}` {
		t.Errorf("Unexpected body %s", resp.Body)
	}
	if got := resp.JSON().Get("data.id").Int(); got != 7 {
		t.Errorf("Expected data.id 7, got %d", got)
	}
	if resp.Timing.TotalTime <= 0 {
		t.Errorf("Expected positive total time, got %v", resp.Timing.TotalTime)
	}
	if resp.Timing.RequestDuration() > resp.Timing.TotalTime {
		t.Errorf("Request duration %v exceeds total %v", resp.Timing.RequestDuration(), resp.Timing.TotalTime)
	}
}

func TestClient_ByteCounter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	counter := &testCounter{}
	client := NewClient(WithBaseURL(server.URL), WithByteCounter(counter))

	req := NewRequest("POST", "/submit").WithBody("a=1&b=2")
	if _, err := client.Do(context.Background(), req); err != nil {
		t.Fatalf("Error executing request: %v", err)
	}

	if counter.sent.Load() <= int64(len("a=1&b=2")) {
		t.Errorf("Expected sent bytes to include headers and body, got %d", counter.sent.Load())
	}
	if counter.received.Load() <= 10 {
		t.Errorf("Expected received bytes to include headers and body, got %d", counter.received.Load())
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(WithBaseURL(url), WithTimeout(time.Second))
	resp, err := client.Do(context.Background(), NewRequest("GET", "/"))
	if err == nil {
		t.Fatal("Expected error from closed server")
	}
	if resp != nil {
		t.Errorf("Expected nil response on error")
	}
}

func TestClient_ContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(WithBaseURL(server.URL))
	if _, err := client.Do(ctx, NewRequest("GET", "/")); err == nil {
		t.Fatal("Expected error from cancelled context")
	}
}

func TestClient_WithOptions(t *testing.T) {
	timeout := 10 * time.Second
	client := NewClient(
		WithTimeout(timeout),
		WithBaseURL("https://example.com"),
		WithHeader("X-Test", "test-value"),
		WithMaxConnsPerHost(250),
	)

	if client.httpClient.Timeout != timeout {
		t.Errorf("Expected timeout %v, got %v", timeout, client.httpClient.Timeout)
	}
	if client.baseURL != "https://example.com" {
		t.Errorf("Expected baseURL https://example.com, got %s", client.baseURL)
	}
	if client.headers["X-Test"] != "test-value" {
		t.Errorf("Expected header X-Test: test-value, got %s", client.headers["X-Test"])
	}
	if client.transport.MaxConnsPerHost != 250 || client.transport.MaxIdleConnsPerHost != 250 {
		t.Errorf("Unexpected connection limits: %d/%d", client.transport.MaxConnsPerHost, client.transport.MaxIdleConnsPerHost)
	}
}

func TestTimingInfo_RequestDuration(t *testing.T) {
	timing := TimingInfo{
		DNSLookupTime:    10 * time.Millisecond,
		TCPConnectTime:   20 * time.Millisecond,
		TLSHandshakeTime: 30 * time.Millisecond,
		TotalTime:        150 * time.Millisecond,
	}
	if got := timing.RequestDuration(); got != 90*time.Millisecond {
		t.Errorf("Expected 90ms, got %v", got)
	}

	resp := &Response{Timing: timing}
	if got := resp.DurationMs(); got != 90 {
		t.Errorf("Expected 90ms, got %v", got)
	}

	if got := (TimingInfo{DNSLookupTime: time.Second}).RequestDuration(); got != 0 {
		t.Errorf("Expected clamp to 0, got %v", got)
	}
}
