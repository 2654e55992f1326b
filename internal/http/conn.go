package http

import (
	"context"
	"net"
)

// ByteCounter receives the number of bytes moved on a connection.
type ByteCounter interface {
	AddSent(n int64)
	AddReceived(n int64)
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func countingDialer(dial dialFunc, counter ByteCounter) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &countingConn{Conn: conn, counter: counter}, nil
	}
}

// countingConn reports every successful Read and Write to its counter.
type countingConn struct {
	net.Conn
	counter ByteCounter
}

func (c *countingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.counter.AddReceived(int64(n))
	}
	return n, err
}

func (c *countingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.counter.AddSent(int64(n))
	}
	return n, err
}
