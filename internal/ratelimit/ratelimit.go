// Package ratelimit wraps a net.Listener so that accepted connections share
// per-direction bandwidth limits.
package ratelimit

import (
	"context"
	"net"

	"golang.org/x/time/rate"
)

// Must be bigger than the biggest single read or write.
const defaultMaxBurstSize = 4 * 1024 * 1024

func newRateLimiter(bandwidth int64) *rate.Limiter {
	// Relate burst size to the bandwidth limit so high limits are
	// actually reachable.
	maxBurstSize := bandwidth / 64
	if maxBurstSize < defaultMaxBurstSize {
		maxBurstSize = defaultMaxBurstSize
	}
	return rate.NewLimiter(rate.Limit(bandwidth), int(maxBurstSize))
}

// Listener applies rx/tx bandwidth limits, in bytes per second, to all
// connections it accepts. The limits are shared across connections.
type Listener struct {
	net.Listener
	rxLimiter *rate.Limiter
	txLimiter *rate.Limiter
}

// NewListener wraps l. A zero bandwidth disables the limit for that
// direction.
func NewListener(l net.Listener, rxBandwidth, txBandwidth int64) *Listener {
	var rxLimiter, txLimiter *rate.Limiter
	if rxBandwidth > 0 {
		rxLimiter = newRateLimiter(rxBandwidth)
	}
	if txBandwidth > 0 {
		txLimiter = newRateLimiter(txBandwidth)
	}

	return &Listener{
		Listener:  l,
		rxLimiter: rxLimiter,
		txLimiter: txLimiter,
	}
}

func (l *Listener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	return &Conn{
		Conn:      c,
		rxLimiter: l.rxLimiter,
		txLimiter: l.txLimiter,
	}, nil
}

// Conn is a net.Conn whose Read and Write pace themselves against the
// listener's limiters.
type Conn struct {
	net.Conn
	rxLimiter *rate.Limiter
	txLimiter *rate.Limiter
}

var waitContext = context.Background()

func (c *Conn) Read(b []byte) (n int, err error) {
	n, err = c.Conn.Read(b)
	if n > 0 && c.rxLimiter != nil {
		_ = c.rxLimiter.WaitN(waitContext, n)
	}
	return
}

func (c *Conn) Write(b []byte) (n int, err error) {
	n, err = c.Conn.Write(b)
	if n > 0 && c.txLimiter != nil {
		_ = c.txLimiter.WaitN(waitContext, n)
	}
	return
}
