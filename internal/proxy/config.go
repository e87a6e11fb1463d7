package proxy

import (
	"net"
	"time"

	"github.com/passage-proxy/passage/internal/auth"
	"github.com/passage-proxy/passage/internal/dialer"
	"github.com/passage-proxy/passage/internal/log"
)

// Config carries the immutable process-wide proxy settings. It is created at
// startup and shared read-only by every connection.
type Config struct {
	// Credentials gates every request behind Basic proxy authentication
	// when non-nil.
	Credentials *auth.Credentials

	// NegotiationTimeout bounds reading the request header of an inbound
	// connection.
	NegotiationTimeout time.Duration

	// UpstreamTimeout bounds waiting for an origin's response header on a
	// forwarded request.
	UpstreamTimeout time.Duration

	// IdleTimeout bounds how long an inbound connection may sit idle
	// between requests.
	IdleTimeout time.Duration

	KeepAlive net.KeepAliveConfig

	// Dialer establishes outbound connections for both forwarded requests
	// and CONNECT tunnels.
	Dialer dialer.Dialer

	// Logger receives per-request events. Nil disables logging.
	Logger log.StructuredLogger

	// Metrics records request counts and latencies when non-nil.
	Metrics *Metrics
}
