package dialer

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds outbound DNS lookup and TCP connect.
	DialTimeout time.Duration

	// NegotiationTimeout bounds TLS and proxy protocol negotiation when
	// dialing through an upstream proxy.
	NegotiationTimeout time.Duration

	KeepAlive net.KeepAliveConfig
}
