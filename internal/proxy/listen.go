package proxy

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/netutil"
)

// ListenTCP listens on the given network/address and returns a net.Listener
// that applies keepAlive to accepted TCP connections and admits at most
// maxConns concurrent connections (0 disables the cap). The cap keeps the
// accept loop from growing file descriptors without bound; excess
// connections wait in the kernel backlog.
func ListenTCP(network, addr string, keepAlive net.KeepAliveConfig, maxConns int) (net.Listener, error) {
	lc := net.ListenConfig{}

	ln, err := lc.Listen(context.Background(), network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}

	ln = &KeepAliveListener{Listener: ln, KeepAliveConfig: keepAlive}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}

	return ln, nil
}

// KeepAliveListener wraps a net.Listener and applies KeepAliveConfig to any
// accepted *net.TCPConn.
type KeepAliveListener struct {
	net.Listener
	net.KeepAliveConfig
}

// Accept accepts the next connection and applies KeepAliveConfig if the
// connection is a *net.TCPConn.
func (l *KeepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(l.KeepAliveConfig)
	}

	return conn, nil
}
