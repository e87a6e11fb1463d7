package proxy

import (
	"context"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CopyBidirectional relays bytes between client and server until both
// directions reach end-of-stream, either side errors, or ctx is canceled.
// Both sockets are closed before returning, regardless of which side
// initiated shutdown. Payload bytes are opaque; nothing is parsed or
// modified in transit.
//
// A half-close on one direction is propagated as a write shutdown on the
// other socket and does not end the opposite direction on its own.
func CopyBidirectional(ctx context.Context, client, server net.Conn) error {
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = client.Close()
			_ = server.Close()
		})
	}
	defer closeBoth()

	g, gctx := errgroup.WithContext(ctx)

	// Tears the session down on cancellation or on the first relay error,
	// unblocking the surviving io.Copy.
	stop := context.AfterFunc(gctx, closeBoth)
	defer stop()

	g.Go(func() error {
		return copyHalf(server, client)
	})

	g.Go(func() error {
		return copyHalf(client, server)
	})

	return g.Wait()
}

// copyHalf relays one direction and propagates end-of-stream as a write
// shutdown on dst, leaving the opposite direction free to continue.
func copyHalf(dst, src net.Conn) error {
	_, err := io.Copy(dst, src)

	if cw, ok := dst.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	return err
}
