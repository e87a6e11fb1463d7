package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/passage-proxy/passage/internal/testutil"
)

// pipePair returns both ends of a real TCP connection.
func pipePair(t *testing.T) (client, server net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	type accepted struct {
		c   net.Conn
		err error
	}
	ch := make(chan accepted, 1)
	go func() {
		c, err := ln.Accept()
		ch <- accepted{c, err}
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	a := <-ch
	if a.err != nil {
		t.Fatal(a.err)
	}

	t.Cleanup(func() {
		_ = client.Close()
		_ = a.c.Close()
	})
	return client, a.c
}

func TestCopyBidirectionalRelaysAndTearsDown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)

	right, err := net.Dial("tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	client, left := pipePair(t)

	done := make(chan error, 1)
	go func() {
		done <- CopyBidirectional(ctx, left, right)
	}()

	testutil.AssertEcho(t, client, client, []byte("through the tunnel"))
	testutil.AssertEcho(t, client, client, []byte("and again"))

	_ = client.Close()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("CopyBidirectional did not return after client close")
	}

	// Both sockets must be closed after teardown.
	if _, err := right.Write([]byte("x")); err == nil {
		// A single write may succeed into the kernel buffer; the second
		// must fail.
		time.Sleep(10 * time.Millisecond)
		if _, err := right.Write([]byte("x")); err == nil {
			t.Error("upstream socket still writable after teardown")
		}
	}
}

func TestCopyBidirectionalCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	clientA, left := pipePair(t)
	clientB, right := pipePair(t)
	_ = clientA
	_ = clientB

	done := make(chan error, 1)
	go func() {
		done <- CopyBidirectional(ctx, left, right)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("CopyBidirectional did not return after cancellation")
	}
}
