package dialer

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/passage-proxy/passage/internal/testutil"
)

// fakeConnectProxy accepts one CONNECT request and echoes the tunneled
// bytes. It records the request it saw in *got.
func fakeConnectProxy(t *testing.T, ctx context.Context, got **http.Request) (net.Listener, func()) {
	t.Helper()

	return testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		br := bufio.NewReader(c)
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		*got = req

		if req.Method != http.MethodConnect {
			_, _ = io.WriteString(c, "HTTP/1.1 405 Method Not Allowed\r\n\r\n")
			return
		}
		if _, err := io.WriteString(c, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
			return
		}

		buf := make([]byte, 1024)
		for {
			n, err := br.Read(buf)
			if err != nil {
				return
			}
			if _, err := c.Write(buf[:n]); err != nil {
				return
			}
		}
	})
}

func TestHTTPProxyDialerConnect(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var seen *http.Request
	ln, wait := fakeConnectProxy(t, ctx, &seen)

	u := &url.URL{Scheme: "http", Host: ln.Addr().String()}
	d, err := NewHTTPProxyDialer(Config{DialTimeout: 2 * time.Second, NegotiationTimeout: 2 * time.Second}, u, "user", "pass")
	if err != nil {
		t.Fatal(err)
	}

	c, err := d.DialContext(ctx, "tcp", "origin.example:443")
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertEcho(t, c, c, []byte("tunneled"))
	_ = c.Close()
	wait()

	if seen == nil {
		t.Fatal("proxy never saw a request")
	}
	if seen.Host != "origin.example:443" {
		t.Errorf("CONNECT target = %q, want %q", seen.Host, "origin.example:443")
	}
	if seen.Header.Get("Proxy-Authorization") == "" {
		t.Error("Proxy-Authorization not sent")
	}
}

func TestHTTPProxyDialerRejectedConnect(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ln, wait := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		if _, err := http.ReadRequest(bufio.NewReader(c)); err != nil {
			return
		}
		_, _ = io.WriteString(c, "HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n")
	})
	defer wait()

	u := &url.URL{Scheme: "http", Host: ln.Addr().String()}
	d, err := NewHTTPProxyDialer(Config{DialTimeout: 2 * time.Second, NegotiationTimeout: 2 * time.Second}, u, "", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := d.DialContext(ctx, "tcp", "origin.example:443"); err == nil {
		t.Fatal("expected error for rejected CONNECT")
	}
}

func TestHTTPProxyDialerRejectsNonTCP(t *testing.T) {
	t.Parallel()

	u := &url.URL{Scheme: "http", Host: "proxy.example:3128"}
	d, err := NewHTTPProxyDialer(Config{}, u, "", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := d.DialContext(context.Background(), "udp", "origin.example:53"); err == nil {
		t.Fatal("expected error for udp network")
	}
}
