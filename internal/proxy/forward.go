package proxy

import (
	"crypto/tls"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/passage-proxy/passage/internal/dialer"
)

// newReverseProxy builds the outbound engine for non-CONNECT requests. The
// response is streamed back to the client through a recycled buffer rather
// than held in memory.
func newReverseProxy(cfg Config) *httputil.ReverseProxy {
	director := func(r *http.Request) {
		// The director gets a clone of the inbound request, so
		// sanitizing here leaves the original intact for logging.
		r.Header = sanitizeHeader(r.Header)
		r.Host = r.URL.Host

		// Ask that X-Forwarded-For not be set.
		r.Header["X-Forwarded-For"] = nil
	}

	errHandler := func(w http.ResponseWriter, _ *http.Request, err error) {
		httpError(w, err.Error(), errorStatus(err))
	}

	return &httputil.ReverseProxy{
		Director:      director,
		Transport:     newTransport(cfg),
		FlushInterval: 10 * time.Millisecond, // Only buffer incomplete responses briefly
		ErrorHandler:  errHandler,
		BufferPool:    newBufferPool(32768),
	}
}

func newTransport(cfg Config) http.RoundTripper {
	t := &http.Transport{
		DialContext: cfg.Dialer.DialContext,
		// One origin connection per exchange; the proxy does not pool.
		DisableKeepAlives:     true,
		ResponseHeaderTimeout: cfg.UpstreamTimeout,
		TLSHandshakeTimeout:   cfg.NegotiationTimeout,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	// For non-CONNECT proxying through an upstream HTTP proxy, prefer the
	// standard library proxy support.
	if up, ok := cfg.Dialer.(*dialer.HTTPProxyDialer); ok {
		t.Proxy = http.ProxyURL(up.ProxyURL())
		// With Transport.Proxy set, DialContext connects to the proxy
		// itself.
		t.DialContext = up.Direct().DialContext
	}

	return t
}

// statusWriter records the status and bytes written to the client so the
// dispatcher can log and meter the exchange after the fact.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer for
// flushing streamed responses.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
