package proxy

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"strings"
	"sync/atomic"
	"time"

	"github.com/passage-proxy/passage/internal/log"
)

// Server serves an HTTP forward proxy, optionally gated by Basic proxy
// authentication.
//
// It supports:
// - HTTP CONNECT tunneling (via connection hijacking + bidirectional copy)
// - non-CONNECT proxying of absolute-URI requests (via httputil.ReverseProxy)
type Server struct {
	ctx    context.Context
	cfg    Config
	logger log.StructuredLogger
	srv    *http.Server
	rp     *httputil.ReverseProxy
	nextID atomic.Uint64
}

// NewServer constructs a proxy server with the given config.
//
// Serve starts accepting connections on a listener; Close stops the
// underlying http.Server.
func NewServer(ctx context.Context, cfg Config) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop
	}

	s := &Server{ctx: ctx, cfg: cfg, logger: logger, rp: newReverseProxy(cfg)}
	s.srv = &http.Server{
		Handler:           http.HandlerFunc(s.handle),
		ReadHeaderTimeout: cfg.NegotiationTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return s.ctx
		},
	}
	return s
}

// Serve serves proxy requests on ln. Request parse failures are answered
// with 400 by the HTTP server machinery; no per-connection error propagates
// past its connection.
func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// Close stops the HTTP server.
func (s *Server) Close() error {
	return s.srv.Close()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	id := s.nextID.Add(1)
	start := time.Now()

	logger := s.logger.With("id", id, "method", r.Method, "target", requestTarget(r), "remote", r.RemoteAddr)
	logger.Debug("request received")

	s.cfg.Metrics.requestStarted(r.Method)
	status := s.dispatch(w, r, logger)
	elapsed := time.Since(start)
	s.cfg.Metrics.requestDone(r.Method, status, elapsed)

	logger.Debug("request done", "status", status, "duration", elapsed)
}

// dispatch authenticates the request and routes it to the tunnel splicer or
// the HTTP forwarder, returning the status reported to the client.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, logger log.StructuredLogger) int {
	if d := s.cfg.Credentials.Verify(r.Header); !d.Allowed {
		logger.Debug("proxy auth rejected", "reason", d.Reason)
		w.Header().Set("Proxy-Authenticate", `Basic realm="passage"`)
		w.Header().Set("Proxy-Connection", "close")
		httpError(w, "Proxy Authentication Required", http.StatusProxyAuthRequired)
		return http.StatusProxyAuthRequired
	}

	if strings.EqualFold(r.Method, http.MethodConnect) {
		return s.handleConnect(w, r, logger)
	}
	return s.handleForward(w, r)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request, logger log.StructuredLogger) int {
	target := r.Host
	if host, port, err := net.SplitHostPort(target); err != nil || host == "" || port == "" {
		httpError(w, "CONNECT target must be host:port", http.StatusBadRequest)
		return http.StatusBadRequest
	}

	// Dialing before hijacking keeps the connection in HTTP framing, so a
	// dial failure still produces a well-formed error response and a
	// client disconnect cancels the dial through the request context.
	serverConn, err := s.cfg.Dialer.DialContext(r.Context(), "tcp", target)
	if err != nil {
		logger.Debug("connect dial failed", "error", err)
		httpError(w, err.Error(), http.StatusBadGateway)
		return http.StatusBadGateway
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		_ = serverConn.Close()
		httpError(w, "hijacking not supported", http.StatusInternalServerError)
		return http.StatusInternalServerError
	}
	clientConn, brw, err := hj.Hijack()
	if err != nil {
		_ = serverConn.Close()
		httpError(w, "hijack failed", http.StatusInternalServerError)
		return http.StatusInternalServerError
	}

	// The connection leaves HTTP framing here. The confirmation must be
	// fully written before any tunneled byte is relayed.
	_, _ = brw.WriteString("HTTP/1.1 200 Connection Established\r\n\r\n")
	if err := brw.Flush(); err != nil {
		_ = clientConn.Close()
		_ = serverConn.Close()
		return http.StatusOK
	}

	// Bytes the client sent ahead of the confirmation (e.g. an eager TLS
	// ClientHello) are already buffered; relay them before splicing.
	if n := brw.Reader.Buffered(); n > 0 {
		if _, err := io.CopyN(serverConn, brw, int64(n)); err != nil {
			_ = clientConn.Close()
			_ = serverConn.Close()
			return http.StatusOK
		}
	}

	if err := CopyBidirectional(r.Context(), clientConn, serverConn); err != nil {
		logger.Debug("tunnel closed", "error", err)
	}
	return http.StatusOK
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) int {
	// A forward proxy only accepts absolute-URI targets for non-CONNECT
	// requests (RFC 7230 section 5.3.2).
	if r.URL == nil || !r.URL.IsAbs() {
		httpError(w, "request target must be an absolute URI", http.StatusBadRequest)
		return http.StatusBadRequest
	}

	sw := &statusWriter{ResponseWriter: w}
	s.rp.ServeHTTP(sw, r)
	return sw.Status()
}

// httpError writes an error response that also closes the inbound
// connection, so a failed exchange never leaves the client on a half-usable
// connection.
func httpError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Connection", "close")
	http.Error(w, msg, code)
}

func requestTarget(r *http.Request) string {
	if strings.EqualFold(r.Method, http.MethodConnect) {
		return r.Host
	}
	if r.URL != nil {
		return r.URL.String()
	}
	return r.RequestURI
}
