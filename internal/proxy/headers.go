package proxy

import (
	"net/http"
	"strings"
)

// Hop-by-hop headers that must not be forwarded past a single transport
// connection. See RFC 7230 section 6.1.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// sanitizeHeader returns a copy of h with hop-by-hop headers removed,
// including any header named in a Connection value per RFC semantics. h is
// left untouched so the inbound request remains available for logging.
func sanitizeHeader(h http.Header) http.Header {
	drop := make(map[string]struct{}, len(hopByHopHeaders))
	for _, k := range hopByHopHeaders {
		drop[k] = struct{}{}
	}
	for _, v := range h.Values("Connection") {
		for _, tok := range strings.Split(v, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				drop[http.CanonicalHeaderKey(tok)] = struct{}{}
			}
		}
	}

	out := make(http.Header, len(h))
	for k, vv := range h {
		if _, ok := drop[http.CanonicalHeaderKey(k)]; ok {
			continue
		}
		out[k] = append([]string(nil), vv...)
	}
	return out
}
