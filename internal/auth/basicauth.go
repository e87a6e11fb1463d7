// Package auth implements HTTP Basic proxy authentication.
//
// See https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Proxy-Authorization
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

// ProxyAuthorizationHeader is the request header carrying proxy credentials.
const ProxyAuthorizationHeader = "Proxy-Authorization"

// Rejection reasons reported by Verify.
const (
	ReasonMissing   = "missing"
	ReasonMalformed = "malformed"
	ReasonInvalid   = "invalid"
)

// Credentials is the username/password pair required to use the proxy.
// A nil *Credentials means authentication is disabled.
type Credentials struct {
	Username string
	Password string
}

// Decision is the outcome of verifying a request's proxy credentials.
type Decision struct {
	Allowed bool
	// Reason explains a rejection: "missing", "malformed" or "invalid".
	Reason string
}

// Verify checks the Proxy-Authorization header in h against c. A nil c
// allows every request. Verify is a pure function of its inputs; credential
// comparison is constant-time to mitigate timing attacks.
func (c *Credentials) Verify(h http.Header) Decision {
	if c == nil {
		return Decision{Allowed: true}
	}

	v := h.Get(ProxyAuthorizationHeader)
	if v == "" {
		return Decision{Reason: ReasonMissing}
	}

	user, pass, ok := parseBasicAuth(v)
	if !ok {
		return Decision{Reason: ReasonMalformed}
	}

	if subtle.ConstantTimeCompare([]byte(user), []byte(c.Username)) != 1 ||
		subtle.ConstantTimeCompare([]byte(pass), []byte(c.Password)) != 1 {
		return Decision{Reason: ReasonInvalid}
	}

	return Decision{Allowed: true}
}

// parseBasicAuth parses an HTTP Basic Authentication string.
// "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==" returns ("Aladdin", "open sesame", true).
func parseBasicAuth(auth string) (username, password string, ok bool) {
	const prefix = "Basic "
	// Case insensitive prefix match. See Issue 22736.
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", "", false
	}
	c, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return "", "", false
	}
	username, password, ok = strings.Cut(string(c), ":")
	if !ok {
		return "", "", false
	}
	return username, password, true
}

// SetBasicAuth sets h's Proxy-Authorization header for the given username
// and password.
func SetBasicAuth(h http.Header, username, password string) {
	h.Set(ProxyAuthorizationHeader, "Basic "+base64.StdEncoding.EncodeToString([]byte(username+":"+password)))
}
