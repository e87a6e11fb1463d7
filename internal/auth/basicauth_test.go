package auth

import (
	"encoding/base64"
	"net/http"
	"testing"
)

func TestVerifyNoCredentialsConfigured(t *testing.T) {
	t.Parallel()

	var c *Credentials

	for _, h := range []http.Header{
		{},
		{ProxyAuthorizationHeader: {"Basic bogus"}},
		{ProxyAuthorizationHeader: {"Bearer token"}},
	} {
		if d := c.Verify(h); !d.Allowed {
			t.Errorf("Verify(%v) = %+v, want allowed", h, d)
		}
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	c := &Credentials{Username: "user", Password: "pass"}

	tests := []struct {
		name       string
		header     string
		allowed    bool
		wantReason string
	}{
		{
			name:       "no header",
			header:     "",
			wantReason: ReasonMissing,
		},
		{
			name:    "valid",
			header:  "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass")),
			allowed: true,
		},
		{
			name:    "scheme case-insensitive",
			header:  "basic " + base64.StdEncoding.EncodeToString([]byte("user:pass")),
			allowed: true,
		},
		{
			name:       "wrong scheme",
			header:     "Bearer abcdef",
			wantReason: ReasonMalformed,
		},
		{
			name:       "invalid base64",
			header:     "Basic !!!",
			wantReason: ReasonMalformed,
		},
		{
			name:       "no colon in decoded value",
			header:     "Basic " + base64.StdEncoding.EncodeToString([]byte("userpass")),
			wantReason: ReasonMalformed,
		},
		{
			name:       "wrong password",
			header:     "Basic " + base64.StdEncoding.EncodeToString([]byte("user:nope")),
			wantReason: ReasonInvalid,
		},
		{
			name:       "wrong username",
			header:     "Basic " + base64.StdEncoding.EncodeToString([]byte("nope:pass")),
			wantReason: ReasonInvalid,
		},
		{
			name:       "password with extra colon",
			header:     "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass:extra")),
			wantReason: ReasonInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := http.Header{}
			if tt.header != "" {
				h.Set(ProxyAuthorizationHeader, tt.header)
			}

			d := c.Verify(h)
			if d.Allowed != tt.allowed {
				t.Fatalf("allowed=%v want %v", d.Allowed, tt.allowed)
			}
			if d.Reason != tt.wantReason {
				t.Fatalf("reason=%q want %q", d.Reason, tt.wantReason)
			}
		})
	}
}

func TestSetBasicAuthRoundTrip(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	SetBasicAuth(h, "user", "pass")

	c := &Credentials{Username: "user", Password: "pass"}
	if d := c.Verify(h); !d.Allowed {
		t.Fatalf("Verify = %+v, want allowed", d)
	}
}
