// Package dialer provides the outbound dialing implementations used by
// passage.
//
// Dialers implement a small interface (DialContext) and are used by the
// proxy to establish outbound connections either directly or chained through
// an upstream proxy (HTTP CONNECT or SOCKS5).
package dialer
