package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// errorStatus maps an outbound failure to the HTTP status reported to the
// client while the connection is still in HTTP framing: timeouts are 504,
// everything else on the upstream leg is 502.
func errorStatus(err error) int {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
