package observability

import (
	"net"
	"net/http"
	"strings"

	"messenger/internal/logger"
)

const (
	deviceIDHeader  = "X-Device-Id"
	requestIDHeader = "X-Request-Id"
)

// DeviceIDFromRequest returns the client-reported device id, if any.
func DeviceIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(deviceIDHeader))
}

// RequestIDFromRequest prefers the id assigned by the request id middleware
// and falls back to the inbound header.
func RequestIDFromRequest(r *http.Request) string {
	if requestID, ok := r.Context().Value(logger.RequestIDKey).(string); ok && requestID != "" {
		return requestID
	}
	return r.Header.Get(requestIDHeader)
}

// IPFromRequest returns the first non-empty X-Forwarded-For hop or the peer address.
func IPFromRequest(r *http.Request) string {
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if hop = strings.TrimSpace(hop); hop != "" {
			return hop
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
