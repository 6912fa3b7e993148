package observability

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"messenger/internal/logger"
)

func TestRequestIDFromRequestPrefersContext(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/chats/x", nil)
	r.Header.Set("X-Request-Id", "from-header")
	assert.Equal(t, "from-header", RequestIDFromRequest(r))

	r = r.WithContext(context.WithValue(r.Context(), logger.RequestIDKey, "from-middleware"))
	assert.Equal(t, "from-middleware", RequestIDFromRequest(r))
}

func TestIPFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "10.0.0.7", IPFromRequest(r))

	r.Header.Set("X-Forwarded-For", " , 203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", IPFromRequest(r))
}
