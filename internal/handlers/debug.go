package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger/internal/rabbitmq"
	"messenger/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints under /debug. Nothing is
// mounted unless enabled.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, publisher rabbitmq.Publisher, enabled bool) {
	if !enabled {
		return
	}

	debug := router.Group("/debug")

	// audit-test pushes a probe record through the audit pipeline
	debug.GET("/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		text := "audit probe"
		if userID, ok := userIDFromContext(c); ok {
			text = fmt.Sprintf("audit probe from %s", userID)
		}
		emitter.Emit(c.Request.Context(), "INFO", text, requestIDFromContext(c), auditUserID(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	debug.GET("/events", func(c *gin.Context) {
		if publisher == nil {
			c.JSON(http.StatusOK, gin.H{"mode": "none"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"mode":        rabbitmq.PublisherMode(publisher),
			"noop_reason": rabbitmq.PublisherNoopReason(publisher),
		})
	})
}
