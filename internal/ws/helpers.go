package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"messenger/internal/observability"
)

const wsRoutingKey = "ws_events.chats"

func newConnID() string {
	return uuid.NewString()
}

// publishWSEvent records a connection lifecycle event in metrics and on the
// event bus.
func publishWSEvent(ctx context.Context, info ConnInfo, chatID uuid.UUID, event, reason string) {
	observability.IncWSEvent(event)

	var resourceID string
	if chatID != uuid.Nil {
		resourceID = chatID.String()
	}
	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "chat",
				"resource_id": resourceID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": info.identity(),
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
