package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo identifies one websocket connection for lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      uuid.UUID
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) identity() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   i.UserID.String(),
		"device_id": i.DeviceID,
		"ip":        i.IP,
	}
}
