package realtime

import (
	"context"

	"github.com/google/uuid"

	"messenger/internal/models"
)

// Feed is a source of message insert notifications scoped by chat.
type Feed interface {
	// Subscribe opens a subscription for chatID. It stays open until closed
	// or until ctx is cancelled.
	Subscribe(ctx context.Context, chatID uuid.UUID) (*Subscription, error)
	// Announce tells the feed that rec was just inserted.
	Announce(ctx context.Context, rec models.MessageRecord) error
	Close() error
}

const (
	driverPostgres = "postgres"
	driverRedis    = "redis"
)
