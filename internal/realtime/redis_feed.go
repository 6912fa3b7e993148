package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"messenger/internal/logger"
	"messenger/internal/models"
	"messenger/internal/observability"
)

var ErrFeedClosed = errors.New("realtime feed closed")

// ChannelName is the Redis channel carrying the inserts of one chat.
func ChannelName(chatID uuid.UUID) string {
	return "chat:" + chatID.String()
}

// RedisFeed relays message inserts over Redis pub/sub. Writers publish
// through Announce; each subscription holds its own SUBSCRIBE.
type RedisFeed struct {
	client *redis.Client
	buffer int
	log    *logger.Logger
}

func NewRedisFeed(client *redis.Client, buffer int, log *logger.Logger) *RedisFeed {
	return &RedisFeed{client: client, buffer: buffer, log: log.Named("redis_feed")}
}

func (f *RedisFeed) Subscribe(ctx context.Context, chatID uuid.UUID) (*Subscription, error) {
	pubsub := f.client.Subscribe(ctx, ChannelName(chatID))
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ChannelName(chatID), err)
	}

	sub := NewSubscription(chatID, f.buffer, func() {
		_ = pubsub.Close()
		observability.DecRealtimeSubscriptions(driverRedis)
	})
	observability.IncRealtimeSubscriptions(driverRedis)

	go f.pump(pubsub.Channel(), sub)
	closeOnDone(ctx, sub)
	return sub, nil
}

func (f *RedisFeed) pump(ch <-chan *redis.Message, sub *Subscription) {
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				sub.Close()
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				observability.IncRealtimeEvent(driverRedis, observability.OutcomeMalformed)
				f.log.Warn("malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if ev.Record.ChatID != sub.ChatID() {
				continue
			}
			if sub.Deliver(ev) {
				observability.IncRealtimeEvent(driverRedis, observability.OutcomeDelivered)
			} else {
				observability.IncRealtimeEvent(driverRedis, observability.OutcomeOverflow)
			}
		case <-sub.Done():
			return
		}
	}
}

// Announce publishes the insert to the chat's channel. The content is left
// out, matching what the database trigger sends.
func (f *RedisFeed) Announce(ctx context.Context, rec models.MessageRecord) error {
	rec.Content = ""
	payload, err := json.Marshal(Event{Type: EventInsert, Table: MessagesTable, Record: rec})
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, ChannelName(rec.ChatID), payload).Err()
}

// Close is a no-op; the Redis client is owned by the caller.
func (f *RedisFeed) Close() error {
	return nil
}
