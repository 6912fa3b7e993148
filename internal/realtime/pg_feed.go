package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"messenger/internal/db"
	"messenger/internal/logger"
	"messenger/internal/models"
	"messenger/internal/observability"
)

const pgPingInterval = 90 * time.Second

// PGFeed fans out notifications from a single LISTEN connection to the
// subscriptions of each chat.
type PGFeed struct {
	listener *pq.Listener
	buffer   int
	log      *logger.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]map[*Subscription]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// NewPGFeed opens a listener on the message insert channel and starts
// dispatching notifications.
func NewPGFeed(dsn string, buffer int, log *logger.Logger) (*PGFeed, error) {
	f := newPGFeed(buffer, log)

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			f.log.Warn("listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(db.MessageInsertChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", db.MessageInsertChannel, err)
	}
	f.listener = listener

	go f.run()
	return f, nil
}

func newPGFeed(buffer int, log *logger.Logger) *PGFeed {
	return &PGFeed{
		buffer: buffer,
		log:    log.Named("pg_feed"),
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		done:   make(chan struct{}),
	}
}

func (f *PGFeed) run() {
	ticker := time.NewTicker(pgPingInterval)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			// nil after the listener reconnects; anything sent meanwhile is lost
			if n == nil {
				f.log.Info("listener reconnected")
				continue
			}
			f.dispatch([]byte(n.Extra))
		case <-ticker.C:
			go func() {
				if err := f.listener.Ping(); err != nil {
					f.log.Warn("listener ping failed", zap.Error(err))
				}
			}()
		case <-f.done:
			return
		}
	}
}

func (f *PGFeed) dispatch(payload []byte) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		observability.IncRealtimeEvent(driverPostgres, observability.OutcomeMalformed)
		f.log.Warn("malformed notification", zap.Error(err))
		return
	}
	if ev.Type != EventInsert || ev.Table != MessagesTable {
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs[ev.Record.ChatID] {
		if sub.Deliver(ev) {
			observability.IncRealtimeEvent(driverPostgres, observability.OutcomeDelivered)
		} else {
			observability.IncRealtimeEvent(driverPostgres, observability.OutcomeOverflow)
		}
	}
}

// Subscribe registers a subscription for chatID.
func (f *PGFeed) Subscribe(ctx context.Context, chatID uuid.UUID) (*Subscription, error) {
	var sub *Subscription
	sub = NewSubscription(chatID, f.buffer, func() { f.remove(sub) })

	// done is closed under mu, so a feed closing concurrently either sees
	// this subscription or makes us fail here
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return nil, ErrFeedClosed
	default:
	}
	if _, ok := f.subs[chatID]; !ok {
		f.subs[chatID] = make(map[*Subscription]struct{})
	}
	f.subs[chatID][sub] = struct{}{}
	f.mu.Unlock()

	observability.IncRealtimeSubscriptions(driverPostgres)
	closeOnDone(ctx, sub)
	return sub, nil
}

func (f *PGFeed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs, ok := f.subs[sub.ChatID()]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(f.subs, sub.ChatID())
	}
	observability.DecRealtimeSubscriptions(driverPostgres)
}

// Announce is a no-op: the insert trigger already notified listeners.
func (f *PGFeed) Announce(context.Context, models.MessageRecord) error {
	return nil
}

// Close stops dispatching and closes every open subscription.
func (f *PGFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.mu.Lock()
		close(f.done)
		var open []*Subscription
		for _, subs := range f.subs {
			for sub := range subs {
				open = append(open, sub)
			}
		}
		f.mu.Unlock()
		for _, sub := range open {
			sub.Close()
		}

		if f.listener != nil {
			err = f.listener.Close()
		}
	})
	return err
}
