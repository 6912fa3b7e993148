package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"messenger/internal/models"
)

// Event is a row-level change notification for the messages table.
type Event struct {
	Type   string               `json:"type"`
	Table  string               `json:"table"`
	Record models.MessageRecord `json:"record"`
}

const (
	EventInsert   = "INSERT"
	MessagesTable = "messages"
)

// Subscription receives the message inserts of a single chat until closed.
type Subscription struct {
	chatID uuid.UUID
	events chan Event
	done   chan struct{}
	once   sync.Once
	stop   func()
}

// NewSubscription builds a subscription with a bounded event buffer. stop is
// run once when the subscription is closed.
func NewSubscription(chatID uuid.UUID, buffer int, stop func()) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	return &Subscription{
		chatID: chatID,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		stop:   stop,
	}
}

func (s *Subscription) ChatID() uuid.UUID { return s.chatID }

// Events yields delivered events. The channel is never closed; wait on Done
// to learn that the subscription ended.
func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Deliver hands ev to the subscriber without blocking. It reports false when
// the subscription is closed or its buffer is full.
func (s *Subscription) Deliver(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			s.stop()
		}
	})
}

// closeOnDone closes sub when ctx is cancelled.
func closeOnDone(ctx context.Context, sub *Subscription) {
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.Done():
		}
	}()
}
