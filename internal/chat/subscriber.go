package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messenger/internal/models"
	"messenger/internal/observability"
	"messenger/internal/realtime"
)

const bridgeMetricDriver = "bridge"

// Subscriber holds at most one live message subscription for its owner.
// Each view creates its own with Service.NewSubscriber.
type Subscriber struct {
	svc *Service

	mu     sync.Mutex
	sub    *realtime.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Service) NewSubscriber() *Subscriber {
	return &Subscriber{svc: s}
}

// Subscribe replaces any current subscription with one for chatID. Each new
// message of the chat is re-read with its sender and passed to onMessage.
// Events whose message cannot be read are dropped. onMessage runs on a
// separate goroutine and must not call back into the Subscriber.
func (s *Subscriber) Subscribe(ctx context.Context, chatID uuid.UUID, onMessage func(models.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	subCtx, cancel := context.WithCancel(ctx)
	sub, err := s.svc.feed.Subscribe(subCtx, chatID)
	if err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	s.sub, s.cancel, s.done = sub, cancel, done
	go s.consume(subCtx, sub, onMessage, done)
	return nil
}

// Unsubscribe closes the current subscription, if any. Once it returns
// onMessage is no longer called.
func (s *Subscriber) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// ChatID reports the chat currently subscribed to.
func (s *Subscriber) ChatID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return uuid.Nil, false
	}
	return s.sub.ChatID(), true
}

func (s *Subscriber) closeLocked() {
	if s.sub == nil {
		return
	}
	s.cancel()
	s.sub.Close()
	<-s.done
	s.sub, s.cancel, s.done = nil, nil, nil
}

func (s *Subscriber) consume(ctx context.Context, sub *realtime.Subscription, onMessage func(models.Message), done chan struct{}) {
	defer close(done)
	log := s.svc.log.With(zap.String("chat_id", sub.ChatID().String()))

	for {
		select {
		case <-sub.Done():
			return
		case ev := <-sub.Events():
			row, err := s.svc.messages.GetWithSender(ctx, ev.Record.ID)
			if err != nil {
				observability.IncRealtimeEvent(bridgeMetricDriver, observability.OutcomeDropped)
				log.Debug("drop message event", zap.String("message_id", ev.Record.ID.String()), zap.Error(err))
				continue
			}
			select {
			case <-sub.Done():
				return
			default:
			}
			onMessage(s.svc.resolveMessage(ctx, row.Message()))
		}
	}
}
