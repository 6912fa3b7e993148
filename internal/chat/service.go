// Package chat is the data-access façade used by the HTTP and websocket
// views: it assembles chats from row-level queries and bridges realtime
// message inserts to per-view callbacks.
package chat

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"messenger/internal/logger"
	"messenger/internal/models"
	"messenger/internal/realtime"
	"messenger/internal/repositories"
)

// AvatarResolver turns a stored avatar reference into a URL clients can load.
type AvatarResolver interface {
	ResolveAvatar(ctx context.Context, ref string) string
}

// Service reads and writes chats, participants and messages. It performs no
// input validation; callers are expected to do that.
type Service struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	profiles repositories.ProfileRepository
	feed     realtime.Feed
	avatars  AvatarResolver
	log      *logger.Logger
}

type Option func(*Service)

// WithAvatarResolver rewrites every profile avatar returned by the service.
func WithAvatarResolver(r AvatarResolver) Option {
	return func(s *Service) { s.avatars = r }
}

func NewService(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	profiles repositories.ProfileRepository,
	feed realtime.Feed,
	log *logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		chats:    chats,
		messages: messages,
		profiles: profiles,
		feed:     feed,
		log:      log.Named("chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListChats returns every chat userID participates in, most recently active
// first, with participants and the latest message joined in.
func (s *Service) ListChats(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	ids, err := s.chats.ListChatIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Chat{}, nil
	}

	var (
		rows         []models.ChatRow
		participants []models.ParticipantRow
		messages     []models.MessageRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.chats.ListChatsByIDs(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.chats.ListParticipants(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		messages, err = s.messages.ListByChatIDs(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	profilesByChat := make(map[uuid.UUID][]models.Profile, len(ids))
	adminsByChat := make(map[uuid.UUID][]uuid.UUID)
	for _, p := range participants {
		profilesByChat[p.ChatID] = append(profilesByChat[p.ChatID], s.resolveProfile(ctx, p.Profile()))
		if p.IsAdmin {
			adminsByChat[p.ChatID] = append(adminsByChat[p.ChatID], p.UserID)
		}
	}

	// messages arrive newest first, so the first one seen per chat wins
	lastByChat := make(map[uuid.UUID]*models.LastMessage, len(ids))
	for _, m := range messages {
		if _, ok := lastByChat[m.ChatID]; ok {
			continue
		}
		msg := s.resolveMessage(ctx, m.Message())
		lastByChat[m.ChatID] = &models.LastMessage{
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
			Sender:    msg.Sender,
		}
	}

	chats := make([]models.Chat, 0, len(rows))
	for _, row := range rows {
		profiles := profilesByChat[row.ID]
		if profiles == nil {
			profiles = []models.Profile{}
		}
		admins := adminsByChat[row.ID]
		if admins == nil {
			admins = []uuid.UUID{}
		}
		chats = append(chats, models.Chat{
			ID:           row.ID,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
			IsGroup:      row.IsGroup,
			Name:         row.Name,
			CreatedBy:    row.CreatedBy,
			Participants: profiles,
			AdminIDs:     admins,
			LastMessage:  lastByChat[row.ID],
		})
	}
	return chats, nil
}

// ListUsers returns every profile except userID's own.
func (s *Service) ListUsers(ctx context.Context, userID uuid.UUID) ([]models.Profile, error) {
	profiles, err := s.profiles.ListProfilesExcept(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, s.resolveProfile(ctx, p))
	}
	return out, nil
}

// CreateChat creates a chat owned by creatorID with the given participants.
// The creator is always a participant and is admin of group chats; name is
// only stored for groups. Duplicate ids are collapsed.
func (s *Service) CreateChat(ctx context.Context, creatorID uuid.UUID, participantIDs []uuid.UUID, isGroup bool, name string) (uuid.UUID, error) {
	chat := models.NewChat{IsGroup: isGroup, CreatedBy: creatorID}
	if isGroup {
		chat.Name = &name
	}

	participants := []models.NewParticipant{{UserID: creatorID, IsAdmin: isGroup}}
	seen := map[uuid.UUID]struct{}{creatorID: {}}
	for _, id := range participantIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		participants = append(participants, models.NewParticipant{UserID: id})
	}

	return s.chats.CreateChat(ctx, chat, participants)
}

// GetMessages returns the full transcript of a chat, oldest first.
func (s *Service) GetMessages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	rows, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.resolveMessage(ctx, row.Message()))
	}
	return out, nil
}

// SendMessage stores a message and announces it to the realtime feed.
// A failed announcement is logged; the message is already stored.
func (s *Service) SendMessage(ctx context.Context, chatID uuid.UUID, content string, senderID uuid.UUID) (models.MessageRecord, error) {
	rec, err := s.messages.Create(ctx, chatID, senderID, content)
	if err != nil {
		return models.MessageRecord{}, err
	}
	if err := s.feed.Announce(ctx, rec); err != nil {
		s.log.Ctx(ctx).Warn("announce message", zap.String("message_id", rec.ID.String()), zap.Error(err))
	}
	return rec, nil
}

// AddParticipants adds userIDs to a chat as regular members.
func (s *Service) AddParticipants(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) error {
	participants := make([]models.NewParticipant, 0, len(userIDs))
	for _, id := range userIDs {
		participants = append(participants, models.NewParticipant{UserID: id})
	}
	return s.chats.AddParticipants(ctx, chatID, participants)
}

func (s *Service) RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	return s.chats.RemoveParticipant(ctx, chatID, userID)
}

func (s *Service) UpdateGroupName(ctx context.Context, chatID uuid.UUID, name string) error {
	return s.chats.UpdateName(ctx, chatID, name)
}

func (s *Service) IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	return s.chats.IsParticipant(ctx, chatID, userID)
}

// GetChat returns the bare chat row.
func (s *Service) GetChat(ctx context.Context, chatID uuid.UUID) (models.ChatRow, error) {
	return s.chats.GetChat(ctx, chatID)
}

func (s *Service) resolveProfile(ctx context.Context, p models.Profile) models.Profile {
	if s.avatars != nil && p.AvatarURL != "" {
		p.AvatarURL = s.avatars.ResolveAvatar(ctx, p.AvatarURL)
	}
	return p
}

func (s *Service) resolveMessage(ctx context.Context, m models.Message) models.Message {
	m.Sender = s.resolveProfile(ctx, m.Sender)
	return m
}
