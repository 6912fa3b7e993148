package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"messenger/internal/models"
	"messenger/internal/realtime"
	"messenger/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) ListChatIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, userID)
	var ids []uuid.UUID
	if val := args.Get(0); val != nil {
		ids = val.([]uuid.UUID)
	}
	return ids, args.Error(1)
}

func (m *ChatRepositoryMock) ListChatsByIDs(ctx context.Context, chatIDs []uuid.UUID) ([]models.ChatRow, error) {
	args := m.Called(ctx, chatIDs)
	var rows []models.ChatRow
	if val := args.Get(0); val != nil {
		rows = val.([]models.ChatRow)
	}
	return rows, args.Error(1)
}

func (m *ChatRepositoryMock) ListParticipants(ctx context.Context, chatIDs []uuid.UUID) ([]models.ParticipantRow, error) {
	args := m.Called(ctx, chatIDs)
	var rows []models.ParticipantRow
	if val := args.Get(0); val != nil {
		rows = val.([]models.ParticipantRow)
	}
	return rows, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID uuid.UUID) (models.ChatRow, error) {
	args := m.Called(ctx, chatID)
	var chat models.ChatRow
	if val := args.Get(0); val != nil {
		chat = val.(models.ChatRow)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, chat models.NewChat, participants []models.NewParticipant) (uuid.UUID, error) {
	args := m.Called(ctx, chat, participants)
	var id uuid.UUID
	if val := args.Get(0); val != nil {
		id = val.(uuid.UUID)
	}
	return id, args.Error(1)
}

func (m *ChatRepositoryMock) AddParticipants(ctx context.Context, chatID uuid.UUID, participants []models.NewParticipant) error {
	args := m.Called(ctx, chatID, participants)
	return args.Error(0)
}

func (m *ChatRepositoryMock) RemoveParticipant(ctx context.Context, chatID uuid.UUID, userID uuid.UUID) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) UpdateName(ctx context.Context, chatID uuid.UUID, name string) error {
	args := m.Called(ctx, chatID, name)
	return args.Error(0)
}

func (m *ChatRepositoryMock) IsParticipant(ctx context.Context, chatID uuid.UUID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) ListByChatIDs(ctx context.Context, chatIDs []uuid.UUID) ([]models.MessageRow, error) {
	args := m.Called(ctx, chatIDs)
	var rows []models.MessageRow
	if val := args.Get(0); val != nil {
		rows = val.([]models.MessageRow)
	}
	return rows, args.Error(1)
}

func (m *MessageRepositoryMock) ListByChat(ctx context.Context, chatID uuid.UUID) ([]models.MessageRow, error) {
	args := m.Called(ctx, chatID)
	var rows []models.MessageRow
	if val := args.Get(0); val != nil {
		rows = val.([]models.MessageRow)
	}
	return rows, args.Error(1)
}

func (m *MessageRepositoryMock) GetWithSender(ctx context.Context, messageID uuid.UUID) (models.MessageRow, error) {
	args := m.Called(ctx, messageID)
	var row models.MessageRow
	if val := args.Get(0); val != nil {
		row = val.(models.MessageRow)
	}
	return row, args.Error(1)
}

func (m *MessageRepositoryMock) Create(ctx context.Context, chatID uuid.UUID, senderID uuid.UUID, content string) (models.MessageRecord, error) {
	args := m.Called(ctx, chatID, senderID, content)
	var rec models.MessageRecord
	if val := args.Get(0); val != nil {
		rec = val.(models.MessageRecord)
	}
	return rec, args.Error(1)
}

type ProfileRepositoryMock struct {
	mock.Mock
}

func (m *ProfileRepositoryMock) ListProfilesExcept(ctx context.Context, userID uuid.UUID) ([]models.Profile, error) {
	args := m.Called(ctx, userID)
	var profiles []models.Profile
	if val := args.Get(0); val != nil {
		profiles = val.([]models.Profile)
	}
	return profiles, args.Error(1)
}

type FeedMock struct {
	mock.Mock
}

func (m *FeedMock) Subscribe(ctx context.Context, chatID uuid.UUID) (*realtime.Subscription, error) {
	args := m.Called(ctx, chatID)
	var sub *realtime.Subscription
	if val := args.Get(0); val != nil {
		sub = val.(*realtime.Subscription)
	}
	return sub, args.Error(1)
}

func (m *FeedMock) Announce(ctx context.Context, rec models.MessageRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *FeedMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ProfileRepository = (*ProfileRepositoryMock)(nil)
var _ realtime.Feed = (*FeedMock)(nil)
