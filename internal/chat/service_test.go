package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger/internal/logger"
	"messenger/internal/mocks"
	"messenger/internal/models"
)

type fixture struct {
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	profiles *mocks.ProfileRepositoryMock
	feed     *mocks.FeedMock
	svc      *Service
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		profiles: new(mocks.ProfileRepositoryMock),
		feed:     new(mocks.FeedMock),
	}
	f.svc = NewService(f.chats, f.messages, f.profiles, f.feed, logger.Nop(), opts...)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.chats.AssertExpectations(t)
	f.messages.AssertExpectations(t)
	f.profiles.AssertExpectations(t)
	f.feed.AssertExpectations(t)
}

type prefixResolver string

func (p prefixResolver) ResolveAvatar(_ context.Context, ref string) string {
	return string(p) + ref
}

func TestListChatsNoMembershipSkipsFurtherQueries(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	f.chats.On("ListChatIDsForUser", mock.Anything, userID).Return([]uuid.UUID{}, nil).Once()

	chats, err := f.svc.ListChats(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, chats)
	assert.NotNil(t, chats)

	f.assertExpectations(t)
	f.chats.AssertNotCalled(t, "ListChatsByIDs", mock.Anything, mock.Anything)
	f.chats.AssertNotCalled(t, "ListParticipants", mock.Anything, mock.Anything)
	f.messages.AssertNotCalled(t, "ListByChatIDs", mock.Anything, mock.Anything)
}

func TestListChatsJoinsParticipantsAndLatestMessage(t *testing.T) {
	f := newFixture()
	me, bob, carol := uuid.New(), uuid.New(), uuid.New()
	direct, group := uuid.New(), uuid.New()
	ids := []uuid.UUID{direct, group}
	now := time.Now().UTC()
	name := "Team"

	f.chats.On("ListChatIDsForUser", mock.Anything, me).Return(ids, nil).Once()
	f.chats.On("ListChatsByIDs", mock.Anything, ids).Return([]models.ChatRow{
		{ID: group, IsGroup: true, Name: &name, CreatedBy: &me, UpdatedAt: now},
		{ID: direct, UpdatedAt: now.Add(-time.Hour)},
	}, nil).Once()
	f.chats.On("ListParticipants", mock.Anything, ids).Return([]models.ParticipantRow{
		{ChatID: direct, UserID: me, Username: "me"},
		{ChatID: direct, UserID: bob, Username: "bob"},
		{ChatID: group, UserID: me, Username: "me", IsAdmin: true},
		{ChatID: group, UserID: bob, Username: "bob"},
		{ChatID: group, UserID: carol, Username: "carol"},
	}, nil).Once()
	f.messages.On("ListByChatIDs", mock.Anything, ids).Return([]models.MessageRow{
		{ID: uuid.New(), ChatID: group, SenderID: carol, Username: "carol", Content: "latest", CreatedAt: now},
		{ID: uuid.New(), ChatID: group, SenderID: me, Username: "me", Content: "earlier", CreatedAt: now.Add(-time.Minute)},
	}, nil).Once()

	chats, err := f.svc.ListChats(context.Background(), me)
	require.NoError(t, err)
	require.Len(t, chats, 2)

	assert.Equal(t, group, chats[0].ID)
	assert.Equal(t, direct, chats[1].ID)

	groupIDs := make([]uuid.UUID, 0, len(chats[0].Participants))
	for _, p := range chats[0].Participants {
		groupIDs = append(groupIDs, p.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{me, bob, carol}, groupIDs)
	assert.Len(t, chats[1].Participants, 2)
	assert.Equal(t, []uuid.UUID{me}, chats[0].AdminIDs)
	assert.Empty(t, chats[1].AdminIDs)
	assert.NotNil(t, chats[1].AdminIDs)

	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, "latest", chats[0].LastMessage.Content)
	assert.Equal(t, carol, chats[0].LastMessage.Sender.ID)
	assert.Nil(t, chats[1].LastMessage)

	for _, c := range chats {
		assert.Zero(t, c.UnreadCount)
	}
	f.assertExpectations(t)
}

func TestListChatsFailsWhole(t *testing.T) {
	f := newFixture()
	me := uuid.New()
	ids := []uuid.UUID{uuid.New()}

	f.chats.On("ListChatIDsForUser", mock.Anything, me).Return(ids, nil).Once()
	f.chats.On("ListChatsByIDs", mock.Anything, ids).Return([]models.ChatRow{{ID: ids[0]}}, nil).Maybe()
	f.chats.On("ListParticipants", mock.Anything, ids).Return(nil, assert.AnError).Once()
	f.messages.On("ListByChatIDs", mock.Anything, ids).Return([]models.MessageRow{}, nil).Maybe()

	chats, err := f.svc.ListChats(context.Background(), me)
	require.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, chats)
}

func TestListChatsResolvesAvatars(t *testing.T) {
	f := newFixture(WithAvatarResolver(prefixResolver("https://cdn/")))
	me := uuid.New()
	chatID := uuid.New()
	ids := []uuid.UUID{chatID}

	f.chats.On("ListChatIDsForUser", mock.Anything, me).Return(ids, nil).Once()
	f.chats.On("ListChatsByIDs", mock.Anything, ids).Return([]models.ChatRow{{ID: chatID}}, nil).Once()
	f.chats.On("ListParticipants", mock.Anything, ids).Return([]models.ParticipantRow{
		{ChatID: chatID, UserID: me, AvatarURL: "avatars/me.png"},
		{ChatID: chatID, UserID: uuid.New()},
	}, nil).Once()
	f.messages.On("ListByChatIDs", mock.Anything, ids).Return([]models.MessageRow{}, nil).Once()

	chats, err := f.svc.ListChats(context.Background(), me)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "https://cdn/avatars/me.png", chats[0].Participants[0].AvatarURL)
	assert.Empty(t, chats[0].Participants[1].AvatarURL)
}

func TestListUsersExcludesCaller(t *testing.T) {
	f := newFixture()
	me, bob := uuid.New(), uuid.New()
	f.profiles.On("ListProfilesExcept", mock.Anything, me).Return([]models.Profile{{ID: bob, Username: "bob"}}, nil).Once()

	users, err := f.svc.ListUsers(context.Background(), me)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.NotEqual(t, me, users[0].ID)
	f.assertExpectations(t)
}

func TestCreateDirectChat(t *testing.T) {
	f := newFixture()
	me, bob, chatID := uuid.New(), uuid.New(), uuid.New()

	f.chats.On("CreateChat", mock.Anything,
		models.NewChat{IsGroup: false, Name: nil, CreatedBy: me},
		[]models.NewParticipant{{UserID: me, IsAdmin: false}, {UserID: bob, IsAdmin: false}},
	).Return(chatID, nil).Once()

	id, err := f.svc.CreateChat(context.Background(), me, []uuid.UUID{bob}, false, "ignored")
	require.NoError(t, err)
	assert.Equal(t, chatID, id)
	f.assertExpectations(t)
}

func TestCreateGroupChatMakesCreatorAdmin(t *testing.T) {
	f := newFixture()
	me, bob, carol, chatID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	name := "Team"

	f.chats.On("CreateChat", mock.Anything,
		models.NewChat{IsGroup: true, Name: &name, CreatedBy: me},
		[]models.NewParticipant{{UserID: me, IsAdmin: true}, {UserID: bob}, {UserID: carol}},
	).Return(chatID, nil).Once()

	id, err := f.svc.CreateChat(context.Background(), me, []uuid.UUID{bob, me, carol, bob}, true, name)
	require.NoError(t, err)
	assert.Equal(t, chatID, id)
	f.assertExpectations(t)
}

func TestCreateChatPropagatesError(t *testing.T) {
	f := newFixture()
	f.chats.On("CreateChat", mock.Anything, mock.Anything, mock.Anything).Return(uuid.Nil, assert.AnError).Once()

	_, err := f.svc.CreateChat(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, false, "")
	require.ErrorIs(t, err, assert.AnError)
}

func TestSendThenGetMessages(t *testing.T) {
	f := newFixture()
	me, chatID := uuid.New(), uuid.New()
	now := time.Now().UTC()
	rec := models.MessageRecord{ID: uuid.New(), ChatID: chatID, SenderID: me, Content: "hello", CreatedAt: now}

	f.messages.On("Create", mock.Anything, chatID, me, "hello").Return(rec, nil).Once()
	f.feed.On("Announce", mock.Anything, rec).Return(nil).Once()
	f.messages.On("ListByChat", mock.Anything, chatID).Return([]models.MessageRow{
		{ID: uuid.New(), ChatID: chatID, SenderID: me, Username: "me", Content: "first", CreatedAt: now.Add(-time.Minute)},
		{ID: rec.ID, ChatID: chatID, SenderID: me, Username: "me", Content: "hello", CreatedAt: now},
	}, nil).Once()

	got, err := f.svc.SendMessage(context.Background(), chatID, "hello", me)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	msgs, err := f.svc.GetMessages(context.Background(), chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "hello", last.Content)
	assert.Equal(t, me, last.Sender.ID)
	assert.True(t, msgs[0].CreatedAt.Before(last.CreatedAt))
	f.assertExpectations(t)
}

func TestSendMessageIgnoresAnnounceFailure(t *testing.T) {
	f := newFixture()
	me, chatID := uuid.New(), uuid.New()
	rec := models.MessageRecord{ID: uuid.New(), ChatID: chatID, SenderID: me}

	f.messages.On("Create", mock.Anything, chatID, me, "hi").Return(rec, nil).Once()
	f.feed.On("Announce", mock.Anything, rec).Return(assert.AnError).Once()

	_, err := f.svc.SendMessage(context.Background(), chatID, "hi", me)
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestSendMessageInsertFailure(t *testing.T) {
	f := newFixture()
	f.messages.On("Create", mock.Anything, mock.Anything, mock.Anything, "hi").Return(nil, assert.AnError).Once()

	_, err := f.svc.SendMessage(context.Background(), uuid.New(), "hi", uuid.New())
	require.ErrorIs(t, err, assert.AnError)
	f.feed.AssertNotCalled(t, "Announce", mock.Anything, mock.Anything)
}

func TestAddParticipantsAreNotAdmins(t *testing.T) {
	f := newFixture()
	chatID, bob := uuid.New(), uuid.New()
	f.chats.On("AddParticipants", mock.Anything, chatID, []models.NewParticipant{{UserID: bob}}).Return(nil).Once()

	require.NoError(t, f.svc.AddParticipants(context.Background(), chatID, []uuid.UUID{bob}))
	f.assertExpectations(t)
}

func TestUpdateGroupNameAndRemoveParticipant(t *testing.T) {
	f := newFixture()
	chatID, bob := uuid.New(), uuid.New()
	f.chats.On("UpdateName", mock.Anything, chatID, "New").Return(nil).Once()
	f.chats.On("RemoveParticipant", mock.Anything, chatID, bob).Return(nil).Once()

	require.NoError(t, f.svc.UpdateGroupName(context.Background(), chatID, "New"))
	require.NoError(t, f.svc.RemoveParticipant(context.Background(), chatID, bob))
	f.assertExpectations(t)
}
