package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"messenger/internal/chat"
	"messenger/internal/logger"
	"messenger/internal/repositories"
	"messenger/internal/telemetry"
)

// ChatHandler serves the chat list and conversation endpoints.
type ChatHandler struct {
	svc   *chat.Service
	audit *telemetry.AuditEmitter
	log   *logger.Logger
}

// NewChatHandler builds a ChatHandler. audit may be nil.
func NewChatHandler(svc *chat.Service, audit *telemetry.AuditEmitter, log *logger.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, audit: audit, log: log.Named("chat_handler")}
}

// Register mounts the chat routes on an authenticated group.
func (h *ChatHandler) Register(r gin.IRouter) {
	r.GET("/chats", h.ListChats)
	r.POST("/chats", h.CreateChat)
	r.PATCH("/chats/:chat_id", h.RenameChat)
	r.GET("/chats/:chat_id/messages", h.GetMessages)
	r.POST("/chats/:chat_id/messages", h.PostMessage)
	r.POST("/chats/:chat_id/participants", h.AddParticipants)
	r.DELETE("/chats/:chat_id/participants/:user_id", h.RemoveParticipant)
}

// ListChats returns the chats visible to the authenticated user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	chats, err := h.svc.ListChats(c.Request.Context(), userID)
	if err != nil {
		h.log.Ctx(c.Request.Context()).Error("list chats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

type createChatRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
	IsGroup        bool     `json:"is_group"`
	Name           string   `json:"name"`
}

// CreateChat starts a direct or group chat with the caller as a participant.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participants, err := parseUUIDs(req.ParticipantIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !hasOther(participants, userID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if req.IsGroup && name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group name is required"})
		return
	}

	chatID, err := h.svc.CreateChat(c.Request.Context(), userID, participants, req.IsGroup, name)
	if err != nil {
		h.log.Ctx(c.Request.Context()).Error("create chat", zap.Bool("is_group", req.IsGroup), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	h.emit(c, fmt.Sprintf("chat %s created with %d participants", chatID, len(participants)))
	c.JSON(http.StatusCreated, gin.H{"chat_id": chatID})
}

// GetMessages returns the transcript of a chat the caller belongs to.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	chatID, ok := h.requireParticipant(c)
	if !ok {
		return
	}

	msgs, err := h.svc.GetMessages(c.Request.Context(), chatID)
	if err != nil {
		h.log.Ctx(c.Request.Context()).Error("get messages", zap.String("chat_id", chatID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message. Subscribers learn about it through the
// realtime feed.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	chatID, ok := h.requireParticipant(c)
	if !ok {
		return
	}
	userID, _ := userIDFromContext(c)

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// whitespace-only messages are rejected; anything else is stored verbatim
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content is required"})
		return
	}

	rec, err := h.svc.SendMessage(c.Request.Context(), chatID, req.Content, userID)
	if err != nil {
		h.log.Ctx(c.Request.Context()).Error("send message", zap.String("chat_id", chatID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.emit(c, fmt.Sprintf("message %s sent to chat %s", rec.ID, chatID))
	c.JSON(http.StatusCreated, rec)
}

// AddParticipants adds members to a group chat.
func (h *ChatHandler) AddParticipants(c *gin.Context) {
	chatID, ok := h.requireGroup(c)
	if !ok {
		return
	}

	var req struct {
		UserIDs []string `json:"user_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userIDs, err := parseUUIDs(req.UserIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.AddParticipants(c.Request.Context(), chatID, userIDs); err != nil {
		h.log.Ctx(c.Request.Context()).Error("add participants", zap.String("chat_id", chatID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add participants"})
		return
	}

	h.emit(c, fmt.Sprintf("%d participants added to chat %s", len(userIDs), chatID))
	c.Status(http.StatusNoContent)
}

// RemoveParticipant removes a member from a chat. Members may remove
// themselves from any chat they belong to.
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	chatID, ok := h.requireParticipant(c)
	if !ok {
		return
	}
	target, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}

	err := h.svc.RemoveParticipant(c.Request.Context(), chatID, target)
	if errors.Is(err, repositories.ErrParticipantNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
		return
	}
	if err != nil {
		h.log.Ctx(c.Request.Context()).Error("remove participant", zap.String("chat_id", chatID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove participant"})
		return
	}

	h.emit(c, fmt.Sprintf("participant %s removed from chat %s", target, chatID))
	c.Status(http.StatusNoContent)
}

// RenameChat changes the name of a group chat.
func (h *ChatHandler) RenameChat(c *gin.Context) {
	chatID, ok := h.requireGroup(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group name is required"})
		return
	}

	if err := h.svc.UpdateGroupName(c.Request.Context(), chatID, name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChatNotFound) {
			status = http.StatusNotFound
		} else {
			h.log.Ctx(c.Request.Context()).Error("rename chat", zap.String("chat_id", chatID.String()), zap.Error(err))
		}
		c.JSON(status, gin.H{"error": "could not rename chat"})
		return
	}

	c.Status(http.StatusNoContent)
}

// requireParticipant parses :chat_id and answers 403 unless the caller
// belongs to the chat.
func (h *ChatHandler) requireParticipant(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := mustUserID(c)
	if !ok {
		return uuid.Nil, false
	}
	chatID, ok := uuidParam(c, "chat_id")
	if !ok {
		return uuid.Nil, false
	}

	member, err := h.svc.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		h.log.Ctx(c.Request.Context()).Error("verify membership", zap.String("chat_id", chatID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return uuid.Nil, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return uuid.Nil, false
	}
	return chatID, true
}

// requireGroup is requireParticipant restricted to group chats; direct chats
// keep the participants they were created with.
func (h *ChatHandler) requireGroup(c *gin.Context) (uuid.UUID, bool) {
	chatID, ok := h.requireParticipant(c)
	if !ok {
		return uuid.Nil, false
	}

	row, err := h.svc.GetChat(c.Request.Context(), chatID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChatNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "chat not found"})
		return uuid.Nil, false
	}
	if !row.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a group chat"})
		return uuid.Nil, false
	}
	return chatID, true
}

func (h *ChatHandler) emit(c *gin.Context, text string) {
	h.audit.Emit(c.Request.Context(), "INFO", text, requestIDFromContext(c), auditUserID(c))
}

func hasOther(ids []uuid.UUID, self uuid.UUID) bool {
	for _, id := range ids {
		if id != self {
			return true
		}
	}
	return false
}
