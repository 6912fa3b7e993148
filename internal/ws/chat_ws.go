package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"messenger/internal/chat"
	"messenger/internal/logger"
	"messenger/internal/middleware"
	"messenger/internal/models"
	"messenger/internal/observability"
)

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"

	eventMessage      = "message"
	eventSubscribed   = "subscribed"
	eventUnsubscribed = "unsubscribed"
	eventError        = "error"
)

// clientCommand is a control frame sent by the browser.
type clientCommand struct {
	Action string `json:"action"`
	ChatID string `json:"chat_id"`
}

// ChatWebSocketHandler serves the live conversation view. Every connection
// owns its own subscriber and watches at most one chat at a time.
type ChatWebSocketHandler struct {
	hub      *Hub
	svc      *chat.Service
	verifier middleware.TokenVerifier
	log      *logger.Logger
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, svc *chat.Service, verifier middleware.TokenVerifier, log *logger.Logger) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, svc: svc, verifier: verifier, log: log.Named("ws")}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the caller, upgrades the connection and subscribes it
// to the chat in the path.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	ctx, span := otel.Tracer("messenger/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	span.SetAttributes(attribute.String("chat.id", chatID.String()))
	c.Request = c.Request.WithContext(ctx)

	token := middleware.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}
	userID, err := h.verifier.ParseUserID(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	middleware.SetUser(c, userID)

	member, err := h.svc.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		h.log.Ctx(c.Request.Context()).Error("verify membership", zap.String("chat_id", chatID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Ctx(ctx).Warn("websocket upgrade", zap.Error(err))
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, info, h.svc.NewSubscriber())
	h.hub.Add(client)
	observability.IncWSActive()

	// the request context ends when this handler returns
	connCtx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	publishWSEvent(connCtx, info, chatID, "ws_connect", "")

	if err := h.subscribe(connCtx, client, chatID); err != nil {
		h.log.Ctx(connCtx).Error("subscribe", zap.String("chat_id", chatID.String()), zap.Error(err))
		_ = client.send(models.ChatEvent{Type: eventError, ChatID: chatID.String(), Error: "subscription failed"})
	}

	go h.readLoop(connCtx, cancel, client)
}

func (h *ChatWebSocketHandler) subscribe(ctx context.Context, client *Client, chatID uuid.UUID) error {
	log := h.log.Ctx(ctx)
	err := client.sub.Subscribe(ctx, chatID, func(msg models.Message) {
		if err := client.send(models.ChatEvent{Type: eventMessage, ChatID: chatID.String(), Message: &msg}); err != nil {
			log.Debug("websocket write", zap.Error(err))
		}
	})
	if err != nil {
		// the previous subscription is already gone
		h.hub.Leave(client)
		return err
	}
	h.hub.Join(client, chatID)
	log.Debug("subscribed", zap.String("chat_id", chatID.String()), zap.Int("watchers", h.hub.Watchers(chatID)))
	return client.send(models.ChatEvent{Type: eventSubscribed, ChatID: chatID.String()})
}

func (h *ChatWebSocketHandler) readLoop(ctx context.Context, cancel context.CancelFunc, client *Client) {
	var closeReason string
	defer func() {
		chatID, _ := client.sub.ChatID()
		client.sub.Unsubscribe()
		cancel()
		h.hub.Remove(client)
		observability.DecWSActive()
		publishWSEvent(context.WithoutCancel(ctx), client.info, chatID, "ws_disconnect", closeReason)
		_ = client.conn.Close()
	}()

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				chatID, _ := client.sub.ChatID()
				publishWSEvent(ctx, client.info, chatID, "ws_error", closeReason)
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			_ = client.send(models.ChatEvent{Type: eventError, Error: "malformed command"})
			continue
		}
		h.handleCommand(ctx, client, cmd)
	}
}

func (h *ChatWebSocketHandler) handleCommand(ctx context.Context, client *Client, cmd clientCommand) {
	switch cmd.Action {
	case actionSubscribe:
		chatID, err := uuid.Parse(cmd.ChatID)
		if err != nil {
			_ = client.send(models.ChatEvent{Type: eventError, Error: "invalid chat id"})
			return
		}
		member, err := h.svc.IsParticipant(ctx, chatID, client.info.UserID)
		if err != nil {
			h.log.Ctx(ctx).Error("verify membership", zap.String("chat_id", chatID.String()), zap.Error(err))
			_ = client.send(models.ChatEvent{Type: eventError, ChatID: chatID.String(), Error: "failed to verify membership"})
			return
		}
		if !member {
			_ = client.send(models.ChatEvent{Type: eventError, ChatID: chatID.String(), Error: "not authorized for chat"})
			return
		}
		if err := h.subscribe(ctx, client, chatID); err != nil {
			h.log.Ctx(ctx).Error("subscribe", zap.String("chat_id", chatID.String()), zap.Error(err))
			_ = client.send(models.ChatEvent{Type: eventError, ChatID: chatID.String(), Error: "subscription failed"})
		}
	case actionUnsubscribe:
		client.sub.Unsubscribe()
		h.hub.Leave(client)
		_ = client.send(models.ChatEvent{Type: eventUnsubscribed})
	default:
		_ = client.send(models.ChatEvent{Type: eventError, Error: "unknown action"})
	}
}
