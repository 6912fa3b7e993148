package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger/internal/chat"
	"messenger/internal/logger"
)

// UserHandler lists the people a user can start a chat with.
type UserHandler struct {
	svc *chat.Service
	log *logger.Logger
}

func NewUserHandler(svc *chat.Service, log *logger.Logger) *UserHandler {
	return &UserHandler{svc: svc, log: log.Named("user_handler")}
}

func (h *UserHandler) Register(r gin.IRouter) {
	r.GET("/users", h.ListUsers)
}

// ListUsers returns every profile except the caller's. Filtering is left
// to the client.
func (h *UserHandler) ListUsers(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	users, err := h.svc.ListUsers(c.Request.Context(), userID)
	if err != nil {
		h.log.Ctx(c.Request.Context()).Error("list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}
