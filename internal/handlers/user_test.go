package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger/internal/logger"
	"messenger/internal/middleware"
	"messenger/internal/models"
)

func setupUserRouter(d *handlerDeps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetUser(c, testUserID)
		c.Next()
	})
	NewUserHandler(d.svc, logger.Nop()).Register(r)
	return r
}

func TestListUsers(t *testing.T) {
	d := newHandlerDeps()
	router := setupUserRouter(d)
	bob := uuid.New()
	d.profiles.On("ListProfilesExcept", mock.Anything, testUserID).Return([]models.Profile{{ID: bob, Username: "bob"}}, nil).Once()

	rec := doJSON(router, http.MethodGet, "/users", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Users []models.Profile `json:"users"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Users, 1)
	assert.Equal(t, bob, resp.Users[0].ID)
	d.profiles.AssertExpectations(t)
}

func TestListUsersUnauthenticated(t *testing.T) {
	d := newHandlerDeps()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewUserHandler(d.svc, logger.Nop()).Register(r)

	rec := doJSON(r, http.MethodGet, "/users", "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDebugAuditRoute(t *testing.T) {
	d := newHandlerDeps()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetUser(c, testUserID)
		c.Next()
	})
	RegisterDebugRoutes(r, nil, nil, true)

	rec := doJSON(r, http.MethodGet, "/debug/audit-test", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	d.publisher.On("Publish", mock.Anything, "audit.messenger", mock.Anything).Return(nil).Once()
	r = gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetUser(c, testUserID)
		c.Next()
	})
	RegisterDebugRoutes(r, newTestEmitter(d), d.publisher, true)

	rec = doJSON(r, http.MethodGet, "/debug/audit-test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d.publisher.AssertExpectations(t)
}

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, nil, false)

	rec := doJSON(r, http.MethodGet, "/debug/events", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugEventsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, nil, true)

	rec := doJSON(r, http.MethodGet, "/debug/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "none", resp["mode"])
}
