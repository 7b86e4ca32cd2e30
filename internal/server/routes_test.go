package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/attachment"
	"github.com/rx3lixir/bookclub/internal/auth"
	"github.com/rx3lixir/bookclub/internal/message"
	"github.com/rx3lixir/bookclub/internal/quiz"
	"github.com/rx3lixir/bookclub/internal/room"
	"github.com/rx3lixir/bookclub/internal/vote"
	"github.com/rx3lixir/bookclub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(authService *auth.Service) http.Handler {
	log := logger.Discard()
	return NewRouter(RouterConfig{
		RoomHandler:       room.NewHandler(nil, log, 0),
		QuizHandler:       quiz.NewHandler(nil, log, 0),
		MessageHandler:    message.NewHandler(nil, log, 0),
		AttachmentHandler: attachment.NewHandler(nil, nil, log, 0),
		VoteHandler:       vote.NewHandler(nil, log, 0),
		AuthService:       authService,
		AllowedOrigins:    []string{"http://localhost:3000"},
		Log:               log,
	})
}

func TestRouter(t *testing.T) {
	authService := auth.NewService("test-secret", time.Minute)
	router := newTestRouter(authService)

	t.Run("health is public", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("rooms require a bearer token", func(t *testing.T) {
		for _, path := range []string{"/api/rooms", "/api/rooms/" + uuid.NewString() + "/vote"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		}
	})

	t.Run("authenticated request reaches the room handler", func(t *testing.T) {
		token, err := authService.GenerateAccessToken(uuid.New(), "reader")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/rooms/not-a-uuid", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/rooms", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
