package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rx3lixir/bookclub/internal/attachment"
	"github.com/rx3lixir/bookclub/internal/auth"
	"github.com/rx3lixir/bookclub/internal/message"
	"github.com/rx3lixir/bookclub/internal/quiz"
	"github.com/rx3lixir/bookclub/internal/room"
	"github.com/rx3lixir/bookclub/internal/vote"
	"github.com/rx3lixir/bookclub/internal/websocket"
	"github.com/rx3lixir/bookclub/pkg/httputil"
)

type RouterConfig struct {
	RoomHandler       *room.Handler
	QuizHandler       *quiz.Handler
	MessageHandler    *message.Handler
	AttachmentHandler *attachment.Handler
	VoteHandler       *vote.Handler
	WebsocketHandler  *websocket.Handler

	AuthService    *auth.Service
	AllowedOrigins []string
	Log            *slog.Logger
}

func NewRouter(config RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware block
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(config.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// The handshake authenticates itself so it can answer 401 before upgrading
	if config.WebsocketHandler != nil {
		r.Route("/ws", config.WebsocketHandler.RegisterRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handleHealth)

		// Protected routes
		r.Route("/rooms", func(r chi.Router) {
			r.Use(auth.Middleware(config.AuthService, config.Log))

			config.RoomHandler.RegisterRoutes(r)

			r.Route("/{roomID}", func(r chi.Router) {
				config.RoomHandler.RegisterRoomRoutes(r)

				r.Route("/quiz", config.QuizHandler.RegisterRoutes)
				r.Route("/messages", config.MessageHandler.RegisterRoutes)
				r.Route("/attachments", config.AttachmentHandler.RegisterRoutes)
				r.Route("/vote", config.VoteHandler.RegisterRoutes)
			})
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
