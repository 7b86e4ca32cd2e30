package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/pkg/httputil"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	userNameKey contextKey = "username"
)

var (
	ErrMissingCredential   = errors.New("authorization required")
	ErrMalformedCredential = errors.New("invalid authorization format")
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingCredential
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" || strings.Contains(token, " ") {
		return "", ErrMalformedCredential
	}

	return token, nil
}

// AuthenticateRequest verifies the bearer credential of r
func (s *Service) AuthenticateRequest(r *http.Request) (Principal, error) {
	token, err := BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return Principal{}, err
	}
	return s.Authenticate(token)
}

func Middleware(authService *Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authService.AuthenticateRequest(r)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrMalformedCredential) {
					msg = err.Error()
				}
				httputil.RespondError(w, r, httputil.Unauthorized(msg), log)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// WithPrincipal stores the principal on ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, userIDKey, p.UserID)
	ctx = context.WithValue(ctx, userNameKey, p.DisplayName)
	return ctx
}

// Helper functions to extract from context
func GetUserID(ctx context.Context) uuid.UUID {
	userID, _ := ctx.Value(userIDKey).(uuid.UUID)
	return userID
}

func GetUsername(ctx context.Context) string {
	username, _ := ctx.Value(userNameKey).(string)
	return username
}
