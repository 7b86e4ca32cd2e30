package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	jwt.RegisteredClaims
}

// Principal is the verified identity attached to a request or connection
type Principal struct {
	UserID      uuid.UUID
	DisplayName string
}

type Service struct {
	secretKey           []byte
	accessTokenDuration time.Duration
}

// NewService creates a new JWT service. Tokens are issued elsewhere,
// this side only has to agree on the secret.
func NewService(secretKey string, accessDuration time.Duration) *Service {
	return &Service{
		secretKey:           []byte(secretKey),
		accessTokenDuration: accessDuration,
	}
}

// ValidateAccessToken validates and parses the JWT token
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("token is invalid")
	}

	if claims.UserID == uuid.Nil {
		return nil, errors.New("invalid access token: missing user_id")
	}

	if claims.Username == "" {
		return nil, errors.New("invalid access token: missing username")
	}

	return claims, nil
}

// Authenticate turns a raw bearer token into a principal
func (s *Service) Authenticate(token string) (Principal, error) {
	claims, err := s.ValidateAccessToken(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: claims.UserID, DisplayName: claims.Username}, nil
}

// GenerateAccessToken creates a short-lived access token
func (s *Service) GenerateAccessToken(userID uuid.UUID, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}
