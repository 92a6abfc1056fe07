package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"liaptui/internal/model"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// AuthService issues and checks room-scoped player session tokens. A token
// binds a websocket handshake to the (room, player) seat it was issued for.
type AuthService struct {
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewAuthService(secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		jwtSecret: []byte(secret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// GeneratePlayerToken creates a room-scoped token for a player
func (s *AuthService) GeneratePlayerToken(roomID, playerName string) (string, error) {
	now := s.now()
	claims := &model.PlayerClaims{
		RoomID:     roomID,
		PlayerName: playerName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidatePlayerToken validates a player JWT and returns claims
func (s *AuthService) ValidatePlayerToken(tokenString string) (*model.PlayerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.PlayerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.PlayerClaims)
	if !ok || !token.Valid || claims.RoomID == "" || claims.PlayerName == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
