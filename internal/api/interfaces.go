package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/pkg/entity"
)

// TokenServiceI issues the bearer tokens handed out on login and reads them back.
type TokenServiceI interface {
	GenerateToken(user *entity.User) (string, error)
	ParseToken(tokenString string) (*TokenClaims, error)
}

type TokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Name   string `json:"name"`
}

// Usable reports whether the token may authenticate a request at now and whom it belongs to.
// Tokens without an expiry are refused.
func (c *TokenClaims) Usable(now time.Time) (uuid.UUID, error) {
	if c.ExpiresAt == nil || !now.Before(c.ExpiresAt.Time) {
		return uuid.Nil, fmt.Errorf("%w: expired", errorvalues.ErrInvalidToken)
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return uuid.Nil, fmt.Errorf("%w: not valid yet", errorvalues.ErrInvalidToken)
	}
	uid, err := uuid.Parse(c.UserID)
	if err != nil || uid == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: bad uid claim", errorvalues.ErrInvalidToken)
	}
	return uid, nil
}
