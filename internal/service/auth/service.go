package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/deadline-tracker/internal/repository"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

type Config struct {
	Secret      string
	ExpiryHours int
}

type Service struct {
	store repository.Store
	cfg   Config
}

func NewService(store repository.Store, cfg Config) *Service {
	if cfg.ExpiryHours <= 0 {
		cfg.ExpiryHours = 24
	}
	return &Service{store: store, cfg: cfg}
}

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Login verifies the credentials and issues a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return "", errors.Unauthorized(err)
	}
	if !user.Active {
		return "", errors.Unauthorized(fmt.Errorf("user is deactivated"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", errors.Unauthorized(err)
	}

	now := time.Now()
	claims := Claims{
		UserID: user.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.ExpiryHours) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", errors.Internal(err)
	}
	return signed, nil
}

// Verify parses the token and returns the authenticated user id.
func (s *Service) Verify(tokenString string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, errors.Unauthorized(err)
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, errors.Unauthorized(err)
	}
	return id, nil
}
