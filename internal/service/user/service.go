package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

type Service struct {
	store repository.Store
}

func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

func (s *Service) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, errors.Validation("invalid timezone", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal(err)
	}

	user := &model.User{
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		Timezone:     tz,
		Active:       true,
		PasswordHash: string(hash),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.store.Users().Get(ctx, id)
}

// Deactivate soft-deletes: the identity row stays, digests and reminders
// stop targeting the user.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.store.Users().Deactivate(ctx, id)
}
