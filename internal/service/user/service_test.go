package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository/memory"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

func TestCreateUserHashesPasswordAndDefaultsTimezone(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store)

	user, err := svc.CreateUser(context.Background(), &model.CreateUserRequest{
		Email:       "owner@example.com",
		DisplayName: "Owner",
		Password:    "hunter2hunter2",
	})
	require.NoError(t, err)

	assert.Equal(t, "UTC", user.Timezone)
	assert.True(t, user.Active)
	assert.NotEqual(t, "hunter2hunter2", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter2hunter2")))
}

func TestCreateUserRejectsInvalidTimezone(t *testing.T) {
	svc := NewService(memory.NewStore())

	_, err := svc.CreateUser(context.Background(), &model.CreateUserRequest{
		Email:       "owner@example.com",
		DisplayName: "Owner",
		Timezone:    "Mars/Olympus_Mons",
		Password:    "hunter2hunter2",
	})
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(memory.NewStore())
	ctx := context.Background()

	req := &model.CreateUserRequest{Email: "owner@example.com", DisplayName: "Owner", Password: "hunter2hunter2"}
	_, err := svc.CreateUser(ctx, req)
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, &model.CreateUserRequest{
		Email: "OWNER@example.com", DisplayName: "Clone", Password: "hunter2hunter2",
	})
	assert.True(t, errors.IsConflict(err))
}

func TestDeactivate(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, &model.CreateUserRequest{
		Email: "owner@example.com", DisplayName: "Owner", Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, user.ID))

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}
