package label

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository/memory"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

func TestCreateLabelDefaultsColor(t *testing.T) {
	svc := NewService(memory.NewStore())
	userID := uuid.New()

	label, err := svc.CreateLabel(context.Background(), userID, &model.CreateLabelRequest{Name: " Work "})
	require.NoError(t, err)

	assert.Equal(t, "Work", label.Name)
	assert.NotEmpty(t, label.Color)
	assert.Equal(t, userID, label.UserID)
}

func TestCreateLabelKeepsExplicitColor(t *testing.T) {
	svc := NewService(memory.NewStore())

	label, err := svc.CreateLabel(context.Background(), uuid.New(), &model.CreateLabelRequest{
		Name:  "Work",
		Color: "#123456",
	})
	require.NoError(t, err)
	assert.Equal(t, "#123456", label.Color)
}

func TestCreateLabelRejectsBlankNameAndDuplicates(t *testing.T) {
	svc := NewService(memory.NewStore())
	userID := uuid.New()
	ctx := context.Background()

	_, err := svc.CreateLabel(ctx, userID, &model.CreateLabelRequest{Name: "   "})
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	_, err = svc.CreateLabel(ctx, userID, &model.CreateLabelRequest{Name: "Work"})
	require.NoError(t, err)
	_, err = svc.CreateLabel(ctx, userID, &model.CreateLabelRequest{Name: "work"})
	assert.True(t, errors.IsConflict(err), "names are unique case-insensitively")
}

func TestDeleteLabelEnforcesOwnership(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store)
	ctx := context.Background()

	owner := uuid.New()
	label, err := svc.CreateLabel(ctx, owner, &model.CreateLabelRequest{Name: "Work"})
	require.NoError(t, err)

	err = svc.DeleteLabel(ctx, uuid.New(), label.ID)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, svc.DeleteLabel(ctx, owner, label.ID))
	labels, err := svc.ListLabels(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestDeleteLabelDetachesFromEvents(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store)
	ctx := context.Background()

	owner := uuid.New()
	label, err := svc.CreateLabel(ctx, owner, &model.CreateLabelRequest{Name: "Work"})
	require.NoError(t, err)

	event := &model.Event{
		UserID: owner,
		Title:  "report",
		Status: model.EventStatusOpen,
	}
	require.NoError(t, store.Events().Create(ctx, event))
	require.NoError(t, store.Events().SetLabels(ctx, event.ID, []uuid.UUID{label.ID}))

	require.NoError(t, svc.DeleteLabel(ctx, owner, label.ID))

	attached, err := store.Events().GetLabels(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, attached)

	_, err = store.Events().Get(ctx, event.ID)
	assert.NoError(t, err, "event survives label deletion")
}
