package label

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository"
	"github.com/jwalitptl/deadline-tracker/internal/service/importer"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

type Service struct {
	store repository.Store
}

func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

func (s *Service) CreateLabel(ctx context.Context, userID uuid.UUID, req *model.CreateLabelRequest) (*model.Label, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Validation("label name is required", nil)
	}

	label := &model.Label{
		UserID: userID,
		Name:   name,
		Color:  req.Color,
	}
	if label.Color == "" {
		label.Color = importer.ColorFor(name)
	}
	if err := s.store.Labels().Create(ctx, label); err != nil {
		return nil, err
	}
	return label, nil
}

func (s *Service) ListLabels(ctx context.Context, userID uuid.UUID) ([]*model.Label, error) {
	return s.store.Labels().ListByUser(ctx, userID)
}

// DeleteLabel detaches the label from all events and removes it; the events
// themselves are untouched.
func (s *Service) DeleteLabel(ctx context.Context, userID, id uuid.UUID) error {
	label, err := s.store.Labels().Get(ctx, id)
	if err != nil {
		return err
	}
	if label.UserID != userID {
		return errors.NotFound("label", nil)
	}
	return s.store.Labels().Delete(ctx, id)
}
