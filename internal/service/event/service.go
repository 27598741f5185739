package event

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
	"github.com/jwalitptl/deadline-tracker/pkg/timeutil"
)

const maxTitleLength = 200

// Materializer keeps reminder rows in sync after event mutations.
type Materializer interface {
	Materialize(ctx context.Context, eventID uuid.UUID) error
}

type Service struct {
	store          repository.Store
	mat            Materializer
	defaultOffsets []string
}

func NewService(store repository.Store, mat Materializer, defaultOffsets []string) *Service {
	return &Service{
		store:          store,
		mat:            mat,
		defaultOffsets: defaultOffsets,
	}
}

func (s *Service) CreateEvent(ctx context.Context, userID uuid.UUID, req *model.CreateEventRequest) (*model.Event, error) {
	offsets, err := s.resolveOffsets(ctx, userID, req.Offsets)
	if err != nil {
		return nil, err
	}

	event := &model.Event{
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		DueAt:       req.DueAt.UTC(),
		Status:      model.EventStatusOpen,
		Offsets:     offsets,
	}
	if err := validateTitle(event.Title); err != nil {
		return nil, err
	}

	labelIDs, err := s.parseLabelIDs(ctx, userID, req.LabelIDs)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Events().Create(ctx, event); err != nil {
			return err
		}
		if len(labelIDs) > 0 {
			return tx.Events().SetLabels(ctx, event.ID, labelIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.mat.Materialize(ctx, event.ID); err != nil {
		return nil, err
	}
	return s.store.Events().Get(ctx, event.ID)
}

func (s *Service) GetEvent(ctx context.Context, userID, id uuid.UUID) (*model.Event, error) {
	event, err := s.store.Events().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.UserID != userID {
		return nil, errors.NotFound("event", nil)
	}
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context, userID uuid.UUID, filters *model.EventFilters) ([]*model.Event, error) {
	return s.store.Events().ListByUser(ctx, userID, filters)
}

func (s *Service) UpdateEvent(ctx context.Context, userID, id uuid.UUID, req *model.UpdateEventRequest) (*model.Event, error) {
	event, err := s.GetEvent(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if event.Status != model.EventStatusOpen {
		return nil, errors.Validation("only open events can be updated", nil)
	}

	rematerialize := false
	if req.Title != nil {
		event.Title = strings.TrimSpace(*req.Title)
		if err := validateTitle(event.Title); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.DueAt != nil && !req.DueAt.UTC().Equal(event.DueAt) {
		event.DueAt = req.DueAt.UTC()
		rematerialize = true
	}
	if req.Offsets != nil {
		offsets, err := normalizeOffsets(req.Offsets)
		if err != nil {
			return nil, err
		}
		event.Offsets = offsets
		rematerialize = true
	}

	var labelIDs []uuid.UUID
	if req.LabelIDs != nil {
		labelIDs, err = s.parseLabelIDs(ctx, userID, req.LabelIDs)
		if err != nil {
			return nil, err
		}
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Events().Update(ctx, event); err != nil {
			return err
		}
		if req.LabelIDs != nil {
			return tx.Events().SetLabels(ctx, event.ID, labelIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rematerialize {
		if err := s.mat.Materialize(ctx, event.ID); err != nil {
			return nil, err
		}
	}
	return s.store.Events().Get(ctx, event.ID)
}

// MarkDone transitions open → done and cancels pending reminders.
func (s *Service) MarkDone(ctx context.Context, userID, id uuid.UUID) error {
	return s.transition(ctx, userID, id, model.EventStatusDone)
}

// Archive transitions to archived and cancels pending reminders.
func (s *Service) Archive(ctx context.Context, userID, id uuid.UUID) error {
	return s.transition(ctx, userID, id, model.EventStatusArchived)
}

func (s *Service) transition(ctx context.Context, userID, id uuid.UUID, status model.EventStatus) error {
	event, err := s.GetEvent(ctx, userID, id)
	if err != nil {
		return err
	}
	if event.Status == status {
		return nil
	}
	event.Status = status
	if err := s.store.Events().Update(ctx, event); err != nil {
		return err
	}
	return s.mat.Materialize(ctx, event.ID)
}

func (s *Service) DeleteEvent(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.GetEvent(ctx, userID, id); err != nil {
		return err
	}
	// Reminders cascade with the event; send logs survive for audit.
	return s.store.Events().Delete(ctx, id)
}

func (s *Service) resolveOffsets(ctx context.Context, userID uuid.UUID, raw []string) ([]string, error) {
	if len(raw) > 0 {
		return normalizeOffsets(raw)
	}
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.DefaultOffsets) > 0 {
		return normalizeOffsets(user.DefaultOffsets)
	}
	return normalizeOffsets(s.defaultOffsets)
}

func normalizeOffsets(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool)
	for _, r := range raw {
		d, err := timeutil.ParseOffset(r)
		if err != nil {
			return nil, errors.Validation("invalid reminder offset", err)
		}
		canonical := timeutil.FormatOffset(d)
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out, nil
}

func (s *Service) parseLabelIDs(ctx context.Context, userID uuid.UUID, raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, errors.Validation("invalid label id", err)
		}
		label, err := s.store.Labels().Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if label.UserID != userID {
			return nil, errors.NotFound("label", nil)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func validateTitle(title string) error {
	if title == "" {
		return errors.Validation("title is required", nil)
	}
	if len(title) > maxTitleLength {
		return errors.Validation("title exceeds 200 characters", nil)
	}
	return nil
}
