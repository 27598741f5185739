// Package importer parses user-supplied CSV files into events, creating
// labels on demand. A bad row never aborts the batch; every row yields a
// per-row result.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
	"github.com/jwalitptl/deadline-tracker/pkg/logger"
	"github.com/jwalitptl/deadline-tracker/pkg/timeutil"
)

const defaultDelimiter = "|"

// palette supplies deterministic label colors keyed by name hash.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

type Materializer interface {
	Materialize(ctx context.Context, eventID uuid.UUID) error
}

type Service struct {
	store          repository.Store
	mat            Materializer
	defaultOffsets []string
	logger         *logger.Logger
}

func NewService(store repository.Store, mat Materializer, defaultOffsets []string, log *logger.Logger) *Service {
	return &Service{
		store:          store,
		mat:            mat,
		defaultOffsets: defaultOffsets,
		logger:         log,
	}
}

type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type Summary struct {
	Imported int        `json:"imported_count"`
	Skipped  int        `json:"skipped_count"`
	Errors   []RowError `json:"errors,omitempty"`
}

// Import reads the CSV stream for the given owner. Recognized header
// columns: title, due_at, description, labels, offsets, external_ref.
func (s *Service) Import(ctx context.Context, user *model.User, r io.Reader) (*Summary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Validation("missing CSV header", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["title"]; !ok {
		return nil, errors.Validation("CSV header lacks required column title", nil)
	}
	if _, ok := cols["due_at"]; !ok {
		return nil, errors.Validation("CSV header lacks required column due_at", nil)
	}

	summary := &Summary{}
	rowNum := 1 // header was row 1
	for {
		rowNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}

		if err := s.importRow(ctx, user, cols, record); err != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		summary.Imported++
	}
	return summary, nil
}

func (s *Service) importRow(ctx context.Context, user *model.User, cols map[string]int, record []string) error {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	title := field("title")
	if title == "" {
		return fmt.Errorf("missing title")
	}
	if len(title) > 200 {
		return fmt.Errorf("title exceeds 200 characters")
	}

	dueAt, err := parseDueAt(field("due_at"), user.Location())
	if err != nil {
		return err
	}

	offsets := s.defaultOffsets
	if raw := field("offsets"); raw != "" {
		parsed, err := timeutil.ParseOffsets(raw, defaultDelimiter)
		if err != nil {
			return err
		}
		offsets = make([]string, len(parsed))
		for i, d := range parsed {
			offsets[i] = timeutil.FormatOffset(d)
		}
	} else if len(user.DefaultOffsets) > 0 {
		offsets = user.DefaultOffsets
	}

	var labelNames []string
	if raw := field("labels"); raw != "" {
		for _, name := range strings.Split(raw, defaultDelimiter) {
			if name = strings.TrimSpace(name); name != "" {
				labelNames = append(labelNames, name)
			}
		}
	}

	event := &model.Event{
		UserID:      user.ID,
		Title:       title,
		Description: field("description"),
		DueAt:       dueAt,
		Status:      model.EventStatusOpen,
		Offsets:     offsets,
	}
	if ref := field("external_ref"); ref != "" {
		event.ExternalRef = &ref
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		labelIDs, err := s.resolveLabels(ctx, tx, user.ID, labelNames)
		if err != nil {
			return err
		}
		if err := tx.Events().Create(ctx, event); err != nil {
			return err
		}
		if len(labelIDs) > 0 {
			return tx.Events().SetLabels(ctx, event.ID, labelIDs)
		}
		return nil
	})
	if err != nil {
		if errors.IsConflict(err) && event.ExternalRef != nil {
			// Idempotent re-import of the same external_ref.
			return fmt.Errorf("duplicate external_ref %q", *event.ExternalRef)
		}
		return err
	}

	// The row is committed at this point; a materializer failure must not
	// report it as skipped. The event stands, reminders rebuild on edit.
	if err := s.mat.Materialize(ctx, event.ID); err != nil {
		s.logger.Warn("imported event without reminders",
			"event_id", event.ID.String(), "error", err.Error())
	}
	return nil
}

// resolveLabels looks up each name case-insensitively among the owner's
// labels and creates the missing ones with a palette color.
func (s *Service) resolveLabels(ctx context.Context, tx repository.Store, userID uuid.UUID, names []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		label, err := tx.Labels().GetByName(ctx, userID, name)
		if err == nil {
			ids = append(ids, label.ID)
			continue
		}
		if !errors.IsNotFound(err) {
			return nil, err
		}

		label = &model.Label{
			UserID: userID,
			Name:   name,
			Color:  ColorFor(name),
		}
		if err := tx.Labels().Create(ctx, label); err != nil {
			return nil, err
		}
		ids = append(ids, label.ID)
	}
	return ids, nil
}

// ColorFor picks a deterministic palette color from the label name hash.
func ColorFor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(name)))
	return palette[h.Sum32()%uint32(len(palette))]
}

func parseDueAt(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing due_at")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	// Naive timestamps are interpreted in the owner's timezone.
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due_at %q", raw)
}
