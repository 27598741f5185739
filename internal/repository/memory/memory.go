// Package memory provides an in-memory Store used by unit tests. Uniqueness
// constraints mirror the postgres schema; transactions execute the callback
// directly without rollback.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

type Store struct {
	mu sync.Mutex

	users       map[uuid.UUID]*model.User
	labels      map[uuid.UUID]*model.Label
	events      map[uuid.UUID]*model.Event
	eventLabels map[uuid.UUID][]uuid.UUID
	reminders   map[uuid.UUID]*model.Reminder
	sendLogs    map[uuid.UUID]*model.SendLog
	digestRuns  map[uuid.UUID]*model.DigestRun
}

func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]*model.User),
		labels:      make(map[uuid.UUID]*model.Label),
		events:      make(map[uuid.UUID]*model.Event),
		eventLabels: make(map[uuid.UUID][]uuid.UUID),
		reminders:   make(map[uuid.UUID]*model.Reminder),
		sendLogs:    make(map[uuid.UUID]*model.SendLog),
		digestRuns:  make(map[uuid.UUID]*model.DigestRun),
	}
}

func (s *Store) Users() repository.UserRepository           { return &userRepo{s} }
func (s *Store) Labels() repository.LabelRepository         { return &labelRepo{s} }
func (s *Store) Events() repository.EventRepository         { return &eventRepo{s} }
func (s *Store) Reminders() repository.ReminderRepository   { return &reminderRepo{s} }
func (s *Store) SendLogs() repository.SendLogRepository     { return &sendLogRepo{s} }
func (s *Store) DigestRuns() repository.DigestRunRepository { return &digestRunRepo{s} }

func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(s)
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return errors.Conflict("user already exists", nil)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *userRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, errors.NotFound("user", nil)
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.NotFound("user", nil)
}

func (r *userRepo) ListActive(ctx context.Context) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.User
	for _, u := range r.s.users {
		if u.Active {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return errors.NotFound("user", nil)
	}
	user.UpdatedAt = time.Now().UTC()
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *userRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return errors.NotFound("user", nil)
	}
	u.Active = false
	return nil
}

type labelRepo struct{ s *Store }

func (r *labelRepo) Create(ctx context.Context, label *model.Label) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.labels {
		if l.UserID == label.UserID && strings.EqualFold(l.Name, label.Name) {
			return errors.Conflict("label already exists", nil)
		}
	}
	if label.ID == uuid.Nil {
		label.ID = uuid.New()
	}
	label.CreatedAt = time.Now().UTC()
	cp := *label
	r.s.labels[label.ID] = &cp
	return nil
}

func (r *labelRepo) Get(ctx context.Context, id uuid.UUID) (*model.Label, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.labels[id]
	if !ok {
		return nil, errors.NotFound("label", nil)
	}
	cp := *l
	return &cp, nil
}

func (r *labelRepo) GetByName(ctx context.Context, userID uuid.UUID, name string) (*model.Label, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.labels {
		if l.UserID == userID && strings.EqualFold(l.Name, name) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, errors.NotFound("label", nil)
}

func (r *labelRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Label, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Label
	for _, l := range r.s.labels {
		if l.UserID == userID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *labelRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.labels[id]; !ok {
		return errors.NotFound("label", nil)
	}
	delete(r.s.labels, id)
	for eventID, ids := range r.s.eventLabels {
		var kept []uuid.UUID
		for _, lid := range ids {
			if lid != id {
				kept = append(kept, lid)
			}
		}
		r.s.eventLabels[eventID] = kept
	}
	return nil
}

type eventRepo struct{ s *Store }

func (r *eventRepo) Create(ctx context.Context, event *model.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if event.ExternalRef != nil {
		for _, e := range r.s.events {
			if e.UserID == event.UserID && e.ExternalRef != nil && *e.ExternalRef == *event.ExternalRef {
				return errors.Conflict("event already exists", nil)
			}
		}
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	cp := *event
	cp.Labels = nil
	r.s.events[event.ID] = &cp
	return nil
}

func (r *eventRepo) Get(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	r.s.mu.Lock()
	e, ok := r.s.events[id]
	if !ok {
		r.s.mu.Unlock()
		return nil, errors.NotFound("event", nil)
	}
	cp := *e
	r.s.mu.Unlock()

	labels, err := r.GetLabels(ctx, id)
	if err != nil {
		return nil, err
	}
	cp.Labels = labels
	return &cp, nil
}

func (r *eventRepo) GetByExternalRef(ctx context.Context, userID uuid.UUID, ref string) (*model.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.events {
		if e.UserID == userID && e.ExternalRef != nil && *e.ExternalRef == ref {
			cp := *e
			return &cp, nil
		}
	}
	return nil, errors.NotFound("event", nil)
}

func (r *eventRepo) Update(ctx context.Context, event *model.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[event.ID]; !ok {
		return errors.NotFound("event", nil)
	}
	event.UpdatedAt = time.Now().UTC()
	cp := *event
	cp.Labels = nil
	r.s.events[event.ID] = &cp
	return nil
}

func (r *eventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[id]; !ok {
		return errors.NotFound("event", nil)
	}
	delete(r.s.events, id)
	delete(r.s.eventLabels, id)
	for rid, rem := range r.s.reminders {
		if rem.EventID == id {
			delete(r.s.reminders, rid)
		}
	}
	return nil
}

func (r *eventRepo) ListByUser(ctx context.Context, userID uuid.UUID, filters *model.EventFilters) ([]*model.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Event
	for _, e := range r.s.events {
		if e.UserID != userID {
			continue
		}
		if filters != nil {
			if filters.Status != "" && e.Status != filters.Status {
				continue
			}
			if filters.Label != "" && !r.hasLabelLocked(e.ID, filters.Label) {
				continue
			}
			if filters.From != nil && e.DueAt.Before(*filters.From) {
				continue
			}
			if filters.To != nil && !e.DueAt.Before(*filters.To) {
				continue
			}
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

// hasLabelLocked requires r.s.mu to be held.
func (r *eventRepo) hasLabelLocked(eventID uuid.UUID, name string) bool {
	for _, lid := range r.s.eventLabels[eventID] {
		if l, ok := r.s.labels[lid]; ok && strings.EqualFold(l.Name, name) {
			return true
		}
	}
	return false
}

func (r *eventRepo) ListDueWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*model.Event, error) {
	r.s.mu.Lock()
	var matched []uuid.UUID
	for _, e := range r.s.events {
		if e.UserID == userID && e.Status == model.EventStatusOpen &&
			!e.DueAt.Before(from) && e.DueAt.Before(to) {
			matched = append(matched, e.ID)
		}
	}
	r.s.mu.Unlock()

	var out []*model.Event
	for _, id := range matched {
		e, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (r *eventRepo) SetLabels(ctx context.Context, eventID uuid.UUID, labelIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.eventLabels[eventID] = append([]uuid.UUID(nil), labelIDs...)
	return nil
}

func (r *eventRepo) GetLabels(ctx context.Context, eventID uuid.UUID) ([]*model.Label, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Label
	for _, id := range r.s.eventLabels[eventID] {
		if l, ok := r.s.labels[id]; ok {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type reminderRepo struct{ s *Store }

func (r *reminderRepo) Create(ctx context.Context, reminder *model.Reminder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rem := range r.s.reminders {
		if rem.EventID == reminder.EventID && rem.Offset == reminder.Offset && rem.Channel == reminder.Channel {
			return errors.Conflict("reminder already exists", nil)
		}
	}
	if reminder.ID == uuid.Nil {
		reminder.ID = uuid.New()
	}
	reminder.CreatedAt = time.Now().UTC()
	reminder.UpdatedAt = reminder.CreatedAt
	cp := *reminder
	r.s.reminders[reminder.ID] = &cp
	return nil
}

func (r *reminderRepo) Get(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rem, ok := r.s.reminders[id]
	if !ok {
		return nil, errors.NotFound("reminder", nil)
	}
	cp := *rem
	return &cp, nil
}

func (r *reminderRepo) Update(ctx context.Context, reminder *model.Reminder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reminders[reminder.ID]; !ok {
		return errors.NotFound("reminder", nil)
	}
	reminder.UpdatedAt = time.Now().UTC()
	cp := *reminder
	r.s.reminders[reminder.ID] = &cp
	return nil
}

func (r *reminderRepo) ListByEvent(ctx context.Context, eventID uuid.UUID, state model.ReminderState) ([]*model.Reminder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Reminder
	for _, rem := range r.s.reminders {
		if rem.EventID != eventID {
			continue
		}
		if state != "" && rem.State != state {
			continue
		}
		cp := *rem
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

func (r *reminderRepo) ListPending(ctx context.Context, limit int) ([]*model.Reminder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Reminder
	for _, rem := range r.s.reminders {
		if rem.State == model.ReminderStatePending {
			cp := *rem
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type sendLogRepo struct{ s *Store }

func (r *sendLogRepo) Create(ctx context.Context, log *model.SendLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.Status == model.DeliveryStatusDelivered && log.ReminderID != nil {
		for _, sl := range r.s.sendLogs {
			if sl.ReminderID != nil && *sl.ReminderID == *log.ReminderID &&
				sl.Status == model.DeliveryStatusDelivered {
				return errors.Conflict("delivered send log already exists", nil)
			}
		}
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.CreatedAt = time.Now().UTC()
	cp := *log
	r.s.sendLogs[log.ID] = &cp
	return nil
}

func (r *sendLogRepo) Update(ctx context.Context, log *model.SendLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.sendLogs[log.ID]
	if !ok {
		return errors.NotFound("send log", nil)
	}
	if log.Status == model.DeliveryStatusDelivered && log.ReminderID != nil {
		for id, sl := range r.s.sendLogs {
			if id != log.ID && sl.ReminderID != nil && *sl.ReminderID == *log.ReminderID &&
				sl.Status == model.DeliveryStatusDelivered {
				return errors.Conflict("delivered send log already exists", nil)
			}
		}
	}
	cp := *log
	cp.CreatedAt = existing.CreatedAt
	r.s.sendLogs[log.ID] = &cp
	return nil
}

func (r *sendLogRepo) ListByReminder(ctx context.Context, reminderID uuid.UUID) ([]*model.SendLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.SendLog
	for _, sl := range r.s.sendLogs {
		if sl.ReminderID != nil && *sl.ReminderID == reminderID {
			cp := *sl
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *sendLogRepo) HasDelivered(ctx context.Context, reminderID uuid.UUID) (bool, error) {
	logs, err := r.ListByReminder(ctx, reminderID)
	if err != nil {
		return false, err
	}
	for _, sl := range logs {
		if sl.Status == model.DeliveryStatusDelivered {
			return true, nil
		}
	}
	return false, nil
}

// AllSendLogs returns every send log row, for test assertions.
func (s *Store) AllSendLogs() []*model.SendLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.SendLog
	for _, sl := range s.sendLogs {
		cp := *sl
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type digestRunRepo struct{ s *Store }

func (r *digestRunRepo) Create(ctx context.Context, run *model.DigestRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, dr := range r.s.digestRuns {
		if dr.UserID == run.UserID && dr.CoveredDate == run.CoveredDate {
			return errors.Conflict("digest run already exists", nil)
		}
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.BuiltAt.IsZero() {
		run.BuiltAt = time.Now().UTC()
	}
	cp := *run
	r.s.digestRuns[run.ID] = &cp
	return nil
}

func (r *digestRunRepo) Get(ctx context.Context, userID uuid.UUID, coveredDate string) (*model.DigestRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, dr := range r.s.digestRuns {
		if dr.UserID == userID && dr.CoveredDate == coveredDate {
			cp := *dr
			return &cp, nil
		}
	}
	return nil, errors.NotFound("digest run", nil)
}
