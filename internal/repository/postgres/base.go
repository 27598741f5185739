package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/deadline-tracker/internal/repository"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

// store implements repository.Store over either a *sqlx.DB or an open
// transaction; WithTx rebinds all repositories to the transaction.
type store struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

// NewStore creates the postgres-backed Store.
func NewStore(db *sqlx.DB) repository.Store {
	return &store{db: db, ext: db}
}

func (s *store) Users() repository.UserRepository           { return &userRepository{s.ext} }
func (s *store) Labels() repository.LabelRepository         { return &labelRepository{s.ext} }
func (s *store) Events() repository.EventRepository         { return &eventRepository{s.ext} }
func (s *store) Reminders() repository.ReminderRepository   { return &reminderRepository{s.ext} }
func (s *store) SendLogs() repository.SendLogRepository     { return &sendLogRepository{s.ext} }
func (s *store) DigestRuns() repository.DigestRunRepository { return &digestRunRepository{s.ext} }

// WithTx executes fn within a transaction. Nested calls join the enclosing
// transaction.
func (s *store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if _, ok := s.ext.(*sqlx.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Storage(err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&store{db: s.db, ext: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Storage(err)
	}
	return nil
}

// requireRow turns a zero-row update or delete into a not-found error.
func requireRow(result sql.Result, resource string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Storage(err)
	}
	if rows == 0 {
		return errors.NotFound(resource, nil)
	}
	return nil
}

// wrapErr maps driver errors onto the application error kinds: unique and
// exclusion violations become conflicts, missing rows not-found, everything
// else a storage error.
func wrapErr(resource string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource, err)
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return errors.Conflict(resource+" already exists", err)
		case "23P01": // exclusion_violation
			return errors.Conflict(resource+" conflicts with an existing row", err)
		}
	}
	return errors.Storage(err)
}
