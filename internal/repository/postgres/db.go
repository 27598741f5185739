package postgres

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jwalitptl/deadline-tracker/internal/config"
)

func NewDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	return NewDBFromURL(cfg.URL())
}

// NewDBFromURL connects using a full connection URL, which is how the
// worker receives its database from the environment.
func NewDBFromURL(url string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Both binaries share one database; keep the pools modest.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
