// Package postgres implements the store interfaces on the `process` schema with sqlx and pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"buildctl/internal/store"

	"github.com/jmoiron/sqlx"
)

// Store implements every store interface against one database
type Store struct {
	db *sqlx.DB
}

var (
	_ store.TaskStore      = (*Store)(nil)
	_ store.ContainerStore = (*Store)(nil)
	_ store.StageStore     = (*Store)(nil)
	_ store.BuildStore     = (*Store)(nil)
	_ store.SummaryStore   = (*Store)(nil)
	_ store.PipelineStore  = (*Store)(nil)
	_ store.ModelTaskStore = (*Store)(nil)
)

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// execOne runs an update that must touch at least one row
func (s *Store) execOne(ctx context.Context, what, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not update %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not update %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
