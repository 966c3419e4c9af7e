package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/database"
)

// DOIRepository owns the per-year DOI counters.
type DOIRepository struct {
	db *sqlx.DB
}

// NewDOIRepository constructs the repository.
func NewDOIRepository(db *sqlx.DB) *DOIRepository {
	return &DOIRepository{db: db}
}

// Next atomically increments the counter for year and returns the new value.
// The first call in a year creates the row with count 1. Run inside the
// caller's transaction so the serial is only consumed when the DOI is stored.
func (r *DOIRepository) Next(ctx context.Context, year int) (int, error) {
	const query = `INSERT INTO doi_sequences (year, count, updated_at) VALUES ($1, 1, now())
	ON CONFLICT (year) DO UPDATE SET count = doi_sequences.count + 1, updated_at = now()
	RETURNING count`
	var serial int
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &serial, query, year); err != nil {
		return 0, fmt.Errorf("next doi serial for %d: %w", year, err)
	}
	return serial, nil
}

// Current returns the last issued serial for year, or 0 when none was issued.
func (r *DOIRepository) Current(ctx context.Context, year int) (int, error) {
	const query = `SELECT count FROM doi_sequences WHERE year = $1`
	var serial int
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &serial, query, year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("current doi serial for %d: %w", year, err)
	}
	return serial, nil
}
