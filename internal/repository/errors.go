package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqInvalidText         = "22P02"
)

// MapPQError converts constraint violations into domain errors; other errors pass through.
// A malformed UUID key cannot match any row, so it reads as sql.ErrNoRows.
func MapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "record already exists")
	case pqForeignKeyViolation:
		return appErrors.Wrap(err, appErrors.ErrHasChildren.Code, appErrors.ErrHasChildren.Status, appErrors.ErrHasChildren.Message)
	case pqInvalidText:
		return sql.ErrNoRows
	}
	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation, optionally on a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
