package service

import (
	"database/sql"
	"errors"

	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

// appError passes typed application errors through and wraps anything else as internal.
func appError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// lookupError maps a missing row to NOT_FOUND with message and wraps everything else.
func lookupError(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appError(err, internal)
}

func validationError(message string) error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}
