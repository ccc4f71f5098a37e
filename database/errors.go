package database

import (
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/glowbook/errors"
)

// FromGorm converts a gorm error into the application error taxonomy.
func FromGorm(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound(resource, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.AlreadyExists(resource).WithCause(err)
	default:
		return apperrors.DatabaseError(err)
	}
}
