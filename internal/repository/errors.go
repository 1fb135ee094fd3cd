package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry indicates a write violated a unique constraint.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

// PolicyError is returned when the host refuses an action for a reason the user should see.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return "action not allowed: " + e.Reason
}

func notAllowed(reason string) error {
	return &PolicyError{Reason: reason}
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isDuplicateEntryError(err):
		return ErrDuplicateEntry
	default:
		return err
	}
}

// Some drivers do not translate constraint violations into gorm.ErrDuplicatedKey.
func isDuplicateEntryError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
