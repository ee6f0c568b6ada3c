package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrInvalidInput   = errors.New("invalid input")
)

// pgUniqueViolation is the SQLSTATE postgres reports for a unique index hit
const pgUniqueViolation = "23505"

// isDuplicateKeyError reports a unique constraint violation from either
// postgres or the sqlite test database.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrapCreateError turns a failed insert into ErrDuplicateEntry when the
// database rejected it for uniqueness.
func wrapCreateError(entity, key string, err error) error {
	if isDuplicateKeyError(err) {
		return fmt.Errorf("%s %q already exists: %w", entity, key, ErrDuplicateEntry)
	}
	return fmt.Errorf("failed to create %s: %w", entity, err)
}
