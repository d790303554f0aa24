package repository

import (
	"errors"

	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// translate maps storage errors onto the domain taxonomy. gorm sentinels
// are produced by the dialector's error translation; raw sqlite3 errors
// still reach here from statements run outside gorm's translator.
// Constraint and busy failures keep their cause next to domain.ErrDatabase.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrAlreadyExists
	case errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return errors.Join(domain.ErrDatabase, err)
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return domain.ErrAlreadyExists
	}
	switch sqliteErr.Code {
	case sqlite3.ErrConstraint, sqlite3.ErrBusy, sqlite3.ErrLocked:
		return errors.Join(domain.ErrDatabase, err)
	}
	return err
}

// run executes a gorm operation and translates its error.
func run(op func() error) error {
	return translate(op())
}
