package library

import (
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrMemberNotFound and ErrBookNotFound match a *NotFoundError of the
	// corresponding entity.
	ErrMemberNotFound = &NotFoundError{Entity: EntityMember}
	ErrBookNotFound   = &NotFoundError{Entity: EntityBook}

	ErrBookUnavailable = errors.New("book is currently borrowed")
	ErrLoanNotFound    = errors.New("no loan exists for this member and book")
	ErrActiveLoans     = errors.New("record is referenced by an open loan")
	ErrInvalidInput    = errors.New("invalid input")
)

const (
	EntityMember = "member"
	EntityBook   = "book"
)

// NotFoundError is returned when a natural key (email, title+author) does not
// resolve to a row.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// Is matches ErrNotFound and any *NotFoundError of the same entity.
func (e *NotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	t, ok := target.(*NotFoundError)
	return ok && t.Entity == e.Entity && (t.Key == "" || t.Key == e.Key)
}

func memberNotFound(email string) error {
	return &NotFoundError{Entity: EntityMember, Key: email}
}

func bookNotFound(title, author string) error {
	return &NotFoundError{Entity: EntityBook, Key: title + " by " + author}
}

// StorageError wraps any failure reported by the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Constraint reports whether the store rejected the statement because of an
// integrity constraint (unique, foreign key, not null, check).
func (e *StorageError) Constraint() bool {
	var liteErr sqlite3.Error
	if errors.As(e.Err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	var pqErr *pq.Error
	if errors.As(e.Err, &pqErr) {
		return pgerrcode.IsIntegrityConstraintViolation(string(pqErr.Code))
	}
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		return pgerrcode.IsIntegrityConstraintViolation(pgErr.Code)
	}
	return false
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
