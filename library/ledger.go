package library

import "context"

// Ledger owns the is_available flag on books, the single source of truth for
// whether a book may be lent.
type Ledger struct {
	db *Database
}

func NewLedger(db *Database) *Ledger { return &Ledger{db: db} }

// IsBorrowed reports whether the book is out. A book id with no row counts as
// borrowed so that a missing record can never be lent.
func (l *Ledger) IsBorrowed(ctx context.Context, bookID int64) (bool, error) {
	var available bool
	found, err := l.db.QueryOne(ctx, &available, `SELECT is_available FROM books WHERE book_id = ?`, bookID)
	if err != nil {
		return true, err
	}
	if !found {
		return true, nil
	}
	return !available, nil
}

// SetAvailability flips the flag for one book and returns the affected row
// count, zero meaning no such book.
func (l *Ledger) SetAvailability(ctx context.Context, bookID int64, available bool) (int64, error) {
	return l.db.Update(ctx, `UPDATE books SET is_available = ? WHERE book_id = ?`, available, bookID)
}

// Borrowed lists the books currently out.
func (l *Ledger) Borrowed(ctx context.Context) ([]*Book, error) {
	var books []*Book
	err := l.db.Query(ctx, &books,
		`SELECT book_id, title, author, is_available FROM books WHERE is_available = ? ORDER BY book_id`, false)
	return books, err
}
