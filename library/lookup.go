package library

import "context"

// Lookup resolves the identifiers people type (email, title and author) into
// internal keys. An absent row is reported through the found flag, never as
// an error or a magic id.
type Lookup struct {
	db *Database
}

func NewLookup(db *Database) *Lookup { return &Lookup{db: db} }

// ResolveMemberID returns the id of the member registered under email.
func (l *Lookup) ResolveMemberID(ctx context.Context, email string) (id int64, found bool, err error) {
	found, err = l.db.QueryOne(ctx, &id, `SELECT member_id FROM members WHERE email = ?`, email)
	return id, found, err
}

// ResolveBookID returns the id of the book with exactly this title and author.
// When several copies share the pair, the oldest row wins.
func (l *Lookup) ResolveBookID(ctx context.Context, title, author string) (id int64, found bool, err error) {
	found, err = l.db.QueryOne(ctx, &id,
		`SELECT book_id FROM books WHERE title = ? AND author = ? ORDER BY book_id LIMIT 1`, title, author)
	return id, found, err
}
