package library

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DefaultLoanPeriod is how long a member may keep a book.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Resolver turns typed identifiers into keys.
type Resolver interface {
	ResolveMemberID(ctx context.Context, email string) (int64, bool, error)
	ResolveBookID(ctx context.Context, title, author string) (int64, bool, error)
}

// Availability reads and writes the borrowable state of a book.
type Availability interface {
	IsBorrowed(ctx context.Context, bookID int64) (bool, error)
	SetAvailability(ctx context.Context, bookID int64, available bool) (int64, error)
}

// LoanStore persists loan rows.
type LoanStore interface {
	InsertLoan(ctx context.Context, loan *Loan) error
	DeleteLoan(ctx context.Context, bookID, memberID int64) (int64, error)
}

// Circulation runs the borrow and return sequences. Each step commits on its
// own; a failing step stops the sequence without undoing earlier ones.
type Circulation struct {
	resolver   Resolver
	ledger     Availability
	loans      LoanStore
	loanPeriod time.Duration
	now        func() time.Time
	logger     Logger
}

// CirculationOption configures a Circulation.
type CirculationOption func(*Circulation)

// WithLoanPeriod sets the time between loan date and due date.
func WithLoanPeriod(d time.Duration) CirculationOption {
	return func(c *Circulation) { c.loanPeriod = d }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) CirculationOption {
	return func(c *Circulation) { c.now = now }
}

// WithCirculationLogger sets the logger.
func WithCirculationLogger(logger Logger) CirculationOption {
	return func(c *Circulation) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCirculation(resolver Resolver, ledger Availability, loans LoanStore, opts ...CirculationOption) *Circulation {
	c := &Circulation{
		resolver:   resolver,
		ledger:     ledger,
		loans:      loans,
		loanPeriod: DefaultLoanPeriod,
		now:        time.Now,
		logger:     nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Borrow lends the book identified by title and author to the member
// registered under email. All checks are reads and run before the first
// write: the loan row is inserted, then the book is marked unavailable.
func (c *Circulation) Borrow(ctx context.Context, email, title, author string) (*Loan, error) {
	memberID, found, err := c.resolver.ResolveMemberID(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "resolve member")
	}
	if !found {
		c.logger.Warn("borrow rejected: unknown member", logAttrEmail, email)
		return nil, memberNotFound(email)
	}

	bookID, found, err := c.resolver.ResolveBookID(ctx, title, author)
	if err != nil {
		return nil, errors.Wrap(err, "resolve book")
	}
	if !found {
		c.logger.Warn("borrow rejected: unknown book", logAttrTitle, title, logAttrAuthor, author)
		return nil, bookNotFound(title, author)
	}

	borrowed, err := c.ledger.IsBorrowed(ctx, bookID)
	if err != nil {
		return nil, errors.Wrap(err, "check availability")
	}
	if borrowed {
		c.logger.Warn("borrow rejected: book unavailable", logAttrBookID, bookID, logAttrMemberID, memberID)
		return nil, ErrBookUnavailable
	}

	loanDate := truncateDay(c.now())
	loan := &Loan{
		BookID:     bookID,
		MemberID:   memberID,
		LoanDate:   loanDate,
		ReturnDate: loanDate.Add(c.loanPeriod),
	}
	if err := c.loans.InsertLoan(ctx, loan); err != nil {
		return nil, errors.Wrap(err, "insert loan")
	}

	// A failure here leaves the loan recorded while the book still reads as
	// available; there is no compensation.
	if _, err := c.ledger.SetAvailability(ctx, bookID, false); err != nil {
		return loan, errors.Wrap(err, "mark book unavailable")
	}

	c.logger.Info("book borrowed",
		logAttrLoanID, loan.ID, logAttrBookID, bookID, logAttrMemberID, memberID,
		logAttrDueDate, loan.ReturnDate.Format(time.DateOnly))
	return loan, nil
}

// Return closes the loan of the book identified by title and author held by
// the member registered under email. The book only becomes available again
// when a loan row was actually deleted.
func (c *Circulation) Return(ctx context.Context, email, title, author string) error {
	memberID, memberFound, err := c.resolver.ResolveMemberID(ctx, email)
	if err != nil {
		return errors.Wrap(err, "resolve member")
	}

	bookID, found, err := c.resolver.ResolveBookID(ctx, title, author)
	if err != nil {
		return errors.Wrap(err, "resolve book")
	}
	if !found {
		c.logger.Warn("return rejected: unknown book", logAttrTitle, title, logAttrAuthor, author)
		return bookNotFound(title, author)
	}

	// An unknown member cannot hold a loan; that ends the same way as a
	// delete that matched nothing.
	if !memberFound {
		c.logger.Warn("return rejected: unknown member", logAttrEmail, email, logAttrBookID, bookID)
		return ErrLoanNotFound
	}

	deleted, err := c.loans.DeleteLoan(ctx, bookID, memberID)
	if err != nil {
		return errors.Wrap(err, "delete loan")
	}
	if deleted == 0 {
		c.logger.Warn("return rejected: no open loan", logAttrBookID, bookID, logAttrMemberID, memberID)
		return ErrLoanNotFound
	}

	// A failure here leaves the loan deleted while the book still reads as
	// borrowed.
	if _, err := c.ledger.SetAvailability(ctx, bookID, true); err != nil {
		return errors.Wrap(err, "mark book available")
	}

	c.logger.Info("book returned", logAttrBookID, bookID, logAttrMemberID, memberID, logAttrRows, deleted)
	return nil
}

// InsertLoan stores loan and fills in its generated id.
func (d *Database) InsertLoan(ctx context.Context, loan *Loan) error {
	id, err := d.InsertReturningID(ctx,
		`INSERT INTO loans (member_id, book_id, loan_date, return_date) VALUES (?, ?, ?, ?) RETURNING loan_id`,
		loan.MemberID, loan.BookID, loan.LoanDate, loan.ReturnDate)
	if err != nil {
		return err
	}
	loan.ID = id
	return nil
}

// DeleteLoan removes the loans of bookID held by memberID.
func (d *Database) DeleteLoan(ctx context.Context, bookID, memberID int64) (int64, error) {
	return d.Delete(ctx, `DELETE FROM loans WHERE book_id = ? AND member_id = ?`, bookID, memberID)
}

// LoansForBook returns the loan rows that reference bookID.
func (d *Database) LoansForBook(ctx context.Context, bookID int64) ([]*Loan, error) {
	var loans []*Loan
	err := d.Query(ctx, &loans,
		`SELECT loan_id, book_id, member_id, loan_date, return_date FROM loans WHERE book_id = ? ORDER BY loan_id`, bookID)
	return loans, err
}
