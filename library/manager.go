package library

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrEmailTaken is returned when registering an email that already belongs to a member.
var ErrEmailTaken = errors.New("email is already registered")

var validate = validator.New()

// Options configures a session.
type Options struct {
	Driver     string
	DSN        string
	LoanPeriod time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// LibraryManager is one console session: it owns the store handle from open
// to Close and exposes the loan workflow plus plain catalogue operations.
type LibraryManager struct {
	db          *Database
	lookup      *Lookup
	ledger      *Ledger
	circulation *Circulation
	reports     *Reports
	logger      *slog.Logger
	sessionID   string
	now         func() time.Time
}

// NewLibraryManager opens (or creates) the store described by opts.
func NewLibraryManager(ctx context.Context, opts Options) (*LibraryManager, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.LoanPeriod <= 0 {
		opts.LoanPeriod = DefaultLoanPeriod
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sessionID := uuid.NewString()
	logger = logger.With("session_id", sessionID)

	db, err := NewDatabase(ctx, opts.Driver, opts.DSN, logger)
	if err != nil {
		return nil, err
	}

	lookup := NewLookup(db)
	ledger := NewLedger(db)
	lm := &LibraryManager{
		db:     db,
		lookup: lookup,
		ledger: ledger,
		circulation: NewCirculation(lookup, ledger, db,
			WithLoanPeriod(opts.LoanPeriod),
			WithClock(opts.Now),
			WithCirculationLogger(logger),
		),
		reports:   NewReports(db),
		logger:    logger,
		sessionID: sessionID,
		now:       opts.Now,
	}
	logger.Debug("session opened", "driver", opts.Driver)
	return lm, nil
}

// Close releases the store handle.
func (lm *LibraryManager) Close() error {
	lm.logger.Debug("session closed")
	return lm.db.Close()
}

// SessionID identifies this session in log output.
func (lm *LibraryManager) SessionID() string { return lm.sessionID }

// Today is the session clock's current date.
func (lm *LibraryManager) Today() time.Time { return truncateDay(lm.now()) }

// ------------------ Circulation ------------------

func (lm *LibraryManager) Borrow(ctx context.Context, email, title, author string) (*Loan, error) {
	return lm.circulation.Borrow(ctx, email, title, author)
}

func (lm *LibraryManager) Return(ctx context.Context, email, title, author string) error {
	return lm.circulation.Return(ctx, email, title, author)
}

// ------------------ Book helpers ------------------

// AddBook validates nb and stores it, returning the generated id.
func (lm *LibraryManager) AddBook(ctx context.Context, nb NewBook) (int64, error) {
	nb.Title, nb.Author = strings.TrimSpace(nb.Title), strings.TrimSpace(nb.Author)
	if err := validateInput(nb); err != nil {
		return 0, err
	}
	id, err := lm.db.InsertReturningID(ctx,
		`INSERT INTO books (title, author, is_available) VALUES (?, ?, ?) RETURNING book_id`,
		nb.Title, nb.Author, nb.Available)
	if err != nil {
		return 0, err
	}
	lm.logger.Info("book added", logAttrBookID, id, logAttrTitle, nb.Title, logAttrAuthor, nb.Author)
	return id, nil
}

// FindBook returns the book with exactly this title and author.
func (lm *LibraryManager) FindBook(ctx context.Context, title, author string) (*Book, error) {
	var b Book
	found, err := lm.db.QueryOne(ctx, &b,
		`SELECT book_id, title, author, is_available FROM books WHERE title = ? AND author = ? ORDER BY book_id LIMIT 1`,
		title, author)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, bookNotFound(title, author)
	}
	return &b, nil
}

// DeleteBook removes every book with this title and author. Books that an
// open loan still references are not deleted.
func (lm *LibraryManager) DeleteBook(ctx context.Context, title, author string) (int64, error) {
	if _, found, err := lm.lookup.ResolveBookID(ctx, title, author); err != nil {
		return 0, err
	} else if !found {
		return 0, bookNotFound(title, author)
	}

	var open int64
	if _, err := lm.db.QueryOne(ctx, &open,
		`SELECT COUNT(*) FROM loans l JOIN books b ON b.book_id = l.book_id WHERE b.title = ? AND b.author = ?`,
		title, author); err != nil {
		return 0, err
	}
	if open > 0 {
		lm.logger.Warn("book delete refused", logAttrTitle, title, logAttrAuthor, author, "open_loans", open)
		return 0, errors.Wrapf(ErrActiveLoans, "%q by %s has %d open loan(s)", title, author, open)
	}

	n, err := lm.db.Delete(ctx, `DELETE FROM books WHERE title = ? AND author = ?`, title, author)
	if err != nil {
		return 0, err
	}
	lm.logger.Info("book deleted", logAttrTitle, title, logAttrAuthor, author, logAttrRows, n)
	return n, nil
}

// Books lists every book.
func (lm *LibraryManager) Books(ctx context.Context) ([]*Book, error) {
	return lm.reports.ListBooks(ctx, BookFilter{})
}

// BorrowedBooks lists the books currently out.
func (lm *LibraryManager) BorrowedBooks(ctx context.Context) ([]*Book, error) {
	return lm.ledger.Borrowed(ctx)
}

// ------------------ Member helpers ------------------

// AddMember validates nm and registers it, returning the generated id.
func (lm *LibraryManager) AddMember(ctx context.Context, nm NewMember) (int64, error) {
	nm.Name, nm.Email = strings.TrimSpace(nm.Name), strings.TrimSpace(nm.Email)
	if err := validateInput(nm); err != nil {
		return 0, err
	}
	id, err := lm.db.InsertReturningID(ctx,
		`INSERT INTO members (name, email) VALUES (?, ?) RETURNING member_id`, nm.Name, nm.Email)
	if err != nil {
		var se *StorageError
		if errors.As(err, &se) && se.Constraint() {
			return 0, errors.Wrap(ErrEmailTaken, nm.Email)
		}
		return 0, err
	}
	lm.logger.Info("member added", logAttrMemberID, id, logAttrEmail, nm.Email)
	return id, nil
}

// DeleteMember removes the member registered under email unless they still
// hold a book.
func (lm *LibraryManager) DeleteMember(ctx context.Context, email string) error {
	memberID, found, err := lm.lookup.ResolveMemberID(ctx, email)
	if err != nil {
		return err
	}
	if !found {
		return memberNotFound(email)
	}

	var open int64
	if _, err := lm.db.QueryOne(ctx, &open, `SELECT COUNT(*) FROM loans WHERE member_id = ?`, memberID); err != nil {
		return err
	}
	if open > 0 {
		lm.logger.Warn("member delete refused", logAttrMemberID, memberID, "open_loans", open)
		return errors.Wrapf(ErrActiveLoans, "%s holds %d book(s)", email, open)
	}

	if _, err := lm.db.Delete(ctx, `DELETE FROM members WHERE member_id = ?`, memberID); err != nil {
		return err
	}
	lm.logger.Info("member deleted", logAttrMemberID, memberID, logAttrEmail, email)
	return nil
}

// Members lists every member.
func (lm *LibraryManager) Members(ctx context.Context) ([]*Member, error) {
	var members []*Member
	err := lm.db.Query(ctx, &members, `SELECT member_id, name, email FROM members ORDER BY member_id`)
	return members, err
}

// ------------------ Reports ------------------

func (lm *LibraryManager) ListBooks(ctx context.Context, f BookFilter) ([]*Book, error) {
	return lm.reports.ListBooks(ctx, f)
}

func (lm *LibraryManager) ListLoans(ctx context.Context, f LoanFilter) ([]*LoanView, error) {
	return lm.reports.ListLoans(ctx, f)
}

// ------------------ Utilities ------------------

// validateInput runs the struct tags of v and turns failures into ErrInvalidInput.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email address")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return errors.WithMessage(ErrInvalidInput, strings.Join(msgs, "; "))
}
