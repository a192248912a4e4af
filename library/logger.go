package library

// Logger is satisfied by *slog.Logger.
//
// Debug level: statements with execution timing.
// Info level: completed borrow/return operations and catalogue changes.
// Warn level: rejected operations (not found, unavailable, guarded deletes).
// Error level: storage failures.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

const (
	logAttrError      = "error"
	logAttrQuery      = "query"
	logAttrOp         = "op"
	logAttrDurationMS = "duration_ms"
	logAttrRows       = "rows_affected"
	logAttrBookID     = "book_id"
	logAttrMemberID   = "member_id"
	logAttrLoanID     = "loan_id"
	logAttrEmail      = "email"
	logAttrTitle      = "title"
	logAttrAuthor     = "author"
	logAttrDueDate    = "due_date"
)
