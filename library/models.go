package library

import "time"

// Book represents a catalogue entry and whether it can currently be lent.
// Title and author together are the natural key the console works with.
type Book struct {
	ID        int64  `db:"book_id" json:"id"`
	Title     string `db:"title" json:"title"`
	Author    string `db:"author" json:"author"`
	Available bool   `db:"is_available" json:"available"`
}

// Member represents a registered library member, looked up by email.
type Member struct {
	ID    int64  `db:"member_id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// Loan links one book to one member for as long as the book is out.
// ReturnDate is the due date, not the date the book came back.
type Loan struct {
	ID         int64     `db:"loan_id" json:"id"`
	BookID     int64     `db:"book_id" json:"book_id"`
	MemberID   int64     `db:"member_id" json:"member_id"`
	LoanDate   time.Time `db:"loan_date" json:"loan_date"`
	ReturnDate time.Time `db:"return_date" json:"return_date"`
}

// LoanView is a loan joined with the book and member it references.
type LoanView struct {
	Loan
	Title       string `db:"title" json:"title"`
	Author      string `db:"author" json:"author"`
	MemberName  string `db:"name" json:"member_name"`
	MemberEmail string `db:"email" json:"member_email"`
}

// Overdue reports whether the loan was due before day.
func (l LoanView) Overdue(day time.Time) bool {
	return l.ReturnDate.Before(truncateDay(day))
}

// NewBook is the input for adding a book.
type NewBook struct {
	Title     string `validate:"required,max=255"`
	Author    string `validate:"required,max=255"`
	Available bool
}

// NewMember is the input for registering a member.
type NewMember struct {
	Name  string `validate:"required,max=255"`
	Email string `validate:"required,email,max=255"`
}

// truncateDay drops the time of day, keeping the calendar date of t in UTC.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
