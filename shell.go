package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"library-circulation/library"
)

var menu = []string{
	"Add a new book",
	"Delete book",
	"Register a new member",
	"Borrow a book",
	"Return a book",
	"View all books",
	"View borrowed books",
	"View loans",
	"Exit",
}

// shell is the interactive menu loop over one session.
type shell struct {
	sc          *bufio.Scanner
	out         io.Writer
	mgr         *library.LibraryManager
	interactive bool
}

func (a *app) runShell(ctx context.Context) error {
	s := &shell{
		sc:          bufio.NewScanner(a.in),
		out:         a.out,
		mgr:         a.mgr,
		interactive: a.interactive(),
	}
	s.run(ctx)
	return nil
}

func (s *shell) run(ctx context.Context) {
	if s.interactive {
		fmt.Fprintln(s.out, "Welcome to the library!")
	}
	for {
		s.printOptions()
		option, ok := s.readOption()
		if !ok {
			return
		}

		switch option {
		case 1:
			s.handleAddBook(ctx)
		case 2:
			s.handleDeleteBook(ctx)
		case 3:
			s.handleRegisterMember(ctx)
		case 4:
			s.handleBorrow(ctx)
		case 5:
			s.handleReturn(ctx)
		case 6:
			s.handleViewAllBooks(ctx)
		case 7:
			s.handleViewBorrowedBooks(ctx)
		case 8:
			s.handleViewLoans(ctx)
		case 9:
			fmt.Fprintln(s.out, "Goodbye!")
			return
		}
	}
}

func (s *shell) printOptions() {
	if !s.interactive {
		return
	}
	fmt.Fprintln(s.out, "\nChoose an option:")
	for i, item := range menu {
		fmt.Fprintf(s.out, "%d - %s\n", i+1, item)
	}
}

// readOption re-prompts until it reads a number in range. It reports false
// when input is exhausted.
func (s *shell) readOption() (int, bool) {
	for {
		line, ok := s.ask(fmt.Sprintf("Enter your choice (1 - %d): ", len(menu)))
		if !ok {
			return 0, false
		}
		option, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintln(s.out, "Invalid input. Please enter a valid integer.")
			continue
		}
		if option < 1 || option > len(menu) {
			fmt.Fprintf(s.out, "Please enter a number between 1 and %d.\n", len(menu))
			continue
		}
		return option, true
	}
}

// ask prints prompt (on a terminal) and returns the next trimmed line.
func (s *shell) ask(prompt string) (string, bool) {
	if s.interactive {
		fmt.Fprint(s.out, prompt)
	}
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *shell) askYesNo(prompt string) (bool, bool) {
	for {
		line, ok := s.ask(prompt)
		if !ok {
			return false, false
		}
		switch strings.ToLower(line) {
		case "yes", "y":
			return true, true
		case "no", "n":
			return false, true
		}
		fmt.Fprintln(s.out, "Invalid input! Please enter 'yes' or 'no'.")
	}
}

func (s *shell) askTitleAuthor() (title, author string, ok bool) {
	if title, ok = s.ask("Enter the book title: "); !ok {
		return
	}
	author, ok = s.ask("Enter the book author: ")
	return
}

func (s *shell) handleAddBook(ctx context.Context) {
	title, author, ok := s.askTitleAuthor()
	if !ok {
		return
	}
	available, ok := s.askYesNo("Is the book available (yes/no): ")
	if !ok {
		return
	}

	id, err := s.mgr.AddBook(ctx, library.NewBook{Title: title, Author: author, Available: available})
	if err != nil {
		s.fail("Failed to add the book", err)
		return
	}
	fmt.Fprintf(s.out, "Book was added with ID %d.\n", id)
}

func (s *shell) handleDeleteBook(ctx context.Context) {
	title, author, ok := s.askTitleAuthor()
	if !ok {
		return
	}
	n, err := s.mgr.DeleteBook(ctx, title, author)
	if err != nil {
		s.fail("Failed to delete the book", err)
		return
	}
	fmt.Fprintf(s.out, "Deleted %d book(s).\n", n)
}

func (s *shell) handleRegisterMember(ctx context.Context) {
	name, ok := s.ask("Please enter a name: ")
	if !ok {
		return
	}
	email, ok := s.ask("Please enter an email: ")
	if !ok {
		return
	}
	id, err := s.mgr.AddMember(ctx, library.NewMember{Name: name, Email: email})
	if err != nil {
		s.fail("Failed to add the member", err)
		return
	}
	fmt.Fprintf(s.out, "Member '%s' was registered with ID %d.\n", name, id)
}

func (s *shell) handleBorrow(ctx context.Context) {
	email, ok := s.ask("Please enter an email: ")
	if !ok {
		return
	}
	title, author, ok := s.askTitleAuthor()
	if !ok {
		return
	}
	loan, err := s.mgr.Borrow(ctx, email, title, author)
	if err != nil {
		s.fail("Could not borrow the book", err)
		return
	}
	fmt.Fprintf(s.out, "Loan recorded: '%s' by %s is due on %s.\n", title, author, loan.ReturnDate.Format(time.DateOnly))
}

func (s *shell) handleReturn(ctx context.Context) {
	email, ok := s.ask("Please enter an email: ")
	if !ok {
		return
	}
	title, author, ok := s.askTitleAuthor()
	if !ok {
		return
	}
	if err := s.mgr.Return(ctx, email, title, author); err != nil {
		s.fail("Could not return the book", err)
		return
	}
	fmt.Fprintf(s.out, "'%s' by %s was returned and is available again.\n", title, author)
}

func (s *shell) handleViewAllBooks(ctx context.Context) {
	books, err := s.mgr.Books(ctx)
	if err != nil {
		s.fail("Could not list books", err)
		return
	}
	printBooks(s.out, books)
}

func (s *shell) handleViewBorrowedBooks(ctx context.Context) {
	books, err := s.mgr.BorrowedBooks(ctx)
	if err != nil {
		s.fail("Could not list borrowed books", err)
		return
	}
	if len(books) == 0 {
		fmt.Fprintln(s.out, "All books are currently available.")
		return
	}
	for _, b := range books {
		fmt.Fprintf(s.out, "Borrowed: %s by %s\n", b.Title, b.Author)
	}
}

func (s *shell) handleViewLoans(ctx context.Context) {
	loans, err := s.mgr.ListLoans(ctx, library.LoanFilter{})
	if err != nil {
		s.fail("Could not list loans", err)
		return
	}
	printLoans(s.out, loans, s.mgr.Today())
}

func (s *shell) fail(what string, err error) {
	fmt.Fprintf(s.out, "%s: %v\n", what, userError(err))
}

// userError turns workflow and storage errors into messages for a person at
// the console. Unknown errors pass through unchanged.
func userError(err error) error {
	var se *library.StorageError
	switch {
	case errors.Is(err, library.ErrMemberNotFound):
		return errors.New("you are not a registered member; register first")
	case errors.Is(err, library.ErrBookNotFound):
		return errors.New("no book found with this title and author")
	case errors.Is(err, library.ErrBookUnavailable):
		return errors.New("this book is currently borrowed by another member")
	case errors.Is(err, library.ErrLoanNotFound):
		return errors.New("there is no loan of this book for this member")
	case errors.As(err, &se):
		return fmt.Errorf("database error: %v", se.Err)
	}
	return err
}
