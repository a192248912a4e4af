package library

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *LibraryManager {
	t.Helper()
	dir := t.TempDir()
	mgr, err := NewLibraryManager(context.Background(), Options{
		DSN: filepath.Join(dir, "lib.db"),
		Now: fixedNow,
	})
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestAddBookTrimsAndStores(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	id, err := mgr.AddBook(ctx, NewBook{Title: "  Dune ", Author: "Herbert\n", Available: true})
	require.NoError(t, err)

	b, err := mgr.FindBook(ctx, "Dune", "Herbert")
	require.NoError(t, err)
	assert.Equal(t, id, b.ID)
	assert.True(t, b.Available)
}

func TestAddBookRejectsInvalidInput(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	tests := []struct {
		name string
		book NewBook
		msg  string
	}{
		{"missing title", NewBook{Author: "Herbert"}, "Title is required"},
		{"blank author", NewBook{Title: "Dune", Author: "   "}, "Author is required"},
		{"long title", NewBook{Title: strings.Repeat("x", 256), Author: "Herbert"}, "Title must be at most 255"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.AddBook(ctx, tt.book)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	books, err := mgr.Books(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestFindBookUnknown(t *testing.T) {
	mgr := newManager(t)

	_, err := mgr.FindBook(context.Background(), "Dune", "Herbert")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestAddMember(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	id, err := mgr.AddMember(ctx, NewMember{Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)

	members, err := mgr.Members(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, &Member{ID: id, Name: "Ann", Email: "a@x.com"}, members[0])
}

func TestAddMemberRejectsBadEmail(t *testing.T) {
	mgr := newManager(t)

	_, err := mgr.AddMember(context.Background(), NewMember{Name: "Ann", Email: "not-an-email"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "Email must be a valid email address")
}

func TestAddMemberDuplicateEmail(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	_, err := mgr.AddMember(ctx, NewMember{Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)

	_, err = mgr.AddMember(ctx, NewMember{Name: "Another Ann", Email: "a@x.com"})
	require.ErrorIs(t, err, ErrEmailTaken)
	assert.Contains(t, err.Error(), "a@x.com")
}

func TestDeleteBookGuardsOpenLoans(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	_, err := mgr.AddBook(ctx, NewBook{Title: "Dune", Author: "Herbert", Available: true})
	require.NoError(t, err)
	_, err = mgr.AddMember(ctx, NewMember{Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)
	_, err = mgr.Borrow(ctx, "a@x.com", "Dune", "Herbert")
	require.NoError(t, err)

	_, err = mgr.DeleteBook(ctx, "Dune", "Herbert")
	require.ErrorIs(t, err, ErrActiveLoans)

	require.NoError(t, mgr.Return(ctx, "a@x.com", "Dune", "Herbert"))
	n, err := mgr.DeleteBook(ctx, "Dune", "Herbert")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = mgr.DeleteBook(ctx, "Dune", "Herbert")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestDeleteBookRemovesEveryCopy(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := mgr.AddBook(ctx, NewBook{Title: "Dune", Author: "Herbert", Available: true})
		require.NoError(t, err)
	}
	_, err := mgr.AddBook(ctx, NewBook{Title: "Emma", Author: "Austen", Available: true})
	require.NoError(t, err)

	n, err := mgr.DeleteBook(ctx, "Dune", "Herbert")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	books, err := mgr.Books(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Emma", books[0].Title)
}

func TestDeleteMemberGuardsOpenLoans(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	_, err := mgr.AddBook(ctx, NewBook{Title: "Dune", Author: "Herbert", Available: true})
	require.NoError(t, err)
	_, err = mgr.AddMember(ctx, NewMember{Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)
	_, err = mgr.Borrow(ctx, "a@x.com", "Dune", "Herbert")
	require.NoError(t, err)

	require.ErrorIs(t, mgr.DeleteMember(ctx, "a@x.com"), ErrActiveLoans)

	require.NoError(t, mgr.Return(ctx, "a@x.com", "Dune", "Herbert"))
	require.NoError(t, mgr.DeleteMember(ctx, "a@x.com"))
	assert.ErrorIs(t, mgr.DeleteMember(ctx, "a@x.com"), ErrMemberNotFound)
}

func TestBorrowedBooksFollowsLoans(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	_, err := mgr.AddBook(ctx, NewBook{Title: "Dune", Author: "Herbert", Available: true})
	require.NoError(t, err)
	_, err = mgr.AddBook(ctx, NewBook{Title: "Emma", Author: "Austen", Available: true})
	require.NoError(t, err)
	_, err = mgr.AddMember(ctx, NewMember{Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)

	books, err := mgr.BorrowedBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)

	loan, err := mgr.Borrow(ctx, "a@x.com", "Emma", "Austen")
	require.NoError(t, err)
	assert.Equal(t, "2026-11-02", loan.ReturnDate.Format(time.DateOnly))

	books, err = mgr.BorrowedBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Emma", books[0].Title)
}

func TestSessionIdentity(t *testing.T) {
	mgr := newManager(t)

	_, err := uuid.Parse(mgr.SessionID())
	require.NoError(t, err)
	assert.NotEqual(t, mgr.SessionID(), newManager(t).SessionID())
	assert.Equal(t, "2026-10-19", mgr.Today().Format(time.DateOnly))
}

func TestManagerLoanPeriodOption(t *testing.T) {
	mgr, err := NewLibraryManager(context.Background(), Options{
		DSN:        filepath.Join(t.TempDir(), "lib.db"),
		LoanPeriod: 7 * 24 * time.Hour,
		Now:        fixedNow,
	})
	require.NoError(t, err)
	defer mgr.Close()
	ctx := context.Background()

	_, err = mgr.AddBook(ctx, NewBook{Title: "Dune", Author: "Herbert", Available: true})
	require.NoError(t, err)
	_, err = mgr.AddMember(ctx, NewMember{Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)

	loan, err := mgr.Borrow(ctx, "a@x.com", "Dune", "Herbert")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-26", loan.ReturnDate.Format(time.DateOnly))
}
