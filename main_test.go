package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation/config"
	"library-circulation/library"
)

// cli runs commands against one database file.
type cli struct {
	t   *testing.T
	dsn string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	for _, k := range []string{config.EnvDriver, config.EnvDSN, config.EnvLogLevel, config.EnvLoanDays} {
		t.Setenv(k, "")
	}
	return &cli{t: t, dsn: filepath.Join(t.TempDir(), "lib.db")}
}

func (c *cli) run(stdin string, args ...string) (string, string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	args = append(args, "--dsn", c.dsn, "--log-level", "error")
	err := execute(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), errOut.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, errOut, err := c.run("", args...)
	require.NoError(c.t, err, errOut)
	return out
}

func TestShellSession(t *testing.T) {
	c := newCLI(t)
	script := strings.Join([]string{
		"3", "Ann", "a@x.com",
		"1", "Dune", "Herbert", "maybe", "yes",
		"4", "a@x.com", "Dune", "Herbert",
		"4", "a@x.com", "Dune", "Herbert",
		"4", "ghost@x.com", "Dune", "Herbert",
		"7",
		"5", "a@x.com", "Dune", "Herbert",
		"5", "a@x.com", "Dune", "Herbert",
		"abc",
		"42",
		"7",
		"9",
		"3", "never", "reached@x.com",
	}, "\n") + "\n"

	out, errOut, err := c.run(script)
	require.NoError(t, err, errOut)

	for _, want := range []string{
		"Member 'Ann' was registered with ID 1.",
		"Invalid input! Please enter 'yes' or 'no'.",
		"Book was added with ID 1.",
		"Loan recorded: 'Dune' by Herbert is due on ",
		"Could not borrow the book: this book is currently borrowed by another member",
		"Could not borrow the book: you are not a registered member; register first",
		"Borrowed: Dune by Herbert",
		"'Dune' by Herbert was returned and is available again.",
		"Could not return the book: there is no loan of this book for this member",
		"Invalid input. Please enter a valid integer.",
		"Please enter a number between 1 and 9.",
		"All books are currently available.",
		"Goodbye!",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "never", "input after Exit must not be processed")
	assert.NotContains(t, out, "Enter your choice", "prompts are only shown on a terminal")
}

func TestShellStopsAtEndOfInput(t *testing.T) {
	c := newCLI(t)

	out, _, err := c.run("6\n")
	require.NoError(t, err)
	assert.Contains(t, out, "No books in library.")
	assert.NotContains(t, out, "Goodbye!")
}

func TestShellSubcommand(t *testing.T) {
	c := newCLI(t)

	out, _, err := c.run("8\n9\n", "shell")
	require.NoError(t, err)
	assert.Contains(t, out, "No open loans.")
	assert.Contains(t, out, "Goodbye!")
}

func TestBooksCommands(t *testing.T) {
	c := newCLI(t)

	assert.Equal(t, "Added book ID 1\n", c.mustRun("books", "add", "--title", "Dune", "--author", "Herbert"))
	c.mustRun("books", "add", "--title", "Emma", "--author", "Austen", "--available=false")

	out := c.mustRun("books", "list")
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "Emma")

	out = c.mustRun("books", "list", "--borrowed", "--json")
	var books []library.Book
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &books))
	require.Len(t, books, 1)
	assert.Equal(t, "Emma", books[0].Title)
	assert.False(t, books[0].Available)

	_, errOut, err := c.run("", "books", "list", "--available", "--borrowed")
	require.Error(t, err)
	assert.Contains(t, errOut, "mutually exclusive")

	assert.Equal(t, "Deleted 1 book(s)\n", c.mustRun("books", "delete", "--title", "Emma", "--author", "Austen"))
}

func TestBooksAddInvalidInput(t *testing.T) {
	c := newCLI(t)

	_, errOut, err := c.run("", "books", "add", "--author", "Herbert")
	require.Error(t, err)
	assert.True(t, errors.Is(err, library.ErrInvalidInput))
	assert.Contains(t, errOut, "Title is required")
}

func TestCirculationCommands(t *testing.T) {
	c := newCLI(t)
	c.mustRun("books", "add", "--title", "Dune", "--author", "Herbert")
	assert.Equal(t, "Added member 'Ann' with ID 1\n", c.mustRun("members", "add", "--name", "Ann", "--email", "a@x.com"))

	assert.Contains(t, c.mustRun("borrow", "--email", "a@x.com", "--title", "Dune", "--author", "Herbert"),
		"Borrowed 'Dune' by Herbert, due ")

	out := c.mustRun("loans", "list", "--email", "a@x.com")
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "a@x.com")
	assert.NotContains(t, out, "OVERDUE")
	assert.Equal(t, "No open loans.\n", c.mustRun("loans", "list", "--overdue"))

	_, errOut, err := c.run("", "members", "delete", "--email", "a@x.com")
	require.Error(t, err)
	assert.Contains(t, errOut, "open loan")

	assert.Equal(t, "Returned 'Dune' by Herbert\n",
		c.mustRun("return", "--email", "a@x.com", "--title", "Dune", "--author", "Herbert"))
	assert.Equal(t, "Deleted member a@x.com\n", c.mustRun("members", "delete", "--email", "a@x.com"))
	assert.Equal(t, "No members registered.\n", c.mustRun("members", "list"))
}

func TestBorrowUnknownMemberCommand(t *testing.T) {
	c := newCLI(t)
	c.mustRun("books", "add", "--title", "Dune", "--author", "Herbert")

	_, errOut, err := c.run("", "borrow", "--email", "ghost@x.com", "--title", "Dune", "--author", "Herbert")
	require.Error(t, err)
	assert.Contains(t, errOut, "Error: you are not a registered member; register first")
}

func TestInvalidConfiguration(t *testing.T) {
	c := newCLI(t)

	_, errOut, err := c.run("", "books", "list", "--driver", "mysql")
	require.Error(t, err)
	assert.Contains(t, errOut, `unsupported driver "mysql"`)

	_, _, err = c.run("", "books", "list", "--loan-days", "0")
	require.Error(t, err)
}

func TestUserError(t *testing.T) {
	storage := &library.StorageError{Op: "query", Err: errors.New("disk I/O error")}
	assert.EqualError(t, userError(storage), "database error: disk I/O error")

	other := errors.New("something else")
	assert.Same(t, other, userError(other))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
}
