package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation/config"
	"library-circulation/library"
)

func TestReadBooks(t *testing.T) {
	input := `title,author,available
Dune,Herbert
"Emma",  Austen, no
Persuasion,Austen,yes
Ulysses,Joyce,false
`
	books, err := readBooks(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []library.NewBook{
		{Title: "Dune", Author: "Herbert", Available: true},
		{Title: "Emma", Author: "Austen", Available: false},
		{Title: "Persuasion", Author: "Austen", Available: true},
		{Title: "Ulysses", Author: "Joyce", Available: false},
	}, books)
}

func TestReadBooksWithoutHeader(t *testing.T) {
	books, err := readBooks(strings.NewReader("Dune,Herbert,\n"))
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.True(t, books[0].Available)
}

func TestReadBooksErrors(t *testing.T) {
	tests := []struct {
		name, input, wantErr string
	}{
		{"short row", "Dune,Herbert\nEmma\n", "line 2: want title,author[,available], got 1 field(s)"},
		{"bad availability", "Dune,Herbert,maybe\n", "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readBooks(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunImportsAndReportsFailures(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "books.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("title,author\nDune,Herbert\n,Nobody\n"), 0o644))

	cfg := config.Config{Driver: library.DriverSQLite, DSN: filepath.Join(dir, "lib.db"), LogLevel: "error", LoanDays: 14}
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, csvPath, &out))

	assert.Contains(t, out.String(), "Importing: Dune by Herbert... SUCCESS (ID: 1)")
	assert.Contains(t, out.String(), "ERROR - Title is required")
	assert.Contains(t, out.String(), "Successfully imported: 1 books")
	assert.Contains(t, out.String(), "Errors: 1")
}
