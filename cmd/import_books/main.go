package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-circulation/config"
	"library-circulation/library"
)

func main() {
	var dsn, driver string

	cmd := &cobra.Command{
		Use:          "import_books <file.csv>",
		Short:        "Import books from a CSV file of title,author[,available] rows",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dsn") {
				cfg.DSN = dsn
			}
			if cmd.Flags().Changed("driver") {
				cfg.Driver = driver
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", config.DefaultDSN, "database file (sqlite3) or connection string")
	cmd.Flags().StringVar(&driver, "driver", library.DriverSQLite, "database driver")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, path string, out io.Writer) error {
	level, _ := config.ParseLevel(cfg.LogLevel)
	manager, err := library.NewLibraryManager(ctx, library.Options{
		Driver: cfg.Driver,
		DSN:    cfg.DSN,
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer manager.Close()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	books, err := readBooks(f)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Importing %d book(s) from %s...\n", len(books), path)
	successCount, errorCount := 0, 0
	for _, nb := range books {
		fmt.Fprintf(out, "Importing: %s by %s... ", nb.Title, nb.Author)
		id, err := manager.AddBook(ctx, nb)
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", id)
		successCount++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)
	return nil
}

// readBooks parses title,author[,available] rows. A first row whose first
// cell is "title" is treated as a header. Missing availability means available.
func readBooks(r io.Reader) ([]library.NewBook, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	var books []library.NewBook
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "title") {
			continue
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: want title,author[,available], got %d field(s)", i+1, len(rec))
		}
		nb := library.NewBook{Title: strings.TrimSpace(rec[0]), Author: strings.TrimSpace(rec[1]), Available: true}
		if len(rec) > 2 && strings.TrimSpace(rec[2]) != "" {
			avail, err := parseAvailable(rec[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			nb.Available = avail
		}
		books = append(books, nb)
	}
	return books, nil
}

func parseAvailable(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}
