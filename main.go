package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-circulation/config"
	"library-circulation/library"
)

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// execute runs one invocation of the CLI and always releases the session,
// including when a command fails.
func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{in: in, out: out, errOut: errOut}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// app carries what every command needs once the session is open.
type app struct {
	cfg    config.Config
	mgr    *library.LibraryManager
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func (a *app) rootCmd() *cobra.Command {
	var (
		driver   string
		dsn      string
		logLevel string
		loanDays int
	)

	root := &cobra.Command{
		Use:           "library",
		Short:         "Track books, members and loans",
		Long:          "A console library manager. Run without a sub-command for the interactive menu.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("driver") {
				cfg.Driver = driver
			}
			if flags.Changed("dsn") {
				cfg.DSN = dsn
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("loan-days") {
				cfg.LoanDays = loanDays
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			return a.open(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShell(cmd.Context())
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&driver, "driver", library.DriverSQLite, "database driver: "+strings.Join(library.Drivers, ", "))
	pf.StringVar(&dsn, "dsn", config.DefaultDSN, "database file (sqlite3) or connection string")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	pf.IntVar(&loanDays, "loan-days", config.DefaultLoanDays, "days until a borrowed book is due")

	root.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Start the interactive menu",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.runShell(cmd.Context())
			},
		},
		a.borrowCmd(),
		a.returnCmd(),
		a.booksCmd(),
		a.membersCmd(),
		a.loansCmd(),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	level, _ := config.ParseLevel(a.cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))

	mgr, err := library.NewLibraryManager(ctx, library.Options{
		Driver:     a.cfg.Driver,
		DSN:        a.cfg.DSN,
		LoanPeriod: a.cfg.LoanPeriod(),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.mgr = mgr
	return nil
}

func (a *app) close() error {
	if a.mgr == nil {
		return nil
	}
	err := a.mgr.Close()
	a.mgr = nil
	return err
}

// interactive reports whether prompts should be echoed.
func (a *app) interactive() bool {
	f, ok := a.in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ------------------ Circulation commands ------------------

func (a *app) borrowCmd() *cobra.Command {
	var email, title, author string
	cmd := &cobra.Command{
		Use:   "borrow",
		Short: "Lend a book to a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loan, err := a.mgr.Borrow(cmd.Context(), email, title, author)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(a.out, "Borrowed '%s' by %s, due %s\n", title, author, loan.ReturnDate.Format(time.DateOnly))
			return nil
		},
	}
	circulationFlags(cmd, &email, &title, &author)
	return cmd
}

func (a *app) returnCmd() *cobra.Command {
	var email, title, author string
	cmd := &cobra.Command{
		Use:   "return",
		Short: "Take a borrowed book back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.mgr.Return(cmd.Context(), email, title, author); err != nil {
				return userError(err)
			}
			fmt.Fprintf(a.out, "Returned '%s' by %s\n", title, author)
			return nil
		},
	}
	circulationFlags(cmd, &email, &title, &author)
	return cmd
}

func circulationFlags(cmd *cobra.Command, email, title, author *string) {
	cmd.Flags().StringVar(email, "email", "", "member email")
	cmd.Flags().StringVar(title, "title", "", "book title")
	cmd.Flags().StringVar(author, "author", "", "book author")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("author")
}

// ------------------ Book commands ------------------

func (a *app) booksCmd() *cobra.Command {
	books := &cobra.Command{Use: "books", Short: "Manage books"}

	var nb library.NewBook
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.mgr.AddBook(cmd.Context(), nb)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(a.out, "Added book ID %d\n", id)
			return nil
		},
	}
	add.Flags().StringVar(&nb.Title, "title", "", "book title")
	add.Flags().StringVar(&nb.Author, "author", "", "book author")
	add.Flags().BoolVar(&nb.Available, "available", true, "whether the book can be lent right away")

	var (
		onlyAvailable, onlyBorrowed, asJSON bool
		byAuthor                            string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := library.BookFilter{Author: byAuthor}
			switch {
			case onlyAvailable && onlyBorrowed:
				return fmt.Errorf("--available and --borrowed are mutually exclusive")
			case onlyAvailable:
				f.Available = &onlyAvailable
			case onlyBorrowed:
				avail := false
				f.Available = &avail
			}
			rows, err := a.mgr.ListBooks(cmd.Context(), f)
			if err != nil {
				return userError(err)
			}
			if asJSON {
				return library.WriteJSON(a.out, rows)
			}
			printBooks(a.out, rows)
			return nil
		},
	}
	list.Flags().BoolVar(&onlyAvailable, "available", false, "only books that can be lent")
	list.Flags().BoolVar(&onlyBorrowed, "borrowed", false, "only books currently out")
	list.Flags().StringVar(&byAuthor, "author", "", "only books by this author")
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var delTitle, delAuthor string
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a book by title and author",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.mgr.DeleteBook(cmd.Context(), delTitle, delAuthor)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(a.out, "Deleted %d book(s)\n", n)
			return nil
		},
	}
	del.Flags().StringVar(&delTitle, "title", "", "book title")
	del.Flags().StringVar(&delAuthor, "author", "", "book author")
	_ = del.MarkFlagRequired("title")
	_ = del.MarkFlagRequired("author")

	books.AddCommand(add, list, del)
	return books
}

// ------------------ Member commands ------------------

func (a *app) membersCmd() *cobra.Command {
	members := &cobra.Command{Use: "members", Short: "Manage members"}

	var nm library.NewMember
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.mgr.AddMember(cmd.Context(), nm)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(a.out, "Added member '%s' with ID %d\n", nm.Name, id)
			return nil
		},
	}
	add.Flags().StringVar(&nm.Name, "name", "", "member name")
	add.Flags().StringVar(&nm.Email, "email", "", "member email")

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := a.mgr.Members(cmd.Context())
			if err != nil {
				return userError(err)
			}
			if asJSON {
				return library.WriteJSON(a.out, rows)
			}
			printMembers(a.out, rows)
			return nil
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var delEmail string
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a member by email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.mgr.DeleteMember(cmd.Context(), delEmail); err != nil {
				return userError(err)
			}
			fmt.Fprintf(a.out, "Deleted member %s\n", delEmail)
			return nil
		},
	}
	del.Flags().StringVar(&delEmail, "email", "", "member email")
	_ = del.MarkFlagRequired("email")

	members.AddCommand(add, list, del)
	return members
}

// ------------------ Loan commands ------------------

func (a *app) loansCmd() *cobra.Command {
	loans := &cobra.Command{Use: "loans", Short: "Inspect open loans"}

	var (
		overdue, asJSON bool
		email           string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List open loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := library.LoanFilter{MemberEmail: email}
			if overdue {
				today := a.mgr.Today()
				f.OverdueAt = &today
			}
			rows, err := a.mgr.ListLoans(cmd.Context(), f)
			if err != nil {
				return userError(err)
			}
			if asJSON {
				return library.WriteJSON(a.out, rows)
			}
			printLoans(a.out, rows, a.mgr.Today())
			return nil
		},
	}
	list.Flags().BoolVar(&overdue, "overdue", false, "only loans past their due date")
	list.Flags().StringVar(&email, "email", "", "only loans of this member")
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	loans.AddCommand(list)
	return loans
}

// ------------------ Output ------------------

func printBooks(w io.Writer, books []*library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books in library.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTitle\tAuthor\tAvailable")
	for _, b := range books {
		avail := "yes"
		if !b.Available {
			avail = "no"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", b.ID, truncateString(b.Title, 40), truncateString(b.Author, 30), avail)
	}
	tw.Flush()
}

func printMembers(w io.Writer, members []*library.Member) {
	if len(members) == 0 {
		fmt.Fprintln(w, "No members registered.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tName\tEmail")
	for _, m := range members {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", m.ID, truncateString(m.Name, 30), m.Email)
	}
	tw.Flush()
}

func printLoans(w io.Writer, loans []*library.LoanView, today time.Time) {
	if len(loans) == 0 {
		fmt.Fprintln(w, "No open loans.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Loan\tTitle\tAuthor\tMember\tLoaned\tDue\t")
	for _, l := range loans {
		flag := ""
		if l.Overdue(today) {
			flag = "OVERDUE"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, truncateString(l.Title, 40), truncateString(l.Author, 30), l.MemberEmail,
			l.LoanDate.Format(time.DateOnly), l.ReturnDate.Format(time.DateOnly), flag)
	}
	tw.Flush()
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}
