package library

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

// Drivers lists the driver names NewDatabase accepts.
var Drivers = []string{DriverSQLite, DriverPostgres, DriverPGX}

// Database is the persistence gateway: parameterized reads and writes against
// books, members and loans over a single long-lived handle. Statements are
// written with ? placeholders and rebound for the driver in use.
type Database struct {
	db     *sqlx.DB
	driver string
	logger Logger
}

// NewDatabase opens the store behind dsn with the named driver, pings it and
// creates the schema when missing.
func NewDatabase(ctx context.Context, driver, dsn string, logger Logger) (*Database, error) {
	if logger == nil {
		logger = nopLogger{}
	}

	switch driver {
	case DriverSQLite:
		var err error
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	case DriverPostgres, DriverPGX:
	default:
		return nil, errors.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, storageErr("open", err)
	}
	if driver == DriverSQLite {
		// One handle for the whole session; also keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storageErr("ping", err)
	}

	d := &Database{db: db, driver: driver, logger: logger}
	if err := d.applySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// sqliteDSN ensures the directory of a file database exists and enables
// busy_timeout and foreign keys.
func sqliteDSN(path string) (string, error) {
	switch {
	case path == ":memory:":
		return "file::memory:?_foreign_keys=1", nil
	case strings.HasPrefix(path, "file:"):
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrap(err, "create db dir")
		}
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path), nil
}

// Close releases the handle.
func (d *Database) Close() error { return d.db.Close() }

// Driver returns the driver name the database was opened with.
func (d *Database) Driver() string { return d.driver }

// Ping checks the handle is still usable.
func (d *Database) Ping(ctx context.Context) error {
	return storageErr("ping", d.db.PingContext(ctx))
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

const schemaVersion = 1

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
        book_id INTEGER PRIMARY KEY AUTOINCREMENT,
        title TEXT NOT NULL,
        author TEXT NOT NULL,
        is_available BOOLEAN NOT NULL DEFAULT 1
    );`,
	`CREATE TABLE IF NOT EXISTS members (
        member_id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        email TEXT NOT NULL UNIQUE
    );`,
	`CREATE TABLE IF NOT EXISTS loans (
        loan_id INTEGER PRIMARY KEY AUTOINCREMENT,
        book_id INTEGER NOT NULL REFERENCES books(book_id),
        member_id INTEGER NOT NULL REFERENCES members(member_id),
        loan_date DATE NOT NULL,
        return_date DATE NOT NULL
    );`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
        book_id SERIAL PRIMARY KEY,
        title VARCHAR(255) NOT NULL,
        author VARCHAR(255) NOT NULL,
        is_available BOOLEAN NOT NULL DEFAULT TRUE
    );`,
	`CREATE TABLE IF NOT EXISTS members (
        member_id SERIAL PRIMARY KEY,
        name VARCHAR(255) NOT NULL,
        email VARCHAR(255) NOT NULL UNIQUE
    );`,
	`CREATE TABLE IF NOT EXISTS loans (
        loan_id SERIAL PRIMARY KEY,
        book_id INTEGER NOT NULL REFERENCES books(book_id),
        member_id INTEGER NOT NULL REFERENCES members(member_id),
        loan_date DATE NOT NULL,
        return_date DATE NOT NULL
    );`,
}

var commonSchema = []string{
	`CREATE INDEX IF NOT EXISTS idx_books_title_author ON books(title, author);`,
	`CREATE INDEX IF NOT EXISTS idx_loans_book_member ON loans(book_id, member_id);`,
}

func (d *Database) applySchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return storageErr("create meta", err)
	}

	var current int
	_ = d.db.QueryRowxContext(ctx, `SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	if d.driver == DriverSQLite {
		// WAL lets readers proceed while the session writes.
		if _, err := d.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return storageErr("enable WAL", err)
		}
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("begin schema", err)
	}
	defer tx.Rollback()

	stmts := sqliteSchema
	if d.driver != DriverSQLite {
		stmts = postgresSchema
	}
	stmts = append(append([]string{}, stmts...), commonSchema...)

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return storageErr("apply schema", err)
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`), fmt.Sprint(schemaVersion)); err != nil {
		return storageErr("record schema version", err)
	}

	return storageErr("commit schema", tx.Commit())
}

// ---------------------------------------------------------------------------
// Gateway operations
// ---------------------------------------------------------------------------

// Insert runs an INSERT and returns the number of rows it created.
func (d *Database) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	return d.exec(ctx, "insert", query, args...)
}

// Update runs an UPDATE and returns the number of rows it changed.
func (d *Database) Update(ctx context.Context, query string, args ...any) (int64, error) {
	return d.exec(ctx, "update", query, args...)
}

// Delete runs a DELETE and returns the number of rows it removed.
func (d *Database) Delete(ctx context.Context, query string, args ...any) (int64, error) {
	return d.exec(ctx, "delete", query, args...)
}

// InsertReturningID runs an INSERT ... RETURNING <id> and yields the new key.
func (d *Database) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	query = d.db.Rebind(query)
	start := time.Now()

	var id int64
	if err := d.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		d.logger.Error("insert failed", logAttrQuery, query, logAttrError, err.Error())
		return 0, storageErr("insert", err)
	}
	d.logger.Debug("insert executed", logAttrQuery, query, logAttrDurationMS, time.Since(start).Milliseconds())
	return id, nil
}

// Query scans every row of a SELECT into dest, which must be a pointer to a slice.
func (d *Database) Query(ctx context.Context, dest any, query string, args ...any) error {
	query = d.db.Rebind(query)
	start := time.Now()

	if err := d.db.SelectContext(ctx, dest, query, args...); err != nil {
		d.logger.Error("query failed", logAttrQuery, query, logAttrError, err.Error())
		return storageErr("query", err)
	}
	d.logger.Debug("query executed", logAttrQuery, query, logAttrDurationMS, time.Since(start).Milliseconds())
	return nil
}

// QueryOne scans the first row of a SELECT into dest. It reports false, and
// no error, when the statement matched nothing.
func (d *Database) QueryOne(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	query = d.db.Rebind(query)
	start := time.Now()

	err := d.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		d.logger.Debug("query matched nothing", logAttrQuery, query, logAttrDurationMS, time.Since(start).Milliseconds())
		return false, nil
	}
	if err != nil {
		d.logger.Error("query failed", logAttrQuery, query, logAttrError, err.Error())
		return false, storageErr("query", err)
	}
	d.logger.Debug("query executed", logAttrQuery, query, logAttrDurationMS, time.Since(start).Milliseconds())
	return true, nil
}

func (d *Database) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	query = d.db.Rebind(query)
	start := time.Now()

	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		d.logger.Error("statement failed", logAttrOp, op, logAttrQuery, query, logAttrError, err.Error())
		return 0, storageErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr(op, err)
	}
	d.logger.Debug("statement executed", logAttrOp, op, logAttrQuery, query, logAttrRows, n, logAttrDurationMS, time.Since(start).Milliseconds())
	return n, nil
}
