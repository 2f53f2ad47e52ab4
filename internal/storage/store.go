package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	pragmaJournalModeWAL = `PRAGMA journal_mode=WAL`
	pragmaForeignKeysOn  = `PRAGMA foreign_keys=ON`

	defaultBusyTimeout  = 5 * time.Second
	defaultMaxOpenConns = 4
)

// Tables lists the entity tables in dependency order.
var Tables = []string{"customers", "orders", "measurements", "appointments", "payments"}

type Options struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// Repos groups repositories bound to one database handle or transaction.
type Repos struct {
	Customers    CustomerRepository
	Orders       OrderRepository
	Measurements MeasurementRepository
	Appointments AppointmentRepository
	Payments     PaymentRepository
	Activity     ActivityRepository
	Stats        StatsRepository
}

type Store struct {
	Repos

	db   *sql.DB
	path string
}

func Open(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open storage: empty path")
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaultMaxOpenConns
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open storage: create parent dir: %w", err)
	}

	// Pragmas ride on the DSN so every pooled connection gets them.
	dsn := "file:" + path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(" + strconv.FormatInt(opts.BusyTimeout.Milliseconds(), 10) + ")"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxOpenConns)

	if err := configureSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{
		Repos: newRepos(db),
		db:    db,
		path:  path,
	}
	if err := store.Initialize(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureDBPermissions(path); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func newRepos(db dbtx) Repos {
	return Repos{
		Customers:    &customerRepository{db: db},
		Orders:       &orderRepository{db: db},
		Measurements: &measurementRepository{db: db},
		Appointments: &appointmentRepository{db: db},
		Payments:     &paymentRepository{db: db},
		Activity:     &activityRepository{db: db},
		Stats:        &statsRepository{db: db},
	}
}

// Initialize creates any missing tables. It is safe to call on every start.
func (s *Store) Initialize(ctx context.Context) error {
	return RunMigrations(ctx, s.db, DefaultMigrations())
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Query runs one parameterized statement on a dedicated connection and
// returns every result row keyed by column name.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", classifyError(err))
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query: columns: %w", err)
	}

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("query: scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
				continue
			}
			row[column] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: iterate: %w", err)
	}
	return out, nil
}

// Insert runs one parameterized insert on a dedicated connection and
// returns the generated row id.
func (s *Store) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert: acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	id, err := insertRow(ctx, conn, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	return id, nil
}

// WithTx runs fn against repositories bound to a single transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repos Repos) error) error {
	return withTx(ctx, s.db, func(tx dbtx) error {
		return fn(newRepos(tx))
	})
}

// Counts returns the row count of every entity table.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(Tables))
	for _, table := range Tables {
		rows, err := s.Query(ctx, `SELECT COUNT(1) AS n FROM `+table)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		if len(rows) != 1 {
			return nil, fmt.Errorf("count %s: expected one row, got %d", table, len(rows))
		}
		n, ok := rows[0]["n"].(int64)
		if !ok {
			return nil, fmt.Errorf("%w: count %s: unexpected type %T", ErrDecode, table, rows[0]["n"])
		}
		out[table] = n
	}
	return out, nil
}

// Backup writes a consistent copy of the database to dest. An existing dest
// is replaced only when overwrite is set.
func (s *Store) Backup(ctx context.Context, dest string, overwrite bool) error {
	if dest == "" {
		return fmt.Errorf("backup: empty destination")
	}
	if _, err := os.Stat(dest); err == nil {
		if !overwrite {
			return fmt.Errorf("backup: %s: %w", dest, os.ErrExist)
		}
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("backup: remove existing: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("backup: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return fmt.Errorf("backup: create parent dir: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := os.Chmod(dest, 0o600); err != nil {
		return fmt.Errorf("backup: set permissions: %w", err)
	}
	return nil
}

func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return readSchemaVersion(ctx, s.db)
}

// Verify runs SQLite's quick integrity check and confirms foreign keys are
// enforced on pooled connections.
func (s *Store) Verify(ctx context.Context) error {
	rows, err := s.Query(ctx, `PRAGMA quick_check`)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if len(rows) != 1 || rows[0]["quick_check"] != "ok" {
		problems := make([]string, 0, len(rows))
		for _, row := range rows {
			problems = append(problems, fmt.Sprint(row["quick_check"]))
		}
		return fmt.Errorf("verify: integrity: %s", strings.Join(problems, "; "))
	}

	rows, err = s.Query(ctx, `PRAGMA foreign_keys`)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if len(rows) != 1 || rows[0]["foreign_keys"] != int64(1) {
		return fmt.Errorf("verify: foreign keys are not enforced")
	}

	rows, err = s.Query(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if len(rows) > 0 {
		return fmt.Errorf("verify: %d rows violate foreign keys, first in %v", len(rows), rows[0]["table"])
	}
	return nil
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{pragmaJournalModeWAL, pragmaForeignKeysOn}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("configure sqlite %q: %w", stmt, err)
		}
	}
	return nil
}

func ensureDBPermissions(path string) error {
	if err := os.Chmod(path, 0o600); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("set db file permissions: %w", err)
		}
	}

	walPath := path + "-wal"
	if err := os.Chmod(walPath, 0o600); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("set wal file permissions: %w", err)
		}
	}
	return nil
}
