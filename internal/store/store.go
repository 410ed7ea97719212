package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"mediaagent/internal/catalog"
	"mediaagent/internal/config"
)

const (
	defaultRetryAttempts = 3
	retryInitialBackoff  = 10 * time.Millisecond
	retryMaxBackoff      = 200 * time.Millisecond
)

// Store is the durable catalog and ledger.
type Store struct {
	db       *sql.DB
	dialect  dialect
	attempts int
	location string
}

// Open connects to the configured database and creates the schema on first use.
func Open(cfg *config.Config) (*Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return OpenPostgres(cfg.Database.DSN, cfg.Database.MaxRetries)
	default:
		return OpenSQLite(cfg.Database.Path, cfg.Database.MaxRetries)
	}
}

// OpenSQLite opens (creating if needed) a SQLite catalog at path.
func OpenSQLite(path string, retries int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}
	query := url.Values{}
	query.Add("_pragma", "journal_mode(WAL)")
	query.Add("_pragma", "foreign_keys(1)")
	query.Add("_pragma", "busy_timeout(5000)")
	db, err := sql.Open(sqliteDialect.driver, "file:"+path+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	return newStore(db, sqliteDialect, retries, path)
}

// OpenPostgres connects to a shared PostgreSQL catalog.
func OpenPostgres(dsn string, retries int) (*Store, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newStore(db, postgresDialect, retries, redactDSN(dsn))
}

func newStore(db *sql.DB, d dialect, retries int, location string) (*Store, error) {
	if retries <= 0 {
		retries = defaultRetryAttempts
	}
	s := &Store{db: db, dialect: d, attempts: retries, location: location}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver reports the dialect name (sqlite or postgres).
func (s *Store) Driver() string {
	return s.dialect.name
}

// Location reports the database file or the redacted connection string.
func (s *Store) Location() string {
	return s.location
}

// Ping verifies the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ensureContext(ctx))
}

func (s *Store) rebind(query string) string {
	return s.dialect.rebind(query)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func (s *Store) retry(ctx context.Context, op func() error) error {
	delay := retryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) || attempt == s.attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= retryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	query = s.rebind(query)
	if err := s.retry(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// insertReturningID runs an INSERT ... RETURNING id statement. UNIQUE violations
// are reported as catalog.ErrDuplicate.
func (s *Store) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	ctx = ensureContext(ctx)
	query = s.rebind(query + " RETURNING id")
	var id int64
	err := s.retry(ctx, func() error {
		return s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	})
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %v", catalog.ErrDuplicate, err)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// queryOne runs a single-row lookup. A missing row yields (nil, nil).
func queryOne[T any](ctx context.Context, s *Store, scan func(rowScanner) (*T, error), query string, args ...any) (*T, error) {
	ctx = ensureContext(ctx)
	query = s.rebind(query)
	var value *T
	err := s.retry(ctx, func() error {
		v, err := scan(s.db.QueryRowContext(ctx, query, args...))
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func expectAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: rows affected: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, catalog.ErrNotFound)
	}
	return nil
}

func redactDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.User == nil {
		if idx := strings.Index(dsn, "password="); idx >= 0 {
			return dsn[:idx] + "password=xxxxx"
		}
		return dsn
	}
	if _, ok := parsed.User.Password(); ok {
		parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
	}
	return parsed.String()
}
