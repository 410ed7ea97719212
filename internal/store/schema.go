package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

var (
	//go:embed schema_sqlite.sql
	schemaSQLite string
	//go:embed schema_postgres.sql
	schemaPostgres string
)

// schemaVersion is recorded in schema_version when the tables are created.
// Bump it with every change to the embedded DDL.
const schemaVersion = 1

// ErrSchemaMismatch is returned when an existing database was created by a
// different schema version. There are no migrations; the catalog must be rebuilt.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var present int
	if err := s.db.QueryRowContext(ctx, s.dialect.tableExists).Scan(&present); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if present == 0 {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, s.dialect.schema); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			_, err := tx.ExecContext(ctx, s.rebind("INSERT INTO schema_version (version) VALUES (?)"), schemaVersion)
			if err != nil {
				return fmt.Errorf("record schema version: %w", err)
			}
			return nil
		})
	}

	var found int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&found); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if found != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, found, schemaVersion)
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
