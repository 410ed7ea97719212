package store

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqliteBusyCode       = 5
	sqliteLockedCode     = 6
	sqliteConstraintCode = 19
	pgUniqueViolation    = "23505"
	pgSerialization      = "40001"
	pgDeadlock           = "40P01"
)

type dialect struct {
	name        string
	driver      string
	placeholder func(n int) string
	tableExists string
	schema      string
}

var sqliteDialect = dialect{
	name:        "sqlite",
	driver:      "sqlite",
	placeholder: func(int) string { return "?" },
	tableExists: "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	schema:      schemaSQLite,
}

var postgresDialect = dialect{
	name:        "postgres",
	driver:      "pgx",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	tableExists: "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'schema_version'",
	schema:      schemaPostgres,
}

// rebind rewrites ? placeholders into the dialect's form.
func (d dialect) rebind(query string) string {
	if d.name == sqliteDialect.name {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func sqliteCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if code, ok := sqliteCode(err); ok && code&0xff == sqliteConstraintCode {
		return strings.Contains(err.Error(), "UNIQUE")
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerialization || pgErr.Code == pgDeadlock
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	if code, ok := sqliteCode(err); ok {
		switch code & 0xff {
		case sqliteBusyCode, sqliteLockedCode:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
