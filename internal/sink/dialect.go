package sink

import (
	_ "embed"
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"fragmenter/internal/config"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

const (
	sqliteBusyCode       = 5
	sqliteConstraintCode = 19
	pgUniqueViolation    = "23505"
)

// dialect captures the differences between the supported SQL backends.
type dialect struct {
	name       string
	driverName string
	schema     string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered          bool
	isUniqueViolation func(error) bool
	isUnavailable     func(error) bool
	retryable         func(error) bool
}

var dialects = map[string]dialect{
	config.DriverSQLite: {
		name:              config.DriverSQLite,
		driverName:        "sqlite",
		schema:            sqliteSchema,
		isUniqueViolation: isSQLiteUniqueViolation,
		isUnavailable:     isSQLiteBusy,
		retryable:         isSQLiteBusy,
	},
	config.DriverPostgres: {
		name:              config.DriverPostgres,
		driverName:        "postgres",
		schema:            postgresSchema,
		numbered:          true,
		isUniqueViolation: isPostgresUniqueViolation,
		isUnavailable:     isPostgresUnavailable,
		retryable:         func(error) bool { return false },
	},
}

func lookupDialect(driver string) (dialect, bool) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(driver))]
	return d, ok
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ddl renders the schema for the qualified table name.
func (d dialect) ddl(schemaName, table string) string {
	qualified := qualifiedTable(schemaName, table)
	ddl := strings.NewReplacer("{{table}}", qualified, "{{index}}", table).Replace(d.schema)
	if d.name == config.DriverPostgres && schemaName != "" {
		ddl = "CREATE SCHEMA IF NOT EXISTS " + schemaName + ";\n" + ddl
	}
	return ddl
}

func qualifiedTable(schemaName, table string) string {
	if schemaName == "" {
		return table
	}
	return schemaName + "." + table
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isSQLiteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteConstraintCode {
		return strings.Contains(err.Error(), "UNIQUE")
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isPostgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}

func isPostgresUnavailable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "08", "53", "57":
		// connection exception, insufficient resources, operator intervention
		return true
	}
	return false
}
