package database

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// SupportsLastInsertId returns true if the driver supports LastInsertId()
	SupportsLastInsertId() bool

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// UpsertQuery renders an insert-or-update statement with ? placeholders
	UpsertQuery(u Upsert) string

	// IsUniqueViolation reports whether err is a unique or primary key conflict
	IsUniqueViolation(err error) bool

	// SyncSequenceQuery moves an id sequence past rows inserted with explicit
	// ids. Empty when the database tracks that on its own.
	SyncSequenceQuery(table, column string) string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// setPool applies the connection pool limits shared by all dialects
func setPool(db *sql.DB, maxOpen, maxIdle int) {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)
}

// Upsert describes an insert that resolves key conflicts in place.
// Update columns take the new value; Increment columns add the new value to
// the stored one, which keeps concurrent increments atomic.
// When Newer names a column, Update columns change only if the incoming
// value of that column is greater than the stored one.
type Upsert struct {
	Table     string
	Columns   []string
	Conflict  []string
	Update    []string
	Increment []string
	Newer     string
}

func (u Upsert) insertPrefix() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(u.Columns)), ", ")
	return "INSERT INTO " + u.Table + " (" + strings.Join(u.Columns, ", ") + ") VALUES (" + placeholders + ")"
}

// onConflictUpsert renders the ON CONFLICT form shared by SQLite and PostgreSQL
func onConflictUpsert(u Upsert) string {
	var b strings.Builder
	b.WriteString(u.insertPrefix())
	b.WriteString(" ON CONFLICT (")
	b.WriteString(strings.Join(u.Conflict, ", "))
	b.WriteString(")")

	sets := make([]string, 0, len(u.Update)+len(u.Increment))
	for _, c := range u.Update {
		if u.Newer == "" {
			sets = append(sets, c+" = excluded."+c)
			continue
		}
		sets = append(sets, fmt.Sprintf("%[1]s = CASE WHEN excluded.%[3]s > %[2]s.%[3]s THEN excluded.%[1]s ELSE %[2]s.%[1]s END",
			c, u.Table, u.Newer))
	}
	for _, c := range u.Increment {
		sets = append(sets, c+" = "+u.Table+"."+c+" + excluded."+c)
	}
	if len(sets) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String()
	}
	b.WriteString(" DO UPDATE SET ")
	b.WriteString(strings.Join(sets, ", "))
	return b.String()
}

// placeholderRegexp matches ? placeholders not inside quotes
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}
