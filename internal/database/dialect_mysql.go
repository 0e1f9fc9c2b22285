package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQLDialect implements Dialect for MySQL
type MySQLDialect struct{}

// NewMySQLDialect creates a new MySQL dialect
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

func (d *MySQLDialect) DriverName() string {
	return "mysql"
}

// DSN makes sure DATETIME columns scan into time.Time
func (d *MySQLDialect) DSN(config DialectConfig) string {
	dsn := config.URL
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

func (d *MySQLDialect) RewriteQuery(query string) string {
	return query
}

func (d *MySQLDialect) SupportsLastInsertId() bool {
	return true
}

func (d *MySQLDialect) ConfigureConnection(db *sql.DB) error {
	setPool(db, 25, 5)
	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS = 1"); err != nil {
		return fmt.Errorf("enable foreign key checks: %w", err)
	}
	return nil
}

func (d *MySQLDialect) MigrationsSubdir() string {
	return "mysql"
}

func (d *MySQLDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			filename VARCHAR(255) UNIQUE NOT NULL,
			executed_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
		);
	`
}

func (d *MySQLDialect) UpsertQuery(u Upsert) string {
	sets := make([]string, 0, len(u.Update)+len(u.Increment))
	guarded := false
	for _, c := range u.Update {
		switch {
		case u.Newer == "":
			sets = append(sets, c+" = VALUES("+c+")")
		case c == u.Newer:
			guarded = true
		default:
			sets = append(sets, fmt.Sprintf("%[1]s = IF(VALUES(%[2]s) > %[2]s, VALUES(%[1]s), %[1]s)", c, u.Newer))
		}
	}
	// MySQL assigns left to right, so the guard column goes last
	if guarded {
		sets = append(sets, fmt.Sprintf("%[1]s = GREATEST(%[1]s, VALUES(%[1]s))", u.Newer))
	}
	for _, c := range u.Increment {
		sets = append(sets, c+" = "+c+" + VALUES("+c+")")
	}
	if len(sets) == 0 {
		// no-op assignment keeps the existing row
		sets = append(sets, u.Conflict[0]+" = "+u.Conflict[0])
	}
	return u.insertPrefix() + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

func (d *MySQLDialect) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == 1062
}

// SyncSequenceQuery is empty: InnoDB raises AUTO_INCREMENT past explicit ids
func (d *MySQLDialect) SyncSequenceQuery(table, column string) string {
	return ""
}
