package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
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

// mysqlParams are added to the DSN unless the URL already sets them
var mysqlParams = []struct{ key, value string }{
	// timestamps are scanned into time.Time
	{"parseTime", "true"},
	{"multiStatements", "true"},
	// UPDATE reports matched rows, so rewriting a row with its own values is not "not found"
	{"clientFoundRows", "true"},
}

func (d *MySQLDialect) DSN(config DialectConfig) string {
	dsn := config.URL
	if dsn == "" {
		return dsn
	}
	for _, p := range mysqlParams {
		if strings.Contains(dsn, p.key+"=") {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + p.key + "=" + p.value
	}
	return dsn
}

func (d *MySQLDialect) RewriteQuery(query string) string {
	return query
}

func (d *MySQLDialect) SupportsLastInsertId() bool {
	return true
}

func (d *MySQLDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS = 1;"); err != nil {
		return err
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

func (d *MySQLDialect) UpsertQuery(table string, cols, conflictCols, updateCols []string) string {
	query := insertPrefix(table, cols)
	if len(updateCols) == 0 {
		// MySQL has no DO NOTHING; a self-assignment keeps the row untouched
		return query + " ON DUPLICATE KEY UPDATE " + conflictCols[0] + " = " + conflictCols[0]
	}
	sets := make([]string, len(updateCols))
	for i, col := range updateCols {
		sets[i] = col + " = VALUES(" + col + ")"
	}
	return query + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}
