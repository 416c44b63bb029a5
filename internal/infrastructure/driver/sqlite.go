package driver

import (
	"database/sql"

	// sqlite driver, registered as "sqlite"
	_ "modernc.org/sqlite"
)

// NewSQLiteConn Returns a SQLite connection pool.
//
// An in-memory database lives as long as its connection, so callers using
// ":memory:" should set MaxConn to 1.
func NewSQLiteConn(dsn string, cfg *DBConfig) (ITransactionalDB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConn > 0 {
		conn.SetMaxOpenConns(int(cfg.MaxConn))
	}
	return &SQLWrapper{conn, sqliteAdapter}, nil
}

// sqlite understands double-quoted identifiers but binds "$1" by name
func sqliteAdapter(query string) string {
	query = DollarPlaceholderPattern.ReplaceAllString(query, "?")
	query = SpacePattern.ReplaceAllString(query, " ")
	return query
}
