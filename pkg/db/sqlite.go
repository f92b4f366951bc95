package db

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// OpenSQLite opens (creating if needed) the SQLite database at path and
// applies the embedded migrations. ":memory:" gives a private in-memory
// database.
//
// The handle is limited to one connection: SQLite serializes writers anyway,
// and an in-memory database only exists on the connection that created it.
func OpenSQLite(path string, logger *slog.Logger) (*sql.DB, error) {
	dsn := "file:" + path + "?" + sqlitePragmas
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	if err := migrate(sqlDB, dialectSQLite); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.Info("sqlite ready", slog.String("path", path))
	return sqlDB, nil
}
