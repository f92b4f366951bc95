package db

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

type dialect struct {
	name string
	dir  string
}

var (
	dialectPostgres = dialect{name: "postgres", dir: "migrations/postgres"}
	dialectSQLite   = dialect{name: "sqlite3", dir: "migrations/sqlite"}
)

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

func migrate(db *sql.DB, d dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(d.name); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, d.dir); err != nil {
		return fmt.Errorf("failed to run %s migrations: %w", d.name, err)
	}
	return nil
}
