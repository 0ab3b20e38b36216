// Package db owns the sqlite database handle and its schema migrations.
package db

import (
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"
)

// Schema lives in versioned migration files so installed databases can be
// upgraded in place.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the sqlite database at path and brings
// its schema up to date by applying the embedded migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	database := &DB{db}
	if err := database.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}
