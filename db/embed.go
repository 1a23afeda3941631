// Package db embeds the SQL migrations for every supported storage driver.
package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/postgres/*.sql
var postgresFS embed.FS

//go:embed migrations/sqlite/*.sql
var sqliteFS embed.FS

// PostgresMigrations returns the PostgreSQL migrations with the .sql files at the root.
func PostgresMigrations() fs.FS {
	return mustSub(postgresFS, "migrations/postgres")
}

// SQLiteMigrations returns the SQLite migrations with the .sql files at the root.
func SQLiteMigrations() fs.FS {
	return mustSub(sqliteFS, "migrations/sqlite")
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
