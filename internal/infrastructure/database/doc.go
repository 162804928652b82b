// Package database provides account-store connectivity for secretgate.
//
// Two dialects are supported behind one *DB type:
//   - SQLite (github.com/mattn/go-sqlite3), WAL mode, single writer
//   - PostgreSQL (github.com/jackc/pgx/v5 via database/sql)
//
// Repositories write queries with ? placeholders; DB rewrites them for the
// active dialect. IsUniqueViolation recognises both drivers' unique index errors
// so callers can turn a racing insert into a domain error.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Driver: "sqlite", Path: "./data/secretgate.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations live under migrations/<dialect>/ as YYYYMMDD_HHMMSS_name.up.sql
// with a matching .down.sql, and are embedded into the binary.
package database
