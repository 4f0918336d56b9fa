// Package database owns the embedded SQLite catalog store: schema
// migrations, repositories, and the transactional unit of work that
// import pipelines run inside.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Config holds database construction options.
type Config struct {
	DatabasePath string
}

// DB wraps the SQLite connection pool.
type DB struct {
	conn *sql.DB
}

// Queryer is satisfied by both *sql.DB and *sql.Tx so repositories can run
// against the pool directly or inside a unit of work.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewDB opens (creating if needed) the catalog database and applies all
// pending migrations.
func NewDB(cfg Config) (*DB, error) {
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("database path not provided")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", cfg.DatabasePath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY churn.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Connection exposes the underlying pool for repositories.
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// UnitOfWork binds all repositories to a single transaction. Callers must
// finish with Commit or Rollback; Rollback after Commit is a no-op.
type UnitOfWork struct {
	tx       *sql.Tx
	done     bool
	Catalog  *CatalogRepository
	Channels *ChannelRepository
	EPG      *EPGRepository
	Sources  *SourceRepository
}

// BeginUnit starts a transaction and returns repositories bound to it.
func (db *DB) BeginUnit(ctx context.Context) (*UnitOfWork, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &UnitOfWork{
		tx:       tx,
		Catalog:  NewCatalogRepository(tx),
		Channels: NewChannelRepository(tx),
		EPG:      NewEPGRepository(tx),
		Sources:  NewSourceRepository(tx),
	}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	u.done = true
	return u.tx.Commit()
}

// Rollback aborts the transaction unless it was already committed.
func (u *UnitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback()
}
