package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/apiquery/internal/querysql"
	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/value"
)

// driverName is the sqlite3 driver with the apiquery functions registered.
const driverName = "sqlite3_apiquery"

// Layout version tracking:
// 1 - one table per root resource type plus one link table per relationship
const currentLayoutVersion = 1

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc(querysql.FuncUpper, upper, true); err != nil {
				return fmt.Errorf("register %s: %w", querysql.FuncUpper, err)
			}
			if err := conn.RegisterFunc(querysql.FuncLower, lower, true); err != nil {
				return fmt.Errorf("register %s: %w", querysql.FuncLower, err)
			}
			return nil
		},
	})
}

func upper(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return string(value.NewString(strings.ToUpper(s)))
}

func lower(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return string(value.NewString(strings.ToLower(s)))
}

// Store is a SQLite database holding the objects of one registry.
//
// Thread-safety: safe for concurrent use; statements are serialised on a
// single connection.
type Store struct {
	db       *sql.DB
	reg      *resource.Registry
	compiler *querysql.Compiler
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for SQL diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates or opens a SQLite database at the given path and creates
// the tables of reg. Pass ":memory:" for a private in-memory database.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, reg *resource.Registry, opts ...Option) (*Store, error) {
	s := &Store{reg: reg, compiler: querysql.NewCompiler(reg), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	version, err := s.applySchema()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s.logger.Info("store opened", "path", path, "layout_version", version)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Registry returns the registry the tables were generated from.
func (s *Store) Registry() *resource.Registry {
	return s.reg
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the registry's tables if they don't exist and
// records the layout version. A database written by a newer layout is
// rejected.
func (s *Store) applySchema() (int, error) {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	if version > currentLayoutVersion {
		return 0, fmt.Errorf("database layout version %d is newer than supported version %d", version, currentLayoutVersion)
	}

	stmts, err := querysql.Schema(s.reg)
	if err != nil {
		return 0, err
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return 0, fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	if version < currentLayoutVersion {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentLayoutVersion)); err != nil {
			return 0, fmt.Errorf("set user_version: %w", err)
		}
		s.logger.Info("store layout migrated", "from", version, "to", currentLayoutVersion)
	}
	return currentLayoutVersion, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var got string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&got); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if got != expected {
		return fmt.Errorf("%s = %q, expected %q", name, got, expected)
	}
	return nil
}
