package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/apiquery/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// createTestStore opens a store over the blog registry in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testutil.BlogRegistry(), WithLogger(discard))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, testutil.BlogRegistry(), WithLogger(discard))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	reg := testutil.BlogRegistry()

	for i := 0; i < 3; i++ {
		s, err := Open(path, reg, WithLogger(discard))
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path, reg, WithLogger(discard))
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	// Verify schema is intact
	tables := []string{"webAccounts", "blogs", "blogPosts", "comments", "labels", "attachments", "blogPosts.comments"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InMemory(t *testing.T) {
	data := testutil.BlogData()
	s, err := Open(":memory:", data.Registry(), WithLogger(discard))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.Import(context.Background(), data); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM "comments"`).Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 5 {
		t.Errorf("comments = %d, want 5", count)
	}
}

func TestImport_RejectsForeignRegistry(t *testing.T) {
	s := createTestStore(t)

	// BlogData freezes a registry of its own.
	if err := s.Import(context.Background(), testutil.BlogData()); err == nil {
		t.Error("expected error for dataset over another registry, got nil")
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	path := "/nonexistent/dir/test.db"

	_, err := Open(path, testutil.BlogRegistry(), WithLogger(discard))
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	err := s.Close()
	if err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	pragmas := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
		"foreign_keys": "1",
		"user_version": "1",
	}
	for name, want := range pragmas {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestMigration_RejectsNewerLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	reg := testutil.BlogRegistry()

	s, err := Open(path, reg, WithLogger(discard))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	if _, err := Open(path, reg, WithLogger(discard)); err == nil {
		t.Error("expected error for newer layout version, got nil")
	}
}

func TestCaseMappingFunctions(t *testing.T) {
	s := createTestStore(t)

	var up, low string
	var null any
	err := s.db.QueryRow("SELECT apiquery_upper('élan ü'), apiquery_lower('ÀB'), apiquery_upper(1)").Scan(&up, &low, &null)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if up != "ÉLAN Ü" {
		t.Errorf("apiquery_upper = %q, want %q", up, "ÉLAN Ü")
	}
	if low != "àb" {
		t.Errorf("apiquery_lower = %q, want %q", low, "àb")
	}
	if null != nil {
		t.Errorf("apiquery_upper(1) = %v, want NULL", null)
	}
}
