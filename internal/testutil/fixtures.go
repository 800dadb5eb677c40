package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/pda-uploader/internal/pda"
)

// Addr returns an address with every byte set to b.
func Addr(b byte) pda.Address {
	var a pda.Address
	for i := range a {
		a[i] = b
	}
	return a
}

// Record returns a record for Addr(b) with a program id and one seed derived
// from b.
func Record(b byte) pda.Record {
	return pda.Record{
		Address:   Addr(b),
		ProgramID: Addr(0xf0 | b&0x0f),
		Seeds:     [][]byte{[]byte("seed"), {b}},
	}
}

// Records returns Record(b) for each b.
func Records(bs ...byte) []pda.Record {
	out := make([]pda.Record, 0, len(bs))
	for _, b := range bs {
		out = append(out, Record(b))
	}
	return out
}

// WriteBlob writes records as a collector blob named name under dir and
// backdates its modification time so it is past the quiescence window.
// Returns the file path.
func WriteBlob(t *testing.T, dir, name string, records []pda.Record) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pda.EncodeBlob(records), 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	Backdate(t, path, time.Minute)
	return path
}

// Backdate sets the modification time of path to age before now.
func Backdate(t *testing.T, path string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

// WriteSQLStore creates a SQL store at path holding records.
func WriteSQLStore(t *testing.T, path string, records []pda.Record) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sql store: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(pda.RegistrySchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	for _, r := range records {
		_, err := db.Exec(
			"INSERT OR IGNORE INTO pda_registry (pda, program_id, seed_count, seed_bytes) VALUES (?, ?, ?, ?)",
			r.Address[:], r.ProgramID[:], len(r.Seeds), pda.EncodeSeedStorage(r.Seeds),
		)
		if err != nil {
			t.Fatalf("insert record: %v", err)
		}
	}
}

// ExecSQLStore runs a raw statement against the SQL store at path.
// Used to plant malformed rows.
func ExecSQLStore(t *testing.T, path, query string, args ...any) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sql store: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
