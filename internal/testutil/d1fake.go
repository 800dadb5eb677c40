package testutil

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/pda-uploader/internal/pda"
)

// SentinelNotImporting mirrors the service's "no import in flight" text.
const SentinelNotImporting = "Not currently importing anything."

// D1Request is one request observed by FakeD1.
type D1Request struct {
	Database string
	Method   string
	Action   string
	ETag     string
	Filename string
	Bookmark string
}

// D1Reply overrides the fake's response to one request.
type D1Reply struct {
	// Status is the HTTP status. Defaults to 200.
	Status int

	// Body is encoded as JSON. A []byte is sent verbatim.
	Body any

	// ETag is sent on upload replies.
	ETag string
}

// FakeD1 is an in-process fake of the D1 bulk import API and its staging
// store. Each database is a real SQLite file, so ingested scripts are
// executed and their rows can be queried afterwards.
//
// By default an import proceeds init -> upload -> ingest -> PollsBeforeComplete
// "active" polls -> "complete". A checksum that was already ingested into a
// database is answered at init with an in-progress status instead of a
// staging URL.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeD1 struct {
	URL string

	t       testing.TB
	server  *httptest.Server
	handler http.Handler
	token   string
	dir     string

	mu       sync.Mutex
	dbs      map[string]*sql.DB
	staged   map[string][]byte
	known    map[string]bool
	pending  map[string]int
	requests []D1Request

	pollsBeforeComplete int
	handle              func(D1Request) (D1Reply, bool)
}

// NewFakeD1 starts a fake that requires token as bearer auth. The server is
// closed when the test ends.
func NewFakeD1(t testing.TB, token string) *FakeD1 {
	t.Helper()
	f := &FakeD1{
		t:       t,
		token:   token,
		dir:     t.TempDir(),
		dbs:     make(map[string]*sql.DB),
		staged:  make(map[string][]byte),
		known:   make(map[string]bool),
		pending: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /accounts/{account}/d1/database/{db}/import", f.serveImport)
	mux.HandleFunc("PUT /staging/{db}/{file}", f.serveUpload)
	f.handler = mux
	f.server = httptest.NewServer(mux)
	f.URL = f.server.URL

	t.Cleanup(func() {
		f.server.Close()
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, db := range f.dbs {
			db.Close()
		}
	})
	return f
}

// Handler returns the fake's routes, for mounting behind another server.
func (f *FakeD1) Handler() http.Handler {
	return f.handler
}

// SetPollsBeforeComplete sets how many polls report "active" before an
// ingested import reports "complete".
func (f *FakeD1) SetPollsBeforeComplete(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollsBeforeComplete = n
}

// Handle installs a hook consulted before the default behaviour. Returning
// false falls through to the default.
func (f *FakeD1) Handle(fn func(D1Request) (D1Reply, bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handle = fn
}

// Requests returns every request observed, in order.
func (f *FakeD1) Requests() []D1Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]D1Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Actions returns the import actions sent for database, in order. Uploads
// appear as "upload".
func (f *FakeD1) Actions(database string) []string {
	var out []string
	for _, r := range f.Requests() {
		if r.Database == database {
			out = append(out, r.Action)
		}
	}
	return out
}

// Addresses returns the addresses stored in database, sorted.
func (f *FakeD1) Addresses(database string) []pda.Address {
	f.t.Helper()
	f.mu.Lock()
	db, err := f.dbLocked(database)
	f.mu.Unlock()
	if err != nil {
		f.t.Fatalf("fake d1: %v", err)
	}

	rows, err := db.Query("SELECT pda FROM " + pda.RegistryTable + " ORDER BY pda")
	if err != nil {
		f.t.Fatalf("fake d1: query %s: %v", database, err)
	}
	defer rows.Close()

	var out []pda.Address
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			f.t.Fatalf("fake d1: scan: %v", err)
		}
		a, err := pda.AddressFromBytes(raw)
		if err != nil {
			f.t.Fatalf("fake d1: %v", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		f.t.Fatalf("fake d1: rows: %v", err)
	}
	return out
}

func (f *FakeD1) dbLocked(name string) (*sql.DB, error) {
	if db, ok := f.dbs[name]; ok {
		return db, nil
	}
	db, err := sql.Open("sqlite3", filepath.Join(f.dir, name+".sqlite"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(pda.RegistrySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", name, err)
	}
	f.dbs[name] = db
	return db, nil
}

func (f *FakeD1) serveImport(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		writeJSON(w, http.StatusUnauthorized, failure(10000, "Authentication error"))
		return
	}

	var body struct {
		Action          string `json:"action"`
		ETag            string `json:"etag"`
		Filename        string `json:"filename"`
		CurrentBookmark string `json:"current_bookmark"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, failure(7400, "malformed body"))
		return
	}

	req := D1Request{
		Database: r.PathValue("db"),
		Method:   r.Method,
		Action:   body.Action,
		ETag:     body.ETag,
		Filename: body.Filename,
		Bookmark: body.CurrentBookmark,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if f.handle != nil {
		if reply, ok := f.handle(req); ok {
			writeReply(w, reply)
			return
		}
	}

	key := req.Database + "/" + req.ETag
	switch req.Action {
	case "init":
		if f.known[key] {
			writeJSON(w, http.StatusOK, success(map[string]any{
				"success":     true,
				"status":      "active",
				"at_bookmark": "bm-known",
			}))
			return
		}
		name := uuid.NewString() + ".sql"
		writeJSON(w, http.StatusOK, success(map[string]any{
			"upload_url": fmt.Sprintf("%s/staging/%s/%s", f.URL, req.Database, name),
			"filename":   name,
		}))

	case "ingest":
		script, ok := f.staged[req.Database+"/"+req.Filename]
		if !ok {
			writeJSON(w, http.StatusOK, failure(7404, "unknown filename"))
			return
		}
		db, err := f.dbLocked(req.Database)
		if err == nil {
			_, err = db.Exec(string(script))
		}
		if err != nil {
			writeJSON(w, http.StatusOK, success(map[string]any{
				"success": false,
				"status":  "error",
				"error":   err.Error(),
			}))
			return
		}
		f.known[key] = true
		f.pending[key] = f.pollsBeforeComplete
		writeJSON(w, http.StatusOK, success(map[string]any{
			"success":     true,
			"status":      "active",
			"at_bookmark": "bm-0",
			"messages":    []string{"ingest started"},
		}))

	case "poll":
		if !f.known[key] {
			writeJSON(w, http.StatusOK, failure(7500, SentinelNotImporting))
			return
		}
		if n := f.pending[key]; n > 0 {
			f.pending[key] = n - 1
			writeJSON(w, http.StatusOK, success(map[string]any{
				"success":     true,
				"status":      "active",
				"at_bookmark": fmt.Sprintf("bm-%d", f.pollsBeforeComplete-n+1),
			}))
			return
		}
		writeJSON(w, http.StatusOK, success(map[string]any{
			"success":     true,
			"status":      "complete",
			"at_bookmark": "bm-done",
		}))

	default:
		writeJSON(w, http.StatusBadRequest, failure(7400, "unknown action "+req.Action))
	}
}

func (f *FakeD1) serveUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := D1Request{
		Database: r.PathValue("db"),
		Method:   r.Method,
		Action:   "upload",
		Filename: r.PathValue("file"),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if f.handle != nil {
		if reply, ok := f.handle(req); ok {
			writeReply(w, reply)
			return
		}
	}

	f.staged[req.Database+"/"+req.Filename] = data
	sum := md5.Sum(data)
	w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
	w.WriteHeader(http.StatusOK)
}

func success(result any) map[string]any {
	return map[string]any{"success": true, "result": result, "errors": []any{}}
}

func failure(code int, message string) map[string]any {
	return map[string]any{
		"success": false,
		"result":  nil,
		"errors":  []any{map[string]any{"code": code, "message": message}},
	}
}

func writeReply(w http.ResponseWriter, reply D1Reply) {
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if reply.ETag != "" {
		w.Header().Set("ETag", reply.ETag)
	}
	if raw, ok := reply.Body.([]byte); ok {
		w.WriteHeader(status)
		_, _ = w.Write(raw)
		return
	}
	if reply.Body == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, reply.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
