package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeKV is an in-process fake of the Workers KV values API.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeKV struct {
	URL string

	token   string
	handler http.Handler

	mu     sync.Mutex
	values map[string]string
	puts   int
	fail   int
}

// NewFakeKV starts a fake that requires token as bearer auth. The server is
// closed when the test ends.
func NewFakeKV(t testing.TB, token string) *FakeKV {
	t.Helper()
	f := &FakeKV{token: token, values: make(map[string]string)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts/{account}/storage/kv/namespaces/{ns}/values/{key}", f.serveGet)
	mux.HandleFunc("PUT /accounts/{account}/storage/kv/namespaces/{ns}/values/{key}", f.servePut)
	f.handler = mux
	server := httptest.NewServer(mux)
	f.URL = server.URL
	t.Cleanup(server.Close)
	return f
}

// Handler returns the fake's routes, for mounting behind another server.
func (f *FakeKV) Handler() http.Handler {
	return f.handler
}

// Set stores a value directly.
func (f *FakeKV) Set(namespace, key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[namespace+"/"+key] = value
}

// Value returns the stored value and whether it exists.
func (f *FakeKV) Value(namespace, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[namespace+"/"+key]
	return v, ok
}

// Puts returns the number of successful writes.
func (f *FakeKV) Puts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

// FailWith makes every subsequent request return status.
func (f *FakeKV) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = status
}

func (f *FakeKV) check(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		writeJSON(w, http.StatusUnauthorized, failure(10000, "Authentication error"))
		return false
	}
	if f.fail != 0 {
		writeJSON(w, f.fail, failure(10001, "injected failure"))
		return false
	}
	return true
}

func (f *FakeKV) serveGet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.check(w, r) {
		return
	}
	v, ok := f.values[r.PathValue("ns")+"/"+r.PathValue("key")]
	if !ok {
		writeJSON(w, http.StatusNotFound, failure(10009, "get: 'key not found'"))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.WriteString(w, v)
}

func (f *FakeKV) servePut(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.check(w, r) {
		return
	}
	f.values[r.PathValue("ns")+"/"+r.PathValue("key")] = string(data)
	f.puts++
	writeJSON(w, http.StatusOK, success(nil))
}
