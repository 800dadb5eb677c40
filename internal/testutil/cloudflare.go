package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// FakeCloudflare serves FakeD1 and FakeKV under one API root, the way the
// real API does.
type FakeCloudflare struct {
	URL string
	D1  *FakeD1
	KV  *FakeKV
}

// NewFakeCloudflare starts both fakes behind a single server that requires
// token as bearer auth.
func NewFakeCloudflare(t testing.TB, token string) *FakeCloudflare {
	t.Helper()
	f := &FakeCloudflare{
		D1: NewFakeD1(t, token),
		KV: NewFakeKV(t, token),
	}

	mux := http.NewServeMux()
	mux.Handle("/accounts/{account}/d1/", f.D1.Handler())
	mux.Handle("/accounts/{account}/storage/", f.KV.Handler())
	server := httptest.NewServer(mux)
	f.URL = server.URL
	t.Cleanup(server.Close)
	return f
}
