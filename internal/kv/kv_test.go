package kv

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pda-uploader/internal/testutil"
)

func TestMemory_GetPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "ns", "ACTIVE_DB")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Put(ctx, "ns", "ACTIVE_DB", "blue"))
	require.NoError(t, m.Put(ctx, "ns", "ACTIVE_DB", "green"))

	v, err := m.Get(ctx, "ns", "ACTIVE_DB")
	require.NoError(t, err)
	assert.Equal(t, "green", v)
	assert.Equal(t, []string{"blue", "green"}, m.Writes("ns", "ACTIVE_DB"))

	_, err = m.Get(ctx, "other", "ACTIVE_DB")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()

	assert.ErrorIs(t, m.Put(ctx, "ns", "k", "v"), context.Canceled)
	_, err := m.Get(ctx, "ns", "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func newCloudflare(t *testing.T, fake *testutil.FakeKV, token string) *Cloudflare {
	t.Helper()
	c, err := NewCloudflare(CloudflareConfig{BaseURL: fake.URL, AccountID: "acct", APIToken: token})
	require.NoError(t, err)
	return c
}

func TestCloudflare_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeKV(t, "tok")
	c := newCloudflare(t, fake, "tok")

	_, err := c.Get(ctx, "ns1", "ACTIVE_DB")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	require.NoError(t, c.Put(ctx, "ns1", "ACTIVE_DB", "green"))
	v, ok := fake.Value("ns1", "ACTIVE_DB")
	require.True(t, ok)
	assert.Equal(t, "green", v)

	got, err := c.Get(ctx, "ns1", "ACTIVE_DB")
	require.NoError(t, err)
	assert.Equal(t, "green", got)
	assert.Equal(t, 1, fake.Puts())
}

func TestCloudflare_ValueIsVerbatim(t *testing.T) {
	fake := testutil.NewFakeKV(t, "tok")
	fake.Set("ns", "ACTIVE_DB", "blue\n")
	c := newCloudflare(t, fake, "tok")

	got, err := c.Get(context.Background(), "ns", "ACTIVE_DB")
	require.NoError(t, err)
	assert.Equal(t, "blue\n", got)
}

func TestCloudflare_Errors(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeKV(t, "tok")

	bad := newCloudflare(t, fake, "wrong")
	_, err := bad.Get(ctx, "ns", "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "401")

	c := newCloudflare(t, fake, "tok")
	fake.FailWith(http.StatusServiceUnavailable)
	err = c.Put(ctx, "ns", "k", "v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 0, fake.Puts())
}

func TestNewCloudflare_Validation(t *testing.T) {
	_, err := NewCloudflare(CloudflareConfig{APIToken: "t"})
	assert.Error(t, err)
	_, err = NewCloudflare(CloudflareConfig{AccountID: "a"})
	assert.Error(t, err)
}
