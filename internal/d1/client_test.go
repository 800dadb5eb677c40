package d1

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pda-uploader/internal/pda"
	"github.com/roach88/pda-uploader/internal/script"
	"github.com/roach88/pda-uploader/internal/testutil"
)

const (
	testToken   = "test-token"
	testAccount = "acct-1"
	testDB      = "db-green"
)

type recordingObserver struct {
	mu       sync.Mutex
	staged   []int
	polls    int
	finished []ErrorCode
}

func (o *recordingObserver) ScriptStaged(_ string, bytes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.staged = append(o.staged, bytes)
}

func (o *recordingObserver) PollSent(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.polls++
}

func (o *recordingObserver) ImportFinished(_ string, code ErrorCode, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, code)
}

type harness struct {
	fake     *testutil.FakeD1
	sleeper  *testutil.RecordingSleeper
	observer *recordingObserver
	client   *Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		fake:     testutil.NewFakeD1(t, testToken),
		sleeper:  testutil.NewRecordingSleeper(),
		observer: &recordingObserver{},
	}
	c, err := New(Config{
		BaseURL:   h.fake.URL,
		AccountID: testAccount,
		APIToken:  testToken,
		Sleeper:   h.sleeper,
		Observer:  h.observer,
	})
	require.NoError(t, err)
	h.client = c
	return h
}

func testScript(bs ...byte) *script.Script {
	return script.Build(testutil.Records(bs...))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{APIToken: "x"})
	assert.Error(t, err)

	_, err = New(Config{AccountID: "x"})
	assert.Error(t, err)

	c, err := New(Config{AccountID: "a", APIToken: "t"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultUserAgent, c.userAgent)
}

func TestImport_FullProtocol(t *testing.T) {
	h := newHarness(t)
	h.fake.SetPollsBeforeComplete(2)

	s := testScript(1, 2, 3)
	require.NoError(t, h.client.Import(context.Background(), testDB, s))

	assert.Equal(t,
		[]string{"init", "upload", "ingest", "poll", "poll", "poll"},
		h.fake.Actions(testDB))
	assert.Equal(t, []pda.Address{testutil.Addr(1), testutil.Addr(2), testutil.Addr(3)}, h.fake.Addresses(testDB))

	for _, r := range h.fake.Requests() {
		if r.Action != "upload" {
			assert.Equal(t, s.Checksum, r.ETag, "action %s", r.Action)
		}
	}

	// Each poll carries the bookmark from the previous status.
	var bookmarks []string
	for _, r := range h.fake.Requests() {
		if r.Action == "poll" {
			bookmarks = append(bookmarks, r.Bookmark)
		}
	}
	assert.Equal(t, []string{"bm-0", "bm-1", "bm-2"}, bookmarks)

	assert.Equal(t, []time.Duration{PollInterval, PollInterval, PollInterval}, h.sleeper.Sleeps())
	assert.Equal(t, []int{len(s.Body)}, h.observer.staged)
	assert.Equal(t, 3, h.observer.polls)
	assert.Equal(t, []ErrorCode{""}, h.observer.finished)
}

func TestImport_NilScript(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.client.Import(context.Background(), testDB, nil))
	assert.Empty(t, h.fake.Requests())
	assert.Empty(t, h.observer.finished)
}

// An init answered with a status skips staging and polls from that status.
func TestImport_KnownChecksumSkipsStaging(t *testing.T) {
	h := newHarness(t)
	s := testScript(1, 2)

	require.NoError(t, h.client.Import(context.Background(), testDB, s))
	first := len(h.fake.Requests())

	require.NoError(t, h.client.Import(context.Background(), testDB, s))
	second := h.fake.Requests()[first:]

	require.Len(t, second, 2)
	assert.Equal(t, "init", second[0].Action)
	assert.Equal(t, "poll", second[1].Action)
	assert.Equal(t, "bm-known", second[1].Bookmark)
	assert.Equal(t, []pda.Address{testutil.Addr(1), testutil.Addr(2)}, h.fake.Addresses(testDB))
}

func TestImport_ETagMismatch(t *testing.T) {
	h := newHarness(t)
	h.fake.Handle(func(r testutil.D1Request) (testutil.D1Reply, bool) {
		if r.Action == "upload" {
			return testutil.D1Reply{ETag: `"00000000000000000000000000000000"`}, true
		}
		return testutil.D1Reply{}, false
	})

	err := h.client.Import(context.Background(), testDB, testScript(1))
	require.Error(t, err)
	assert.True(t, IsIntegrityError(err))
	assert.NotContains(t, h.fake.Actions(testDB), "ingest")
	assert.Empty(t, h.fake.Addresses(testDB))
	assert.Equal(t, []ErrorCode{ErrCodeIntegrity}, h.observer.finished)
}

func TestImport_MissingETag(t *testing.T) {
	h := newHarness(t)
	h.fake.Handle(func(r testutil.D1Request) (testutil.D1Reply, bool) {
		if r.Action == "upload" {
			return testutil.D1Reply{}, true
		}
		return testutil.D1Reply{}, false
	})

	err := h.client.Import(context.Background(), testDB, testScript(1))
	require.Error(t, err)
	assert.True(t, IsIntegrityError(err))
	assert.NotContains(t, h.fake.Actions(testDB), "ingest")
}

func TestImport_PollSentinelEnvelope(t *testing.T) {
	h := newHarness(t)
	h.fake.Handle(func(r testutil.D1Request) (testutil.D1Reply, bool) {
		if r.Action == "poll" {
			return testutil.D1Reply{Body: map[string]any{
				"success": false,
				"errors":  []any{map[string]any{"code": 7500, "message": testutil.SentinelNotImporting}},
			}}, true
		}
		return testutil.D1Reply{}, false
	})

	require.NoError(t, h.client.Import(context.Background(), testDB, testScript(1)))
	assert.Equal(t, []string{"init", "upload", "ingest", "poll"}, h.fake.Actions(testDB))
}

func TestImport_PollSentinelStatus(t *testing.T) {
	h := newHarness(t)
	h.fake.Handle(func(r testutil.D1Request) (testutil.D1Reply, bool) {
		if r.Action == "poll" {
			return testutil.D1Reply{Body: map[string]any{
				"success": true,
				"result": map[string]any{
					"success": false,
					"error":   testutil.SentinelNotImporting,
				},
			}}, true
		}
		return testutil.D1Reply{}, false
	})

	require.NoError(t, h.client.Import(context.Background(), testDB, testScript(1)))
}

func TestImport_ReportedFailure(t *testing.T) {
	h := newHarness(t)
	h.fake.Handle(func(r testutil.D1Request) (testutil.D1Reply, bool) {
		if r.Action == "poll" {
			return testutil.D1Reply{Body: map[string]any{
				"success": true,
				"result": map[string]any{
					"success": true,
					"status":  "failed",
					"errors":  []string{"constraint violated", "rolled back"},
				},
			}}, true
		}
		return testutil.D1Reply{}, false
	})

	err := h.client.Import(context.Background(), testDB, testScript(1))
	require.Error(t, err)
	assert.True(t, IsImportFailed(err))

	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "constraint violated, rolled back", ie.Message)
	assert.Equal(t, testDB, ie.Database)
	assert.Equal(t, 1, ie.Attempt)
}

func TestImport_Timeout(t *testing.T) {
	h := newHarness(t)
	h.fake.Handle(func(r testutil.D1Request) (testutil.D1Reply, bool) {
		if r.Action == "poll" {
			return testutil.D1Reply{Body: map[string]any{
				"success": true,
				"result":  map[string]any{"success": true, "status": "active", "at_bookmark": "bm"},
			}}, true
		}
		return testutil.D1Reply{}, false
	})

	err := h.client.Import(context.Background(), testDB, testScript(1))
	require.Error(t, err)
	assert.True(t, IsTimeoutError(err))

	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, MaxPollAttempts, ie.Attempt)
	assert.Equal(t, MaxPollAttempts, h.sleeper.Count())
	assert.Equal(t, MaxPollAttempts, h.observer.polls)
}

func TestImport_HTTPErrorStatus(t *testing.T) {
	h := newHarness(t)
	h.fake.Handle(func(r testutil.D1Request) (testutil.D1Reply, bool) {
		if r.Action == "ingest" {
			return testutil.D1Reply{Status: http.StatusInternalServerError, Body: []byte("upstream exploded")}, true
		}
		return testutil.D1Reply{}, false
	})

	err := h.client.Import(context.Background(), testDB, testScript(1))
	require.Error(t, err)
	assert.True(t, IsTransportError(err))

	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, http.StatusInternalServerError, ie.StatusCode)
	assert.Equal(t, stepIngest, ie.Step)
	assert.Contains(t, ie.Message, "upstream exploded")
}

func TestImport_BadToken(t *testing.T) {
	h := newHarness(t)
	c, err := New(Config{BaseURL: h.fake.URL, AccountID: testAccount, APIToken: "wrong", Sleeper: h.sleeper})
	require.NoError(t, err)

	err = c.Import(context.Background(), testDB, testScript(1))
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}

func TestImport_EnvelopeFailure(t *testing.T) {
	h := newHarness(t)
	h.fake.Handle(func(r testutil.D1Request) (testutil.D1Reply, bool) {
		if r.Action == "init" {
			return testutil.D1Reply{Body: map[string]any{
				"success": false,
				"errors": []any{
					map[string]any{"code": 1000, "message": "boom"},
					map[string]any{"message": "again"},
				},
			}}, true
		}
		return testutil.D1Reply{}, false
	})

	err := h.client.Import(context.Background(), testDB, testScript(1))
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))

	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "1000: boom, again", ie.Message)
}

func TestImport_EnvelopeFailureWithoutErrors(t *testing.T) {
	h := newHarness(t)
	h.fake.Handle(func(r testutil.D1Request) (testutil.D1Reply, bool) {
		if r.Action == "ingest" {
			return testutil.D1Reply{Body: map[string]any{"success": false}}, true
		}
		return testutil.D1Reply{}, false
	})

	err := h.client.Import(context.Background(), testDB, testScript(1))
	require.Error(t, err)

	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ErrCodeProtocol, ie.Code)
	assert.Equal(t, "unknown error", ie.Message)
}

func TestImport_UnexpectedShape(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"result neither upload nor status", map[string]any{"success": true, "result": map[string]any{"foo": 1}}},
		{"upload url without filename", map[string]any{"success": true, "result": map[string]any{"upload_url": "http://x"}}},
		{"missing result", map[string]any{"success": true}},
		{"not json", []byte("<html>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.fake.Handle(func(r testutil.D1Request) (testutil.D1Reply, bool) {
				return testutil.D1Reply{Body: tt.body}, true
			})

			err := h.client.Import(context.Background(), testDB, testScript(1))
			require.Error(t, err)
			assert.True(t, IsProtocolError(err), "got %v", err)
		})
	}
}

func TestImport_CancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.client.Import(ctx, testDB, testScript(1))
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, context.Canceled)
}
