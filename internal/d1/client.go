package d1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/pda-uploader/internal/script"
)

// DefaultBaseURL is the Cloudflare v4 API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// DefaultUserAgent identifies the uploader to the API.
const DefaultUserAgent = "pda-directory-uploader/1.0"

const (
	stepInit   = "init"
	stepUpload = "upload"
	stepIngest = "ingest"
	stepPoll   = "poll"
)

// maxErrorBody bounds how much of a non-2xx response body is kept in errors.
const maxErrorBody = 512

// Config configures a Client.
type Config struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL.
	BaseURL string

	// AccountID owns the databases. Required.
	AccountID string

	// APIToken is sent as a bearer token. Required.
	APIToken string

	// HTTPClient is shared by every request. Defaults to a client with a
	// 60 second timeout.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Sleeper waits between polls. Defaults to TimerSleeper.
	Sleeper Sleeper

	// Observer receives lifecycle events. Optional.
	Observer Observer

	// UserAgent defaults to DefaultUserAgent.
	UserAgent string
}

// Client drives the bulk import protocol against one account.
// A Client is safe for sequential use; Import calls do not share state.
type Client struct {
	baseURL   string
	accountID string
	token     string
	http      *http.Client
	logger    *slog.Logger
	sleeper   Sleeper
	observer  Observer
	userAgent string
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("d1: account id is required")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("d1: api token is required")
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		accountID: cfg.AccountID,
		token:     cfg.APIToken,
		http:      cfg.HTTPClient,
		logger:    cfg.Logger,
		sleeper:   cfg.Sleeper,
		observer:  cfg.Observer,
		userAgent: cfg.UserAgent,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.sleeper == nil {
		c.sleeper = TimerSleeper{}
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	return c, nil
}

// importRun is the state of one Import call.
type importRun struct {
	database string
	checksum string
	endpoint string
	attempts int
	logger   *slog.Logger
}

func (r *importRun) fail(code ErrorCode, step, msg string, err error) *ImportError {
	return &ImportError{
		Code:     code,
		Database: r.database,
		Step:     step,
		Attempt:  r.attempts,
		Message:  msg,
		Err:      err,
	}
}

// Import applies s to the database and blocks until the service reports the
// import durably complete, failed, or polling times out.
//
// A nil script is a no-op. Every failure is an *ImportError.
func (c *Client) Import(ctx context.Context, databaseID string, s *script.Script) (err error) {
	if s == nil {
		return nil
	}

	run := &importRun{
		database: databaseID,
		checksum: s.Checksum,
		endpoint: fmt.Sprintf("%s/accounts/%s/d1/database/%s/import",
			c.baseURL, url.PathEscape(c.accountID), url.PathEscape(databaseID)),
		logger: c.logger.With("database", databaseID, "checksum", s.Checksum),
	}

	start := time.Now()
	defer func() {
		c.observer.ImportFinished(databaseID, CodeOf(err), time.Since(start))
	}()

	run.logger.Info("starting import", "rows", s.Rows, "bytes", len(s.Body))

	initEnv, err := postImport[initResult](ctx, c, run, stepInit, importRequest{
		Action: "init",
		ETag:   run.checksum,
	})
	if err != nil {
		return err
	}
	if !initEnv.Success {
		return run.fail(ErrCodeProtocol, stepInit, initEnv.message(), nil)
	}
	if initEnv.Result == nil {
		return run.fail(ErrCodeProtocol, stepInit, "response has no result", nil)
	}

	var status ImportStatus
	if target := initEnv.Result.Upload; target != nil {
		if err := c.stage(ctx, run, target.UploadURL, s.Body); err != nil {
			return err
		}
		status, err = c.ingest(ctx, run, target.Filename)
		if err != nil {
			return err
		}
	} else {
		run.logger.Info("checksum already known, skipping upload")
		status = *initEnv.Result.Status
	}

	return c.poll(ctx, run, status)
}

// stage uploads body to the presigned staging URL and checks the returned
// ETag against the checksum.
func (c *Client) stage(ctx context.Context, run *importRun, uploadURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(body))
	if err != nil {
		return run.fail(ErrCodeTransport, stepUpload, "build upload request", err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return run.fail(ErrCodeTransport, stepUpload, "send upload request", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		ie := run.fail(ErrCodeTransport, stepUpload, err.Error(), nil)
		ie.StatusCode = resp.StatusCode
		return ie
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	etag := resp.Header.Get("ETag")
	if etag == "" {
		return run.fail(ErrCodeIntegrity, stepUpload, "upload response has no ETag header", nil)
	}
	etag = strings.Trim(etag, "\"")
	if etag != run.checksum {
		return run.fail(ErrCodeIntegrity, stepUpload,
			fmt.Sprintf("upload ETag %s does not match checksum", etag), nil)
	}

	c.observer.ScriptStaged(run.database, len(body))
	run.logger.Info("script staged", "bytes", len(body))
	return nil
}

func (c *Client) ingest(ctx context.Context, run *importRun, filename string) (ImportStatus, error) {
	env, err := postImport[ImportStatus](ctx, c, run, stepIngest, importRequest{
		Action:   "ingest",
		ETag:     run.checksum,
		Filename: filename,
	})
	if err != nil {
		return ImportStatus{}, err
	}
	if !env.Success {
		return ImportStatus{}, run.fail(ErrCodeProtocol, stepIngest, env.message(), nil)
	}
	if env.Result == nil {
		return ImportStatus{}, run.fail(ErrCodeProtocol, stepIngest, "response has no result", nil)
	}
	run.logger.Info("ingest started")
	return *env.Result, nil
}

// poll drives Decide until a terminal action, starting from status.
func (c *Client) poll(ctx context.Context, run *importRun, status ImportStatus) error {
	for {
		for _, m := range status.Messages {
			run.logger.Info("import progress", "message", m)
		}

		action := Decide(status, run.attempts)
		switch action.Kind {
		case ActionComplete:
			run.logger.Info("import complete", "polls", run.attempts)
			return nil
		case ActionFail:
			return run.fail(ErrCodeImportFailed, stepPoll, action.Message, nil)
		case ActionTimeout:
			return run.fail(ErrCodeTimeout, stepPoll, action.Message, nil)
		}

		if err := c.sleeper.Sleep(ctx, action.Delay); err != nil {
			return run.fail(ErrCodeTransport, stepPoll, "polling interrupted", err)
		}

		run.attempts++
		c.observer.PollSent(run.database)
		run.logger.Debug("polling import", "attempt", run.attempts, "bookmark", status.AtBookmark)

		env, err := postImport[ImportStatus](ctx, c, run, stepPoll, importRequest{
			Action:          "poll",
			ETag:            run.checksum,
			CurrentBookmark: status.AtBookmark,
		})
		if err != nil {
			return err
		}
		if !env.Success {
			if env.hasMessage(SentinelNotImporting) {
				run.logger.Info("import complete", "polls", run.attempts)
				return nil
			}
			return run.fail(ErrCodeProtocol, stepPoll, env.message(), nil)
		}
		if env.Result == nil {
			return run.fail(ErrCodeProtocol, stepPoll, "response has no result", nil)
		}
		status = *env.Result
	}
}

// postImport sends req to the import endpoint and decodes the envelope.
// The envelope's success flag is left for the caller to interpret.
func postImport[T any](ctx context.Context, c *Client, run *importRun, step string, req importRequest) (*envelope[T], error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, run.fail(ErrCodeProtocol, step, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, run.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, run.fail(ErrCodeTransport, step, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, run.fail(ErrCodeTransport, step, "send request", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		ie := run.fail(ErrCodeTransport, step, err.Error(), nil)
		ie.StatusCode = resp.StatusCode
		return nil, ie
	}

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, run.fail(ErrCodeProtocol, step, "decode response", err)
	}
	return &env, nil
}

// checkStatus returns an error describing resp if its status is not 2xx.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	text := strings.TrimSpace(string(snippet))
	if text == "" {
		return fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}
	return fmt.Errorf("unexpected HTTP status %s: %s", resp.Status, text)
}
