// Package engine is the client for the external analytical SQL engine. It
// owns the engine session (bearer and CSRF tokens), retries transient
// failures and caches the engine's database catalog.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jrsteele09/dashboard-gateway/internal/config"
	"github.com/jrsteele09/dashboard-gateway/internal/utils"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	pathLogin     = "/api/v1/security/login"
	pathCSRF      = "/api/v1/security/csrf_token/"
	pathExecute   = "/api/v1/sqllab/execute/"
	pathDatabases = "/api/v1/database/"

	databaseCacheKey = "databaseCache"
	maxErrorBody     = 4096
)

// Settings configure a Client.
type Settings struct {
	BaseURL          string
	Username         string
	Password         string
	Provider         string
	DatabaseID       int
	MaxAttempts      int
	RetryBase        time.Duration
	RequestTimeout   time.Duration
	RefreshThreshold time.Duration
	SessionLifetime  time.Duration
	CatalogTTL       time.Duration
	RateLimit        float64
}

func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		BaseURL:          cfg.GetEngineBaseURL(),
		Username:         cfg.GetEngineUsername(),
		Password:         cfg.GetEnginePassword(),
		Provider:         cfg.GetEngineProvider(),
		DatabaseID:       cfg.GetEngineDatabaseID(),
		MaxAttempts:      cfg.GetEngineMaxRetries(),
		RetryBase:        cfg.GetEngineRetryBase(),
		RequestTimeout:   cfg.GetEngineRequestTimeout(),
		RefreshThreshold: cfg.GetEngineRefreshThreshold(),
		SessionLifetime:  cfg.GetEngineSessionLifetime(),
		CatalogTTL:       cfg.GetTenantCacheTTL(),
		RateLimit:        cfg.GetEngineRateLimit(),
	}
}

type sessionState struct {
	bearer       string
	csrf         string
	bearerExpiry time.Time
}

type catalogEntry struct {
	databases []Database
	fetchedAt time.Time
}

// Client talks to the engine's REST API. It is safe for concurrent use; one
// Client is created per process and shared by every request.
type Client struct {
	settings   Settings
	httpClient *http.Client
	clock      clock.Clock
	limiter    *rate.Limiter
	metrics    *Metrics

	acquireMu sync.Mutex // serialises login and CSRF exchanges
	sessionMu sync.RWMutex
	session   sessionState

	catalogMu    sync.RWMutex
	catalog      map[string]catalogEntry
	catalogGroup singleflight.Group
}

type Option func(*Client)

func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func NewClient(settings Settings, opts ...Option) *Client {
	settings.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	if settings.MaxAttempts < 1 {
		settings.MaxAttempts = 1
	}

	jar, _ := cookiejar.New(nil)
	c := &Client{
		settings: settings,
		httpClient: &http.Client{
			Timeout: settings.RequestTimeout,
			Jar:     jar,
		},
		clock:   clock.New(),
		catalog: make(map[string]catalogEntry),
	}
	if settings.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(settings.RateLimit), max(1, int(settings.RateLimit)))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute submits sql to the engine and returns its rows.
func (c *Client) Execute(ctx context.Context, sql string, opts QueryOptions) (*QueryResult, error) {
	body := executeRequest{
		ClientID:    newClientID(),
		CTASMethod:  "TABLE",
		DatabaseID:  utils.ValueOr(opts.DatabaseID, c.settings.DatabaseID),
		ExpandData:  true,
		JSON:        true,
		RunAsync:    opts.RunAsync,
		SelectAsCTA: false,
		SQL:         sql,
		Schema:      opts.Schema,
	}
	if len(opts.TemplateParams) > 0 {
		params, err := json.Marshal(opts.TemplateParams)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode template params")
		}
		body.TemplateParams = string(params)
	}

	var result QueryResult
	err := c.withRetry(ctx, "execute", func(ctx context.Context) error {
		result = QueryResult{}
		return c.authorizedJSON(ctx, "execute", http.MethodPost, pathExecute, body, &result)
	})
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(result.Status, "failed") {
		return nil, &EngineError{Op: "execute", Message: "query reported failure", Err: ErrTransport}
	}
	return &result, nil
}

// authorizedJSON performs one attempt with a valid session. A 401 clears the
// session so the next attempt logs in again.
func (c *Client) authorizedJSON(ctx context.Context, op, method, path string, in, out any) error {
	state, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}

	err = c.doJSON(ctx, op, method, path, &state, in, out)
	var engineErr *EngineError
	if errors.As(err, &engineErr) && engineErr.Status == http.StatusUnauthorized {
		log.Warn().Str("op", op).Msg("Engine rejected session, renewing")
		c.invalidateSession()
	}
	return err
}

// withRetry runs attempt until it succeeds, fails permanently, or the
// attempts are exhausted. Delays grow as base * 2^attempt.
func (c *Client) withRetry(ctx context.Context, op string, attempt func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.settings.RetryBase
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = c.settings.RetryBase << c.settings.MaxAttempts
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.settings.MaxAttempts-1)), ctx)

	operation := func() error {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		var engineErr *EngineError
		if errors.As(err, &engineErr) && !engineErr.retryable() {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.metrics.retry(op)
		log.Warn().Err(err).Str("op", op).Dur("backoff", wait).Msg("Engine request failed, retrying")
	}

	err := backoff.RetryNotify(operation, policy, notify)
	if err == nil {
		return nil
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr
	}
	return &EngineError{Op: op, Message: err.Error(), Err: errors.Wrap(ErrTransport, err.Error())}
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, state *sessionState, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &EngineError{Op: op, Message: err.Error(), Err: ErrTransport}
		}
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, "failed to encode request"))
		}
		body = bytes.NewReader(raw)
	}

	reqCtx := ctx
	if c.settings.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.settings.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.settings.BaseURL+path, body)
	if err != nil {
		return backoff.Permanent(errors.Wrap(err, "failed to build request"))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", c.settings.BaseURL)
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if state != nil {
		if state.bearer != "" {
			req.Header.Set("Authorization", "Bearer "+state.bearer)
		}
		if state.csrf != "" {
			req.Header.Set("X-CSRFToken", state.csrf)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.request(op, 0)
		return &EngineError{Op: op, Message: err.Error(), Err: errors.Wrap(ErrTransport, err.Error())}
	}
	defer resp.Body.Close()
	c.metrics.request(op, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var parsed errorResponse
		message := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &parsed) == nil && parsed.text() != "" {
			message = parsed.text()
		}
		wrapped := ErrTransport
		if resp.StatusCode == http.StatusUnauthorized {
			wrapped = ErrSessionExpired
		}
		return &EngineError{Op: op, Status: resp.StatusCode, Message: message, Err: wrapped}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &EngineError{Op: op, Status: resp.StatusCode, Message: "invalid response body: " + err.Error(), Err: ErrTransport}
	}
	return nil
}

// newClientID returns the short unique id the engine uses to deduplicate
// query submissions.
func newClientID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:11]
}
