package engine

import (
	"context"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ensureSession returns a session holding a bearer that is not within the
// refresh threshold of its expiry and a CSRF token. Missing pieces are
// acquired once even when many requests need them at the same time.
func (c *Client) ensureSession(ctx context.Context) (sessionState, error) {
	if state, ok := c.currentSession(); ok {
		return state, nil
	}

	c.acquireMu.Lock()
	defer c.acquireMu.Unlock()

	// Another caller may have finished acquiring while we waited.
	if state, ok := c.currentSession(); ok {
		return state, nil
	}

	c.sessionMu.RLock()
	state := c.session
	c.sessionMu.RUnlock()

	if !c.bearerValid(state) {
		bearer, err := c.login(ctx)
		if err != nil {
			return sessionState{}, err
		}
		// The CSRF token outlives the bearer; only a rejected session drops it.
		state.bearer = bearer
		state.bearerExpiry = c.clock.Now().Add(c.settings.SessionLifetime)
		c.storeSession(state)
	}

	if state.csrf == "" {
		csrf, err := c.fetchCSRF(ctx, state)
		if err != nil {
			return sessionState{}, err
		}
		state.csrf = csrf
		c.storeSession(state)
	}
	return state, nil
}

func (c *Client) currentSession() (sessionState, bool) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.session, c.bearerValid(c.session) && c.session.csrf != ""
}

func (c *Client) bearerValid(state sessionState) bool {
	if state.bearer == "" {
		return false
	}
	return c.clock.Now().Add(c.settings.RefreshThreshold).Before(state.bearerExpiry)
}

func (c *Client) storeSession(state sessionState) {
	c.sessionMu.Lock()
	c.session = state
	c.sessionMu.Unlock()
}

// invalidateSession drops both tokens so the next request logs in again.
func (c *Client) invalidateSession() {
	c.storeSession(sessionState{})
}

func (c *Client) login(ctx context.Context) (string, error) {
	req := loginRequest{
		Username: c.settings.Username,
		Password: c.settings.Password,
		Provider: c.settings.Provider,
		Refresh:  true,
	}
	var resp loginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, pathLogin, nil, req, &resp); err != nil {
		return "", loginFailure(err)
	}
	if resp.AccessToken == "" {
		return "", &EngineError{Op: "login", Status: http.StatusOK, Message: "login response carried no access token", Err: ErrTransport}
	}

	c.metrics.login()
	log.Info().Str("user", c.settings.Username).Msg("Engine session acquired")
	return resp.AccessToken, nil
}

// loginFailure stops the retry loop when the engine rejects the service
// credentials.
func loginFailure(err error) error {
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		return err
	}
	if engineErr.Status == http.StatusUnauthorized || engineErr.Status == http.StatusForbidden {
		engineErr.Message = "engine rejected service credentials: " + engineErr.Message
		engineErr.Err = ErrTransport
		return backoff.Permanent(engineErr)
	}
	return engineErr
}

func (c *Client) fetchCSRF(ctx context.Context, state sessionState) (string, error) {
	var resp csrfResponse
	if err := c.doJSON(ctx, "csrf", http.MethodGet, pathCSRF, &sessionState{bearer: state.bearer}, nil, &resp); err != nil {
		return "", err
	}
	if resp.Result == "" {
		return "", &EngineError{Op: "csrf", Status: http.StatusOK, Message: "csrf response carried no token", Err: ErrTransport}
	}
	return resp.Result, nil
}
