package token

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jrsteele09/dashboard-gateway/internal/config"
	"github.com/pkg/errors"
)

const (
	ClaimUsername = "username"
	ClaimUserID   = "userId"
)

// Pair is the access/refresh token pair handed out at login.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Manager mints and checks the gateway's session tokens. Access and refresh
// tokens use distinct signers, so neither can stand in for the other.
type Manager struct {
	codec              *Codec
	accessSigner       Signer
	refreshSigner      Signer
	issuer             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	clock              clock.Clock
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithClock(clk clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = clk
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func NewManager(accessSigner, refreshSigner Signer, opts ...ManagerOption) *Manager {
	m := &Manager{
		accessSigner:       accessSigner,
		refreshSigner:      refreshSigner,
		issuer:             "http://localhost",
		accessTokenExpiry:  900 * time.Second,
		refreshTokenExpiry: 129600 * time.Second,
		clock:              clock.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.codec = NewCodec(m.clock)
	return m
}

// NewManagerFromConfig builds HMAC signers from the configured secrets and
// algorithms.
func NewManagerFromConfig(cfg config.Config, opts ...ManagerOption) (*Manager, error) {
	accessSigner, err := NewHMACSigner(cfg.GetAccessTokenSecret(), cfg.GetAccessTokenAlgorithm())
	if err != nil {
		return nil, errors.Wrap(err, "access token signer")
	}
	refreshSigner, err := NewHMACSigner(cfg.GetRefreshTokenSecret(), cfg.GetRefreshTokenAlgorithm())
	if err != nil {
		return nil, errors.Wrap(err, "refresh token signer")
	}

	base := []ManagerOption{
		WithIssuer(cfg.GetPublicDomain()),
		WithTokenExpiry(cfg.GetAccessTokenLifetime(), cfg.GetRefreshTokenLifetime()),
	}
	return NewManager(accessSigner, refreshSigner, append(base, opts...)...), nil
}

func (m *Manager) AccessTokenExpiry() time.Duration  { return m.accessTokenExpiry }
func (m *Manager) RefreshTokenExpiry() time.Duration { return m.refreshTokenExpiry }

// IssuePair signs both tokens for the same identity, audience and issue time.
func (m *Manager) IssuePair(identity Identity, tenantID string) (*Pair, error) {
	now := m.clock.Now()

	access, accessExp, err := m.issueAccess(identity, tenantID, now)
	if err != nil {
		return nil, err
	}

	refreshExp := now.Add(m.refreshTokenExpiry)
	refresh, err := m.codec.Sign(claimsFor(identity), m.refreshSigner, m.issuer, tenantID, now, refreshExp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign refresh token")
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *Manager) VerifyAccess(accessToken, tenantID string) (*Claims, error) {
	return m.codec.Verify(accessToken, m.accessSigner, VerifyOptions{
		Issuer:         m.issuer,
		Audience:       tenantID,
		Algorithms:     []string{m.accessSigner.GetSigningMethod().Alg()},
		RequiredClaims: []string{ClaimUsername, ClaimUserID},
	})
}

func (m *Manager) VerifyRefresh(refreshToken, tenantID string) (*Claims, error) {
	return m.codec.Verify(refreshToken, m.refreshSigner, VerifyOptions{
		Issuer:     m.issuer,
		Audience:   tenantID,
		Algorithms: []string{m.refreshSigner.GetSigningMethod().Alg()},
		MaxAge:     m.refreshTokenExpiry,
	})
}

// Rotate mints a fresh access token from the refresh token's claims. The
// refresh token must already have passed VerifyRefresh; the user record is
// not consulted again.
func (m *Manager) Rotate(refreshToken, tenantID string) (string, *Claims, error) {
	refreshClaims, err := m.codec.Decode(refreshToken)
	if err != nil {
		return "", nil, err
	}

	access, _, err := m.issueAccess(refreshClaims.Identity(), tenantID, m.clock.Now())
	if err != nil {
		return "", nil, err
	}
	accessClaims, err := m.codec.Decode(access)
	if err != nil {
		return "", nil, err
	}
	return access, accessClaims, nil
}

func (m *Manager) issueAccess(identity Identity, tenantID string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.accessTokenExpiry)
	access, err := m.codec.Sign(claimsFor(identity), m.accessSigner, m.issuer, tenantID, now, exp)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "failed to sign access token")
	}
	return access, exp, nil
}

func claimsFor(identity Identity) Claims {
	return Claims{
		Username: identity.Username,
		UserID:   identity.UserID,
		Branches: identity.Branches,
	}
}
