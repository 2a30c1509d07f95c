package token

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	gwerrors "github.com/jrsteele09/dashboard-gateway/internal/errors"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// ErrInvalidToken is returned for every verification failure. The wrapped
// message carries the reason.
var ErrInvalidToken = gwerrors.ErrTokenInvalid

// Claims are the session claims carried by both access and refresh tokens.
type Claims struct {
	Username string `json:"username,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Branches string `json:"userBranches,omitempty"` // comma separated branch ids
	jwt.RegisteredClaims
}

// UnmarshalJSON accepts userId as a JSON number as well as a string.
// Sessions minted before the gateway carry the numeric user id.
func (c *Claims) UnmarshalJSON(data []byte) error {
	type plain Claims
	aux := struct {
		*plain
		UserID any `json:"userId,omitempty"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	userID, err := cast.ToStringE(aux.UserID)
	if err != nil {
		return errors.Wrap(err, "invalid userId claim")
	}
	c.UserID = userID
	return nil
}

// Identity is the authorization data a session is minted from.
type Identity struct {
	Username string
	UserID   string
	Branches string
}

func (c *Claims) Identity() Identity {
	return Identity{Username: c.Username, UserID: c.UserID, Branches: c.Branches}
}

// BranchIDs splits the authorized branch claim, dropping empty entries.
func (c *Claims) BranchIDs() []string {
	var ids []string
	for _, id := range strings.Split(c.Branches, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// VerifyOptions constrain what Verify accepts. Empty fields are not checked,
// except Algorithms which defaults to the signer's own algorithm.
type VerifyOptions struct {
	Issuer         string
	Audience       string
	Algorithms     []string
	RequiredClaims []string
	MaxAge         time.Duration
}

// Codec signs and verifies compact, expiring, audience scoped claims.
type Codec struct {
	clock clock.Clock
}

func NewCodec(clk clock.Clock) *Codec {
	if clk == nil {
		clk = clock.New()
	}
	return &Codec{clock: clk}
}

func (c *Codec) Sign(claims Claims, signer Signer, issuer, audience string, issuedAt, expiresAt time.Time) (string, error) {
	claims.Issuer = issuer
	claims.Audience = jwt.ClaimStrings{audience}
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	return signer.Sign(&claims)
}

func (c *Codec) Verify(tokenString string, signer Signer, opts VerifyOptions) (*Claims, error) {
	algorithms := opts.Algorithms
	if len(algorithms) == 0 {
		algorithms = []string{signer.GetSigningMethod().Alg()}
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithValidMethods(algorithms),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, signer.GetVerificationKey, parserOpts...)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if !parsed.Valid {
		return nil, errors.Wrap(ErrInvalidToken, "token not valid")
	}

	if len(opts.RequiredClaims) > 0 {
		raw := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, raw); err != nil {
			return nil, errors.Wrap(ErrInvalidToken, err.Error())
		}
		for _, name := range opts.RequiredClaims {
			if _, ok := raw[name]; !ok {
				return nil, errors.Wrapf(ErrInvalidToken, "missing required claim %q", name)
			}
		}
	}

	if opts.MaxAge > 0 {
		if claims.IssuedAt == nil {
			return nil, errors.Wrap(ErrInvalidToken, "missing iat for max age check")
		}
		if c.clock.Now().Sub(claims.IssuedAt.Time) > opts.MaxAge {
			return nil, errors.Wrap(ErrInvalidToken, "max age exceeded")
		}
	}

	return claims, nil
}

// Decode reads the claims without checking the signature or any time based
// claim. Only use it on tokens that were verified beforehand.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	return claims, nil
}
