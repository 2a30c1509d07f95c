package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/dashboard-gateway/token"
	"github.com/stretchr/testify/require"
)

const (
	issuer        = "https://reports.example.com"
	testTenantID  = "AcmeCafe"
	accessSecret  = "access-secret-1234"
	refreshSecret = "refresh-secret-5678"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newMockClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Set(testNow)
	return clk
}

func mustSigner(t *testing.T, secret, alg string) token.Signer {
	t.Helper()
	s, err := token.NewHMACSigner(secret, alg)
	require.NoError(t, err)
	return s
}

func testClaims() token.Claims {
	return token.Claims{Username: "jdoe", UserID: "42", Branches: "1,2,3"}
}

func TestNewHMACSigner(t *testing.T) {
	_, err := token.NewHMACSigner("", "HS256")
	require.Error(t, err)

	_, err = token.NewHMACSigner("secret", "RS256")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported HMAC algorithm")

	s, err := token.NewHMACSigner("secret", "HS384")
	require.NoError(t, err)
	require.Equal(t, "HS384", s.GetSigningMethod().Alg())
}

func TestCodec_SignVerify(t *testing.T) {
	clk := newMockClock()
	codec := token.NewCodec(clk)
	signer := mustSigner(t, accessSecret, "HS512")

	signed, err := codec.Sign(testClaims(), signer, issuer, testTenantID, clk.Now(), clk.Now().Add(15*time.Minute))
	require.NoError(t, err)

	opts := token.VerifyOptions{
		Issuer:         issuer,
		Audience:       testTenantID,
		Algorithms:     []string{"HS512"},
		RequiredClaims: []string{token.ClaimUsername, token.ClaimUserID},
	}

	t.Run("valid", func(t *testing.T) {
		claims, err := codec.Verify(signed, signer, opts)
		require.NoError(t, err)
		require.Equal(t, "jdoe", claims.Username)
		require.Equal(t, "42", claims.UserID)
		require.Equal(t, []string{"1", "2", "3"}, claims.BranchIDs())
		require.Equal(t, issuer, claims.Issuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		o := opts
		o.Audience = "OtherTenant"
		_, err := codec.Verify(signed, signer, o)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		o := opts
		o.Issuer = "https://evil.example.com"
		_, err := codec.Verify(signed, signer, o)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := codec.Verify(signed, mustSigner(t, "another-secret", "HS512"), opts)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("tampered signature", func(t *testing.T) {
		tampered := signed[:len(signed)-4] + "AAAA"
		_, err := codec.Verify(tampered, signer, opts)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := codec.Verify("not-a-token", signer, opts)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		c := newMockClock()
		expCodec := token.NewCodec(c)
		tok, err := expCodec.Sign(testClaims(), signer, issuer, testTenantID, c.Now(), c.Now().Add(time.Minute))
		require.NoError(t, err)
		c.Add(2 * time.Minute)
		_, err = expCodec.Verify(tok, signer, opts)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("missing required claim", func(t *testing.T) {
		tok, err := codec.Sign(token.Claims{Username: "jdoe"}, signer, issuer, testTenantID, clk.Now(), clk.Now().Add(time.Minute))
		require.NoError(t, err)
		_, err = codec.Verify(tok, signer, opts)
		require.ErrorIs(t, err, token.ErrInvalidToken)
		require.Contains(t, err.Error(), "userId")
	})

	t.Run("max age exceeded", func(t *testing.T) {
		c := newMockClock()
		ageCodec := token.NewCodec(c)
		tok, err := ageCodec.Sign(testClaims(), signer, issuer, testTenantID, c.Now(), c.Now().Add(time.Hour))
		require.NoError(t, err)
		c.Add(10 * time.Minute)

		o := opts
		o.MaxAge = 5 * time.Minute
		_, err = ageCodec.Verify(tok, signer, o)
		require.ErrorIs(t, err, token.ErrInvalidToken)
		require.Contains(t, err.Error(), "max age")
	})
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	clk := newMockClock()
	codec := token.NewCodec(clk)

	// Same secret, different HMAC algorithm: must not verify.
	hs256 := mustSigner(t, accessSecret, "HS256")
	hs512 := mustSigner(t, accessSecret, "HS512")

	tok, err := codec.Sign(testClaims(), hs256, issuer, testTenantID, clk.Now(), clk.Now().Add(time.Minute))
	require.NoError(t, err)

	_, err = codec.Verify(tok, hs512, token.VerifyOptions{Algorithms: []string{"HS512"}})
	require.ErrorIs(t, err, token.ErrInvalidToken)

	// alg=none must never be accepted.
	parts := strings.Split(tok, ".")
	none := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." + parts[1] + "."
	_, err = codec.Verify(none, hs256, token.VerifyOptions{})
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestCodec_Decode(t *testing.T) {
	clk := newMockClock()
	codec := token.NewCodec(clk)
	signer := mustSigner(t, refreshSecret, "HS512")

	tok, err := codec.Sign(testClaims(), signer, issuer, testTenantID, clk.Now(), clk.Now().Add(time.Minute))
	require.NoError(t, err)
	clk.Add(time.Hour)

	claims, err := codec.Decode(tok)
	require.NoError(t, err)
	require.Equal(t, "jdoe", claims.Username)
	require.Equal(t, "1,2,3", claims.Branches)

	_, err = codec.Decode("definitely.not.jwt")
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestCodec_VerifyNumericUserID(t *testing.T) {
	clk := newMockClock()
	codec := token.NewCodec(clk)
	signer := mustSigner(t, accessSecret, "HS256")

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username":     "jdoe",
		"userId":       42,
		"userBranches": "1,2",
		"iss":          issuer,
		"aud":          testTenantID,
		"iat":          clk.Now().Unix(),
		"exp":          clk.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(accessSecret))
	require.NoError(t, err)

	claims, err := codec.Verify(tok, signer, token.VerifyOptions{
		Issuer:         issuer,
		Audience:       testTenantID,
		RequiredClaims: []string{"username", "userId"},
	})
	require.NoError(t, err)
	require.Equal(t, "42", claims.UserID)
	require.Equal(t, "jdoe", claims.Username)
	require.Equal(t, []string{"1", "2"}, claims.BranchIDs())

	decoded, err := codec.Decode(tok)
	require.NoError(t, err)
	require.Equal(t, "42", decoded.UserID)
}
