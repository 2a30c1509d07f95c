package credentials_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/dashboard-gateway/credentials"
	"github.com/stretchr/testify/require"
)

func TestUTF16SHA256Hasher_Hash(t *testing.T) {
	h := credentials.UTF16SHA256Hasher{}

	t.Run("known vectors", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)
		require.Equal(t, "E2-01-06-5D-05-54-65-26-15-C3-20-C0-0A-1D-5B-C8-ED-CA-46-9D-72-C2-79-0E-24-15-2D-0C-1E-2B-61-89", got)

		got, err = h.Hash("şifre123")
		require.NoError(t, err)
		require.Equal(t, "55-9C-8F-9C-6B-4B-07-D1-EA-40-D0-BD-B3-A4-2D-60-DB-56-96-62-01-34-C0-C2-34-DF-92-D7-21-F0-94-B2", got)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := h.Hash("correct horse")
		require.NoError(t, err)
		b, err := h.Hash("correct horse")
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("distinct secrets differ", func(t *testing.T) {
		a, err := h.Hash("secret-1")
		require.NoError(t, err)
		b, err := h.Hash("secret-2")
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("fixed width uppercase pairs", func(t *testing.T) {
		got, err := h.Hash("x")
		require.NoError(t, err)
		require.Len(t, got, 95)
		pairs := strings.Split(got, "-")
		require.Len(t, pairs, 32)
		require.Equal(t, strings.ToUpper(got), got)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := h.Hash("")
		require.ErrorIs(t, err, credentials.ErrEmptySecret)
	})
}

func TestBcryptHasher(t *testing.T) {
	h := credentials.BcryptHasher{Cost: 4}

	hash, err := h.Hash("password123")
	require.NoError(t, err)
	require.True(t, h.Compare("password123", hash))
	require.False(t, h.Compare("password124", hash))

	_, err = h.Hash("")
	require.ErrorIs(t, err, credentials.ErrEmptySecret)
}
