// Package credentials turns plaintext user secrets into the tokens stored
// alongside user records.
package credentials

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/encoding/unicode"
)

var ErrEmptySecret = errors.New("secret is empty")

// Hasher converts a plaintext secret into the token used for credential lookups.
type Hasher interface {
	Hash(secret string) (string, error)
}

// UTF16SHA256Hasher reproduces the hash stored in existing user tables:
// SHA-256 over the UTF-16LE code units of the secret, rendered as uppercase
// hex pairs joined by "-". It is keyless and unsalted, so equal secrets
// always yield equal tokens.
type UTF16SHA256Hasher struct{}

var _ Hasher = UTF16SHA256Hasher{}

func (UTF16SHA256Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to encode secret as UTF-16: %w", err)
	}

	sum := sha256.Sum256(encoded)
	pairs := make([]string, len(sum))
	for i, b := range sum {
		pairs[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(pairs, "-"), nil
}

// BcryptHasher is a salted alternative for deployments whose user store can
// hold bcrypt hashes. Its output is not stable across calls, so lookups must
// fetch the row by username and use Compare.
type BcryptHasher struct {
	Cost int
}

var _ Hasher = BcryptHasher{}

func (h BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	return string(bytes), err
}

func (BcryptHasher) Compare(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
