package errors

import (
	"errors"
	"fmt"
)

// Common error types for the gateway
var (
	// Session errors. Absorbed by the gateway middleware and turned into
	// redirects or silent rotation.
	ErrTokenInvalid       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Engine errors
	ErrEngineSessionExpired = errors.New("engine session expired")
	ErrEngineTransport      = errors.New("engine transport error")

	// Report errors
	ErrTemplateExecutionEmpty = errors.New("template execution returned no rows")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
