package engine

import (
	"fmt"
	"net/http"

	gwerrors "github.com/jrsteele09/dashboard-gateway/internal/errors"
)

var (
	ErrSessionExpired = gwerrors.ErrEngineSessionExpired
	ErrTransport      = gwerrors.ErrEngineTransport
)

// EngineError is the structured failure surfaced once retries are exhausted.
type EngineError struct {
	Op      string // execute, databases, login, csrf
	Status  int    // HTTP status, 0 when no response was received
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("engine %s failed (%d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("engine %s failed: %s", e.Op, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// retryable reports whether another attempt could succeed. Transport
// failures, 401 (after session renewal), 408, 429 and 5xx are retried.
func (e *EngineError) retryable() bool {
	switch {
	case e.Status == 0:
		return true
	case e.Status == http.StatusUnauthorized,
		e.Status == http.StatusRequestTimeout,
		e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	}
	return false
}
