package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an LLM call failure. The experiment harness uses the
// kind to decide whether a retry is allowed: only transient kinds are.
type ErrorKind string

const (
	ErrAuth      ErrorKind = "auth"
	ErrRateLimit ErrorKind = "rate_limit"
	ErrTimeout   ErrorKind = "timeout"
	ErrOther     ErrorKind = "other"
)

// ClientError is a classified LLM call failure.
type ClientError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("llm call failed (%s): %v", e.Kind, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// Transient reports whether the failure may succeed on retry. Auth failures
// are permanent: retrying them only delays the real answer.
func (e *ClientError) Transient() bool {
	return e.Kind == ErrRateLimit || e.Kind == ErrTimeout
}

// Classify wraps err in a ClientError with the appropriate kind. A nil error
// returns nil; an existing ClientError is returned unchanged.
func Classify(err error) *ClientError {
	if err == nil {
		return nil
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce
	}
	return &ClientError{Kind: kindOf(err), Err: err}
}

func kindOf(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrOther
	}
	if code, ok := statusCode(err); ok {
		switch code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrAuth
		case http.StatusTooManyRequests:
			return ErrRateLimit
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return ErrTimeout
		}
	}
	return ErrOther
}
