package llm

import (
	"errors"
	"fmt"
)

// ErrUnknownShape is returned by Normalize when a backend response matches
// none of the recognized shapes. It is never papered over with default text.
var ErrUnknownShape = errors.New("llm: unrecognized response shape")

// GatewayError is the terminal failure of an Invoke call: every candidate
// in the fallback chain failed on every configured attempt. Err holds the
// last attempt's failure only.
type GatewayError struct {
	Backend  string
	Attempts int
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: backend %s failed after %d attempts: %v", e.Backend, e.Attempts, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
