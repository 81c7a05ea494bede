package llm

import (
	"context"
	"errors"
)

// ErrUnavailable marks a provider-side failure (network, auth, 5xx). Callers
// surface it without retrying.
var ErrUnavailable = errors.New("llm provider unavailable")

// CompletionRequest is a single system+user chat turn.
type CompletionRequest struct {
	System string
	User   string
}

// Completer is the interface the answering service depends on.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
