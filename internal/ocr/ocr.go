package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Errors returned by the invoker. ErrShapeMismatch is the only non-fatal
// class: it means a particular call shape is not supported by the SDK
// version behind the client, and the next candidate should be tried.
var (
	ErrShapeMismatch = errors.New("ocr: call shape not supported")
	ErrUnavailable   = errors.New("ocr: service unavailable")
	ErrTimeout       = errors.New("ocr: operation timed out")
	ErrFailed        = errors.New("ocr: analysis failed")
)

// RemoteError is a fault reported by the OCR service itself (authentication,
// quota, server error). Always fatal; never advances the strategy list.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("ocr: remote error %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error { return ErrUnavailable }

// Input carries the image bytes plus an optional reachable URL to the same
// bytes. URL-based call shapes are skipped when URL is empty.
type Input struct {
	Bytes       []byte
	URL         string
	ContentType string
}

// Result is the normalized OCR output: text lines in source order.
type Result struct {
	Lines []string
}

// Operation is the state of an asynchronous read operation.
type Operation struct {
	Status string // "notStarted" | "running" | "succeeded" | "failed"
	Lines  []string
	Detail string // remote error detail when Status == "failed"
}

const (
	OpSucceeded = "succeeded"
	OpFailed    = "failed"
)

// Client is the external OCR capability across known SDK generations. The
// service has shipped synchronous analyze calls taking raw bytes, a stream,
// or a URL, and an asynchronous submit/poll protocol; no single version
// exposes all of them. Implementations return ErrShapeMismatch from shapes
// they do not support.
type Client interface {
	AnalyzeBytes(ctx context.Context, data []byte, contentType string) (*Result, error)
	AnalyzeStream(ctx context.Context, r io.Reader, contentType string) (*Result, error)
	AnalyzeURL(ctx context.Context, imageURL string) (*Result, error)

	SubmitRead(ctx context.Context, in Input) (operationID string, err error)
	PollRead(ctx context.Context, operationID string) (*Operation, error)
}
