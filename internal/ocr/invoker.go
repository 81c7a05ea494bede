package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// InvokerConfig bounds the asynchronous submit/poll protocol.
type InvokerConfig struct {
	PollInterval time.Duration // default 1.2s
	PollTimeout  time.Duration // default 25s
}

// Invoker calls the OCR service through an ordered list of candidate call
// shapes. A shape mismatch advances to the next candidate; a remote fault
// aborts immediately. This is a same-call correctness probe, not a retry
// policy.
type Invoker struct {
	client Client
	cfg    InvokerConfig
	logger *zap.Logger
}

func NewInvoker(client Client, cfg InvokerConfig, logger *zap.Logger) *Invoker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1200 * time.Millisecond
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 25 * time.Second
	}
	return &Invoker{client: client, cfg: cfg, logger: logger}
}

type strategy struct {
	name string
	call func(ctx context.Context, in Input) ([]string, error)
}

func (inv *Invoker) strategies() []strategy {
	return []strategy{
		{"analyze-bytes", func(ctx context.Context, in Input) ([]string, error) {
			if len(in.Bytes) == 0 {
				return nil, ErrShapeMismatch
			}
			res, err := inv.client.AnalyzeBytes(ctx, in.Bytes, in.ContentType)
			if err != nil {
				return nil, err
			}
			return res.Lines, nil
		}},
		{"analyze-stream", func(ctx context.Context, in Input) ([]string, error) {
			if len(in.Bytes) == 0 {
				return nil, ErrShapeMismatch
			}
			res, err := inv.client.AnalyzeStream(ctx, bytes.NewReader(in.Bytes), in.ContentType)
			if err != nil {
				return nil, err
			}
			return res.Lines, nil
		}},
		{"analyze-url", func(ctx context.Context, in Input) ([]string, error) {
			if in.URL == "" {
				return nil, ErrShapeMismatch
			}
			res, err := inv.client.AnalyzeURL(ctx, in.URL)
			if err != nil {
				return nil, err
			}
			return res.Lines, nil
		}},
		{"read-submit-bytes", func(ctx context.Context, in Input) ([]string, error) {
			if len(in.Bytes) == 0 {
				return nil, ErrShapeMismatch
			}
			return inv.submitPoll(ctx, Input{Bytes: in.Bytes, ContentType: in.ContentType})
		}},
		{"read-submit-url", func(ctx context.Context, in Input) ([]string, error) {
			if in.URL == "" {
				return nil, ErrShapeMismatch
			}
			return inv.submitPoll(ctx, Input{URL: in.URL})
		}},
	}
}

// Read returns recognized text lines for the input image. Zero lines is a
// valid empty result, not an error.
func (inv *Invoker) Read(ctx context.Context, in Input) ([]string, error) {
	for _, s := range inv.strategies() {
		lines, err := s.call(ctx, in)
		if err == nil {
			inv.logger.Debug("ocr.invoke.ok", zap.String("shape", s.name), zap.Int("lines", len(lines)))
			return lines, nil
		}
		if errors.Is(err, ErrShapeMismatch) {
			inv.logger.Debug("ocr.invoke.shape_mismatch", zap.String("shape", s.name))
			continue
		}
		// Remote or protocol fault: abort without probing further shapes.
		inv.logger.Error("ocr.invoke.failed", zap.String("shape", s.name), zap.Error(err))
		return nil, err
	}
	return nil, fmt.Errorf("%w: no usable call shape", ErrUnavailable)
}

// submitPoll drives the asynchronous read protocol: submit, then poll at a
// fixed interval until a terminal status or the overall budget runs out. A
// timed-out operation is abandoned, not left running on our side.
func (inv *Invoker) submitPoll(ctx context.Context, in Input) ([]string, error) {
	opID, err := inv.client.SubmitRead(ctx, in)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(inv.cfg.PollTimeout)
	ticker := time.NewTicker(inv.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Only a deadline is an OCR timeout; a caller cancel keeps its own identity.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}

		op, err := inv.client.PollRead(ctx, opID)
		if err != nil {
			return nil, err
		}
		switch op.Status {
		case OpSucceeded:
			return op.Lines, nil
		case OpFailed:
			return nil, fmt.Errorf("%w: %s", ErrFailed, op.Detail)
		}

		if time.Now().After(deadline) {
			inv.logger.Warn("ocr.poll.timeout", zap.String("operation", opID), zap.Duration("budget", inv.cfg.PollTimeout))
			return nil, fmt.Errorf("%w after %s", ErrTimeout, inv.cfg.PollTimeout)
		}
	}
}
