package answer

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/belgededektif/docanalyze/constants"
	"github.com/belgededektif/docanalyze/internal/common"
	"github.com/belgededektif/docanalyze/internal/entity"
	"github.com/belgededektif/docanalyze/internal/llm"
)

const systemPrompt = "You are an assistant that answers questions about a single document. " +
	"Answer using ONLY the document text provided by the user. " +
	"If the document does not contain the answer, say so plainly. " +
	"Reply in the language of the question. Keep answers short and factual."

// DocumentReader is the slice of the repository the answerer needs.
type DocumentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
}

// Config bounds the prompt size.
type Config struct {
	MaxContextChars int
}

// Service answers free-form questions grounded in one document's extracted
// text. It never mixes text from multiple documents into a single prompt.
type Service struct {
	docs      DocumentReader
	completer llm.Completer
	cfg       Config
	logger    *zap.Logger
}

func NewService(docs DocumentReader, completer llm.Completer, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 12000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{docs: docs, completer: completer, cfg: cfg, logger: logger}
}

// Ask resolves the document, checks it is fully processed, and forwards a
// bounded prompt to the language model. Readiness is verified before any
// model call is made, and a model failure is surfaced without retry.
func (s *Service) Ask(ctx context.Context, documentID uuid.UUID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question must not be empty", common.ErrInvalidInput)
	}

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc.Status != constants.StatusSucceeded {
		return "", fmt.Errorf("%w: document %s has status %s", common.ErrNotReady, documentID, doc.Status)
	}

	text := doc.ExtractedText
	truncated := false
	if len(text) > s.cfg.MaxContextChars {
		// Back off to a rune boundary so a multi-byte character is never split.
		cut := s.cfg.MaxContextChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
		truncated = true
	}

	start := time.Now()
	s.logger.Info("answer.ask.start",
		zap.String("document_id", documentID.String()),
		zap.Int("question_len", len(question)),
		zap.Int("context_len", len(text)),
		zap.Bool("context_truncated", truncated),
	)

	user := "Document text:\n\"\"\"\n" + text + "\n\"\"\"\n\nQuestion: " + question
	out, err := s.completer.Complete(ctx, llm.CompletionRequest{System: systemPrompt, User: user})
	if err != nil {
		s.logger.Error("answer.ask.model_error",
			zap.String("document_id", documentID.String()),
			zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return "", fmt.Errorf("%w: language model call failed: %v", common.ErrUnavailable, err)
	}

	s.logger.Info("answer.ask.ok",
		zap.String("document_id", documentID.String()),
		zap.Int("answer_len", len(out)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return out, nil
}
