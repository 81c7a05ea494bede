package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/belgededektif/docanalyze/constants"
	"github.com/belgededektif/docanalyze/internal/common"
	"github.com/belgededektif/docanalyze/internal/entity"
	"github.com/belgededektif/docanalyze/internal/llm"
)

type fakeReader struct {
	docs map[uuid.UUID]*entity.Document
}

func (f *fakeReader) GetByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", common.ErrNotFound, id)
	}
	return doc, nil
}

type fakeCompleter struct {
	calls []llm.CompletionRequest
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newDoc(status constants.DocumentStatus, text string) *entity.Document {
	now := time.Now().UTC()
	return &entity.Document{
		ID:            uuid.New(),
		Filename:      "fatura.pdf",
		Status:        status,
		ExtractedText: text,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestAskReturnsModelAnswer(t *testing.T) {
	doc := newDoc(constants.StatusSucceeded, "GENEL TOPLAM: 118,00")
	reader := &fakeReader{docs: map[uuid.UUID]*entity.Document{doc.ID: doc}}
	completer := &fakeCompleter{reply: "Toplam tutar 118,00 TL."}
	svc := NewService(reader, completer, Config{}, zap.NewNop())

	got, err := svc.Ask(context.Background(), doc.ID, "Toplam tutar nedir?")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Toplam tutar 118,00 TL." {
		t.Fatalf("answer = %q", got)
	}
	if len(completer.calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(completer.calls))
	}
	req := completer.calls[0]
	if !strings.Contains(req.User, "GENEL TOPLAM: 118,00") {
		t.Fatal("prompt is missing the document text")
	}
	if !strings.Contains(req.User, "Toplam tutar nedir?") {
		t.Fatal("prompt is missing the question")
	}
}

func TestAskNotReadyMakesNoModelCall(t *testing.T) {
	for _, status := range []constants.DocumentStatus{
		constants.StatusUploaded,
		constants.StatusProcessing,
		constants.StatusFailed,
	} {
		t.Run(string(status), func(t *testing.T) {
			doc := newDoc(status, "irrelevant")
			reader := &fakeReader{docs: map[uuid.UUID]*entity.Document{doc.ID: doc}}
			completer := &fakeCompleter{reply: "should not be used"}
			svc := NewService(reader, completer, Config{}, zap.NewNop())

			_, err := svc.Ask(context.Background(), doc.ID, "soru")
			if !errors.Is(err, common.ErrNotReady) {
				t.Fatalf("err = %v, want ErrNotReady", err)
			}
			if len(completer.calls) != 0 {
				t.Fatalf("model calls = %d, want 0", len(completer.calls))
			}
		})
	}
}

func TestAskUnknownDocument(t *testing.T) {
	reader := &fakeReader{docs: map[uuid.UUID]*entity.Document{}}
	completer := &fakeCompleter{}
	svc := NewService(reader, completer, Config{}, zap.NewNop())

	_, err := svc.Ask(context.Background(), uuid.New(), "soru")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(completer.calls) != 0 {
		t.Fatalf("model calls = %d, want 0", len(completer.calls))
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	doc := newDoc(constants.StatusSucceeded, "metin")
	reader := &fakeReader{docs: map[uuid.UUID]*entity.Document{doc.ID: doc}}
	svc := NewService(reader, &fakeCompleter{}, Config{}, zap.NewNop())

	if _, err := svc.Ask(context.Background(), doc.ID, "   "); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestAskTruncatesContext(t *testing.T) {
	doc := newDoc(constants.StatusSucceeded, strings.Repeat("a", 500))
	reader := &fakeReader{docs: map[uuid.UUID]*entity.Document{doc.ID: doc}}
	completer := &fakeCompleter{reply: "ok"}
	svc := NewService(reader, completer, Config{MaxContextChars: 100}, zap.NewNop())

	if _, err := svc.Ask(context.Background(), doc.ID, "soru"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(completer.calls[0].User, strings.Repeat("a", 101)) {
		t.Fatal("context was not truncated to the configured bound")
	}
}

func TestAskTruncationKeepsRunesIntact(t *testing.T) {
	// Each 'ğ' is two bytes, so a 101-byte bound falls mid-rune.
	doc := newDoc(constants.StatusSucceeded, strings.Repeat("ğ", 60))
	reader := &fakeReader{docs: map[uuid.UUID]*entity.Document{doc.ID: doc}}
	completer := &fakeCompleter{reply: "ok"}
	svc := NewService(reader, completer, Config{MaxContextChars: 101}, zap.NewNop())

	if _, err := svc.Ask(context.Background(), doc.ID, "soru"); err != nil {
		t.Fatal(err)
	}
	user := completer.calls[0].User
	if !utf8.ValidString(user) {
		t.Fatal("truncation produced an invalid UTF-8 prompt")
	}
	if got := strings.Count(user, "ğ"); got != 50 {
		t.Fatalf("runes kept = %d, want 50 (cut backed off to the rune boundary)", got)
	}
}

func TestAskModelFailureNotRetried(t *testing.T) {
	doc := newDoc(constants.StatusSucceeded, "metin")
	reader := &fakeReader{docs: map[uuid.UUID]*entity.Document{doc.ID: doc}}
	completer := &fakeCompleter{err: llm.ErrUnavailable}
	svc := NewService(reader, completer, Config{}, zap.NewNop())

	_, err := svc.Ask(context.Background(), doc.ID, "soru")
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if len(completer.calls) != 1 {
		t.Fatalf("model calls = %d, want exactly 1 (no retry)", len(completer.calls))
	}
}
