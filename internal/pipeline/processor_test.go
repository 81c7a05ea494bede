package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/belgededektif/docanalyze/constants"
	"github.com/belgededektif/docanalyze/internal/common"
	"github.com/belgededektif/docanalyze/internal/entity"
	"github.com/belgededektif/docanalyze/internal/extract"
	"github.com/belgededektif/docanalyze/internal/fields"
	"github.com/belgededektif/docanalyze/internal/upload"
)

type fakeStore struct {
	puts    map[string][]byte
	deletes []string
	putErr  error
	delErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{puts: map[string][]byte{}}
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.puts[key] = data
	return key, nil
}

func (f *fakeStore) Delete(_ context.Context, ref string) error {
	f.deletes = append(f.deletes, ref)
	return f.delErr
}

func (f *fakeStore) PublicURL(key string) string {
	return "http://blobs.test/" + key
}

type fakeRepo struct {
	docs        map[uuid.UUID]*entity.Document
	transitions []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: map[uuid.UUID]*entity.Document{}}
}

func (f *fakeRepo) Create(_ context.Context, doc *entity.Document) error {
	cp := *doc
	f.docs[doc.ID] = &cp
	f.transitions = append(f.transitions, "create:"+string(doc.Status))
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", common.ErrNotFound, id)
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeRepo) List(_ context.Context) ([]*entity.Document, error) {
	var out []*entity.Document
	for _, doc := range f.docs {
		cp := *doc
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRepo) MarkProcessing(_ context.Context, id uuid.UUID) error {
	doc, ok := f.docs[id]
	if !ok {
		return fmt.Errorf("%w: document %s", common.ErrNotFound, id)
	}
	if doc.Status != constants.StatusUploaded {
		return fmt.Errorf("%w: document %s is not in %s", common.ErrConflict, id, constants.StatusUploaded)
	}
	doc.Status = constants.StatusProcessing
	doc.UpdatedAt = time.Now().UTC()
	f.transitions = append(f.transitions, "processing")
	return nil
}

func (f *fakeRepo) Finish(_ context.Context, id uuid.UUID, status constants.DocumentStatus, text string, derived entity.InvoiceFields) error {
	doc, ok := f.docs[id]
	if !ok {
		return fmt.Errorf("%w: document %s", common.ErrNotFound, id)
	}
	if doc.Status != constants.StatusProcessing {
		return fmt.Errorf("%w: document %s is not in %s", common.ErrConflict, id, constants.StatusProcessing)
	}
	doc.Status = status
	doc.ExtractedText = text
	doc.Fields = derived
	doc.UpdatedAt = time.Now().UTC()
	f.transitions = append(f.transitions, "finish:"+string(status))
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.docs[id]; !ok {
		return fmt.Errorf("%w: document %s", common.ErrNotFound, id)
	}
	delete(f.docs, id)
	f.transitions = append(f.transitions, "delete")
	return nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _ extract.Source) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func newProcessor(store *fakeStore, repo *fakeRepo, ex extract.TextExtractor) *Processor {
	validator := upload.NewValidator(upload.Config{MaxSizeBytes: 1 << 20}, zap.NewNop())
	return NewProcessor(validator, store, repo, ex, fields.NewExtractor(fields.Config{}), zap.NewNop())
}

func TestProcessHappyPath(t *testing.T) {
	store := newFakeStore()
	repo := newFakeRepo()
	ex := &fakeExtractor{text: "MİGROS TİCARET A.Ş.\nKDV %18 18,00\nGENEL TOPLAM: 118,00\n15.03.2024"}
	p := newProcessor(store, repo, ex)

	doc, err := p.Process(context.Background(), "fatura.txt", []byte("icerik"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != constants.StatusSucceeded {
		t.Fatalf("status = %s, want %s", doc.Status, constants.StatusSucceeded)
	}
	if len(store.puts) != 1 {
		t.Fatalf("store puts = %d, want 1", len(store.puts))
	}
	for key := range store.puts {
		if !strings.Contains(key, doc.ID.String()) {
			t.Fatalf("storage key %q does not carry the full document id %s", key, doc.ID)
		}
	}
	want := []string{"create:UPLOADED", "processing", "finish:SUCCEEDED"}
	if strings.Join(repo.transitions, ",") != strings.Join(want, ",") {
		t.Fatalf("transitions = %v, want %v", repo.transitions, want)
	}
	if doc.Fields.Vendor == nil || *doc.Fields.Vendor != "MİGROS TİCARET A.Ş." {
		t.Fatalf("vendor = %v", doc.Fields.Vendor)
	}
	if doc.Fields.TotalAmount == nil || !doc.Fields.TotalAmount.Equal(decimal.NewFromInt(118)) {
		t.Fatalf("total = %v", doc.Fields.TotalAmount)
	}
	stored := repo.docs[doc.ID]
	if stored.ExtractedText != ex.text {
		t.Fatal("extracted text not persisted")
	}
}

func TestProcessRejectsBeforeStoring(t *testing.T) {
	store := newFakeStore()
	repo := newFakeRepo()
	p := newProcessor(store, repo, &fakeExtractor{text: "x"})

	_, err := p.Process(context.Background(), "fatura.txt", nil)
	if !errors.Is(err, common.ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
	if len(store.puts) != 0 || len(repo.docs) != 0 {
		t.Fatal("rejected upload must not touch storage or persistence")
	}
}

func TestProcessStorePutFailure(t *testing.T) {
	store := newFakeStore()
	store.putErr = errors.New("bucket gone")
	repo := newFakeRepo()
	p := newProcessor(store, repo, &fakeExtractor{text: "x"})

	_, err := p.Process(context.Background(), "fatura.txt", []byte("icerik"))
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if len(repo.docs) != 0 {
		t.Fatal("no record should exist when the blob was never stored")
	}
}

func TestProcessExtractionFailureLandsFailed(t *testing.T) {
	store := newFakeStore()
	repo := newFakeRepo()
	p := newProcessor(store, repo, &fakeExtractor{err: errors.New("ocr down")})

	doc, err := p.Process(context.Background(), "tarama.png", pngBytes())
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != constants.StatusFailed {
		t.Fatalf("status = %s, want %s", doc.Status, constants.StatusFailed)
	}
	if !strings.Contains(doc.ExtractedText, "ocr down") {
		t.Fatalf("failure reason not recorded: %q", doc.ExtractedText)
	}
	stored := repo.docs[doc.ID]
	if stored.Status != constants.StatusFailed {
		t.Fatalf("persisted status = %s", stored.Status)
	}
}

func TestProcessSentinelSkipsFieldDerivation(t *testing.T) {
	store := newFakeStore()
	repo := newFakeRepo()
	p := newProcessor(store, repo, &fakeExtractor{text: extract.NoReadableText})

	doc, err := p.Process(context.Background(), "bos.txt", []byte(" "))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != constants.StatusSucceeded {
		t.Fatalf("status = %s", doc.Status)
	}
	f := doc.Fields
	if f.Vendor != nil || f.VATAmount != nil || f.TotalAmount != nil || f.Date != nil {
		t.Fatalf("fields derived from sentinel text: %+v", f)
	}
}

func TestRemoveDeletesRecordThenBlob(t *testing.T) {
	store := newFakeStore()
	repo := newFakeRepo()
	p := newProcessor(store, repo, &fakeExtractor{text: "x"})

	doc, err := p.Process(context.Background(), "fatura.txt", []byte("icerik"))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Remove(context.Background(), doc.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := repo.docs[doc.ID]; ok {
		t.Fatal("record still present after remove")
	}
	if len(store.deletes) != 1 || store.deletes[0] != doc.StorageKey {
		t.Fatalf("blob deletes = %v", store.deletes)
	}
}

func TestRemoveSurvivesBlobDeleteFailure(t *testing.T) {
	store := newFakeStore()
	store.delErr = errors.New("transient")
	repo := newFakeRepo()
	p := newProcessor(store, repo, &fakeExtractor{text: "x"})

	doc, err := p.Process(context.Background(), "fatura.txt", []byte("icerik"))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Remove(context.Background(), doc.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := repo.docs[doc.ID]; ok {
		t.Fatal("record must be gone even when the blob delete fails")
	}
}

func TestRemoveUnknownDocument(t *testing.T) {
	p := newProcessor(newFakeStore(), newFakeRepo(), &fakeExtractor{text: "x"})
	if err := p.Remove(context.Background(), uuid.New()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// pngBytes is a minimal payload with a PNG signature; decoding it fails,
// which only disables best-effort normalization.
func pngBytes() []byte {
	return append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, []byte("not really a png")...)
}
