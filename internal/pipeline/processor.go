package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/belgededektif/docanalyze/constants"
	"github.com/belgededektif/docanalyze/internal/common"
	"github.com/belgededektif/docanalyze/internal/entity"
	"github.com/belgededektif/docanalyze/internal/extract"
	"github.com/belgededektif/docanalyze/internal/fields"
	"github.com/belgededektif/docanalyze/internal/repository"
	"github.com/belgededektif/docanalyze/internal/storage"
	"github.com/belgededektif/docanalyze/internal/upload"
)

// Processor drives one document through its full lifecycle: validate, store,
// record, extract, derive fields, finish. Each call to Process owns exactly
// one record; the repository's guarded transitions keep a second processor
// from ever re-entering the same document.
type Processor struct {
	validator *upload.Validator
	store     storage.BlobStore
	docs      repository.DocumentRepository
	extractor extract.TextExtractor
	fields    *fields.Extractor
	logger    *zap.Logger
}

func NewProcessor(
	validator *upload.Validator,
	store storage.BlobStore,
	docs repository.DocumentRepository,
	extractor extract.TextExtractor,
	fieldEx *fields.Extractor,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		validator: validator,
		store:     store,
		docs:      docs,
		extractor: extractor,
		fields:    fieldEx,
		logger:    logger,
	}
}

// Process ingests one uploaded payload end to end and returns the persisted
// record in its terminal state. Validation failures are returned before
// anything is stored; failures after the record exists land it in FAILED
// with the reason recorded, and the record itself is still returned.
func (p *Processor) Process(ctx context.Context, filename string, data []byte) (*entity.Document, error) {
	res, err := p.validator.Validate(filename, data)
	if err != nil {
		p.logger.Warn("pipeline.validate.rejected",
			zap.String("filename", filename),
			zap.Error(err),
		)
		return nil, err
	}

	id := uuid.New()
	now := time.Now().UTC()
	key := storage.ObjectKey(filename, now, id.String())

	ref, err := p.store.Put(ctx, key, res.Bytes, res.MimeType)
	if err != nil {
		p.logger.Error("pipeline.store.put_error",
			zap.String("document_id", id.String()),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: store upload: %v", common.ErrUnavailable, err)
	}

	doc := &entity.Document{
		ID:         id,
		Filename:   filename,
		Status:     constants.StatusUploaded,
		StorageKey: ref,
		StorageURL: p.store.PublicURL(key),
		SizeBytes:  int64(len(res.Bytes)),
		MimeType:   res.MimeType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	p.logger.Info("pipeline.process.start",
		zap.String("document_id", id.String()),
		zap.String("filename", filename),
		zap.String("format", res.Format),
		zap.Int64("size_bytes", doc.SizeBytes),
	)

	if err := p.docs.MarkProcessing(ctx, id); err != nil {
		return nil, err
	}
	doc.Status = constants.StatusProcessing

	text, extractErr := p.extractor.Extract(ctx, extract.Source{
		Bytes:       res.Bytes,
		URL:         p.store.PublicURL(key),
		ContentType: res.MimeType,
		Format:      res.Format,
	})
	if extractErr != nil {
		p.logger.Error("pipeline.extract.error",
			zap.String("document_id", id.String()),
			zap.Error(extractErr),
		)
		reason := "metin çıkarma başarısız: " + extractErr.Error()
		if err := p.docs.Finish(ctx, id, constants.StatusFailed, reason, entity.InvoiceFields{}); err != nil {
			return nil, err
		}
		doc.Status = constants.StatusFailed
		doc.ExtractedText = reason
		doc.UpdatedAt = time.Now().UTC()
		return doc, nil
	}

	var derived entity.InvoiceFields
	if !extract.IsSentinel(text) {
		derived = p.fields.Extract(text)
	}

	if err := p.docs.Finish(ctx, id, constants.StatusSucceeded, text, derived); err != nil {
		return nil, err
	}
	doc.Status = constants.StatusSucceeded
	doc.ExtractedText = text
	doc.Fields = derived
	doc.UpdatedAt = time.Now().UTC()

	p.logger.Info("pipeline.process.ok",
		zap.String("document_id", id.String()),
		zap.Int("text_len", len(text)),
		zap.Bool("vendor_found", derived.Vendor != nil),
		zap.Bool("total_found", derived.TotalAmount != nil),
	)
	return doc, nil
}

// Remove deletes the record first, then the stored blob. A blob left behind
// by a failed delete is orphaned garbage, not a dangling reference.
func (p *Processor) Remove(ctx context.Context, id uuid.UUID) error {
	doc, err := p.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := p.docs.Delete(ctx, id); err != nil {
		return err
	}
	if err := p.store.Delete(ctx, doc.StorageKey); err != nil {
		p.logger.Warn("pipeline.remove.blob_delete_error",
			zap.String("document_id", id.String()),
			zap.String("key", doc.StorageKey),
			zap.Error(err),
		)
	}
	p.logger.Info("pipeline.remove.ok", zap.String("document_id", id.String()))
	return nil
}
