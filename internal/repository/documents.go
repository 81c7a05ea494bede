package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/belgededektif/docanalyze/constants"
	"github.com/belgededektif/docanalyze/internal/common"
	"github.com/belgededektif/docanalyze/internal/entity"
)

// DocumentRepository is the persistence contract for document records. The
// guarded transition methods are the single authority over the lifecycle:
// a transition whose precondition row no longer matches updates nothing and
// reports a conflict, so two processors can never both own the same record.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	List(ctx context.Context) ([]*entity.Document, error)
	// MarkProcessing moves UPLOADED -> PROCESSING.
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	// Finish moves PROCESSING -> SUCCEEDED|FAILED and writes the terminal
	// text and fields exactly once.
	Finish(ctx context.Context, id uuid.UUID, status constants.DocumentStatus, text string, fields entity.InvoiceFields) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewDocumentRepository(pool *pgxpool.Pool, logger *zap.Logger) DocumentRepository {
	return &documentRepo{pool: pool, logger: logger}
}

const documentColumns = `id, filename, status, storage_key, storage_url, size_bytes, mime_type,
	extracted_text, vendor, vat_amount, total_amount, doc_date, created_at, updated_at`

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (id, filename, status, storage_key, storage_url, size_bytes, mime_type,
			extracted_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, $9)`,
		doc.ID, doc.Filename, string(doc.Status), doc.StorageKey, doc.StorageURL,
		doc.SizeBytes, doc.MimeType, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create document", zap.String("id", doc.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: insert document: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", common.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("failed to get document", zap.String("id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: get document: %v", common.ErrDatabase, err)
	}
	return doc, nil
}

func (r *documentRepo) List(ctx context.Context) ([]*entity.Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		r.logger.Error("failed to list documents", zap.Error(err))
		return nil, fmt.Errorf("%w: list documents: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan document: %v", common.ErrDatabase, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *documentRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		string(constants.StatusProcessing), time.Now().UTC(), id, string(constants.StatusUploaded),
	)
	if err != nil {
		r.logger.Error("failed to mark document processing", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("%w: mark processing: %v", common.ErrDatabase, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %s is not in %s", common.ErrConflict, id, constants.StatusUploaded)
	}
	return nil
}

func (r *documentRepo) Finish(ctx context.Context, id uuid.UUID, status constants.DocumentStatus, text string, fields entity.InvoiceFields) error {
	if !constants.CanTransition(constants.StatusProcessing, status) {
		return fmt.Errorf("%w: cannot finish into %s", common.ErrConflict, status)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET status = $1, extracted_text = $2, vendor = $3, vat_amount = $4,
			total_amount = $5, doc_date = $6, updated_at = $7
		WHERE id = $8 AND status = $9`,
		string(status), text, fields.Vendor, decimalPtrToString(fields.VATAmount),
		decimalPtrToString(fields.TotalAmount), fields.Date, time.Now().UTC(),
		id, string(constants.StatusProcessing),
	)
	if err != nil {
		r.logger.Error("failed to finish document", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("%w: finish document: %v", common.ErrDatabase, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %s is not in %s", common.ErrConflict, id, constants.StatusProcessing)
	}
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to delete document", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("%w: delete document: %v", common.ErrDatabase, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %s", common.ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc    entity.Document
		status string
		vendor *string
		vat    *string
		total  *string
		date   *string
	)
	err := row.Scan(
		&doc.ID, &doc.Filename, &status, &doc.StorageKey, &doc.StorageURL,
		&doc.SizeBytes, &doc.MimeType, &doc.ExtractedText,
		&vendor, &vat, &total, &date, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = constants.DocumentStatus(status)
	doc.Fields = entity.InvoiceFields{
		Vendor:      vendor,
		VATAmount:   stringToDecimalPtr(vat),
		TotalAmount: stringToDecimalPtr(total),
		Date:        date,
	}
	return &doc, nil
}

// Amounts are persisted as exact decimal strings, never floats.
func decimalPtrToString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func stringToDecimalPtr(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}
