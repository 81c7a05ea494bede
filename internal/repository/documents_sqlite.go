package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/belgededektif/docanalyze/constants"
	"github.com/belgededektif/docanalyze/internal/common"
	"github.com/belgededektif/docanalyze/internal/entity"
)

// sqliteDocumentRepo is the database/sql twin of documentRepo for sqlite
// deployments. UUIDs are stored as their canonical string form.
type sqliteDocumentRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteDocumentRepository(db *sql.DB, logger *zap.Logger) DocumentRepository {
	return &sqliteDocumentRepo{db: db, logger: logger}
}

func (r *sqliteDocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, status, storage_key, storage_url, size_bytes, mime_type,
			extracted_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', ?, ?)`,
		doc.ID.String(), doc.Filename, string(doc.Status), doc.StorageKey, doc.StorageURL,
		doc.SizeBytes, doc.MimeType, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create document", zap.String("id", doc.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: insert document: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *sqliteDocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id.String())
	doc, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", common.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("failed to get document", zap.String("id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: get document: %v", common.ErrDatabase, err)
	}
	return doc, nil
}

func (r *sqliteDocumentRepo) List(ctx context.Context) ([]*entity.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		r.logger.Error("failed to list documents", zap.Error(err))
		return nil, fmt.Errorf("%w: list documents: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
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

func (r *sqliteDocumentRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(constants.StatusProcessing), time.Now().UTC(), id.String(), string(constants.StatusUploaded),
	)
	if err != nil {
		r.logger.Error("failed to mark document processing", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("%w: mark processing: %v", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: document %s is not in %s", common.ErrConflict, id, constants.StatusUploaded)
	}
	return nil
}

func (r *sqliteDocumentRepo) Finish(ctx context.Context, id uuid.UUID, status constants.DocumentStatus, text string, fields entity.InvoiceFields) error {
	if !constants.CanTransition(constants.StatusProcessing, status) {
		return fmt.Errorf("%w: cannot finish into %s", common.ErrConflict, status)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, extracted_text = ?, vendor = ?, vat_amount = ?,
			total_amount = ?, doc_date = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(status), text, fields.Vendor, decimalPtrToString(fields.VATAmount),
		decimalPtrToString(fields.TotalAmount), fields.Date, time.Now().UTC(),
		id.String(), string(constants.StatusProcessing),
	)
	if err != nil {
		r.logger.Error("failed to finish document", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("%w: finish document: %v", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: document %s is not in %s", common.ErrConflict, id, constants.StatusProcessing)
	}
	return nil
}

func (r *sqliteDocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id.String())
	if err != nil {
		r.logger.Error("failed to delete document", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("%w: delete document: %v", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: document %s", common.ErrNotFound, id)
	}
	return nil
}

func scanSQLiteDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc    entity.Document
		rawID  string
		status string
		vendor *string
		vat    *string
		total  *string
		date   *string
	)
	err := row.Scan(
		&rawID, &doc.Filename, &status, &doc.StorageKey, &doc.StorageURL,
		&doc.SizeBytes, &doc.MimeType, &doc.ExtractedText,
		&vendor, &vat, &total, &date, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse document id %q: %w", rawID, err)
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
