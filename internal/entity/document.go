package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/belgededektif/docanalyze/constants"
)

// InvoiceFields are the structured attributes derived from a document's text.
// A nil field means "not detected", never zero.
type InvoiceFields struct {
	Vendor      *string          `json:"vendor,omitempty"`
	VATAmount   *decimal.Decimal `json:"vat_amount,omitempty"`
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`
	Date        *string          `json:"date,omitempty"` // raw dd<sep>mm<sep>yyyy token
}

// Document represents one ingested document for data transfer between layers.
type Document struct {
	ID            uuid.UUID                `json:"id"`
	Filename      string                   `json:"filename"`
	Status        constants.DocumentStatus `json:"status"`
	StorageKey    string                   `json:"storage_key"`
	StorageURL    string                   `json:"storage_url"`
	SizeBytes     int64                    `json:"size_bytes"`
	MimeType      string                   `json:"mime_type"`
	ExtractedText string                   `json:"extracted_text,omitempty"`
	Fields        InvoiceFields            `json:"fields"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}
