package extract

import "context"

// Sentinel messages persisted in place of extracted text. Downstream field
// extraction treats both as empty input. User-facing, hence Turkish.
const (
	NoReadableText  = "Bu belgede okunabilir metin bulunamadı."
	UnsupportedKind = "Bu dosya türü metin çıkarma için desteklenmiyor."
)

// IsSentinel reports whether text is one of the fixed sentinel messages
// rather than real document content.
func IsSentinel(text string) bool {
	return text == NoReadableText || text == UnsupportedKind
}

// Source identifies the bytes to extract from. URL, when set, points at the
// stored copy of the same bytes and enables URL-based OCR call shapes.
type Source struct {
	Bytes       []byte
	URL         string
	ContentType string
	Format      string // constants.PDF | IMAGE | DOCX | TXT
}

// TextExtractor turns a document of a known kind into one normalized text blob.
type TextExtractor interface {
	Extract(ctx context.Context, src Source) (string, error)
}

// LineReader is the OCR capability the image path delegates to.
type LineReader interface {
	ReadLines(ctx context.Context, data []byte, url, contentType string) ([]string, error)
}
