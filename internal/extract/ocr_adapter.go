package extract

import (
	"context"

	"github.com/belgededektif/docanalyze/internal/ocr"
)

// OCRAdapter bridges the invoker into the LineReader the extractor expects.
type OCRAdapter struct {
	inv *ocr.Invoker
}

func NewOCRAdapter(inv *ocr.Invoker) *OCRAdapter {
	return &OCRAdapter{inv: inv}
}

func (a *OCRAdapter) ReadLines(ctx context.Context, data []byte, url, contentType string) ([]string, error) {
	return a.inv.Read(ctx, ocr.Input{Bytes: data, URL: url, ContentType: contentType})
}
