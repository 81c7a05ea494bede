package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/belgededektif/docanalyze/constants"
)

// Extractor dispatches on the document format to the right strategy and
// yields a single normalized text blob.
type Extractor struct {
	ocr    LineReader
	logger *zap.Logger
}

func NewExtractor(ocr LineReader, logger *zap.Logger) *Extractor {
	return &Extractor{ocr: ocr, logger: logger}
}

// Extract returns the document's text. Empty extraction output is mapped to
// the NoReadableText sentinel; an unrecognized format yields the
// UnsupportedKind sentinel instead of an error so the caller can persist a
// diagnosable record. Only genuine extraction faults (OCR outage, broken
// container) return an error.
func (e *Extractor) Extract(ctx context.Context, src Source) (string, error) {
	start := time.Now()

	var (
		text string
		err  error
	)
	switch src.Format {
	case constants.TXT:
		text = decodeText(src.Bytes)
	case constants.PDF:
		text, err = extractPDF(src.Bytes)
	case constants.DOCX:
		text, err = extractDOCX(src.Bytes)
	case constants.IMAGE:
		var lines []string
		lines, err = e.ocr.ReadLines(ctx, src.Bytes, src.URL, src.ContentType)
		text = strings.Join(lines, "\n")
	default:
		e.logger.Warn("extract.unrecognized_kind", zap.String("format", src.Format))
		return UnsupportedKind, nil
	}
	if err != nil {
		return "", err
	}

	e.logger.Debug("extract.ok",
		zap.String("format", src.Format),
		zap.Int("chars", len(text)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	if strings.TrimSpace(text) == "" {
		return NoReadableText, nil
	}
	return text, nil
}

// decodeText decodes as UTF-8 and falls back to ISO-8859-1 for legacy
// payloads. Latin-1 decoding cannot fail, so the worst case is a lossy
// string, never an error.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

// extractPDF pulls the embedded text layer page by page. Pages without a
// text layer contribute an empty segment; only an unreadable container is
// an error.
func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, txt)
	}
	return strings.Join(pages, "\n"), nil
}

// extractDOCX reads word/document.xml from the OpenXML container and emits
// paragraph text in document order, one paragraph per line.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx container: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docx container: word/document.xml missing")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("docx container: open document.xml: %w", err)
	}
	defer rc.Close()

	return docxParagraphs(rc)
}

// docxParagraphs walks the WordprocessingML stream collecting <w:t> runs and
// closing a line on each </w:p>.
func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out    strings.Builder
		para   strings.Builder
		inText bool
	)
	flush := func() {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(para.String())
		para.Reset()
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("docx xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(el)
			}
		}
	}
	if para.Len() > 0 {
		flush()
	}
	return out.String(), nil
}
