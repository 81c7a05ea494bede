package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/belgededektif/docanalyze/constants"
)

type fakeOCR struct {
	lines []string
	err   error
	calls int
}

func (f *fakeOCR) ReadLines(_ context.Context, _ []byte, _, _ string) ([]string, error) {
	f.calls++
	return f.lines, f.err
}

func newExtractor(ocr LineReader) *Extractor {
	return NewExtractor(ocr, zap.NewNop())
}

func TestExtractPlainTextUTF8(t *testing.T) {
	e := newExtractor(&fakeOCR{})
	got, err := e.Extract(context.Background(), Source{
		Bytes:  []byte("Fatura no: 42\nğüşıöç"),
		Format: constants.TXT,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Fatura no: 42\nğüşıöç" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractPlainTextLatin1Fallback(t *testing.T) {
	e := newExtractor(&fakeOCR{})
	// 0xE9 is 'é' in ISO-8859-1 and invalid standalone UTF-8.
	got, err := e.Extract(context.Background(), Source{
		Bytes:  []byte{'c', 'a', 'f', 0xE9},
		Format: constants.TXT,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "café" {
		t.Fatalf("got %q, want café", got)
	}
}

func TestExtractImageDelegatesToOCR(t *testing.T) {
	ocr := &fakeOCR{lines: []string{"MİGROS", "TOPLAM 42,00"}}
	e := newExtractor(ocr)
	got, err := e.Extract(context.Background(), Source{
		Bytes:  []byte{1, 2, 3},
		URL:    "https://blob/doc.png",
		Format: constants.IMAGE,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "MİGROS\nTOPLAM 42,00" {
		t.Fatalf("got %q", got)
	}
	if ocr.calls != 1 {
		t.Fatalf("ocr calls = %d", ocr.calls)
	}
}

func TestExtractImageOCRFailureIsFatal(t *testing.T) {
	wantErr := errors.New("ocr down")
	e := newExtractor(&fakeOCR{err: wantErr})
	_, err := e.Extract(context.Background(), Source{Bytes: []byte{1}, Format: constants.IMAGE})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestExtractEmptyOCRYieldsSentinel(t *testing.T) {
	e := newExtractor(&fakeOCR{lines: nil})
	got, err := e.Extract(context.Background(), Source{Bytes: []byte{1}, Format: constants.IMAGE})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != NoReadableText {
		t.Fatalf("got %q, want sentinel", got)
	}
	if !IsSentinel(got) {
		t.Fatal("sentinel not recognized by IsSentinel")
	}
}

func TestExtractUnrecognizedKindYieldsSentinel(t *testing.T) {
	e := newExtractor(&fakeOCR{})
	got, err := e.Extract(context.Background(), Source{Bytes: []byte{1}, Format: "XLSX"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != UnsupportedKind {
		t.Fatalf("got %q, want unsupported-kind sentinel", got)
	}
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractDOCXParagraphPerLine(t *testing.T) {
	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>ACME Ticaret A.Ş.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Fatura </w:t></w:r><w:r><w:t>No: 7</w:t></w:r></w:p>
    <w:p><w:r><w:t>TOPLAM: 118,00</w:t></w:r></w:p>
  </w:body>
</w:document>`
	e := newExtractor(&fakeOCR{})
	got, err := e.Extract(context.Background(), Source{Bytes: buildDOCX(t, doc), Format: constants.DOCX})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "ACME Ticaret A.Ş.\nFatura No: 7\nTOPLAM: 118,00"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtractDOCXCorruptContainer(t *testing.T) {
	e := newExtractor(&fakeOCR{})
	if _, err := e.Extract(context.Background(), Source{Bytes: []byte("PK\x03\x04garbage"), Format: constants.DOCX}); err == nil {
		t.Fatal("expected error for corrupt docx container")
	}
}

func TestExtractPDFUnreadable(t *testing.T) {
	e := newExtractor(&fakeOCR{})
	if _, err := e.Extract(context.Background(), Source{Bytes: []byte("not a pdf"), Format: constants.PDF}); err == nil {
		t.Fatal("expected error for non-pdf bytes")
	}
}

// textlessPDF builds a valid single-page PDF whose page carries no content
// stream at all, the shape a pure scan produces.
func textlessPDF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	offsets := make([]int, 4)
	obj := func(n int, body string) {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}
	buf.WriteString("%PDF-1.4\n")
	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	xref := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for n := 1; n <= 3; n++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[n])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

func TestExtractPDFWithoutTextLayer(t *testing.T) {
	e := newExtractor(&fakeOCR{})
	got, err := e.Extract(context.Background(), Source{Bytes: textlessPDF(t), Format: constants.PDF})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != NoReadableText {
		t.Fatalf("got %q, want the no-readable-text notice", got)
	}
	if !IsSentinel(got) {
		t.Fatal("notice must be recognized as a sentinel so no fields are derived")
	}
}

func TestDocxParagraphsSkipsNonTextNodes(t *testing.T) {
	doc := `<w:document xmlns:w="x"><w:body>
  <w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:t>Başlık</w:t></w:r></w:p>
  <w:p/>
</w:body></w:document>`
	got, err := docxParagraphs(bytes.NewReader([]byte(doc)))
	if err != nil {
		t.Fatalf("docxParagraphs: %v", err)
	}
	if got != "Başlık\n" {
		t.Fatalf("got %q", got)
	}
}
