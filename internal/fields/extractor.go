package fields

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/belgededektif/docanalyze/internal/entity"
	"github.com/belgededektif/docanalyze/internal/extract"
)

// DefaultBoilerplateTokens mark letterhead lines that must never be taken as
// the vendor name: state headers, ministries, tax offices, address parts.
// Matching is case-insensitive on the uppercased line. Configurable data,
// not logic; override via Config.
var DefaultBoilerplateTokens = []string{
	"T.C.",
	"TÜRKİYE CUMHURİYETİ",
	"BAKANLIĞI",
	"BAKANLIK",
	"MÜDÜRLÜĞÜ",
	"VALİLİĞİ",
	"BELEDİYESİ",
	"VERGİ DAİRESİ",
	"VERGİ NO",
	"MERSİS",
	"MAH.",
	"MAHALLESİ",
	"CAD.",
	"CADDESİ",
	"SOK.",
	"SOKAK",
	"BULVARI",
	"NO:",
	"TEL:",
	"TELEFON",
	"FAKS",
	"ADRES",
}

// grandTotalMarkers outrank totalMarkers; VAT lines accumulate.
var (
	grandTotalMarkers = []string{"GENEL TOPLAM", "GRAND TOTAL"}
	totalMarkers      = []string{"TOPLAM", "TOTAL", "TUTAR"}
	vatMarkers        = []string{"KDV", "K.D.V", "VAT"}
)

var (
	numberRe   = regexp.MustCompile(`\d+(?:[.,]\d+)*`)
	dateRe     = regexp.MustCompile(`\b\d{2}[./-]\d{2}[./-]\d{4}\b`)
	digitRunRe = regexp.MustCompile(`\d{6,}`)
)

// Config for the heuristic extractor.
type Config struct {
	BoilerplateTokens []string // empty -> DefaultBoilerplateTokens
}

type Extractor struct {
	boilerplate []string
}

func NewExtractor(cfg Config) *Extractor {
	tokens := cfg.BoilerplateTokens
	if len(tokens) == 0 {
		tokens = DefaultBoilerplateTokens
	}
	upper := make([]string, len(tokens))
	for i, t := range tokens {
		upper[i] = strings.ToUpper(t)
	}
	return &Extractor{boilerplate: upper}
}

// Extract scans normalized text line by line and infers vendor, VAT amount,
// total amount and date. Every sub-extraction is independent; a field that
// cannot be derived stays nil. Malformed input never raises.
func (e *Extractor) Extract(text string) entity.InvoiceFields {
	if extract.IsSentinel(text) || strings.TrimSpace(text) == "" {
		return entity.InvoiceFields{}
	}

	lines := strings.Split(text, "\n")

	return entity.InvoiceFields{
		Vendor:      e.vendor(lines),
		VATAmount:   e.vatAmount(lines),
		TotalAmount: e.totalAmount(lines),
		Date:        e.date(text),
	}
}

// vendor picks the first plausible organization line: non-empty, not
// boilerplate, not dominated by digits. A very short candidate (at most two
// tokens) immediately followed by a boilerplate line is treated as letterhead
// decoration and skipped.
func (e *Extractor) vendor(lines []string) *string {
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if e.isBoilerplate(line) || digitDominated(line) {
			continue
		}
		if len(strings.Fields(line)) <= 2 && i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next != "" && e.isBoilerplate(next) {
				continue
			}
		}
		return &line
	}
	return nil
}

// totalAmount prefers grand-total lines over generic total lines; within the
// chosen marker class the last matching line wins (later totals override
// earlier subtotals), and within that line the last numeric token is the
// amount.
func (e *Extractor) totalAmount(lines []string) *decimal.Decimal {
	if amt := lastMarkedAmount(lines, grandTotalMarkers); amt != nil {
		return amt
	}
	return lastMarkedAmount(lines, totalMarkers)
}

func lastMarkedAmount(lines []string, markers []string) *decimal.Decimal {
	var out *decimal.Decimal
	for _, raw := range lines {
		upper := strings.ToUpper(strings.TrimSpace(raw))
		if !containsAny(upper, markers) {
			continue
		}
		if amt := lastAmountIn(raw); amt != nil {
			out = amt
		}
	}
	return out
}

// vatAmount sums the last numeric token of every VAT-marked line; invoices
// commonly list one VAT line per rate bracket. Accumulation is deliberate
// and applies to VAT only.
func (e *Extractor) vatAmount(lines []string) *decimal.Decimal {
	var (
		sum   decimal.Decimal
		found bool
	)
	for _, raw := range lines {
		upper := strings.ToUpper(strings.TrimSpace(raw))
		if !containsAny(upper, vatMarkers) {
			continue
		}
		if amt := lastAmountIn(raw); amt != nil {
			sum = sum.Add(*amt)
			found = true
		}
	}
	if !found {
		return nil
	}
	return &sum
}

// date returns the first dd<sep>mm<sep>yyyy shaped token as a raw string.
// No calendar validation.
func (e *Extractor) date(text string) *string {
	if m := dateRe.FindString(text); m != "" {
		return &m
	}
	return nil
}

func (e *Extractor) isBoilerplate(line string) bool {
	upper := strings.ToUpper(line)
	return containsAny(upper, e.boilerplate)
}

func containsAny(upper string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// digitDominated flags lines that are mostly numbers (tax ids, phone
// numbers, barcodes) rather than a name.
func digitDominated(line string) bool {
	if digitRunRe.MatchString(line) {
		return true
	}
	digits, letters := 0, 0
	for _, r := range line {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r != ' ' && r != '\t':
			letters++
		}
	}
	return digits > 0 && digits >= letters
}

// lastAmountIn parses the last numeric token of a line, tolerating both
// thousand-separator conventions: "1.234,56" and "1,234.56" both come out as
// 1234.56; a lone comma is a decimal separator. An unparseable token leaves
// the field absent.
func lastAmountIn(line string) *decimal.Decimal {
	tokens := numberRe.FindAllString(line, -1)
	if len(tokens) == 0 {
		return nil
	}
	return parseAmount(tokens[len(tokens)-1])
}

func parseAmount(tok string) *decimal.Decimal {
	hasDot := strings.Contains(tok, ".")
	hasComma := strings.Contains(tok, ",")

	switch {
	case hasDot && hasComma:
		// "." thousands, "," decimal
		tok = strings.ReplaceAll(tok, ".", "")
		tok = strings.ReplaceAll(tok, ",", ".")
	case hasComma:
		tok = strings.ReplaceAll(tok, ",", ".")
	case strings.Count(tok, ".") > 1:
		// "1.234.567" — dots can only be thousands separators
		tok = strings.ReplaceAll(tok, ".", "")
	}

	d, err := decimal.NewFromString(tok)
	if err != nil {
		return nil
	}
	return &d
}
