package storage

import (
	"path/filepath"
	"strings"
	"time"
)

// PlaceholderName is used when sanitizing leaves nothing of the original filename.
const PlaceholderName = "belge"

// ObjectKey derives a path-stable storage key from the original filename, the
// upload time, and a caller-supplied opaque suffix. The suffix carries the
// uniqueness guarantee: two calls with distinct suffixes never collide, even
// at identical timestamps. Pure function, no hidden state.
func ObjectKey(originalFilename string, ts time.Time, suffix string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	stem := strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename))

	name := SanitizeName(stem)
	if name == "" {
		name = PlaceholderName
	}

	var b strings.Builder
	b.WriteString("doc-")
	b.WriteString(ts.UTC().Format("20060102T150405"))
	b.WriteString("-")
	b.WriteString(suffix)
	b.WriteString("-")
	b.WriteString(name)
	b.WriteString(SanitizeName(ext))
	return b.String()
}

// SanitizeName reduces arbitrary Unicode input to a safe key component:
// ASCII letters, digits, '.', '_' and '-'. Runs of other characters collapse
// to a single '-'. Leading and trailing separators are trimmed so keys stay
// readable.
func SanitizeName(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		case r == '-':
			if !lastDash {
				b.WriteByte('-')
			}
			lastDash = true
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	return out
}
