package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// đ/Đ carry a stroke, not a combining mark, so NFD leaves them intact
var strokeReplacer = strings.NewReplacer("đ", "d", "Đ", "D")

// FoldText normalizes free text for accent- and case-insensitive matching:
// "Nước Mắm Đặc Biệt" and "nuoc mam dac biet" fold to the same string.
func FoldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strokeReplacer.Replace(s))
	if err != nil {
		stripped = s
	}
	return strings.TrimSpace(cases.Fold().String(stripped))
}

// SearchKey folds each part and joins them into the stored column that
// folded LIKE queries run against. The separator keeps a query from
// matching across two fields.
func SearchKey(parts ...string) string {
	folded := make([]string, 0, len(parts))
	for _, p := range parts {
		if f := FoldText(p); f != "" {
			folded = append(folded, f)
		}
	}
	return strings.Join(folded, " | ")
}
