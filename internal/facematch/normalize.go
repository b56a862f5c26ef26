package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips combining marks ("Jiří" -> "jiri").
func fold(s string) string {
	// Chained transformers keep state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Slug turns an identity name into a lowercase ASCII token usable in
// artifact file names ("Jiří Novák" -> "jiri_novak"). Runs of anything other
// than letters and digits collapse to one underscore. A name with nothing
// usable left becomes "unknown".
func Slug(name string) string {
	parts := strings.FieldsFunc(fold(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "_")
}
