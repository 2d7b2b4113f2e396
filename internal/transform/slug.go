package transform

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 80

// stripDiacritics decomposes accented characters and drops the combining
// marks, so "ótima" becomes "otima".
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify builds a URL-safe slug: lowercase, diacritics stripped, runs of
// non-alphanumerics collapsed to single hyphens, trimmed, length-capped.
func Slugify(s string) string {
	s = strings.ToLower(s)
	if stripped, _, err := transform.String(stripDiacritics, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := true // suppress a leading hyphen
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")

	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
		slug = strings.TrimRight(slug, "-")
	}
	return slug
}
