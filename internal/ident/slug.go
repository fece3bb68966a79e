package ident

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 60

// asciiFold strips diacritics: decompose, drop combining marks, recompose.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug converts a title into a lowercase ASCII filename slug: diacritics
// folded, every other non-alphanumeric run collapsed to a single dash,
// truncated to 60 characters.
func Slug(title string) string {
	folded, _, err := transform.String(asciiFold, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}

	s := b.String()
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	return s
}

// Stem builds an artifact filename stem. The identifier always leads so the
// owning key can be recovered from the name alone.
func Stem(identifier, title string) string {
	slug := Slug(title)
	if slug == "" {
		return identifier
	}
	return identifier + "_" + slug
}

// CandidateFromStem extracts the identifier candidate implied by an existing
// artifact's filename stem: the portion before the first underscore.
func CandidateFromStem(stem string) string {
	if i := strings.IndexByte(stem, '_'); i >= 0 {
		return stem[:i]
	}
	return stem
}
