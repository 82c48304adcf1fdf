package activitystore

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify derives a URL-safe slug from a title: accents are stripped, letters lower-cased,
// and every run of other characters collapses into a single hyphen.
func Slugify(title string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	plain, _, err := transform.String(stripAccents, title)
	if err != nil {
		plain = title
	}

	var b strings.Builder
	pendingHyphen := false

	for _, r := range strings.ToLower(plain) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}

			b.WriteRune(r)
			pendingHyphen = false

			continue
		}

		pendingHyphen = true
	}

	return b.String()
}
