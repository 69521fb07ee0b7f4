package wishlist

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/streamvault/backend/internal/db"
)

// Terms shorter than this carry too little signal to search with
const minTermLength = 3

var trailingYearRe = regexp.MustCompile(`\s*\(\d{4}\)\s*$`)

// SearchTerms builds the set of catalog search terms for a wishlist entry:
// the primary title, the original title when it differs, the title with a
// trailing parenthesized year stripped when that changes it, and any
// comma-separated user keywords. Order is stable; duplicates and terms
// under three characters are dropped.
func SearchTerms(entry *db.WishlistEntry) []string {
	var terms []string
	seen := make(map[string]bool)

	add := func(term string) {
		term = strings.TrimSpace(term)
		if len(term) < minTermLength {
			return
		}
		key := strings.ToLower(term)
		if seen[key] {
			return
		}
		seen[key] = true
		terms = append(terms, term)
	}

	add(entry.Title)

	if entry.OriginalTitle.Valid && !strings.EqualFold(entry.OriginalTitle.String, entry.Title) {
		add(entry.OriginalTitle.String)
	}

	if stripped := trailingYearRe.ReplaceAllString(entry.Title, ""); stripped != entry.Title {
		add(stripped)
	}

	if entry.SearchKeywords.Valid {
		for _, kw := range strings.Split(entry.SearchKeywords.String, ",") {
			add(kw)
		}
	}

	return terms
}

// normalize lowercases a string and folds diacritics so "Amélie" and
// "amelie" compare equal.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}
