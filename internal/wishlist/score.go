package wishlist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/streamvault/backend/internal/db"
)

const (
	// Minimum score for a candidate to be accepted
	acceptThreshold = 0.6

	// Candidates kept per entry after scoring
	maxCandidates = 5

	scoreExact    = 1.0
	scorePrefix   = 0.9
	scoreContains = 0.7
	overlapWeight = 0.6

	bonusMetadataID  = 0.5
	bonusReleaseYear = 0.2
)

// Candidate is a scored catalog item
type Candidate struct {
	Item   *db.CatalogItem
	Score  float64
	Reason string
}

// CalculateMatchScore scores how well a catalog item name satisfies a
// wishlist entry for one search term. The result is clamped to [0,1].
func CalculateMatchScore(term string, entry *db.WishlistEntry, item *db.CatalogItem) (float64, string) {
	name := normalize(item.Name)
	termNorm := normalize(term)
	titleNorm := normalize(entry.Title)

	var score float64
	var reason string

	switch {
	case name == termNorm || name == titleNorm:
		score = scoreExact
		reason = "exact name match"
	case strings.HasPrefix(name, termNorm) || strings.HasPrefix(name, titleNorm):
		score = scorePrefix
		reason = "name starts with title"
	case strings.Contains(name, termNorm) || strings.Contains(name, titleNorm):
		score = scoreContains
		reason = "name contains title"
	default:
		ratio := tokenOverlap(termNorm, name)
		score = ratio * overlapWeight
		reason = fmt.Sprintf("word overlap %.0f%%", ratio*100)
	}

	if item.TMDBID.Valid && item.TMDBID.Int64 == entry.TMDBID {
		score += bonusMetadataID
		reason += ", same metadata id"
	}

	if year := entry.ReleaseYear(); year != "" && strings.Contains(name, year) {
		score += bonusReleaseYear
		reason += ", release year present"
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}

	return score, reason
}

// tokenOverlap returns the fraction of term words that match some word of
// the catalog name, where matching means either string contains the other.
func tokenOverlap(term, name string) float64 {
	termWords := strings.Fields(term)
	if len(termWords) == 0 {
		return 0
	}
	nameWords := strings.Fields(name)

	matched := 0
	for _, tw := range termWords {
		for _, nw := range nameWords {
			if strings.Contains(nw, tw) || strings.Contains(tw, nw) {
				matched++
				break
			}
		}
	}

	return float64(matched) / float64(len(termWords))
}

// selectCandidates filters scored candidates to those above the acceptance
// threshold, deduplicates by catalog item keeping the best score, sorts
// them best first and caps the list.
func selectCandidates(candidates []Candidate) []Candidate {
	type itemKey struct {
		providerID int64
		kind       string
	}

	best := make(map[itemKey]Candidate)
	var order []itemKey

	for _, c := range candidates {
		if c.Score <= acceptThreshold {
			continue
		}
		key := itemKey{c.Item.ProviderID, c.Item.Kind}
		if existing, ok := best[key]; ok {
			if c.Score > existing.Score {
				best[key] = c
			}
			continue
		}
		best[key] = c
		order = append(order, key)
	}

	selected := make([]Candidate, 0, len(order))
	for _, key := range order {
		selected = append(selected, best[key])
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Score > selected[j].Score
	})

	if len(selected) > maxCandidates {
		selected = selected[:maxCandidates]
	}

	return selected
}
