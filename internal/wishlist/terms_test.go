package wishlist

import (
	"database/sql"
	"reflect"
	"testing"

	"github.com/streamvault/backend/internal/db"
)

func TestSearchTerms(t *testing.T) {
	tests := []struct {
		name     string
		entry    *db.WishlistEntry
		expected []string
	}{
		{
			name:     "title only",
			entry:    &db.WishlistEntry{Title: "Dune"},
			expected: []string{"Dune"},
		},
		{
			name: "trailing year stripped as extra term",
			entry: &db.WishlistEntry{
				Title: "Dune (2021)",
			},
			expected: []string{"Dune (2021)", "Dune"},
		},
		{
			name: "original title when it differs",
			entry: &db.WishlistEntry{
				Title:         "The Intouchables",
				OriginalTitle: sql.NullString{String: "Intouchables", Valid: true},
			},
			expected: []string{"The Intouchables", "Intouchables"},
		},
		{
			name: "original title identical is dropped",
			entry: &db.WishlistEntry{
				Title:         "Dune",
				OriginalTitle: sql.NullString{String: "dune", Valid: true},
			},
			expected: []string{"Dune"},
		},
		{
			name: "user keywords appended",
			entry: &db.WishlistEntry{
				Title:          "Dune",
				SearchKeywords: sql.NullString{String: "dune part one, dune 2021", Valid: true},
			},
			expected: []string{"Dune", "dune part one", "dune 2021"},
		},
		{
			name: "short keywords dropped",
			entry: &db.WishlistEntry{
				Title:          "Dune",
				SearchKeywords: sql.NullString{String: "ab, , du", Valid: true},
			},
			expected: []string{"Dune"},
		},
		{
			name: "duplicate keywords deduplicated case insensitively",
			entry: &db.WishlistEntry{
				Title:          "Dune",
				SearchKeywords: sql.NullString{String: "DUNE, Dune", Valid: true},
			},
			expected: []string{"Dune"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := SearchTerms(tt.entry)
			if !reflect.DeepEqual(terms, tt.expected) {
				t.Errorf("SearchTerms() = %v, want %v", terms, tt.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Dune", "dune"},
		{"Amélie", "amelie"},
		{"Léon: The Professional", "leon: the professional"},
		{"already lower", "already lower"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := normalize(tt.input)
			if result != tt.expected {
				t.Errorf("normalize(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
