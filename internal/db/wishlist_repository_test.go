package db

import (
	"context"
	"os"
	"testing"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()

	env := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	database, err := New(
		env("DB_HOST", "localhost"),
		env("DB_PORT", "5432"),
		env("DB_USER", "streamvault"),
		env("DB_PASSWORD", "streamvault_dev_password"),
		env("DB_NAME", "streamvault"),
	)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}

	if err := database.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return database
}

func createTestEntry(t *testing.T, repo *WishlistRepository, tmdbID int64, title string) *WishlistEntry {
	t.Helper()
	ctx := context.Background()

	// Clean up leftovers from an interrupted previous run
	repo.db.Exec(`DELETE FROM wishlist_entries WHERE tmdb_id = $1 AND media_type = $2`, tmdbID, MediaTypeMovie)

	entry, err := repo.Create(ctx, &WishlistEntry{
		TMDBID:    tmdbID,
		MediaType: MediaTypeMovie,
		Title:     title,
		Priority:  1,
	})
	if err != nil {
		t.Fatalf("Failed to create wishlist entry: %v", err)
	}
	t.Cleanup(func() { repo.Delete(context.Background(), entry.ID) })
	return entry
}

func TestWishlistRepository_RecordMatchesTwiceKeepsOneRow(t *testing.T) {
	database := getTestDB(t)
	defer database.Close()

	repo := NewWishlistRepository(database)
	ctx := context.Background()
	entry := createTestEntry(t, repo, 438631, "Dune")

	match := &WishlistMatch{
		CatalogID:   9001,
		CatalogKind: CatalogKindMovie,
		CatalogName: "Dune",
		Score:       1.0,
		Reason:      "exact title match",
	}
	if err := repo.RecordMatches(ctx, entry.ID, []*WishlistMatch{match}); err != nil {
		t.Fatalf("Failed to record matches: %v", err)
	}

	// Re-matching the same catalog item, even with a different score, must
	// leave the original row untouched.
	rematch := &WishlistMatch{
		CatalogID:   9001,
		CatalogKind: CatalogKindMovie,
		CatalogName: "Dune",
		Score:       0.9,
		Reason:      "title starts with search term",
	}
	if err := repo.RecordMatches(ctx, entry.ID, []*WishlistMatch{rematch}); err != nil {
		t.Fatalf("Failed to re-record matches: %v", err)
	}

	matches, err := repo.ListMatches(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Failed to list matches: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected exactly one match row, got %d", len(matches))
	}
	if matches[0].Score != 1.0 {
		t.Errorf("Expected original score 1.0 kept, got %v", matches[0].Score)
	}

	stored, err := repo.GetByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Failed to load entry: %v", err)
	}
	if stored.Status != WishlistStatusFound {
		t.Errorf("Expected status found, got %s", stored.Status)
	}
	if stored.FoundAt == nil {
		t.Error("Expected found_at stamped")
	}
}

func TestWishlistRepository_CreateDuplicateIsUniqueViolation(t *testing.T) {
	database := getTestDB(t)
	defer database.Close()

	repo := NewWishlistRepository(database)
	ctx := context.Background()
	createTestEntry(t, repo, 27205, "Inception")

	_, err := repo.Create(ctx, &WishlistEntry{
		TMDBID:    27205,
		MediaType: MediaTypeMovie,
		Title:     "Inception",
		Priority:  1,
	})
	if err == nil {
		t.Fatal("Expected duplicate create to fail")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("Expected a unique violation, got %v", err)
	}
}

func TestWishlistRepository_RecordMatchesDistinctCatalogItems(t *testing.T) {
	database := getTestDB(t)
	defer database.Close()

	repo := NewWishlistRepository(database)
	ctx := context.Background()
	entry := createTestEntry(t, repo, 693134, "Dune Part Two")

	matches := []*WishlistMatch{
		{CatalogID: 9002, CatalogKind: CatalogKindMovie, CatalogName: "Dune Part Two", Score: 1.0, Reason: "exact title match"},
		{CatalogID: 9003, CatalogKind: CatalogKindMovie, CatalogName: "Dune Part Two 4K", Score: 0.9, Reason: "title starts with search term"},
	}
	if err := repo.RecordMatches(ctx, entry.ID, matches); err != nil {
		t.Fatalf("Failed to record matches: %v", err)
	}

	stored, err := repo.ListMatches(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Failed to list matches: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected two match rows for distinct catalog items, got %d", len(stored))
	}
	if stored[0].Score < stored[1].Score {
		t.Error("Expected matches ordered best first")
	}
}
