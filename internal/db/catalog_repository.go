package db

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
)

var ErrCatalogItemNotFound = errors.New("catalog item not found")

type CatalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const catalogColumns = `id, provider_id, name, kind, tmdb_id, release_date, container_ext, added_at`

func scanCatalogItem(scanner interface{ Scan(...any) error }) (*CatalogItem, error) {
	var c CatalogItem
	err := scanner.Scan(
		&c.ID, &c.ProviderID, &c.Name, &c.Kind, &c.TMDBID,
		&c.ReleaseDate, &c.ContainerExt, &c.AddedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var punctuationRe = regexp.MustCompile(`[^\w\s]`)

// Search finds catalog items of the given kind whose name matches the term.
// Three case-insensitive substring variants are tried: the raw term, the
// term with punctuation stripped, and the first word alone.
func (r *CatalogRepository) Search(ctx context.Context, term, kind string) ([]*CatalogItem, error) {
	stripped := strings.TrimSpace(punctuationRe.ReplaceAllString(term, ""))
	firstWord := term
	if fields := strings.Fields(term); len(fields) > 0 {
		firstWord = fields[0]
	}

	query := `
		SELECT ` + catalogColumns + `
		FROM catalog_items
		WHERE kind = $1
		  AND (name ILIKE $2 OR name ILIKE $3 OR name ILIKE $4)
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, kind,
		"%"+term+"%", "%"+stripped+"%", "%"+firstWord+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*CatalogItem
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// GetByProviderID retrieves a catalog item by its provider id and kind
func (r *CatalogRepository) GetByProviderID(ctx context.Context, providerID int64, kind string) (*CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM catalog_items WHERE provider_id = $1 AND kind = $2`

	item, err := scanCatalogItem(r.db.QueryRowContext(ctx, query, providerID, kind))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCatalogItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// Upsert inserts or refreshes a mirrored catalog row. The catalog mirror
// sync calls this once per provider item.
func (r *CatalogRepository) Upsert(ctx context.Context, item *CatalogItem) error {
	query := `
		INSERT INTO catalog_items (provider_id, name, kind, tmdb_id, release_date, container_ext)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_id, kind) DO UPDATE
		SET name = EXCLUDED.name,
			tmdb_id = EXCLUDED.tmdb_id,
			release_date = EXCLUDED.release_date,
			container_ext = EXCLUDED.container_ext
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ProviderID, item.Name, item.Kind, item.TMDBID, item.ReleaseDate, item.ContainerExt)
	return err
}
