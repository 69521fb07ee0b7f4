package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrWishlistNotFound = errors.New("wishlist entry not found")

// Log levels for wishlist audit records
const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type WishlistRepository struct {
	db *DB
}

func NewWishlistRepository(db *DB) *WishlistRepository {
	return &WishlistRepository{db: db}
}

const wishlistColumns = `id, tmdb_id, media_type, title, original_title, release_date, poster_url,
	overview, genres, rating, status, priority, auto_download, search_keywords, notes,
	added_at, found_at, last_check`

func scanWishlistEntry(scanner interface{ Scan(...any) error }) (*WishlistEntry, error) {
	var e WishlistEntry
	err := scanner.Scan(
		&e.ID, &e.TMDBID, &e.MediaType, &e.Title, &e.OriginalTitle, &e.ReleaseDate, &e.PosterURL,
		&e.Overview, &e.Genres, &e.Rating, &e.Status, &e.Priority, &e.AutoDownload,
		&e.SearchKeywords, &e.Notes, &e.AddedAt, &e.FoundAt, &e.LastCheck,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new wishlist entry. The (tmdb id, media type) pair is
// unique; a duplicate returns a conflict error from the driver.
func (r *WishlistRepository) Create(ctx context.Context, e *WishlistEntry) (*WishlistEntry, error) {
	query := `
		INSERT INTO wishlist_entries
			(tmdb_id, media_type, title, original_title, release_date, poster_url,
			 overview, genres, rating, status, priority, auto_download, search_keywords, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + wishlistColumns

	return scanWishlistEntry(r.db.QueryRowContext(ctx, query,
		e.TMDBID, e.MediaType, e.Title, e.OriginalTitle, e.ReleaseDate, e.PosterURL,
		e.Overview, e.Genres, e.Rating, WishlistStatusWanted, e.Priority, e.AutoDownload,
		e.SearchKeywords, e.Notes,
	))
}

// GetByID retrieves a wishlist entry by its ID
func (r *WishlistRepository) GetByID(ctx context.Context, id int64) (*WishlistEntry, error) {
	query := `SELECT ` + wishlistColumns + ` FROM wishlist_entries WHERE id = $1`

	entry, err := scanWishlistEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWishlistNotFound
		}
		return nil, err
	}
	return entry, nil
}

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	Status    string
	MediaType string
	Priority  int
	SortBy    string // "priority", "added", "title"; default priority
}

// List returns wishlist entries matching the filter
func (r *WishlistRepository) List(ctx context.Context, filter ListFilter) ([]*WishlistEntry, error) {
	var conds []string
	var args []any

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.MediaType != "" {
		args = append(args, filter.MediaType)
		conds = append(conds, fmt.Sprintf("media_type = $%d", len(args)))
	}
	if filter.Priority > 0 {
		args = append(args, filter.Priority)
		conds = append(conds, fmt.Sprintf("priority = $%d", len(args)))
	}

	query := `SELECT ` + wishlistColumns + ` FROM wishlist_entries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	switch filter.SortBy {
	case "added":
		query += " ORDER BY added_at DESC"
	case "title":
		query += " ORDER BY title ASC"
	default:
		query += " ORDER BY priority ASC, added_at ASC"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*WishlistEntry
	for rows.Next() {
		entry, err := scanWishlistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ListWanted returns entries still waiting for a match, highest priority
// first, then oldest first. This is the sweep order.
func (r *WishlistRepository) ListWanted(ctx context.Context) ([]*WishlistEntry, error) {
	return r.List(ctx, ListFilter{Status: WishlistStatusWanted})
}

// UpdateFields applies a partial update. Only priority, auto_download,
// search_keywords, notes and status are user-settable.
type UpdateFields struct {
	Priority       *int
	AutoDownload   *bool
	SearchKeywords *string
	Notes          *string
	Status         *string
}

// Update applies the given fields to an entry
func (r *WishlistRepository) Update(ctx context.Context, id int64, fields UpdateFields) (*WishlistEntry, error) {
	var sets []string
	var args []any

	if fields.Priority != nil {
		args = append(args, *fields.Priority)
		sets = append(sets, fmt.Sprintf("priority = $%d", len(args)))
	}
	if fields.AutoDownload != nil {
		args = append(args, *fields.AutoDownload)
		sets = append(sets, fmt.Sprintf("auto_download = $%d", len(args)))
	}
	if fields.SearchKeywords != nil {
		args = append(args, *fields.SearchKeywords)
		sets = append(sets, fmt.Sprintf("search_keywords = $%d", len(args)))
	}
	if fields.Notes != nil {
		args = append(args, *fields.Notes)
		sets = append(sets, fmt.Sprintf("notes = $%d", len(args)))
	}
	if fields.Status != nil {
		args = append(args, *fields.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE wishlist_entries SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), wishlistColumns)

	entry, err := scanWishlistEntry(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWishlistNotFound
		}
		return nil, err
	}
	return entry, nil
}

// SetStatus moves an entry to the given status
func (r *WishlistRepository) SetStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wishlist_entries SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrWishlistNotFound
	}
	return nil
}

// TouchLastCheck stamps the last sweep time regardless of match outcome
func (r *WishlistRepository) TouchLastCheck(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE wishlist_entries SET last_check = NOW() WHERE id = $1`, id)
	return err
}

// Delete removes an entry; matches and log records cascade
func (r *WishlistRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wishlist_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrWishlistNotFound
	}
	return nil
}

// RecordMatches persists accepted match candidates and transitions the entry
// to found in a single transaction. A failure on any row rolls back the
// whole operation. Re-matching against the same catalog item is a no-op
// thanks to the unique (wishlist, catalog item) constraint.
func (r *WishlistRepository) RecordMatches(ctx context.Context, wishlistID int64, matches []*WishlistMatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertQuery := `
		INSERT INTO wishlist_matches (wishlist_id, catalog_id, catalog_kind, catalog_name, score, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (wishlist_id, catalog_id, catalog_kind) DO NOTHING
	`
	for _, m := range matches {
		if _, err := tx.ExecContext(ctx, insertQuery,
			wishlistID, m.CatalogID, m.CatalogKind, m.CatalogName, m.Score, m.Reason); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE wishlist_entries SET status = $2, found_at = NOW() WHERE id = $1`,
		wishlistID, WishlistStatusFound); err != nil {
		return err
	}

	return tx.Commit()
}

// ListMatches returns the audit trail of matches for an entry, best first
func (r *WishlistRepository) ListMatches(ctx context.Context, wishlistID int64) ([]*WishlistMatch, error) {
	query := `
		SELECT id, wishlist_id, catalog_id, catalog_kind, catalog_name, score, reason, created_at
		FROM wishlist_matches
		WHERE wishlist_id = $1
		ORDER BY score DESC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, wishlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*WishlistMatch
	for rows.Next() {
		var m WishlistMatch
		if err := rows.Scan(&m.ID, &m.WishlistID, &m.CatalogID, &m.CatalogKind,
			&m.CatalogName, &m.Score, &m.Reason, &m.CreatedAt); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}

	return matches, rows.Err()
}

// AppendLog writes an audit record for a wishlist entry. payload may be nil.
func (r *WishlistRepository) AppendLog(ctx context.Context, wishlistID int64, level, message string, payload any) error {
	var payloadJSON []byte
	if payload != nil {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wishlist_log (wishlist_id, level, message, payload) VALUES ($1, $2, $3, $4)`,
		wishlistID, level, message, payloadJSON)
	return err
}

// ListLog returns the audit records for an entry, newest first
func (r *WishlistRepository) ListLog(ctx context.Context, wishlistID int64, limit int) ([]*WishlistLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, wishlist_id, level, message, payload, created_at
		FROM wishlist_log
		WHERE wishlist_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, wishlistID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*WishlistLogEntry
	for rows.Next() {
		var e WishlistLogEntry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.WishlistID, &e.Level, &e.Message, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
