package taxdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/taxonid/internal/apperr"
	"github.com/starford/taxonid/internal/models"
)

// maxVars keeps IN lists below SQLite's default host parameter limit.
const maxVars = 500

// Lineage returns the root-to-node path of id. Identifiers that were merged
// into another node resolve through the merged table.
func (db *DB) Lineage(ctx context.Context, id models.TaxID) ([]models.TaxID, error) {
	if id <= 0 {
		return nil, fmt.Errorf("taxdb: lineage of %d: %w", id, apperr.ErrNotFound)
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if l, ok := db.cache.lineage(id); ok {
		return slices.Clone(l), nil
	}

	track, err := db.track(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		newID, mergeErr := db.mergedInto(ctx, id)
		switch {
		case mergeErr == nil:
			track, err = db.track(ctx, newID)
		case !errors.Is(mergeErr, sql.ErrNoRows):
			return nil, mergeErr
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("taxdb: lineage of %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taxdb: lineage of %d: %w", id, err)
	}

	lineage, err := parseTrack(track)
	if err != nil {
		return nil, fmt.Errorf("taxdb: lineage of %d: %w", id, err)
	}
	db.cache.putLineage(id, lineage)
	return slices.Clone(lineage), nil
}

func (db *DB) track(ctx context.Context, id models.TaxID) (string, error) {
	var track sql.NullString
	err := db.sql().QueryRowContext(ctx, `SELECT track FROM species WHERE taxid = ?`, id).Scan(&track)
	if err != nil {
		return "", err
	}
	return track.String, nil
}

func (db *DB) mergedInto(ctx context.Context, id models.TaxID) (models.TaxID, error) {
	var newID models.TaxID
	err := db.sql().QueryRowContext(ctx, `SELECT taxid_new FROM merged WHERE taxid_old = ?`, id).Scan(&newID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("taxdb: merged lookup of %d: %w", id, err)
	}
	return newID, err
}

// parseTrack turns a node-to-root "a,b,c" track into a root-to-node lineage.
func parseTrack(track string) ([]models.TaxID, error) {
	if track == "" {
		return nil, apperr.ErrNotFound
	}
	parts := strings.Split(track, ",")
	out := make([]models.TaxID, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad track entry %q: %w", p, err)
		}
		out = append(out, models.TaxID(n))
	}
	slices.Reverse(out)
	return out, nil
}

// Rank returns the raw rank label of id.
func (db *DB) Rank(ctx context.Context, id models.TaxID) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if e, ok := db.cache.rank(id); ok {
		if !e.found {
			return "", fmt.Errorf("taxdb: rank of %d: %w", id, apperr.ErrNotFound)
		}
		return e.rank, nil
	}

	var rank sql.NullString
	err := db.sql().QueryRowContext(ctx, `SELECT rank FROM species WHERE taxid = ?`, id).Scan(&rank)
	if errors.Is(err, sql.ErrNoRows) {
		db.cache.putRank(id, rankEntry{})
		return "", fmt.Errorf("taxdb: rank of %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("taxdb: rank of %d: %w", id, err)
	}
	db.cache.putRank(id, rankEntry{rank: rank.String, found: true})
	return rank.String, nil
}

// TranslateName returns the taxids whose scientific name matches name,
// ignoring case. Names with no species row fall back to the synonym table.
func (db *DB) TranslateName(ctx context.Context, name string) ([]models.TaxID, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ids, err := db.queryIDs(ctx, `SELECT taxid FROM species WHERE spname = ? ORDER BY taxid`, name)
	if err != nil {
		return nil, fmt.Errorf("taxdb: translate name %q: %w", name, err)
	}
	if len(ids) > 0 {
		return ids, nil
	}
	ids, err = db.queryIDs(ctx, `SELECT taxid FROM synonym WHERE spname = ? ORDER BY taxid`, name)
	if err != nil {
		return nil, fmt.Errorf("taxdb: translate synonym %q: %w", name, err)
	}
	return ids, nil
}

func (db *DB) queryIDs(ctx context.Context, query string, args ...any) ([]models.TaxID, error) {
	rows, err := db.sql().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TaxID
	for rows.Next() {
		var id models.TaxID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// TranslateIDs returns the scientific name of each id. Merged ids are labelled
// with the name of the node they were merged into; unknown ids are omitted.
func (db *DB) TranslateIDs(ctx context.Context, ids []models.TaxID) (map[models.TaxID]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out, err := db.names(ctx, `SELECT taxid, spname FROM species WHERE taxid IN (%s)`, ids)
	if err != nil {
		return nil, fmt.Errorf("taxdb: translate ids: %w", err)
	}

	var missing []models.TaxID
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	merged, err := db.names(ctx, `
		SELECT m.taxid_old, s.spname
		FROM merged m JOIN species s ON s.taxid = m.taxid_new
		WHERE m.taxid_old IN (%s)`, missing)
	if err != nil {
		return nil, fmt.Errorf("taxdb: translate merged ids: %w", err)
	}
	for id, name := range merged {
		out[id] = name
	}
	return out, nil
}

// names runs query once per chunk of ids; query must contain a single %s for
// the placeholder list and select (taxid, name).
func (db *DB) names(ctx context.Context, query string, ids []models.TaxID) (map[models.TaxID]string, error) {
	out := make(map[models.TaxID]string, len(ids))
	for chunk := range slices.Chunk(ids, maxVars) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := db.sql().QueryContext(ctx, fmt.Sprintf(query, placeholders), args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var (
				id   models.TaxID
				name sql.NullString
			)
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return nil, err
			}
			out[id] = name.String
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Count returns the number of taxa in the database.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var n int
	if err := db.sql().QueryRowContext(ctx, `SELECT count(*) FROM species`).Scan(&n); err != nil {
		return 0, fmt.Errorf("taxdb: count: %w", err)
	}
	return n, nil
}
