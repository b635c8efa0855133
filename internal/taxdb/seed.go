package taxdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/taxonid/internal/models"
)

// Seed loads a small tree into the database within a transaction, deriving
// each node's track from its parent links. A node whose parent is itself or
// absent from nodes is treated as a root. merged maps retired taxids to
// their replacements.
func (db *DB) Seed(ctx context.Context, nodes []models.Node, merged map[models.TaxID]models.TaxID) error {
	byID := make(map[models.TaxID]models.Node, len(nodes))
	for _, n := range nodes {
		byID[n.TaxID] = n
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	tx, err := db.sql().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("taxdb: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	species, err := tx.PrepareContext(ctx, `
		INSERT INTO species (taxid, parent, spname, rank, track)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(taxid) DO UPDATE SET
			parent = excluded.parent,
			spname = excluded.spname,
			rank   = excluded.rank,
			track  = excluded.track
	`)
	if err != nil {
		return fmt.Errorf("taxdb: prepare species insert: %w", err)
	}
	defer species.Close()

	synonym, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO synonym (taxid, spname) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("taxdb: prepare synonym insert: %w", err)
	}
	defer synonym.Close()

	for _, n := range nodes {
		track, err := trackOf(n.TaxID, byID)
		if err != nil {
			return err
		}
		if _, err := species.ExecContext(ctx, n.TaxID, n.Parent, n.Name, n.Rank, track); err != nil {
			return fmt.Errorf("taxdb: insert taxid %d: %w", n.TaxID, err)
		}
		for _, syn := range n.Synonyms {
			if _, err := synonym.ExecContext(ctx, n.TaxID, syn); err != nil {
				return fmt.Errorf("taxdb: insert synonym %q: %w", syn, err)
			}
		}
	}

	for oldID, newID := range merged {
		if _, err := tx.ExecContext(ctx, `INSERT INTO merged (taxid_old, taxid_new) VALUES (?, ?)`, oldID, newID); err != nil {
			return fmt.Errorf("taxdb: insert merged %d: %w", oldID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("taxdb: commit seed: %w", err)
	}
	db.Invalidate()
	return nil
}

// trackOf walks parent links from id to the root and renders the
// comma-separated node-to-root track.
func trackOf(id models.TaxID, byID map[models.TaxID]models.Node) (string, error) {
	var parts []string
	seen := make(map[models.TaxID]struct{})
	for {
		if _, loop := seen[id]; loop {
			return "", fmt.Errorf("taxdb: parent cycle at taxid %d", id)
		}
		seen[id] = struct{}{}
		parts = append(parts, strconv.FormatInt(int64(id), 10))

		n, ok := byID[id]
		if !ok || n.Parent == n.TaxID {
			break
		}
		if _, ok := byID[n.Parent]; !ok {
			break
		}
		id = n.Parent
	}
	return strings.Join(parts, ","), nil
}
