// Package taxonomy resolves prokaryotic taxon names to identifiers and derives
// ranks and ancestor chains from a Taxonomy Store.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/taxonid/internal/apperr"
	"github.com/starford/taxonid/internal/models"
)

// Store is the read-only view of the taxonomy tree the Resolver depends on.
// Lookups of unknown identifiers return an error wrapping apperr.ErrNotFound.
type Store interface {
	// Lineage returns the root-to-node path of id.
	Lineage(ctx context.Context, id models.TaxID) ([]models.TaxID, error)
	// Rank returns the raw rank label of id.
	Rank(ctx context.Context, id models.TaxID) (string, error)
	// TranslateName returns every identifier carrying name. The result may be empty.
	TranslateName(ctx context.Context, name string) ([]models.TaxID, error)
	// TranslateIDs returns display labels keyed by id. Unknown ids are omitted.
	TranslateIDs(ctx context.Context, ids []models.TaxID) (map[models.TaxID]string, error)
}

// Resolver answers taxonomy questions against a Store. It holds no mutable
// state, so it is safe for concurrent use whenever the Store is.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// New creates a Resolver. A nil logger falls back to slog.Default().
func New(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// IsProkaryote reports whether id sits under Bacteria or Archaea.
// An id without lineage is an error wrapping apperr.ErrNotFound.
func (r *Resolver) IsProkaryote(ctx context.Context, id models.TaxID) (bool, error) {
	lineage, err := r.store.Lineage(ctx, id)
	if err != nil {
		return false, fmt.Errorf("taxonomy: lineage of %d: %w", id, err)
	}
	return slices.Contains(lineage, models.BacteriaID) || slices.Contains(lineage, models.ArchaeaID), nil
}

// Rank returns the normalized rank of id: "superkingdom" is reported as
// "domain", and an id with no rank entry yields "".
func (r *Resolver) Rank(ctx context.Context, id models.TaxID) (string, error) {
	rank, err := r.store.Rank(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("taxonomy: rank of %d: %w", id, err)
	}
	return NormalizeRank(rank), nil
}

// NormalizeRank maps the store's raw rank label to the label surfaced to callers.
func NormalizeRank(raw string) string {
	if raw == models.RankSuperkingdom {
		return models.RankDomain
	}
	return raw
}

// Resolve maps name to the single prokaryotic taxon of the requested rank.
// Not-found and ambiguous outcomes are logged and reported in the result;
// only store faults are returned as errors. A translated candidate without a
// lineage is logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, name, rank string) (models.Resolution, error) {
	res := models.Resolution{Name: name, Rank: rank}

	ids, err := r.store.TranslateName(ctx, name)
	if err != nil {
		return res, fmt.Errorf("taxonomy: translate %q: %w", name, err)
	}

	var candidates []models.TaxID
	for _, id := range ids {
		ok, err := r.IsProkaryote(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			r.logger.Warn("resolver: candidate has no lineage, skipped",
				slog.String("name", name),
				slog.Int64("taxid", int64(id)))
			continue
		}
		if err != nil {
			return res, err
		}
		if !ok {
			continue
		}
		got, err := r.Rank(ctx, id)
		if err != nil {
			return res, err
		}
		if got == rank {
			candidates = append(candidates, id)
		}
	}

	switch len(candidates) {
	case 0:
		res.Outcome = models.OutcomeNotFound
		r.logger.Warn("resolver: cannot find taxid",
			slog.String("name", name),
			slog.String("rank", rank))
	case 1:
		res.Outcome = models.OutcomeResolved
		res.TaxID = candidates[0]
	default:
		res.Outcome = models.OutcomeAmbiguous
		res.Candidates = candidates
		r.logger.Warn("resolver: cannot determine taxid",
			slog.String("name", name),
			slog.String("rank", rank),
			slog.Any("candidates", candidates))
	}
	return res, nil
}

// TaxID returns the identifier for (name, rank). ok is false when the name
// resolves to no candidate or to several.
func (r *Resolver) TaxID(ctx context.Context, name, rank string) (id models.TaxID, ok bool, err error) {
	res, err := r.Resolve(ctx, name, rank)
	if err != nil {
		return 0, false, err
	}
	return res.TaxID, res.Resolved(), nil
}

// Ascendants returns the chain from id up to the root. Identifiers unknown
// to the store, including ProkaryoteID, yield [ProkaryoteID].
func (r *Resolver) Ascendants(ctx context.Context, id models.TaxID) ([]models.TaxID, error) {
	lineage, err := r.store.Lineage(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && len(lineage) == 0) {
		return []models.TaxID{models.ProkaryoteID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("taxonomy: lineage of %d: %w", id, err)
	}
	out := slices.Clone(lineage)
	slices.Reverse(out)
	return out, nil
}

// Names renders ids as "id:label" for diagnostics. The lone sentinel chain
// [ProkaryoteID] renders as ["Prokaryote"].
func (r *Resolver) Names(ctx context.Context, ids []models.TaxID) ([]string, error) {
	if len(ids) == 1 && ids[0] == models.ProkaryoteID {
		return []string{models.ProkaryoteLabel}, nil
	}
	labels, err := r.store.TranslateIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: translate ids: %w", err)
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprintf("%d:%s", id, labels[id])
	}
	return out, nil
}
