// Package lookup exposes the resolver to transports: it records metrics,
// publishes resolution warnings and fans out batch queries.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/taxonid/internal/apperr"
	"github.com/starford/taxonid/internal/metrics"
	"github.com/starford/taxonid/internal/models"
	"github.com/starford/taxonid/internal/sse"
	"github.com/starford/taxonid/internal/taxonomy"
)

const defaultWorkers = 8

// Publisher receives resolution events.
type Publisher interface {
	Publish(event sse.Event)
}

// Lineage is an ancestor chain, optionally labelled.
type Lineage struct {
	TaxIDs []models.TaxID `json:"taxids"`
	Names  []string       `json:"names,omitempty"`
}

// Service coordinates resolver calls with metrics and event publication.
type Service struct {
	resolver *taxonomy.Resolver
	metrics  *metrics.Metrics
	events   Publisher
	workers  int
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records outcomes and store faults on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher publishes not-found and ambiguous resolutions to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithWorkers bounds the concurrency of ResolveBatch.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a lookup service over r.
func NewService(r *taxonomy.Resolver, opts ...Option) *Service {
	s := &Service{
		resolver: r,
		workers:  defaultWorkers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve maps q to a taxid. An empty name or rank is apperr.ErrInvalidInput.
func (s *Service) Resolve(ctx context.Context, q models.Query) (models.Resolution, error) {
	if q.Name == "" || q.Rank == "" {
		return models.Resolution{Name: q.Name, Rank: q.Rank}, fmt.Errorf("lookup: name and rank are required: %w", apperr.ErrInvalidInput)
	}

	start := time.Now()
	res, err := s.resolver.Resolve(ctx, q.Name, q.Rank)
	if err != nil {
		s.fault(err)
		return res, err
	}
	s.metrics.ObserveResolveLatency(time.Since(start))
	s.metrics.IncrementOutcome(string(res.Outcome))

	switch res.Outcome {
	case models.OutcomeNotFound:
		s.publish(sse.EventNotFound, res)
	case models.OutcomeAmbiguous:
		s.publish(sse.EventAmbiguous, res)
	}
	return res, nil
}

// ResolveBatch resolves every query concurrently. Results keep the order of
// queries; the first store fault cancels the rest and fails the batch.
func (s *Service) ResolveBatch(ctx context.Context, queries []models.Query) ([]models.Resolution, error) {
	out := make([]models.Resolution, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, q := range queries {
		g.Go(func() error {
			res, err := s.Resolve(gctx, q)
			if err != nil {
				return fmt.Errorf("query %d (%s, %s): %w", i+1, q.Name, q.Rank, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Rank returns the normalized rank of id, or "" when unknown.
func (s *Service) Rank(ctx context.Context, id models.TaxID) (string, error) {
	rank, err := s.resolver.Rank(ctx, id)
	if err != nil {
		s.fault(err)
	}
	return rank, err
}

// IsProkaryote reports whether id sits under Bacteria or Archaea. Unknown ids
// wrap apperr.ErrNotFound.
func (s *Service) IsProkaryote(ctx context.Context, id models.TaxID) (bool, error) {
	ok, err := s.resolver.IsProkaryote(ctx, id)
	if err != nil {
		s.fault(err)
	}
	return ok, err
}

// Ascendants returns the node-to-root chain of id, labelled when withNames is set.
func (s *Service) Ascendants(ctx context.Context, id models.TaxID, withNames bool) (Lineage, error) {
	ids, err := s.resolver.Ascendants(ctx, id)
	if err != nil {
		s.fault(err)
		return Lineage{}, err
	}
	l := Lineage{TaxIDs: ids}
	if withNames {
		if l.Names, err = s.Names(ctx, ids); err != nil {
			return Lineage{}, err
		}
	}
	return l, nil
}

// Names renders ids as "id:label".
func (s *Service) Names(ctx context.Context, ids []models.TaxID) ([]string, error) {
	names, err := s.resolver.Names(ctx, ids)
	if err != nil {
		s.fault(err)
	}
	return names, err
}

// fault counts err as a store fault unless it is an expected miss or a
// cancelled request.
func (s *Service) fault(err error) {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, context.Canceled) {
		return
	}
	s.metrics.IncrementStoreErrors()
	s.logger.Error("lookup: store fault", slog.String("error", err.Error()))
}

func (s *Service) publish(kind string, res models.Resolution) {
	if s.events == nil {
		return
	}
	s.events.Publish(sse.Event{Type: kind, Data: res})
}
