package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/phenodex/internal/aggregate"
	"github.com/kailas-cloud/phenodex/internal/domain"
	logpkg "github.com/kailas-cloud/phenodex/internal/logger"
	"github.com/kailas-cloud/phenodex/internal/metrics"
)

// DefaultProbeLowerBound is the result count assumed safe when ranking a whole collection.
const DefaultProbeLowerBound = 11700

const (
	modeTopK = "top_k"
	modeAll  = "all"
)

// Service ranks diseases by similarity to a set of query phenotypes.
type Service struct {
	repo        Repository
	table       aggregate.VectorLookup
	names       NameResolver
	collections map[domain.Variant]string
	lowerBound  int
	logger      *zap.Logger
}

// New creates a query service reading phenotype vectors from table.
func New(repo Repository, table aggregate.VectorLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:  repo,
		table: table,
		collections: map[domain.Variant]string{
			domain.VariantAverage:  domain.DefaultCollection,
			domain.VariantWeighted: domain.DefaultWeightedCollection,
		},
		lowerBound: DefaultProbeLowerBound,
		logger:     logger,
	}
}

// WithCollection sets the collection queried for a variant.
func (s *Service) WithCollection(v domain.Variant, name string) *Service {
	if v.IsValid() && name != "" {
		s.collections[v] = name
	}
	return s
}

// WithNames attaches disease names to results.
func (s *Service) WithNames(r NameResolver) *Service {
	s.names = r
	return s
}

// WithProbeLowerBound configures the result count assumed safe by All.
func (s *Service) WithProbeLowerBound(n int) *Service {
	if n > 0 {
		s.lowerBound = n
	}
	return s
}

// TopK returns the k diseases closest to the mean vector of phenotypes, ascending by distance.
func (s *Service) TopK(ctx context.Context, phenotypes []string, k int) ([]domain.Ranked, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive: %w", domain.ErrInvalidQuery)
	}
	return s.run(ctx, domain.VariantAverage, modeTopK, func() ([]float32, bool) {
		return aggregate.Average(phenotypes, s.table)
	}, k)
}

// All ranks every disease of the collection against the mean vector of phenotypes.
func (s *Service) All(ctx context.Context, phenotypes []string) ([]domain.Ranked, error) {
	return s.run(ctx, domain.VariantAverage, modeAll, func() ([]float32, bool) {
		return aggregate.Average(phenotypes, s.table)
	}, 0)
}

// TopKWeighted queries the weighted collection with the weighted mean of the query phenotypes.
func (s *Service) TopKWeighted(ctx context.Context, weights map[string]float64, k int) ([]domain.Ranked, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive: %w", domain.ErrInvalidQuery)
	}
	if err := validateWeights(weights); err != nil {
		return nil, err
	}
	return s.run(ctx, domain.VariantWeighted, modeTopK, func() ([]float32, bool) {
		return aggregate.WeightedAverage(weights, s.table)
	}, k)
}

// AllWeighted ranks every disease of the weighted collection.
func (s *Service) AllWeighted(ctx context.Context, weights map[string]float64) ([]domain.Ranked, error) {
	if err := validateWeights(weights); err != nil {
		return nil, err
	}
	return s.run(ctx, domain.VariantWeighted, modeAll, func() ([]float32, bool) {
		return aggregate.WeightedAverage(weights, s.table)
	}, 0)
}

// EqualWeights gives every phenotype the same proportion, which makes the
// weighted mean equal to the plain mean.
func EqualWeights(phenotypes []string) map[string]float64 {
	w := make(map[string]float64, len(phenotypes))
	for _, id := range phenotypes {
		w[id] = 1
	}
	return w
}

// validateWeights accepts proportions in [0, 1], the range annotation
// frequencies are stored in.
func validateWeights(weights map[string]float64) error {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		w := weights[id]
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 || w > 1 {
			return fmt.Errorf("weight %v for %s outside [0, 1]: %w", w, id, domain.ErrInvalidQuery)
		}
	}
	return nil
}

func (s *Service) run(
	ctx context.Context, variant domain.Variant, mode string, vector func() ([]float32, bool), k int,
) (out []domain.Ranked, err error) {
	if s.repo == nil {
		return nil, domain.NewNotInitialized("disease store")
	}
	if s.table == nil {
		return nil, domain.NewNotInitialized("phenotype table")
	}

	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.QueriesTotal.WithLabelValues(string(variant), mode, status).Inc()
		metrics.QueryDuration.WithLabelValues(string(variant), mode).Observe(time.Since(start).Seconds())
	}()

	log := logpkg.FromContextOr(ctx, s.logger)
	vec, ok := vector()
	if !ok {
		log.Warn("no valid embeddings for query phenotypes", zap.String("variant", string(variant)))
		return nil, domain.ErrNoValidEmbeddings
	}

	collection := s.collections[variant]
	if mode == modeTopK {
		out, err = s.query(ctx, collection, vec, k)
		if errors.Is(err, domain.ErrCapacityExceeded) {
			return nil, fmt.Errorf("k=%d exceeds the store result limit of %s: %w", k, collection, domain.ErrInvalidQuery)
		}
		return out, err
	}

	total, err := s.repo.Count(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", collection, err)
	}
	if total == 0 {
		return []domain.Ranked{}, nil
	}

	lower := min(s.lowerBound, total)
	n, err := s.maxSafe(ctx, collection, vec, lower, total)
	if err != nil {
		return nil, err
	}
	out, err = s.query(ctx, collection, vec, n)
	if errors.Is(err, domain.ErrCapacityExceeded) && lower > 1 {
		// The lower bound was not safe after all; search below it.
		log.Warn("probe lower bound refused by store, searching below it",
			zap.String("collection", collection), zap.Int("lower_bound", lower))
		if n, err = s.maxSafe(ctx, collection, vec, 1, lower-1); err != nil {
			return nil, err
		}
		out, err = s.query(ctx, collection, vec, n)
	}
	return out, err
}

func (s *Service) query(ctx context.Context, collection string, vec []float32, n int) ([]domain.Ranked, error) {
	out, err := s.repo.Query(ctx, collection, vec, n)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	s.rank(out)
	return out, nil
}

// maxSafe discovers how many results a single query may ask for within [lower, upper].
func (s *Service) maxSafe(ctx context.Context, collection string, vec []float32, lower, upper int) (int, error) {
	probe := func(ctx context.Context, n int) error {
		_, err := s.repo.Query(ctx, collection, vec, n)
		return err
	}
	n, err := MaxSafeResults(ctx, probe, lower, upper)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", collection, err)
	}
	s.logger.Debug("max safe results", zap.String("collection", collection),
		zap.Int("lower", lower), zap.Int("upper", upper), zap.Int("n_results", n))
	return n, nil
}

// rank sorts ascending by distance and fills in names.
func (s *Service) rank(out []domain.Ranked) {
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if s.names == nil {
		return
	}
	for i := range out {
		out[i].Name = s.names.Name(out[i].DiseaseID)
	}
}
