package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/phenodex/internal/aggregate"
	"github.com/kailas-cloud/phenodex/internal/domain"
	"github.com/kailas-cloud/phenodex/internal/metrics"
)

// DefaultBatchSize is the number of disease records per upsert.
const DefaultBatchSize = 500

// Result summarizes a build run.
type Result struct {
	Collection   string
	Variant      domain.Variant
	Stored       int
	Skipped      int
	Batches      int
	AlreadyBuilt bool
}

// Service computes disease vectors from phenotype vectors and stores them.
type Service struct {
	repo      Repository
	logger    *zap.Logger
	batchSize int
	workers   int
	now       func() time.Time
}

// New creates a build service.
func New(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		logger:    logger,
		batchSize: DefaultBatchSize,
		workers:   1,
		now:       time.Now,
	}
}

// WithBatchSize configures the number of records per upsert.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// WithWorkers configures how many diseases are aggregated concurrently.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// job is one disease to aggregate. size is its phenotype count.
type job struct {
	id   string
	size int
	agg  func() ([]float32, bool)
}

// Build stores the plain-average vector of every annotated disease in collection.
// A collection that already holds records is left untouched.
func (s *Service) Build(
	ctx context.Context, collection string, ann *domain.Annotations, table *domain.PhenotypeTable,
) (Result, error) {
	if ann == nil {
		return Result{}, domain.NewNotInitialized("disease annotations")
	}
	if err := s.checkCollaborators(table); err != nil {
		return Result{}, err
	}

	diseases := ann.Diseases()
	jobs := make([]job, len(diseases))
	for i, d := range diseases {
		jobs[i] = job{
			id:   d.ID,
			size: len(d.Phenotypes),
			agg:  func() ([]float32, bool) { return aggregate.Average(d.Phenotypes, table) },
		}
	}
	return s.run(ctx, collection, domain.VariantAverage, jobs, table.Dim())
}

// BuildWeighted stores the frequency-weighted vector of every annotated disease in collection.
// A collection that already holds records is left untouched.
func (s *Service) BuildWeighted(
	ctx context.Context, collection string, ann *domain.WeightedAnnotations, table *domain.PhenotypeTable,
) (Result, error) {
	if ann == nil {
		return Result{}, domain.NewNotInitialized("weighted disease annotations")
	}
	if err := s.checkCollaborators(table); err != nil {
		return Result{}, err
	}

	diseases := ann.Diseases()
	jobs := make([]job, len(diseases))
	for i, d := range diseases {
		jobs[i] = job{
			id:   d.ID,
			size: len(d.Weights),
			agg:  func() ([]float32, bool) { return aggregate.WeightedAverage(d.Weights, table) },
		}
	}
	return s.run(ctx, collection, domain.VariantWeighted, jobs, table.Dim())
}

func (s *Service) checkCollaborators(table *domain.PhenotypeTable) error {
	if table == nil {
		return domain.NewNotInitialized("phenotype table")
	}
	if s.repo == nil {
		return domain.NewNotInitialized("disease store")
	}
	return nil
}

func (s *Service) run(
	ctx context.Context, collection string, variant domain.Variant, jobs []job, dim int,
) (Result, error) {
	res := Result{Collection: collection, Variant: variant}
	log := s.logger.With(zap.String("collection", collection), zap.String("variant", string(variant)))

	built, err := s.alreadyBuilt(ctx, log, collection)
	if err != nil {
		return res, err
	}
	if built > 0 {
		log.Info("collection already built, skipping", zap.Int("diseases", built))
		res.Stored = built
		res.AlreadyBuilt = true
		return res, nil
	}

	meta := map[string]string{"type": domain.RecordTypeDisease}
	ids := make([]string, 0, s.batchSize)
	vectors := make([][]float32, 0, s.batchSize)
	metas := make([]map[string]string, 0, s.batchSize)

	var aggTime, upsertTime time.Duration
	flush := func() error {
		if len(ids) == 0 {
			return nil
		}
		start := time.Now()
		if err := s.repo.Upsert(ctx, collection, ids, vectors, metas); err != nil {
			return fmt.Errorf("upsert batch %d: %w", res.Batches+1, err)
		}
		upsertTime += time.Since(start)
		res.Batches++
		res.Stored += len(ids)
		metrics.BuildUpsertsTotal.WithLabelValues(string(variant)).Inc()
		metrics.BuildDiseasesTotal.WithLabelValues(string(variant), "stored").Add(float64(len(ids)))
		log.Debug("batch upserted", zap.Int("batch", res.Batches), zap.Int("size", len(ids)))
		ids, vectors, metas = ids[:0], vectors[:0], metas[:0]
		return nil
	}

	for start := 0; start < len(jobs); start += s.batchSize {
		window := jobs[start:min(start+s.batchSize, len(jobs))]

		t0 := time.Now()
		out, err := s.aggregateWindow(ctx, window)
		if err != nil {
			return res, err
		}
		aggTime += time.Since(t0)

		for i, j := range window {
			if out[i] == nil {
				res.Skipped++
				metrics.BuildDiseasesTotal.WithLabelValues(string(variant), "skipped").Inc()
				if j.size == 0 {
					log.Warn("disease has no phenotypes, skipping", zap.String("disease_id", j.id))
				} else {
					log.Warn("no valid embeddings for disease, skipping",
						zap.String("disease_id", j.id), zap.Int("phenotypes", j.size))
				}
				continue
			}
			ids = append(ids, j.id)
			vectors = append(vectors, out[i])
			metas = append(metas, meta)
			if len(ids) == s.batchSize {
				if err := flush(); err != nil {
					return res, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}

	metrics.BuildStageDuration.WithLabelValues(string(variant), "aggregate").Observe(aggTime.Seconds())
	metrics.BuildStageDuration.WithLabelValues(string(variant), "upsert").Observe(upsertTime.Seconds())

	err = s.repo.SaveManifest(ctx, domain.BuildManifest{
		Collection: collection,
		Variant:    variant,
		Diseases:   res.Stored,
		Skipped:    res.Skipped,
		Dimension:  dim,
		BuiltAt:    s.now().UTC(),
	})
	if err != nil {
		return res, fmt.Errorf("save manifest: %w", err)
	}

	log.Info("disease embeddings built",
		zap.Int("stored", res.Stored),
		zap.Int("skipped", res.Skipped),
		zap.Int("batches", res.Batches),
		zap.Duration("aggregate_time", aggTime),
		zap.Duration("upsert_time", upsertTime),
	)
	return res, nil
}

// alreadyBuilt returns the record count of a completed collection and
// creates the index when it is missing. A collection is complete only when
// its manifest exists; records without one are left over from an interrupted
// build and are overwritten by the rebuild.
func (s *Service) alreadyBuilt(ctx context.Context, log *zap.Logger, collection string) (int, error) {
	exists, err := s.repo.Exists(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		if err := s.repo.EnsureIndex(ctx, collection); err != nil {
			return 0, fmt.Errorf("create collection: %w", err)
		}
		return 0, nil
	}
	n, err := s.repo.Count(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("count collection: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := s.repo.Manifest(ctx, collection); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("collection has records but no manifest, rebuilding", zap.Int("records", n))
			return 0, nil
		}
		return 0, fmt.Errorf("read manifest: %w", err)
	}
	return n, nil
}

// aggregateWindow computes the vectors of window concurrently. out[i] is nil
// when job i produced no vector; order follows window.
func (s *Service) aggregateWindow(ctx context.Context, window []job) ([][]float32, error) {
	out := make([][]float32, len(window))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range window {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if window[i].size == 0 {
				return nil
			}
			if v, ok := window[i].agg(); ok {
				out[i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	return out, nil
}
