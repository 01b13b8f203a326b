package disease

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/phenodex/internal/db"
	"github.com/kailas-cloud/phenodex/internal/domain"
)

// store is the consumer interface for disease collections (ISP).
//
//nolint:interfacebloat // disease repo needs hash, kv, index and search operations
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string) (int, error)
}

// IndexConfig selects the vector index algorithm and its parameters.
// M and EFConstruct apply to HNSW, BlockSize to FLAT; zero keeps the current value.
type IndexConfig struct {
	Algorithm   db.VectorAlgorithm
	M           int
	EFConstruct int
	BlockSize   int
}

// Repo stores disease vectors in per-variant collections.
type Repo struct {
	store store
	dim   int
	index IndexConfig
}

// New creates a disease repository for vectors of the given dimension.
func New(s store, dim int) *Repo {
	return &Repo{store: s, dim: dim, index: IndexConfig{Algorithm: db.VectorHNSW, M: 16, EFConstruct: 200}}
}

// WithIndex configures the vector index created by EnsureIndex.
func (r *Repo) WithIndex(cfg IndexConfig) *Repo {
	if cfg.Algorithm != "" {
		r.index.Algorithm = cfg.Algorithm
	}
	if cfg.M > 0 {
		r.index.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.index.EFConstruct = cfg.EFConstruct
	}
	if cfg.BlockSize > 0 {
		r.index.BlockSize = cfg.BlockSize
	}
	return r
}

// Exists reports whether the collection index has been created.
func (r *Repo) Exists(ctx context.Context, collection string) (bool, error) {
	ok, err := r.store.IndexExists(ctx, indexName(collection))
	if err != nil {
		return false, fmt.Errorf("index exists %s: %w", collection, err)
	}
	return ok, nil
}

// EnsureIndex creates the collection index unless it is already there.
func (r *Repo) EnsureIndex(ctx context.Context, collection string) error {
	def, err := buildIndex(collection, r.dim, r.index)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", collection, err)
	}
	return nil
}

// Count returns the number of disease records in the collection.
func (r *Repo) Count(ctx context.Context, collection string) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName(collection))
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, fmt.Errorf("collection %s: %w", collection, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Upsert writes records keyed by disease ID, overwriting existing ones.
// ids, vectors and metas are parallel; entries with an empty ID are dropped.
func (r *Repo) Upsert(
	ctx context.Context, collection string,
	ids []string, vectors [][]float32, metas []map[string]string,
) error {
	if len(ids) != len(vectors) || len(ids) != len(metas) {
		return fmt.Errorf("upsert %s: %d ids, %d vectors, %d metadatas", collection, len(ids), len(vectors), len(metas))
	}

	items := make([]db.HashSetItem, 0, len(ids))
	for i, id := range ids {
		if id == "" {
			continue
		}
		if r.dim > 0 && len(vectors[i]) != r.dim {
			return fmt.Errorf("upsert %s: disease %s has %d dims, want %d: %w",
				collection, id, len(vectors[i]), r.dim, domain.ErrVectorDimMismatch)
		}
		fields := make(map[string]string, len(metas[i])+2)
		for k, v := range metas[i] {
			fields[k] = v
		}
		fields[fieldVector] = vectorToBytes(vectors[i])
		items = append(items, db.HashSetItem{Key: diseaseKey(collection, id), Fields: fields})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

// Query returns up to n nearest diseases with their raw distances, in store order.
// A store refusing n yields domain.ErrCapacityExceeded.
func (r *Repo) Query(ctx context.Context, collection string, vector []float32, n int) ([]domain.Ranked, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName(collection),
		Tags:         map[string]string{fieldType: domain.RecordTypeDisease},
		Vector:       vector,
		K:            n,
		ReturnFields: []string{fieldType},
	})
	if err != nil {
		if errors.Is(err, db.ErrResultLimitExceeded) {
			return nil, fmt.Errorf("query %s n=%d: %w", collection, n, domain.ErrCapacityExceeded)
		}
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	if sr == nil {
		return nil, nil
	}

	prefix := collectionPrefix(collection)
	out := make([]domain.Ranked, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		out = append(out, domain.Ranked{
			DiseaseID: strings.TrimPrefix(e.Key, prefix),
			Distance:  e.Distance,
		})
	}
	return out, nil
}

// SaveManifest records the outcome of a build.
func (r *Repo) SaveManifest(ctx context.Context, m domain.BuildManifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := r.store.Set(ctx, manifestKey(m.Collection), data); err != nil {
		return fmt.Errorf("save manifest %s: %w", m.Collection, err)
	}
	return nil
}

// Manifest returns the last build manifest of the collection.
func (r *Repo) Manifest(ctx context.Context, collection string) (domain.BuildManifest, error) {
	data, err := r.store.Get(ctx, manifestKey(collection))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.BuildManifest{}, fmt.Errorf("manifest %s: %w", collection, domain.ErrNotFound)
		}
		return domain.BuildManifest{}, fmt.Errorf("get manifest %s: %w", collection, err)
	}
	var m domain.BuildManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.BuildManifest{}, fmt.Errorf("decode manifest %s: %w", collection, err)
	}
	return m, nil
}

func buildIndex(collection string, dim int, cfg IndexConfig) (*db.IndexDefinition, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	b := db.NewIndex(indexName(collection)).
		Prefix(collectionPrefix(collection)).
		Tag(fieldType)
	switch cfg.Algorithm {
	case db.VectorHNSW:
		b.VectorHNSW(fieldVector, dim, db.DistanceCosine, cfg.M, cfg.EFConstruct)
	case db.VectorFlat:
		b.VectorFlat(fieldVector, dim, db.DistanceCosine, cfg.BlockSize)
	default:
		return nil, fmt.Errorf("unknown vector algorithm %q", cfg.Algorithm)
	}
	return b.As("vector").Build()
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
