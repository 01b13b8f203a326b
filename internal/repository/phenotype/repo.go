package phenotype

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/phenodex/internal/domain"
)

// UnknownLabel replaces a missing phenotype label.
const UnknownLabel = "Unknown"

const fetchChunk = 500

// store is the consumer interface for phenotype records (ISP).
type store interface {
	Scan(ctx context.Context, pattern string) ([]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// Config locates the phenotype records.
type Config struct {
	Prefix        string // key prefix, e.g. "phenodex:hp:"
	VectorField   string // hash field holding the FLOAT32 blob
	MetadataField string // hash field holding the JSON metadata
	Dimension     int    // expected vector dimension, 0 adopts the first record's
}

// Repo reads the pre-populated phenotype embedding records.
type Repo struct {
	store  store
	cfg    Config
	logger *zap.Logger
}

// New creates a phenotype repository.
func New(s store, cfg Config, logger *zap.Logger) *Repo {
	if cfg.VectorField == "" {
		cfg.VectorField = "__vector"
	}
	if cfg.MetadataField == "" {
		cfg.MetadataField = "_json"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, cfg: cfg, logger: logger}
}

// LoadTable reads every phenotype record under the prefix into a PhenotypeTable.
// Records without an original_id, with undecodable metadata or with a vector
// of the wrong dimension are skipped with a warning.
func (r *Repo) LoadTable(ctx context.Context) (*domain.PhenotypeTable, error) {
	if r.cfg.Prefix == "" {
		return nil, domain.NewNotInitialized("phenotype key prefix")
	}

	keys, err := r.store.Scan(ctx, r.cfg.Prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan phenotypes: %w", err)
	}
	sort.Strings(keys)

	table := domain.NewPhenotypeTable(r.cfg.Dimension)
	for start := 0; start < len(keys); start += fetchChunk {
		end := min(start+fetchChunk, len(keys))
		records, err := r.store.HGetAllMulti(ctx, keys[start:end])
		if err != nil {
			return nil, fmt.Errorf("fetch phenotypes: %w", err)
		}
		for i, rec := range records {
			r.addRecord(table, keys[start+i], rec)
		}
	}

	r.logger.Info("phenotype table loaded",
		zap.Int("records", len(keys)),
		zap.Int("phenotypes", table.Len()),
		zap.Int("dimension", table.Dim()),
	)
	return table, nil
}

func (r *Repo) addRecord(table *domain.PhenotypeTable, key string, rec map[string]string) {
	raw, ok := rec[r.cfg.MetadataField]
	if !ok {
		r.logger.Warn("phenotype record without metadata", zap.String("key", key))
		return
	}
	id, label, hasLabel, err := parseMeta(raw)
	if err != nil {
		r.logger.Warn("failed to parse phenotype metadata", zap.String("key", key), zap.Error(err))
		return
	}
	if id == "" {
		r.logger.Warn("missing original_id in phenotype metadata", zap.String("key", key))
		return
	}
	if !hasLabel {
		r.logger.Warn("phenotype label missing, using default", zap.String("hpo_id", id))
		label = UnknownLabel
	}

	err = table.Add(domain.Phenotype{ID: id, Label: label, Vector: bytesToVector(rec[r.cfg.VectorField])})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrVectorDimMismatch):
		r.logger.Warn("phenotype vector dimension mismatch", zap.String("hpo_id", id), zap.Error(err))
	default:
		r.logger.Warn("phenotype record skipped", zap.String("hpo_id", id), zap.Error(err))
	}
}
