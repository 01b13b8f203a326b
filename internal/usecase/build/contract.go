package build

import (
	"context"

	"github.com/kailas-cloud/phenodex/internal/domain"
)

// Repository persists disease vectors.
type Repository interface {
	Exists(ctx context.Context, collection string) (bool, error)
	Count(ctx context.Context, collection string) (int, error)
	EnsureIndex(ctx context.Context, collection string) error
	Upsert(ctx context.Context, collection string, ids []string, vectors [][]float32, metas []map[string]string) error
	SaveManifest(ctx context.Context, m domain.BuildManifest) error
	Manifest(ctx context.Context, collection string) (domain.BuildManifest, error)
}
