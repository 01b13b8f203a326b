package query

import (
	"context"

	"github.com/kailas-cloud/phenodex/internal/domain"
)

// Repository runs similarity queries against a disease collection.
type Repository interface {
	// Query returns up to n nearest diseases. A refused n yields domain.ErrCapacityExceeded.
	Query(ctx context.Context, collection string, vector []float32, n int) ([]domain.Ranked, error)
	Count(ctx context.Context, collection string) (int, error)
}

// NameResolver resolves disease names, "" when unknown.
type NameResolver interface {
	Name(id string) string
}
