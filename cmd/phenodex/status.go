package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/phenodex/internal/domain"
)

// runStatus prints the build manifest and current record count of each collection.
func runStatus(ctx context.Context, a *app, _ []string) error {
	for _, v := range []domain.Variant{domain.VariantAverage, domain.VariantWeighted} {
		collection := a.collection(v)

		count, err := a.diseases.Count(ctx, collection)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			fmt.Printf("%s (%s): not built\n", collection, v)
			continue
		case err != nil:
			return fmt.Errorf("count %s: %w", collection, err)
		}

		m, err := a.diseases.Manifest(ctx, collection)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			fmt.Printf("%s (%s): %d records, no manifest\n", collection, v, count)
		case err != nil:
			return fmt.Errorf("manifest %s: %w", collection, err)
		default:
			fmt.Printf("%s (%s): %d records, built %s with %d diseases (%d skipped, dim %d)\n",
				collection, v, count, m.BuiltAt.Format(time.RFC3339), m.Diseases, m.Skipped, m.Dimension)
		}
	}
	return nil
}
