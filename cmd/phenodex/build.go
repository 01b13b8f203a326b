package main

import (
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/phenodex/internal/domain"
	builduc "github.com/kailas-cloud/phenodex/internal/usecase/build"
)

// runBuild computes and stores the disease vectors of one or both variants.
func runBuild(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	variant := fs.String("variant", "all", "variant to build: average, weighted or all")
	workers := fs.Int("workers", a.cfg.Build.Workers, "parallel aggregation workers")
	batch := fs.Int("batch-size", a.cfg.Build.BatchSize, "records per upsert")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var variants []domain.Variant
	switch *variant {
	case "all":
		variants = []domain.Variant{domain.VariantAverage, domain.VariantWeighted}
	default:
		v := domain.Variant(*variant)
		if !v.IsValid() {
			return fmt.Errorf("unknown variant %q", *variant)
		}
		variants = []domain.Variant{v}
	}

	table, err := a.loadPhenotypes(ctx)
	if err != nil {
		return err
	}

	svc := builduc.New(a.diseases, a.logger).WithBatchSize(*batch).WithWorkers(*workers)
	for _, v := range variants {
		res, err := buildVariant(ctx, a, svc, v, table)
		if err != nil {
			return fmt.Errorf("build %s: %w", v, err)
		}
		printBuildResult(res)
	}
	return nil
}

func buildVariant(
	ctx context.Context, a *app, svc *builduc.Service, v domain.Variant, table *domain.PhenotypeTable,
) (builduc.Result, error) {
	collection := a.collection(v)
	a.logger.Info("Building disease collection", zap.String("collection", collection), zap.String("variant", string(v)))

	if v == domain.VariantWeighted {
		ann, err := a.loadWeightedAnnotations()
		if err != nil {
			return builduc.Result{}, err
		}
		return svc.BuildWeighted(ctx, collection, ann, table)
	}

	ann, err := a.loadAnnotations()
	if err != nil {
		return builduc.Result{}, err
	}
	return svc.Build(ctx, collection, ann, table)
}

func printBuildResult(r builduc.Result) {
	if r.AlreadyBuilt {
		fmt.Printf("%s (%s): already built, %d records\n", r.Collection, r.Variant, r.Stored)
		return
	}
	fmt.Printf("%s (%s): stored %d, skipped %d, %d batches\n",
		r.Collection, r.Variant, r.Stored, r.Skipped, r.Batches)
}
