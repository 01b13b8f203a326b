package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kailas-cloud/phenodex/internal/domain"
	queryuc "github.com/kailas-cloud/phenodex/internal/usecase/query"
)

// runQuery ranks diseases for the phenotype IDs given as arguments.
func runQuery(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	k := fs.Int("k", a.cfg.Query.DefaultK, "number of diseases to return")
	all := fs.Bool("all", false, "rank every disease of the collection")
	weighted := fs.Bool("weighted", false, "query the frequency-weighted collection")
	asJSON := fs.Bool("json", false, "print results as JSON")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: phenodex query [options] HP:0000001 [HP:0000002 ...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	phenotypes := splitIDs(fs.Args())
	if len(phenotypes) == 0 {
		fs.Usage()
		return fmt.Errorf("at least one phenotype ID is required")
	}

	table, err := a.loadPhenotypes(ctx)
	if err != nil {
		return err
	}
	svc := a.queryService(table)

	var ranked []domain.Ranked
	switch {
	case *weighted && *all:
		ranked, err = svc.AllWeighted(ctx, queryuc.EqualWeights(phenotypes))
	case *weighted:
		ranked, err = svc.TopKWeighted(ctx, queryuc.EqualWeights(phenotypes), *k)
	case *all:
		ranked, err = svc.All(ctx, phenotypes)
	default:
		ranked, err = svc.TopK(ctx, phenotypes, *k)
	}
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ranked)
	}
	for i, r := range ranked {
		fmt.Printf("%4d  %-14s  %.6f  %s\n", i+1, r.DiseaseID, r.Distance, r.Name)
	}
	return nil
}

// queryService assembles the query service with the phenotype table and disease names.
func (a *app) queryService(table *domain.PhenotypeTable) *queryuc.Service {
	svc := queryuc.New(a.diseases, table, a.logger).
		WithCollection(domain.VariantAverage, a.cfg.Diseases.Collection).
		WithCollection(domain.VariantWeighted, a.cfg.Diseases.WeightedCollection).
		WithProbeLowerBound(a.cfg.Query.ProbeLowerBound)
	if names := a.diseaseNames(); names != nil {
		svc = svc.WithNames(names)
	}
	return svc
}

// splitIDs accepts IDs as separate arguments or comma-separated lists.
func splitIDs(args []string) []string {
	var ids []string
	for _, arg := range args {
		for _, id := range strings.Split(arg, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
