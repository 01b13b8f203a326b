package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/phenodex/internal/annotation"
	"github.com/kailas-cloud/phenodex/internal/config"
	dbRedis "github.com/kailas-cloud/phenodex/internal/db/redis"
	"github.com/kailas-cloud/phenodex/internal/domain"
	logpkg "github.com/kailas-cloud/phenodex/internal/logger"
	"github.com/kailas-cloud/phenodex/internal/metrics"
	diseaserepo "github.com/kailas-cloud/phenodex/internal/repository/disease"
	phenotyperepo "github.com/kailas-cloud/phenodex/internal/repository/phenotype"
	"github.com/kailas-cloud/phenodex/internal/version"
)

const usage = `Usage: phenodex <command> [options]

Commands:
  build    compute disease vectors and store them
  query    rank diseases for a set of phenotypes
  serve    run the HTTP API
  status   print the build manifests
  version  print build information
`

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "version" {
		fmt.Printf("phenodex %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		return
	}

	commands := map[string]func(context.Context, *app, []string) error{
		"build":  runBuild,
		"query":  runQuery,
		"serve":  runServe,
		"status": runStatus,
	}
	run, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "phenodex: %v\n", err)
		os.Exit(1)
	}
	err = run(ctx, a, args)
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "phenodex %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

// app is the composition root shared by all commands.
type app struct {
	env      string
	cfg      config.Config
	logger   *zap.Logger
	store    *dbRedis.Store
	diseases *diseaserepo.Repo
}

func newApp(ctx context.Context) (*app, error) {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting phenodex",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
		Valkey:   cfg.Database.Driver == "valkey",
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	diseases := diseaserepo.New(store, cfg.Diseases.Dimensions).WithIndex(diseaserepo.IndexConfig{
		Algorithm:   cfg.Diseases.VectorAlgorithm(),
		M:           cfg.Diseases.HNSWM,
		EFConstruct: cfg.Diseases.HNSWEFConstruct,
		BlockSize:   cfg.Diseases.FlatBlockSize,
	})

	return &app{env: env, cfg: cfg, logger: logger, store: store, diseases: diseases}, nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

// collection returns the configured collection name for v.
func (a *app) collection(v domain.Variant) string {
	if v == domain.VariantWeighted {
		return a.cfg.Diseases.WeightedCollection
	}
	return a.cfg.Diseases.Collection
}

// loadPhenotypes reads the phenotype embedding table and checks it against the collection dimension.
func (a *app) loadPhenotypes(ctx context.Context) (*domain.PhenotypeTable, error) {
	start := time.Now()
	repo := phenotyperepo.New(a.store, phenotyperepo.Config{
		Prefix:        a.cfg.Phenotypes.Prefix,
		VectorField:   a.cfg.Phenotypes.VectorField,
		MetadataField: a.cfg.Phenotypes.MetadataField,
		Dimension:     a.cfg.Diseases.Dimensions,
	}, a.logger)

	table, err := repo.LoadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("load phenotype table: %w", err)
	}
	if table.Len() == 0 {
		return nil, fmt.Errorf("no phenotype embeddings under %q", a.cfg.Phenotypes.Prefix)
	}
	a.logger.Info("Phenotype table loaded",
		zap.Int("phenotypes", table.Len()),
		zap.Int("dimensions", table.Dim()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return table, nil
}

func (a *app) parser() (*annotation.Parser, error) {
	remap, err := annotation.LoadRemapFile(a.cfg.Annotation.ObsoleteMap)
	if err != nil {
		return nil, err
	}
	return annotation.NewParser(remap), nil
}

func (a *app) loadAnnotations() (*domain.Annotations, error) {
	p, err := a.parser()
	if err != nil {
		return nil, err
	}
	ann, err := annotation.LoadFile(a.cfg.Annotation.Path, p)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Annotations loaded", zap.String("path", a.cfg.Annotation.Path), zap.Int("diseases", ann.Len()))
	return ann, nil
}

func (a *app) loadWeightedAnnotations() (*domain.WeightedAnnotations, error) {
	p, err := a.parser()
	if err != nil {
		return nil, err
	}
	ann, err := annotation.LoadWeightedFile(a.cfg.Annotation.Path, p)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Weighted annotations loaded",
		zap.String("path", a.cfg.Annotation.Path), zap.Int("diseases", ann.Len()))
	return ann, nil
}

// diseaseNames resolves disease names from the annotation file. Names are
// optional for queries, so a missing file only produces a warning.
func (a *app) diseaseNames() *domain.Annotations {
	ann, err := a.loadAnnotations()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("Disease names unavailable", zap.Error(err))
		}
		return nil
	}
	return ann
}
