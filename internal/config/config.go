package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/phenodex/internal/db"
	"github.com/kailas-cloud/phenodex/internal/domain"
)

// Config holds the phenodex configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Phenotypes PhenotypeConfig  `yaml:"phenotypes"`
	Diseases   DiseaseConfig    `yaml:"diseases"`
	Build      BuildConfig      `yaml:"build"`
	Query      QueryConfig      `yaml:"query"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// AnnotationConfig locates the HPO annotation file.
type AnnotationConfig struct {
	Path        string `yaml:"path"`         // phenotype.hpoa, optionally gzip-compressed
	ObsoleteMap string `yaml:"obsolete_map"` // two-column TSV, empty = no remapping
}

// PhenotypeConfig describes the pre-populated phenotype embedding records.
type PhenotypeConfig struct {
	Prefix        string `yaml:"prefix"`
	VectorField   string `yaml:"vector_field"`
	MetadataField string `yaml:"metadata_field"`
}

// DiseaseConfig holds disease collection and vector index settings.
type DiseaseConfig struct {
	Collection         string `yaml:"collection"`
	WeightedCollection string `yaml:"weighted_collection"`
	Dimensions         int    `yaml:"dimensions"`
	Algorithm          string `yaml:"algorithm"` // hnsw, flat (default: hnsw)
	HNSWM              int    `yaml:"hnsw_m"`
	HNSWEFConstruct    int    `yaml:"hnsw_ef_construction"`
	FlatBlockSize      int    `yaml:"flat_block_size"` // 0 = server default
}

// VectorAlgorithm returns the index algorithm in FT.CREATE spelling.
func (c DiseaseConfig) VectorAlgorithm() db.VectorAlgorithm {
	if c.Algorithm == "flat" {
		return db.VectorFlat
	}
	return db.VectorHNSW
}

// BuildConfig holds builder settings.
type BuildConfig struct {
	BatchSize int `yaml:"batch_size"`
	Workers   int `yaml:"workers"`
}

// QueryConfig holds query service settings.
type QueryConfig struct {
	DefaultK        int `yaml:"default_k"`
	ProbeLowerBound int `yaml:"probe_lower_bound"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Annotation.Path == "" {
		c.Annotation.Path = "data/phenotype.hpoa"
	}
	if c.Phenotypes.Prefix == "" {
		c.Phenotypes.Prefix = domain.KeyPrefix + "hp:"
	}
	if c.Phenotypes.VectorField == "" {
		c.Phenotypes.VectorField = "__vector"
	}
	if c.Phenotypes.MetadataField == "" {
		c.Phenotypes.MetadataField = "_json"
	}
	if c.Diseases.Collection == "" {
		c.Diseases.Collection = domain.DefaultCollection
	}
	if c.Diseases.WeightedCollection == "" {
		c.Diseases.WeightedCollection = domain.DefaultWeightedCollection
	}
	if c.Diseases.Dimensions <= 0 {
		c.Diseases.Dimensions = domain.DefaultDimensions
	}
	if c.Diseases.Algorithm == "" {
		c.Diseases.Algorithm = "hnsw"
	}
	if c.Diseases.HNSWM <= 0 {
		c.Diseases.HNSWM = 16
	}
	if c.Diseases.HNSWEFConstruct <= 0 {
		c.Diseases.HNSWEFConstruct = 200
	}
	if c.Build.BatchSize <= 0 {
		c.Build.BatchSize = 500
	}
	if c.Build.Workers <= 0 {
		c.Build.Workers = 1
	}
	if c.Query.DefaultK <= 0 {
		c.Query.DefaultK = 10
	}
	if c.Query.ProbeLowerBound <= 0 {
		c.Query.ProbeLowerBound = 11700
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Diseases.Collection == c.Diseases.WeightedCollection {
		return fmt.Errorf("diseases.collection and diseases.weighted_collection must differ, both are %q",
			c.Diseases.Collection)
	}
	for _, name := range []string{c.Diseases.Collection, c.Diseases.WeightedCollection} {
		if !db.IsValidIdentifier(name) {
			return fmt.Errorf("invalid disease collection name %q", name)
		}
	}
	switch c.Diseases.Algorithm {
	case "hnsw", "flat":
	default:
		return fmt.Errorf("diseases.algorithm must be \"hnsw\" or \"flat\", got %q", c.Diseases.Algorithm)
	}
	if c.Build.BatchSize > 10000 {
		return fmt.Errorf("build.batch_size must be at most 10000, got %d", c.Build.BatchSize)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
