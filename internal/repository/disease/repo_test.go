package disease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/phenodex/internal/db"
	"github.com/kailas-cloud/phenodex/internal/domain"
)

// --- EnsureIndex ---

func TestEnsureIndex_Definition(t *testing.T) {
	repo, ms := newTestRepo(t)
	repo.WithIndex(IndexConfig{M: 32})

	var got *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		got = def
		return nil
	}

	if err := repo.EnsureIndex(context.Background(), "diseases"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "phenodex:diseases:idx" {
		t.Errorf("index name = %q", got.Name)
	}
	if len(got.Prefixes) != 1 || got.Prefixes[0] != "phenodex:diseases:" {
		t.Errorf("prefixes = %v", got.Prefixes)
	}
	vec := got.Fields[1]
	if vec.Alias != "vector" || vec.VectorDim != 2 || vec.VectorDistance != db.DistanceCosine {
		t.Errorf("vector field = %+v", vec)
	}
	if vec.VectorAlgo != db.VectorHNSW || vec.VectorM != 32 || vec.VectorEFConstruct != 200 {
		t.Errorf("hnsw = %s %d/%d, want HNSW 32/200", vec.VectorAlgo, vec.VectorM, vec.VectorEFConstruct)
	}
}

func TestEnsureIndex_Flat(t *testing.T) {
	repo, ms := newTestRepo(t)
	repo.WithIndex(IndexConfig{Algorithm: db.VectorFlat, BlockSize: 2048})

	var got *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		got = def
		return nil
	}

	if err := repo.EnsureIndex(context.Background(), "diseases"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vec := got.Fields[1]
	if vec.VectorAlgo != db.VectorFlat || vec.VectorBlockSize != 2048 || vec.Alias != "vector" {
		t.Errorf("vector field = %+v, want aliased FLAT with block size 2048", vec)
	}
}

func TestEnsureIndex_UnknownAlgorithm(t *testing.T) {
	repo, ms := newTestRepo(t)
	repo.WithIndex(IndexConfig{Algorithm: "IVF"})
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error {
		t.Fatal("index must not be created")
		return nil
	}

	if err := repo.EnsureIndex(context.Background(), "diseases"); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}

func TestEnsureIndex_AlreadyExists(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error { return db.ErrIndexExists }

	if err := repo.EnsureIndex(context.Background(), "diseases"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_Error(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error { return errors.New("connection lost") }

	if err := repo.EnsureIndex(context.Background(), "diseases"); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnsureIndex_ZeroDimension(t *testing.T) {
	repo := New(&mockStore{}, 0)
	if err := repo.EnsureIndex(context.Background(), "diseases"); err == nil {
		t.Fatal("expected error")
	}
}

// --- Count / Exists ---

func TestCount(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchCountFn = func(_ context.Context, index string) (int, error) {
		if index != "phenodex:diseases:idx" {
			t.Errorf("unexpected index %s", index)
		}
		return 7, nil
	}

	n, err := repo.Count(context.Background(), "diseases")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("count = %d, want 7", n)
	}
}

func TestCount_IndexNotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchCountFn = func(context.Context, string) (int, error) { return 0, db.ErrIndexNotFound }

	_, err := repo.Count(context.Background(), "diseases")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExists(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(context.Context, string) (bool, error) { return true, nil }

	ok, err := repo.Exists(context.Background(), "diseases")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
}

// --- Upsert ---

func TestUpsert_FiltersEmptyIDs(t *testing.T) {
	repo, ms := newTestRepo(t)

	var items []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, in []db.HashSetItem) error {
		items = in
		return nil
	}

	meta := map[string]string{"type": domain.RecordTypeDisease}
	err := repo.Upsert(context.Background(), "diseases",
		[]string{"OMIM:1", "", "OMIM:2"},
		[][]float32{{1, 0}, nil, {0, 1}},
		[]map[string]string{meta, nil, meta},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Key != "phenodex:diseases:OMIM:1" {
		t.Errorf("key = %q", items[0].Key)
	}
	if items[0].Fields["type"] != "disease" {
		t.Errorf("type = %q", items[0].Fields["type"])
	}
	if len(items[0].Fields["__vector"]) != 8 {
		t.Errorf("vector blob length = %d, want 8", len(items[0].Fields["__vector"]))
	}
}

func TestUpsert_LengthMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.Upsert(context.Background(), "diseases", []string{"a"}, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.Upsert(context.Background(), "diseases",
		[]string{"OMIM:1"}, [][]float32{{1, 2, 3}}, []map[string]string{nil})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestUpsert_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetMultiFn = func(context.Context, []db.HashSetItem) error { return errors.New("connection lost") }

	err := repo.Upsert(context.Background(), "diseases",
		[]string{"OMIM:1"}, [][]float32{{1, 2}}, []map[string]string{nil})
	if err == nil {
		t.Fatal("expected error")
	}
}

// --- Query ---

func TestQuery_MapsEntries(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.K != 5 || q.Tags["type"] != "disease" {
			t.Errorf("unexpected query %+v", q)
		}
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Key: "phenodex:diseases:OMIM:2", Distance: 0.3},
			{Key: "phenodex:diseases:OMIM:1", Distance: 0.1},
		}}, nil
	}

	got, err := repo.Query(context.Background(), "diseases", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].DiseaseID != "OMIM:2" || got[1].Distance != 0.1 {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestQuery_CapacityExceeded(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: k=99999", db.ErrResultLimitExceeded)}
	}

	_, err := repo.Query(context.Background(), "diseases", []float32{1, 0}, 99999)
	if !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestQuery_OtherError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, errors.New("connection lost")
	}

	_, err := repo.Query(context.Background(), "diseases", []float32{1, 0}, 10)
	if err == nil || errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("expected plain error, got %v", err)
	}
}

// --- Manifest ---

func TestManifest_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	saved := map[string][]byte{}
	ms.setFn = func(_ context.Context, key string, value []byte) error {
		saved[key] = value
		return nil
	}
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		v, ok := saved[key]
		if !ok {
			return nil, db.ErrKeyNotFound
		}
		return v, nil
	}

	want := domain.BuildManifest{
		Collection: "diseases",
		Variant:    domain.VariantAverage,
		Diseases:   3,
		Skipped:    1,
		Dimension:  2,
		BuiltAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := repo.SaveManifest(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, ok := saved["phenodex:manifest:diseases"]
	if !ok {
		t.Fatalf("manifest stored under unexpected key: %v", saved)
	}
	if strings.HasPrefix("phenodex:manifest:diseases", collectionPrefix("diseases")) {
		t.Error("manifest key must not share the collection prefix")
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded["variant"] != "average" {
		t.Errorf("unexpected manifest json %s", raw)
	}

	got, err := repo.Manifest(context.Background(), "diseases")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.BuiltAt.Equal(want.BuiltAt) {
		t.Errorf("built_at = %v, want %v", got.BuiltAt, want.BuiltAt)
	}
	got.BuiltAt = want.BuiltAt
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestManifest_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Manifest(context.Background(), "diseases")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
