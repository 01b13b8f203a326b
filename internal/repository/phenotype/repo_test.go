package phenotype

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kailas-cloud/phenodex/internal/domain"
)

func TestLoadTable_TopLevelAndNested(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.records["phenodex:hp:1"] = record(`{"original_id":"HP:0000001","label":"All"}`, 1, 0)
	ms.records["phenodex:hp:2"] = record(`{"metadata":{"original_id":"HP:0001250","label":"Seizure"}}`, 0, 1)

	table, err := repo.LoadTable(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 phenotypes, got %d", table.Len())
	}
	p, ok := table.Get("HP:0001250")
	if !ok {
		t.Fatal("nested record not loaded")
	}
	if p.Label != "Seizure" {
		t.Errorf("label = %q, want Seizure", p.Label)
	}
	if p.Vector[0] != 0 || p.Vector[1] != 1 {
		t.Errorf("vector = %v, want [0 1]", p.Vector)
	}
	if table.Dim() != 2 {
		t.Errorf("dim = %d, want 2", table.Dim())
	}
}

func TestLoadTable_MissingLabelDefaults(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.records["phenodex:hp:1"] = record(`{"original_id":"HP:1"}`, 1, 2)

	table, err := repo.LoadTable(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ := table.Get("HP:1")
	if p.Label != UnknownLabel {
		t.Errorf("label = %q, want %q", p.Label, UnknownLabel)
	}
}

func TestLoadTable_SkipsBadRecords(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.records["phenodex:hp:a"] = record(`{"original_id":"HP:1","label":"ok"}`, 1, 2)
	ms.records["phenodex:hp:b"] = record(`{"label":"no id"}`, 1, 2)
	ms.records["phenodex:hp:c"] = record(`not json`, 1, 2)
	ms.records["phenodex:hp:d"] = record(`{"original_id":"HP:4","label":"wrong dim"}`, 1, 2, 3)
	ms.records["phenodex:hp:e"] = map[string]string{"__vector": encode([]float32{1, 1})}
	ms.records["phenodex:hp:f"] = record(`{"original_id":"HP:6","label":"no vector"}`)

	table, err := repo.LoadTable(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("expected only HP:1, got %d phenotypes", table.Len())
	}
	if _, ok := table.Get("HP:1"); !ok {
		t.Error("HP:1 missing")
	}
}

func TestLoadTable_ConfiguredDimension(t *testing.T) {
	ms := &mockStore{records: map[string]map[string]string{
		"p:1": record(`{"original_id":"HP:1","label":"x"}`, 1, 2),
		"p:2": record(`{"original_id":"HP:2","label":"y"}`, 1, 2, 3),
	}}
	repo := New(ms, Config{Prefix: "p:", Dimension: 3}, nil)

	table, err := repo.LoadTable(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 1 || table.Vector("HP:2") == nil {
		t.Errorf("expected only the 3-dim record, got %d phenotypes", table.Len())
	}
}

func TestLoadTable_FetchesInChunks(t *testing.T) {
	repo, ms := newTestRepo(t)
	for i := range fetchChunk + 1 {
		ms.records[fmt.Sprintf("phenodex:hp:%04d", i)] = record(fmt.Sprintf(`{"original_id":"HP:%d","label":"l"}`, i), 1)
	}

	table, err := repo.LoadTable(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != fetchChunk+1 {
		t.Errorf("expected %d phenotypes, got %d", fetchChunk+1, table.Len())
	}
	if ms.fetches != 2 {
		t.Errorf("expected 2 fetch round-trips, got %d", ms.fetches)
	}
}

func TestLoadTable_ScanError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.scanFn = func(context.Context, string) ([]string, error) {
		return nil, errors.New("connection lost")
	}

	if _, err := repo.LoadTable(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadTable_FetchError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.records["phenodex:hp:1"] = record(`{"original_id":"HP:1","label":"x"}`, 1)
	ms.fetchFn = func(context.Context, []string) ([]map[string]string, error) {
		return nil, errors.New("connection lost")
	}

	if _, err := repo.LoadTable(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadTable_RequiresPrefix(t *testing.T) {
	repo := New(&mockStore{}, Config{}, nil)
	_, err := repo.LoadTable(context.Background())
	if !errors.Is(err, domain.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestParseMeta_NullLabel(t *testing.T) {
	id, _, hasLabel, err := parseMeta(`{"original_id":"HP:1","label":null}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "HP:1" || hasLabel {
		t.Errorf("got id=%q hasLabel=%v", id, hasLabel)
	}
}

func TestBytesToVector_BadLength(t *testing.T) {
	if v := bytesToVector("abc"); v != nil {
		t.Errorf("expected nil, got %v", v)
	}
}
