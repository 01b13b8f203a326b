package db

import (
	"strings"
	"testing"
)

func mustBuild(t *testing.T, b *IndexBuilder) *IndexDefinition {
	t.Helper()
	idx, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return idx
}

func TestIndexBuilder_Simple(t *testing.T) {
	idx := mustBuild(t, NewIndex("test-idx").
		Prefix("doc:").
		Tag("type"))

	if err := idx.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Name != "test-idx" {
		t.Errorf("name = %q, want test-idx", idx.Name)
	}
	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 1 {
		t.Fatalf("fields count = %d, want 1", len(idx.Fields))
	}
	if idx.Fields[0].Name != "type" || idx.Fields[0].Type != IndexFieldTag {
		t.Errorf("field[0] = %+v, want type TAG", idx.Fields[0])
	}
}

func TestIndexBuilder_VectorFlat(t *testing.T) {
	idx := mustBuild(t, NewIndex("vec-idx").
		Prefix("emb:").
		VectorFlat("embedding", 1536, DistanceCosine, 1024))

	if len(idx.Fields) != 1 {
		t.Fatalf("fields count = %d, want 1", len(idx.Fields))
	}
	f := idx.Fields[0]
	if f.VectorAlgo != VectorFlat {
		t.Errorf("algo = %q, want FLAT", f.VectorAlgo)
	}
	if f.VectorDim != 1536 {
		t.Errorf("dim = %d, want 1536", f.VectorDim)
	}
	if f.VectorDistance != DistanceCosine {
		t.Errorf("distance = %q, want COSINE", f.VectorDistance)
	}
	if f.VectorBlockSize != 1024 {
		t.Errorf("block size = %d, want 1024", f.VectorBlockSize)
	}
}

func TestIndexBuilder_VectorHNSW(t *testing.T) {
	idx := mustBuild(t, NewIndex("hnsw-idx").
		Prefix("doc:").
		Tag("type").
		VectorHNSW("__vector", 768, DistanceL2, 32, 400).As("vector"))

	if len(idx.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(idx.Fields))
	}
	f := idx.Fields[1]
	if f.VectorAlgo != VectorHNSW {
		t.Errorf("algo = %q, want HNSW", f.VectorAlgo)
	}
	if f.Alias != "vector" {
		t.Errorf("alias = %q, want vector", f.Alias)
	}
	if f.VectorM != 32 {
		t.Errorf("M = %d, want 32", f.VectorM)
	}
	if f.VectorEFConstruct != 400 {
		t.Errorf("EF = %d, want 400", f.VectorEFConstruct)
	}
}

func TestIndexBuilder_AsWithoutFields(t *testing.T) {
	b := NewIndex("idx").As("ignored")
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error for index without fields")
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder func() (*IndexDefinition, error)
		wantErr string
	}{
		{
			name: "empty name",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("").Tag("x").Build()
			},
			wantErr: "index name is required",
		},
		{
			name: "no fields",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Build()
			},
			wantErr: "at least one field",
		},
		{
			name: "vector without dim",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").VectorFlat("v", 0, DistanceCosine, 0).Build()
			},
			wantErr: "positive DIM",
		},
		{
			name: "invalid characters",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx with spaces").Tag("x").Build()
			},
			wantErr: "invalid characters",
		},
		{
			name: "duplicate alias",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Tag("a").As("x").Tag("x").Build()
			},
			wantErr: "duplicate field name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"phenodex:diseases:idx", true},
		{"a-b_c", true},
		{"", false},
		{"has space", false},
		{"star*", false},
	}
	for _, tc := range tests {
		if got := IsValidIdentifier(tc.in); got != tc.want {
			t.Errorf("IsValidIdentifier(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
