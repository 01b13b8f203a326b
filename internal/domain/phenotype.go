package domain

import "fmt"

// Phenotype is one entry of the phenotype embedding table.
type Phenotype struct {
	ID     string
	Label  string
	Vector []float32
}

// PhenotypeTable maps phenotype IDs to their label and embedding vector.
// It is filled once during setup and only read afterwards; Add is not safe
// for concurrent use, lookups are.
type PhenotypeTable struct {
	entries map[string]Phenotype
	dim     int
}

// NewPhenotypeTable creates an empty table. dim <= 0 adopts the dimension of the first vector added.
func NewPhenotypeTable(dim int) *PhenotypeTable {
	return &PhenotypeTable{entries: make(map[string]Phenotype), dim: max(dim, 0)}
}

// Add stores a phenotype. Later entries for the same ID replace earlier ones.
func (t *PhenotypeTable) Add(p Phenotype) error {
	if p.ID == "" {
		return fmt.Errorf("phenotype id is required")
	}
	if len(p.Vector) == 0 {
		return fmt.Errorf("phenotype %s: empty vector", p.ID)
	}
	if t.dim == 0 {
		t.dim = len(p.Vector)
	}
	if len(p.Vector) != t.dim {
		return fmt.Errorf("phenotype %s: got %d, want %d: %w", p.ID, len(p.Vector), t.dim, ErrVectorDimMismatch)
	}
	t.entries[p.ID] = p
	return nil
}

// Get returns the phenotype for id.
func (t *PhenotypeTable) Get(id string) (Phenotype, bool) {
	if t == nil {
		return Phenotype{}, false
	}
	p, ok := t.entries[id]
	return p, ok
}

// Vector returns the embedding for id, or nil when the table has none.
func (t *PhenotypeTable) Vector(id string) []float32 {
	p, ok := t.Get(id)
	if !ok {
		return nil
	}
	return p.Vector
}

// Len returns the number of phenotypes.
func (t *PhenotypeTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Dim returns the vector dimension, 0 while the table is empty and unsized.
func (t *PhenotypeTable) Dim() int {
	if t == nil {
		return 0
	}
	return t.dim
}
