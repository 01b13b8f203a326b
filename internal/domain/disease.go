package domain

// Disease is a disease with the phenotypes annotated to it (plain form).
// Phenotypes are sorted and free of duplicates.
type Disease struct {
	ID         string
	Name       string
	Phenotypes []string
}

// WeightedDisease is a disease with per-phenotype frequency proportions in [0,1].
type WeightedDisease struct {
	ID      string
	Name    string
	Weights map[string]float64
}

// Annotations is the read-only disease → phenotypes table, in first-seen order.
type Annotations struct {
	diseases []Disease
	index    map[string]int
}

// NewAnnotations builds the table. A later disease with a repeated ID replaces the earlier one in place.
func NewAnnotations(diseases []Disease) *Annotations {
	a := &Annotations{
		diseases: make([]Disease, 0, len(diseases)),
		index:    make(map[string]int, len(diseases)),
	}
	for _, d := range diseases {
		if i, ok := a.index[d.ID]; ok {
			a.diseases[i] = d
			continue
		}
		a.index[d.ID] = len(a.diseases)
		a.diseases = append(a.diseases, d)
	}
	return a
}

// Len returns the number of diseases.
func (a *Annotations) Len() int {
	if a == nil {
		return 0
	}
	return len(a.diseases)
}

// Diseases returns all diseases in first-seen order. The slice must not be modified.
func (a *Annotations) Diseases() []Disease {
	if a == nil {
		return nil
	}
	return a.diseases
}

// Get returns the disease with the given ID.
func (a *Annotations) Get(id string) (Disease, bool) {
	if a == nil {
		return Disease{}, false
	}
	i, ok := a.index[id]
	if !ok {
		return Disease{}, false
	}
	return a.diseases[i], true
}

// Name returns the disease name, or "" when unknown.
func (a *Annotations) Name(id string) string {
	d, _ := a.Get(id)
	return d.Name
}

// WeightedAnnotations is the read-only disease → {phenotype → proportion} table, in first-seen order.
type WeightedAnnotations struct {
	diseases []WeightedDisease
	index    map[string]int
}

// NewWeightedAnnotations builds the table. A later disease with a repeated ID replaces the earlier one in place.
func NewWeightedAnnotations(diseases []WeightedDisease) *WeightedAnnotations {
	a := &WeightedAnnotations{
		diseases: make([]WeightedDisease, 0, len(diseases)),
		index:    make(map[string]int, len(diseases)),
	}
	for _, d := range diseases {
		if i, ok := a.index[d.ID]; ok {
			a.diseases[i] = d
			continue
		}
		a.index[d.ID] = len(a.diseases)
		a.diseases = append(a.diseases, d)
	}
	return a
}

// Len returns the number of diseases.
func (a *WeightedAnnotations) Len() int {
	if a == nil {
		return 0
	}
	return len(a.diseases)
}

// Diseases returns all diseases in first-seen order. The slice must not be modified.
func (a *WeightedAnnotations) Diseases() []WeightedDisease {
	if a == nil {
		return nil
	}
	return a.diseases
}

// Get returns the disease with the given ID.
func (a *WeightedAnnotations) Get(id string) (WeightedDisease, bool) {
	if a == nil {
		return WeightedDisease{}, false
	}
	i, ok := a.index[id]
	if !ok {
		return WeightedDisease{}, false
	}
	return a.diseases[i], true
}

// Name returns the disease name, or "" when unknown.
func (a *WeightedAnnotations) Name(id string) string {
	d, _ := a.Get(id)
	return d.Name
}
