package domain

import "time"

// Ranked is one disease of a similarity ranking. Lower distance means closer.
type Ranked struct {
	DiseaseID string
	Name      string
	Distance  float64
}

// BuildManifest records the outcome of a disease collection build.
type BuildManifest struct {
	Collection string    `json:"collection"`
	Variant    Variant   `json:"variant"`
	Diseases   int       `json:"diseases"`
	Skipped    int       `json:"skipped"`
	Dimension  int       `json:"dimension"`
	BuiltAt    time.Time `json:"built_at"`
}
