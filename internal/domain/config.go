package domain

// KeyPrefix namespaces every key the service writes to the store.
const KeyPrefix = "phenodex:"

// DefaultDimensions matches text-embedding-ada-002, the model the phenotype records were built with.
const DefaultDimensions = 1536

// Variant selects how a disease vector is aggregated from its phenotypes.
type Variant string

const (
	// VariantAverage is the unweighted mean of phenotype vectors.
	VariantAverage Variant = "average"
	// VariantWeighted is the frequency-weighted mean of phenotype vectors.
	VariantWeighted Variant = "weighted"
)

// IsValid reports whether v is a known variant.
func (v Variant) IsValid() bool {
	return v == VariantAverage || v == VariantWeighted
}

// RecordTypeDisease is the type tag stored with every disease vector.
const RecordTypeDisease = "disease"

// Default collection names of the two pipelines.
const (
	DefaultCollection         = "diseases"
	DefaultWeightedCollection = "diseases_weighted"
)
