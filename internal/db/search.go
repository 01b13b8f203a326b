package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	// Tags pre-filters on TAG fields by exact value.
	Tags         map[string]string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Distance is the raw __vector_score reported by the server.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
