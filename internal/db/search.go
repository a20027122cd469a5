package db

// Filter restricts a search to documents matching every constraint: tag
// fields by exact value, numeric fields by equality. Constraints combine
// as a logical AND regardless of order.
type Filter struct {
	Tags     map[string]string
	Numerics map[string]float64
}

// IsEmpty reports whether the filter carries no constraints.
func (f *Filter) IsEmpty() bool {
	return f == nil || (len(f.Tags) == 0 && len(f.Numerics) == 0)
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filter       *Filter
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Distance is the raw vector
// distance reported by the index (smaller is closer for cosine).
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
