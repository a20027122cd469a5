package domain

// ChunkMeta is the metadata attached to one retrieved document.
// LessonNumber is negative when the chunk has no lesson association.
type ChunkMeta struct {
	CourseTitle  string
	LessonNumber int
	ChunkIndex   int
}

// HasLesson reports whether the chunk belongs to a numbered lesson.
func (m ChunkMeta) HasLesson() bool { return m.LessonNumber >= 0 }

// SearchResults is the value object returned by every retrieval call:
// parallel documents/metadata/distances plus an optional error string.
// When Err is set all three slices are empty; an empty error-free result
// means "no matches", which is a different outcome from failure.
type SearchResults struct {
	Documents []string
	Metadata  []ChunkMeta
	Distances []float64
	Err       string
}

// ErrorResults builds a failed result set. Callers must check Err before
// using the slices.
func ErrorResults(msg string) SearchResults {
	return SearchResults{Err: msg}
}

// IsEmpty reports whether the search produced no documents.
func (r SearchResults) IsEmpty() bool { return len(r.Documents) == 0 }
