package domain

// Lesson is a single lesson within a course.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is the catalog entry for one course. The title is the unique
// identifier; courses are written once at ingestion time and read-only
// afterwards.
type Course struct {
	Title      string   `json:"title"`
	CourseLink string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// LessonByNumber returns the lesson with the given number, or nil.
func (c *Course) LessonByNumber(n int) *Lesson {
	for i := range c.Lessons {
		if c.Lessons[i].Number == n {
			return &c.Lessons[i]
		}
	}
	return nil
}

// CourseChunk is one retrievable slice of course text. LessonNumber is nil
// for text that precedes any lesson marker. ChunkIndex is the position
// within the course, used for stable keys and citation tie-breaking.
type CourseChunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
}
