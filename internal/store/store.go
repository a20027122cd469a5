// Package store implements the vector store the retrieval tools query:
// a course catalog and a chunked content collection, both backed by FT
// indexes over redis hashes.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/coursechat/internal/db"
	"github.com/kailas-cloud/coursechat/internal/domain"
	"github.com/kailas-cloud/coursechat/internal/metrics"
)

// Hash field names shared by both collections.
const (
	fieldTitle        = "title"
	fieldInstructor   = "instructor"
	fieldCourseLink   = "course_link"
	fieldLessonsJSON  = "lessons_json"
	fieldLessonCount  = "lesson_count"
	fieldContent      = "content"
	fieldCourseTitle  = "course_title"
	fieldLessonNumber = "lesson_number"
	fieldChunkIndex   = "chunk_index"
	fieldVector       = "vector"
)

const (
	catalogSegment = "catalog:"
	contentSegment = "content:"
)

// Config holds vector store settings.
type Config struct {
	KeyPrefix       string
	MaxResults      int
	VectorDim       int
	HNSWM           int
	HNSWEFConstruct int
}

// VectorStore maintains two collections: one catalog hash per course keyed
// by title, and one content hash per chunk. Search failures never surface
// as Go errors; they are folded into the result's Err field so the tool
// layer can hand them to the model as text.
type VectorStore struct {
	db       db.Store
	embedder domain.Embedder
	log      *zap.Logger
	cfg      Config
}

// New creates a VectorStore. EnsureIndexes must be called before the first
// write.
func New(database db.Store, embedder domain.Embedder, log *zap.Logger, cfg Config) *VectorStore {
	return &VectorStore{db: database, embedder: embedder, log: log, cfg: cfg}
}

func (s *VectorStore) catalogKey(title string) string {
	return s.cfg.KeyPrefix + catalogSegment + title
}

func (s *VectorStore) contentKey(course string, chunkIndex int) string {
	return fmt.Sprintf("%s%s%s:%d", s.cfg.KeyPrefix, contentSegment, course, chunkIndex)
}

func (s *VectorStore) catalogIndex() string { return s.cfg.KeyPrefix + catalogSegment + "idx" }
func (s *VectorStore) contentIndex() string { return s.cfg.KeyPrefix + contentSegment + "idx" }

type searchOptions struct {
	course string
	lesson *int
	limit  int
}

// SearchOption narrows a content search.
type SearchOption func(*searchOptions)

// WithCourse restricts matches to one course. The name is fuzzy: it is
// resolved against catalog titles before filtering.
func WithCourse(name string) SearchOption {
	return func(o *searchOptions) { o.course = name }
}

// WithLesson restricts matches to one lesson number.
func WithLesson(n int) SearchOption {
	return func(o *searchOptions) { lesson := n; o.lesson = &lesson }
}

// WithLimit overrides the configured result cap.
func WithLimit(k int) SearchOption {
	return func(o *searchOptions) {
		if k > 0 {
			o.limit = k
		}
	}
}

// Search runs a semantic query over course content. A course name that
// resolves to nothing returns an error result without touching the content
// index; embedding and index failures come back as "Search error: <msg>".
func (s *VectorStore) Search(ctx context.Context, query string, opts ...SearchOption) domain.SearchResults {
	o := searchOptions{limit: s.cfg.MaxResults}
	for _, opt := range opts {
		opt(&o)
	}

	courseTitle := ""
	if o.course != "" {
		courseTitle = s.ResolveCourseName(ctx, o.course)
		if courseTitle == "" {
			return domain.ErrorResults(fmt.Sprintf("No course found matching '%s'", o.course))
		}
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("content", "error").Inc()
		return domain.ErrorResults("Search error: " + err.Error())
	}

	var filter *db.Filter
	if courseTitle != "" || o.lesson != nil {
		filter = &db.Filter{}
		if courseTitle != "" {
			filter.Tags = map[string]string{fieldCourseTitle: courseTitle}
		}
		if o.lesson != nil {
			filter.Numerics = map[string]float64{fieldLessonNumber: float64(*o.lesson)}
		}
	}

	res, err := s.db.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    s.contentIndex(),
		Filter:       filter,
		Vector:       vec,
		K:            o.limit,
		ReturnFields: []string{fieldContent, fieldCourseTitle, fieldLessonNumber, fieldChunkIndex},
	})
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("content", "error").Inc()
		return domain.ErrorResults("Search error: " + err.Error())
	}
	metrics.SearchesTotal.WithLabelValues("content", "ok").Inc()

	var out domain.SearchResults
	for _, e := range res.Entries {
		out.Documents = append(out.Documents, e.Fields[fieldContent])
		out.Metadata = append(out.Metadata, chunkMetaFromFields(e.Fields))
		out.Distances = append(out.Distances, e.Distance)
	}
	return out
}

// ResolveCourseName maps a partial or misspelled course name to the best
// matching catalog title. Returns "" when nothing matches or the lookup
// fails; failures are logged, never propagated.
func (s *VectorStore) ResolveCourseName(ctx context.Context, name string) string {
	vec, err := s.embedder.Embed(ctx, name)
	if err != nil {
		s.log.Warn("resolve course name: embedding failed", zap.String("name", name), zap.Error(err))
		return ""
	}

	res, err := s.db.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    s.catalogIndex(),
		Vector:       vec,
		K:            1,
		ReturnFields: []string{fieldTitle},
	})
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("catalog", "error").Inc()
		s.log.Warn("resolve course name: catalog search failed", zap.String("name", name), zap.Error(err))
		return ""
	}
	metrics.SearchesTotal.WithLabelValues("catalog", "ok").Inc()

	if len(res.Entries) == 0 {
		return ""
	}
	return res.Entries[0].Fields[fieldTitle]
}

// CourseCount returns the number of courses in the catalog, 0 on failure.
func (s *VectorStore) CourseCount(ctx context.Context) int {
	keys, err := s.db.Scan(ctx, s.cfg.KeyPrefix+catalogSegment+"*")
	if err != nil {
		s.log.Warn("course count failed", zap.Error(err))
		return 0
	}
	return len(keys)
}

// CourseTitles returns every catalog title, empty on failure.
func (s *VectorStore) CourseTitles(ctx context.Context) []string {
	courses := s.CoursesMetadata(ctx)
	titles := make([]string, 0, len(courses))
	for _, c := range courses {
		titles = append(titles, c.Title)
	}
	return titles
}

// CoursesMetadata returns the full catalog with lesson lists hydrated from
// lessons_json, empty on failure. Lesson order is preserved as stored.
func (s *VectorStore) CoursesMetadata(ctx context.Context) []domain.Course {
	keys, err := s.db.Scan(ctx, s.cfg.KeyPrefix+catalogSegment+"*")
	if err != nil {
		s.log.Warn("courses metadata: scan failed", zap.Error(err))
		return []domain.Course{}
	}

	hashes, err := s.db.HGetAllMulti(ctx, keys)
	if err != nil {
		s.log.Warn("courses metadata: read failed", zap.Error(err))
		return []domain.Course{}
	}

	courses := make([]domain.Course, 0, len(hashes))
	for i, h := range hashes {
		c, err := courseFromHash(h)
		if err != nil {
			s.log.Warn("courses metadata: bad catalog entry", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		courses = append(courses, c)
	}
	return courses
}

// CourseByTitle returns one catalog entry by exact title, nil when absent
// or on failure.
func (s *VectorStore) CourseByTitle(ctx context.Context, title string) *domain.Course {
	h, err := s.db.HGetAll(ctx, s.catalogKey(title))
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			s.log.Warn("course lookup failed", zap.String("title", title), zap.Error(err))
		}
		return nil
	}

	c, err := courseFromHash(h)
	if err != nil {
		s.log.Warn("course lookup: bad catalog entry", zap.String("title", title), zap.Error(err))
		return nil
	}
	return &c
}

// CourseLink returns the link of a course by exact title, "" when absent
// or on failure.
func (s *VectorStore) CourseLink(ctx context.Context, title string) string {
	h, err := s.db.HGetAll(ctx, s.catalogKey(title))
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			s.log.Warn("course link lookup failed", zap.String("title", title), zap.Error(err))
		}
		return ""
	}
	return h[fieldCourseLink]
}

// LessonLink returns the link of one lesson by exact course title and
// lesson number, "" when absent or on failure.
func (s *VectorStore) LessonLink(ctx context.Context, title string, lesson int) string {
	h, err := s.db.HGetAll(ctx, s.catalogKey(title))
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			s.log.Warn("lesson link lookup failed", zap.String("title", title), zap.Error(err))
		}
		return ""
	}

	c, err := courseFromHash(h)
	if err != nil {
		s.log.Warn("lesson link lookup: bad catalog entry", zap.String("title", title), zap.Error(err))
		return ""
	}
	if l := c.LessonByNumber(lesson); l != nil {
		return l.Link
	}
	return ""
}
