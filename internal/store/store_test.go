package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/coursechat/internal/db"
	"github.com/kailas-cloud/coursechat/internal/domain"
)

type fakeDB struct {
	searchFn func(q *db.KNNQuery) (*db.SearchResult, error)
	scanFn   func(pattern string) ([]string, error)
	hashes   map[string]map[string]string

	searchCalls []*db.KNNQuery
	setItems    []db.HashSetItem
	delKeys     []string
}

func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close()                     {}
func (f *fakeDB) WaitForReady(context.Context, time.Duration) error {
	return nil
}

func (f *fakeDB) HSet(_ context.Context, key string, fields map[string]string) error {
	f.setItems = append(f.setItems, db.HashSetItem{Key: key, Fields: fields})
	return nil
}

func (f *fakeDB) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	f.setItems = append(f.setItems, items...)
	return nil
}

func (f *fakeDB) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if h, ok := f.hashes[key]; ok {
		return h, nil
	}
	return nil, &db.Error{Op: db.OpHGetAll, Err: db.ErrKeyNotFound}
}

func (f *fakeDB) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, 0, len(keys))
	for _, k := range keys {
		h, err := f.HGetAll(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (f *fakeDB) Del(_ context.Context, keys ...string) error {
	f.delKeys = append(f.delKeys, keys...)
	return nil
}

func (f *fakeDB) Exists(context.Context, string) (bool, error) { return false, nil }

func (f *fakeDB) Scan(_ context.Context, pattern string) ([]string, error) {
	if f.scanFn != nil {
		return f.scanFn(pattern)
	}
	var keys []string
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range f.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeDB) CreateIndex(context.Context, *db.IndexDefinition) error { return nil }
func (f *fakeDB) DropIndex(context.Context, string) error                { return nil }
func (f *fakeDB) IndexExists(context.Context, string) (bool, error)     { return false, nil }

func (f *fakeDB) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	f.searchCalls = append(f.searchCalls, q)
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return &db.SearchResult{}, nil
}

type fakeEmbedder struct {
	err   error
	calls []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func newStore(d *fakeDB, e *fakeEmbedder) *VectorStore {
	return New(d, e, zap.NewNop(), Config{
		KeyPrefix:       "coursechat:",
		MaxResults:      5,
		VectorDim:       2,
		HNSWM:           32,
		HNSWEFConstruct: 400,
	})
}

func catalogHit(title string) *db.SearchResult {
	return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
		{Key: "coursechat:catalog:" + title, Distance: 0.05, Fields: map[string]string{fieldTitle: title}},
	}}
}

func TestSearch_Unfiltered(t *testing.T) {
	d := &fakeDB{searchFn: func(q *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Key: "coursechat:content:Go Basics:0", Distance: 0.1, Fields: map[string]string{
				fieldContent: "chunk one", fieldCourseTitle: "Go Basics", fieldLessonNumber: "1", fieldChunkIndex: "0",
			}},
			{Key: "coursechat:content:Go Basics:7", Distance: 0.3, Fields: map[string]string{
				fieldContent: "chunk two", fieldCourseTitle: "Go Basics", fieldChunkIndex: "7",
			}},
		}}, nil
	}}
	s := newStore(d, &fakeEmbedder{})

	res := s.Search(context.Background(), "what is a goroutine")
	if res.Err != "" {
		t.Fatalf("unexpected error result: %q", res.Err)
	}
	if len(d.searchCalls) != 1 {
		t.Fatalf("expected 1 search call, got %d", len(d.searchCalls))
	}

	q := d.searchCalls[0]
	if q.Filter != nil {
		t.Errorf("unfiltered search must not carry a filter, got %+v", q.Filter)
	}
	if q.K != 5 {
		t.Errorf("expected default limit 5, got %d", q.K)
	}
	if len(res.Documents) != 2 || res.Documents[0] != "chunk one" {
		t.Fatalf("unexpected documents: %v", res.Documents)
	}
	if res.Distances[0] != 0.1 || res.Distances[1] != 0.3 {
		t.Errorf("distances must be raw index scores: %v", res.Distances)
	}
	if res.Metadata[0].LessonNumber != 1 {
		t.Errorf("expected lesson 1, got %d", res.Metadata[0].LessonNumber)
	}
	if res.Metadata[1].HasLesson() {
		t.Error("chunk without lesson_number field must have no lesson")
	}
	if res.Metadata[1].ChunkIndex != 7 {
		t.Errorf("expected chunk index 7, got %d", res.Metadata[1].ChunkIndex)
	}
}

func TestSearch_CourseFilterResolvesFirst(t *testing.T) {
	d := &fakeDB{searchFn: func(q *db.KNNQuery) (*db.SearchResult, error) {
		if strings.Contains(q.IndexName, "catalog") {
			return catalogHit("Advanced Go Patterns"), nil
		}
		return &db.SearchResult{}, nil
	}}
	s := newStore(d, &fakeEmbedder{})

	res := s.Search(context.Background(), "channels", WithCourse("advanced go"), WithLesson(3))
	if res.Err != "" {
		t.Fatalf("unexpected error result: %q", res.Err)
	}
	if len(d.searchCalls) != 2 {
		t.Fatalf("expected resolve + content calls, got %d", len(d.searchCalls))
	}

	content := d.searchCalls[1]
	if content.Filter == nil {
		t.Fatal("expected a filter on the content search")
	}
	if content.Filter.Tags[fieldCourseTitle] != "Advanced Go Patterns" {
		t.Errorf("filter must use the resolved title, got %v", content.Filter.Tags)
	}
	if content.Filter.Numerics[fieldLessonNumber] != 3 {
		t.Errorf("expected lesson filter 3, got %v", content.Filter.Numerics)
	}
}

func TestSearch_CourseMissSkipsContentIndex(t *testing.T) {
	d := &fakeDB{searchFn: func(q *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{}, nil // catalog returns nothing
	}}
	s := newStore(d, &fakeEmbedder{})

	res := s.Search(context.Background(), "anything", WithCourse("Nonexistent Course"))
	if res.Err != "No course found matching 'Nonexistent Course'" {
		t.Fatalf("unexpected result: %q", res.Err)
	}
	if len(res.Documents) != 0 {
		t.Error("error results must carry no documents")
	}
	for _, q := range d.searchCalls {
		if strings.Contains(q.IndexName, "content") {
			t.Error("content index must not be queried after a resolution miss")
		}
	}
}

func TestSearch_EmbedFailure(t *testing.T) {
	d := &fakeDB{}
	s := newStore(d, &fakeEmbedder{err: errors.New("quota exceeded")})

	res := s.Search(context.Background(), "anything")
	if !strings.HasPrefix(res.Err, "Search error: ") || !strings.Contains(res.Err, "quota exceeded") {
		t.Fatalf("unexpected result: %q", res.Err)
	}
	if len(d.searchCalls) != 0 {
		t.Error("index must not be queried when embedding fails")
	}
}

func TestSearch_IndexFailure(t *testing.T) {
	d := &fakeDB{searchFn: func(q *db.KNNQuery) (*db.SearchResult, error) {
		return nil, errors.New("index unavailable")
	}}
	s := newStore(d, &fakeEmbedder{})

	res := s.Search(context.Background(), "anything")
	if res.Err != "Search error: index unavailable" {
		t.Fatalf("unexpected result: %q", res.Err)
	}
}

func TestSearch_EmptyIsNotError(t *testing.T) {
	d := &fakeDB{}
	s := newStore(d, &fakeEmbedder{})

	res := s.Search(context.Background(), "anything")
	if res.Err != "" {
		t.Fatalf("unexpected error result: %q", res.Err)
	}
	if !res.IsEmpty() {
		t.Error("expected empty results")
	}
}

func TestResolveCourseName(t *testing.T) {
	d := &fakeDB{searchFn: func(q *db.KNNQuery) (*db.SearchResult, error) {
		if q.K != 1 {
			t.Errorf("resolution must use k=1, got %d", q.K)
		}
		return catalogHit("MCP: Build Rich-Context AI Apps"), nil
	}}
	s := newStore(d, &fakeEmbedder{})

	got := s.ResolveCourseName(context.Background(), "MCP")
	if got != "MCP: Build Rich-Context AI Apps" {
		t.Errorf("unexpected resolution: %q", got)
	}
}

func TestResolveCourseName_FailureReturnsEmpty(t *testing.T) {
	d := &fakeDB{searchFn: func(q *db.KNNQuery) (*db.SearchResult, error) {
		return nil, errors.New("down")
	}}
	s := newStore(d, &fakeEmbedder{})

	if got := s.ResolveCourseName(context.Background(), "MCP"); got != "" {
		t.Errorf("expected empty string on failure, got %q", got)
	}
}

func TestCourseCount_FailureReturnsZero(t *testing.T) {
	d := &fakeDB{scanFn: func(string) ([]string, error) { return nil, errors.New("down") }}
	s := newStore(d, &fakeEmbedder{})

	if got := s.CourseCount(context.Background()); got != 0 {
		t.Errorf("expected 0 on failure, got %d", got)
	}
}

func TestCoursesMetadata_RoundTrip(t *testing.T) {
	course := &domain.Course{
		Title:      "Go Basics",
		CourseLink: "https://example.com/go",
		Instructor: "Rob",
		Lessons: []domain.Lesson{
			{Number: 0, Title: "Intro", Link: "https://example.com/go/0"},
			{Number: 1, Title: "Types"},
		},
	}

	fields, err := courseToHash(course, []float32{0.1, 0.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := &fakeDB{hashes: map[string]map[string]string{"coursechat:catalog:Go Basics": fields}}
	s := newStore(d, &fakeEmbedder{})

	courses := s.CoursesMetadata(context.Background())
	if len(courses) != 1 {
		t.Fatalf("expected 1 course, got %d", len(courses))
	}
	got := courses[0]
	if got.Title != course.Title || got.Instructor != course.Instructor || got.CourseLink != course.CourseLink {
		t.Errorf("unexpected course: %+v", got)
	}
	if len(got.Lessons) != 2 || got.Lessons[0].Title != "Intro" || got.Lessons[1].Number != 1 {
		t.Errorf("lesson list must survive the round trip in order: %+v", got.Lessons)
	}
}

func TestLessonLink(t *testing.T) {
	course := &domain.Course{
		Title:   "Go Basics",
		Lessons: []domain.Lesson{{Number: 2, Title: "Slices", Link: "https://example.com/go/2"}},
	}
	fields, err := courseToHash(course, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := &fakeDB{hashes: map[string]map[string]string{"coursechat:catalog:Go Basics": fields}}
	s := newStore(d, &fakeEmbedder{})

	if got := s.LessonLink(context.Background(), "Go Basics", 2); got != "https://example.com/go/2" {
		t.Errorf("unexpected link: %q", got)
	}
	if got := s.LessonLink(context.Background(), "Go Basics", 9); got != "" {
		t.Errorf("expected empty link for unknown lesson, got %q", got)
	}
	if got := s.LessonLink(context.Background(), "Unknown", 2); got != "" {
		t.Errorf("expected empty link for unknown course, got %q", got)
	}
}

func TestCourseByTitle(t *testing.T) {
	course := &domain.Course{Title: "Go Basics", Lessons: []domain.Lesson{{Number: 1, Title: "Intro"}}}
	fields, err := courseToHash(course, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := &fakeDB{hashes: map[string]map[string]string{"coursechat:catalog:Go Basics": fields}}
	s := newStore(d, &fakeEmbedder{})

	got := s.CourseByTitle(context.Background(), "Go Basics")
	if got == nil || got.Title != "Go Basics" || len(got.Lessons) != 1 {
		t.Errorf("unexpected course: %+v", got)
	}

	// a missing catalog key is a miss, not a failure
	if got := s.CourseByTitle(context.Background(), "Unknown"); got != nil {
		t.Errorf("expected nil for unknown title, got %+v", got)
	}
}

func TestAddChunks_KeysAndLessonField(t *testing.T) {
	d := &fakeDB{}
	s := newStore(d, &fakeEmbedder{})

	lesson := 1
	chunks := []domain.CourseChunk{
		{Content: "intro text", CourseTitle: "Go Basics", ChunkIndex: 0},
		{Content: "lesson text", CourseTitle: "Go Basics", LessonNumber: &lesson, ChunkIndex: 1},
	}
	if err := s.AddChunks(context.Background(), chunks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.setItems) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(d.setItems))
	}

	first := d.setItems[0]
	if first.Key != "coursechat:content:Go Basics:0" {
		t.Errorf("unexpected key: %q", first.Key)
	}
	if _, ok := first.Fields[fieldLessonNumber]; ok {
		t.Error("chunk without a lesson must not write lesson_number")
	}

	second := d.setItems[1]
	if second.Fields[fieldLessonNumber] != "1" {
		t.Errorf("expected lesson_number=1, got %q", second.Fields[fieldLessonNumber])
	}
	if second.Fields[fieldContent] != "lesson text" {
		t.Errorf("unexpected content: %q", second.Fields[fieldContent])
	}
}

func TestClear_DeletesBothCollections(t *testing.T) {
	d := &fakeDB{hashes: map[string]map[string]string{
		"coursechat:catalog:Go Basics":   {fieldTitle: "Go Basics"},
		"coursechat:content:Go Basics:0": {fieldContent: "x"},
	}}
	s := newStore(d, &fakeEmbedder{})

	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.delKeys) != 2 {
		t.Errorf("expected both keys deleted, got %v", d.delKeys)
	}
}
