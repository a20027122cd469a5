package tools

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/coursechat/internal/domain"
	"github.com/kailas-cloud/coursechat/internal/store"
)

type fakeRetriever struct {
	searchFn    func(query string) domain.SearchResults
	resolved    string
	course      *domain.Course
	lessonLink  string
	searchCalls int
}

func (f *fakeRetriever) Search(_ context.Context, query string, _ ...store.SearchOption) domain.SearchResults {
	f.searchCalls++
	if f.searchFn != nil {
		return f.searchFn(query)
	}
	return domain.SearchResults{}
}

func (f *fakeRetriever) ResolveCourseName(context.Context, string) string { return f.resolved }

func (f *fakeRetriever) CourseByTitle(context.Context, string) *domain.Course { return f.course }

func (f *fakeRetriever) LessonLink(context.Context, string, int) string { return f.lessonLink }

func TestSearchTool_FormatsResultsWithContextHeaders(t *testing.T) {
	r := &fakeRetriever{
		searchFn: func(string) domain.SearchResults {
			return domain.SearchResults{
				Documents: []string{"RAG stands for retrieval-augmented generation."},
				Metadata:  []domain.ChunkMeta{{CourseTitle: "Into to RAG", LessonNumber: 1, ChunkIndex: 0}},
				Distances: []float64{0.1},
			}
		},
		lessonLink: "https://example.com/rag/lesson1",
	}
	tool := NewSearchTool(r)

	out, err := tool.Execute(context.Background(), map[string]any{"query": "what is RAG"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "[Into to RAG - Lesson 1]\nRAG stands for retrieval-augmented generation."
	if out != want {
		t.Errorf("unexpected output:\ngot:  %q\nwant: %q", out, want)
	}

	sources := tool.LastSources()
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
	if sources[0].Label != "Into to RAG - Lesson 1" || sources[0].Link != "https://example.com/rag/lesson1" {
		t.Errorf("unexpected source: %+v", sources[0])
	}
}

func TestSearchTool_MultipleResultsJoinedByBlankLine(t *testing.T) {
	r := &fakeRetriever{
		searchFn: func(string) domain.SearchResults {
			return domain.SearchResults{
				Documents: []string{"first", "second"},
				Metadata: []domain.ChunkMeta{
					{CourseTitle: "Course A", LessonNumber: 1},
					{CourseTitle: "Course B", LessonNumber: -1},
				},
				Distances: []float64{0.1, 0.2},
			}
		},
	}
	tool := NewSearchTool(r)

	out, err := tool.Execute(context.Background(), map[string]any{"query": "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "[Course A - Lesson 1]\nfirst\n\n[Course B]\nsecond"
	if out != want {
		t.Errorf("unexpected output:\ngot:  %q\nwant: %q", out, want)
	}

	sources := tool.LastSources()
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[1].Label != "Course B" || sources[1].Link != "" {
		t.Errorf("lesson-less match must cite the bare course: %+v", sources[1])
	}
}

func TestSearchTool_UnknownCourseHeader(t *testing.T) {
	r := &fakeRetriever{
		searchFn: func(string) domain.SearchResults {
			return domain.SearchResults{
				Documents: []string{"orphan chunk"},
				Metadata:  []domain.ChunkMeta{{LessonNumber: -1}},
				Distances: []float64{0.4},
			}
		},
	}
	tool := NewSearchTool(r)

	out, err := tool.Execute(context.Background(), map[string]any{"query": "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "[unknown]\n") {
		t.Errorf("expected [unknown] header, got %q", out)
	}
}

func TestSearchTool_ErrorResultPassedThroughVerbatim(t *testing.T) {
	r := &fakeRetriever{
		searchFn: func(string) domain.SearchResults {
			return domain.ErrorResults("No course found matching 'Biology'")
		},
	}
	tool := NewSearchTool(r)

	out, err := tool.Execute(context.Background(), map[string]any{"query": "q", "course_name": "Biology"})
	if err != nil {
		t.Fatalf("recoverable condition must not be a Go error: %v", err)
	}
	if out != "No course found matching 'Biology'" {
		t.Errorf("unexpected output: %q", out)
	}
	if len(tool.LastSources()) != 0 {
		t.Error("error results must record no sources")
	}
}

func TestSearchTool_EmptyResultMessages(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"no filters", map[string]any{"query": "q"}, "No relevant content found."},
		{"course filter", map[string]any{"query": "q", "course_name": "MCP"},
			"No relevant content found in course 'MCP'."},
		{"lesson filter", map[string]any{"query": "q", "lesson_number": float64(2)},
			"No relevant content found in lesson 2."},
		{"both filters", map[string]any{"query": "q", "course_name": "MCP", "lesson_number": float64(2)},
			"No relevant content found in course 'MCP' in lesson 2."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := NewSearchTool(&fakeRetriever{})
			out, err := tool.Execute(context.Background(), tc.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tc.want {
				t.Errorf("unexpected message:\ngot:  %q\nwant: %q", out, tc.want)
			}
		})
	}
}

func TestSearchTool_MissingQueryIsError(t *testing.T) {
	tool := NewSearchTool(&fakeRetriever{})

	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected error for missing query")
	}
}

func TestSearchTool_SourcesReplacedEachExecution(t *testing.T) {
	hit := domain.SearchResults{
		Documents: []string{"doc"},
		Metadata:  []domain.ChunkMeta{{CourseTitle: "Course A", LessonNumber: 1}},
		Distances: []float64{0.1},
	}
	empty := false
	r := &fakeRetriever{searchFn: func(string) domain.SearchResults {
		if empty {
			return domain.SearchResults{}
		}
		return hit
	}}
	tool := NewSearchTool(r)

	if _, err := tool.Execute(context.Background(), map[string]any{"query": "q"}); err != nil {
		t.Fatal(err)
	}
	if len(tool.LastSources()) != 1 {
		t.Fatal("expected 1 source after first execution")
	}

	empty = true
	if _, err := tool.Execute(context.Background(), map[string]any{"query": "q"}); err != nil {
		t.Fatal(err)
	}
	if len(tool.LastSources()) != 0 {
		t.Error("sources must be replaced, not appended")
	}
}

func TestOutlineTool_FormatsOutline(t *testing.T) {
	r := &fakeRetriever{
		resolved: "Advanced Python",
		course: &domain.Course{
			Title:      "Advanced Python",
			CourseLink: "https://example.com/python-course",
			Lessons: []domain.Lesson{
				{Number: 1, Title: "Decorators"},
				{Number: 2, Title: "Generators"},
				{Number: 3, Title: "Context Managers"},
			},
		},
	}
	tool := NewOutlineTool(r)

	out, err := tool.Execute(context.Background(), map[string]any{"course_title": "advanced"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"Course: Advanced Python",
		"Course Link: https://example.com/python-course",
		"Lessons (3 total):",
		"1: Decorators",
		"2: Generators",
		"3: Context Managers",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	sources := tool.LastSources()
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
	if sources[0].Label != "Advanced Python" || sources[0].Link != "https://example.com/python-course" {
		t.Errorf("unexpected source: %+v", sources[0])
	}
}

func TestOutlineTool_ResolutionMiss(t *testing.T) {
	tool := NewOutlineTool(&fakeRetriever{})

	out, err := tool.Execute(context.Background(), map[string]any{"course_title": "Nonexistent"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "No course found matching 'Nonexistent'" {
		t.Errorf("unexpected output: %q", out)
	}
	if len(tool.LastSources()) != 0 {
		t.Error("miss must record no sources")
	}
}

func TestOutlineTool_MissingTitleIsError(t *testing.T) {
	tool := NewOutlineTool(&fakeRetriever{})

	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected error for missing course_title")
	}
}

type stubTool struct {
	name    string
	out     string
	err     error
	sources []Source
	reset   bool
}

func (s *stubTool) Name() string                      { return s.name }
func (s *stubTool) Definition() domain.ToolDefinition { return domain.ToolDefinition{Name: s.name} }
func (s *stubTool) Execute(context.Context, map[string]any) (string, error) {
	return s.out, s.err
}
func (s *stubTool) LastSources() []Source { return s.sources }
func (s *stubTool) ResetSources()         { s.reset = true; s.sources = nil }

func TestRegistry_UnknownToolIsRecoverable(t *testing.T) {
	r := NewRegistry()

	out, err := r.Execute(context.Background(), "does_not_exist", nil)
	if err != nil {
		t.Fatalf("unknown tool must not be a Go error: %v", err)
	}
	if out != "Tool 'does_not_exist' not found" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRegistry_ToolErrorsPropagate(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.Register(&stubTool{name: "failing", err: boom})

	_, err := r.Execute(context.Background(), "failing", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected tool error to propagate, got %v", err)
	}
}

func TestRegistry_DefinitionsInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "b"})
	r.Register(&stubTool{name: "a"})

	defs := r.Definitions()
	if len(defs) != 2 || defs[0].Name != "b" || defs[1].Name != "a" {
		t.Errorf("unexpected definitions: %+v", defs)
	}
}

func TestRegistry_LastSourcesNonDestructive(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "a", sources: []Source{{Label: "A"}}})
	r.Register(&stubTool{name: "b", sources: []Source{{Label: "B"}}})

	first := r.LastSources()
	second := r.LastSources()
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("LastSources must not consume: %v then %v", first, second)
	}
	if first[0].Label != "A" || first[1].Label != "B" {
		t.Errorf("expected registration order, got %v", first)
	}
}

func TestRegistry_ResetSourcesReachesEveryTool(t *testing.T) {
	r := NewRegistry()
	a := &stubTool{name: "a", sources: []Source{{Label: "A"}}}
	b := &stubTool{name: "b", sources: []Source{{Label: "B"}}}
	r.Register(a)
	r.Register(b)

	r.ResetSources()
	if !a.reset || !b.reset {
		t.Error("expected every tool reset")
	}
	if len(r.LastSources()) != 0 {
		t.Error("expected no sources after reset")
	}

	// idempotent
	r.ResetSources()
	if len(r.LastSources()) != 0 {
		t.Error("reset must be idempotent")
	}
}

// staticRetriever returns fixed results and mutates nothing, so it is
// safe to share across goroutines.
type staticRetriever struct{}

func (staticRetriever) Search(context.Context, string, ...store.SearchOption) domain.SearchResults {
	return domain.SearchResults{
		Documents: []string{"RAG stands for retrieval-augmented generation."},
		Metadata:  []domain.ChunkMeta{{CourseTitle: "Into to RAG", LessonNumber: 1, ChunkIndex: 0}},
		Distances: []float64{0.1},
	}
}

func (staticRetriever) ResolveCourseName(context.Context, string) string { return "Into to RAG" }

func (staticRetriever) CourseByTitle(context.Context, string) *domain.Course {
	return &domain.Course{Title: "Into to RAG", Lessons: []domain.Lesson{{Number: 1, Title: "Basics"}}}
}

func (staticRetriever) LessonLink(context.Context, string, int) string { return "" }

// One registry serves every HTTP request, so the reset/execute/collect
// sequence runs concurrently for unrelated queries.
func TestRegistry_ConcurrentExecutionsAreSafe(t *testing.T) {
	r := NewRegistry()
	r.Register(NewSearchTool(staticRetriever{}))
	r.Register(NewOutlineTool(staticRetriever{}))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.ResetSources()
				if _, err := r.Execute(context.Background(), SearchToolName, map[string]any{"query": "rag"}); err != nil {
					t.Errorf("search execute: %v", err)
					return
				}
				if _, err := r.Execute(context.Background(), OutlineToolName, map[string]any{"course_title": "rag"}); err != nil {
					t.Errorf("outline execute: %v", err)
					return
				}
				for _, s := range r.LastSources() {
					if s.Label != "Into to RAG - Lesson 1" && s.Label != "Into to RAG" {
						t.Errorf("corrupted source label %q", s.Label)
						return
					}
				}
				r.ResetSources()
			}
		}()
	}
	wg.Wait()
}
