package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kailas-cloud/coursechat/internal/domain"
	"github.com/kailas-cloud/coursechat/internal/store"
)

// Retriever is the vector store surface the tools depend on.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...store.SearchOption) domain.SearchResults
	ResolveCourseName(ctx context.Context, name string) string
	CourseByTitle(ctx context.Context, title string) *domain.Course
	LessonLink(ctx context.Context, title string, lesson int) string
}

// SearchToolName is the name the model addresses the content search by.
const SearchToolName = "search_course_content"

// SearchTool answers course-content questions by semantic search with
// optional course and lesson filters. One instance serves every request,
// so the source slot is guarded by mu.
type SearchTool struct {
	store Retriever

	mu      sync.Mutex
	sources []Source
}

// NewSearchTool creates the content search tool.
func NewSearchTool(retriever Retriever) *SearchTool {
	return &SearchTool{store: retriever}
}

// Name implements Tool.
func (t *SearchTool) Name() string { return SearchToolName }

// Definition implements Tool.
func (t *SearchTool) Definition() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        SearchToolName,
		Description: "Search course materials with smart course name matching and lesson filtering",
		InputSchema: domain.InputSchema{
			Type: "object",
			Properties: map[string]domain.SchemaProperty{
				"query": {
					Type:        "string",
					Description: "What to search for in the course content",
				},
				"course_name": {
					Type:        "string",
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": {
					Type:        "integer",
					Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			Required: []string{"query"},
		},
	}
}

// Execute implements Tool. Empty results and unresolvable course names are
// reported as text so the model can rephrase the answer; only a missing
// required argument is a hard error.
func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	t.ResetSources()

	query := stringArg(args, "query")
	if query == "" {
		return "", fmt.Errorf("search_course_content: query argument is required")
	}
	courseName := stringArg(args, "course_name")
	lesson := intArg(args, "lesson_number")

	opts := make([]store.SearchOption, 0, 2)
	if courseName != "" {
		opts = append(opts, store.WithCourse(courseName))
	}
	if lesson != nil {
		opts = append(opts, store.WithLesson(*lesson))
	}

	results := t.store.Search(ctx, query, opts...)
	if results.Err != "" {
		return results.Err, nil
	}
	if results.IsEmpty() {
		msg := "No relevant content found"
		if courseName != "" {
			msg += fmt.Sprintf(" in course '%s'", courseName)
		}
		if lesson != nil {
			msg += fmt.Sprintf(" in lesson %d", *lesson)
		}
		return msg + ".", nil
	}
	return t.format(ctx, results), nil
}

// format renders each match as a bracketed context header plus the chunk
// text, and records one source per match.
func (t *SearchTool) format(ctx context.Context, results domain.SearchResults) string {
	blocks := make([]string, 0, len(results.Documents))
	sources := make([]Source, 0, len(results.Documents))

	for i, doc := range results.Documents {
		meta := results.Metadata[i]
		courseTitle := meta.CourseTitle
		if courseTitle == "" {
			courseTitle = "unknown"
		}

		header := fmt.Sprintf("[%s]", courseTitle)
		src := Source{Label: courseTitle}
		if meta.HasLesson() {
			header = fmt.Sprintf("[%s - Lesson %d]", courseTitle, meta.LessonNumber)
			src.Label = fmt.Sprintf("%s - Lesson %d", courseTitle, meta.LessonNumber)
			src.Link = t.store.LessonLink(ctx, meta.CourseTitle, meta.LessonNumber)
		}

		blocks = append(blocks, header+"\n"+doc)
		sources = append(sources, src)
	}

	t.mu.Lock()
	t.sources = sources
	t.mu.Unlock()
	return strings.Join(blocks, "\n\n")
}

// LastSources implements Tool.
func (t *SearchTool) LastSources() []Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sources
}

// ResetSources implements Tool.
func (t *SearchTool) ResetSources() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources = nil
}
