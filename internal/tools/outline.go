package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kailas-cloud/coursechat/internal/domain"
)

// OutlineToolName is the name the model addresses the outline lookup by.
const OutlineToolName = "get_course_outline"

// OutlineTool answers course-structure questions: title, link and the
// complete lesson list of one course. One instance serves every request,
// so the source slot is guarded by mu.
type OutlineTool struct {
	store Retriever

	mu      sync.Mutex
	sources []Source
}

// NewOutlineTool creates the outline lookup tool.
func NewOutlineTool(retriever Retriever) *OutlineTool {
	return &OutlineTool{store: retriever}
}

// Name implements Tool.
func (t *OutlineTool) Name() string { return OutlineToolName }

// Definition implements Tool.
func (t *OutlineTool) Definition() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        OutlineToolName,
		Description: "Get the complete outline of a course: title, link and the full lesson list",
		InputSchema: domain.InputSchema{
			Type: "object",
			Properties: map[string]domain.SchemaProperty{
				"course_title": {
					Type:        "string",
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
			},
			Required: []string{"course_title"},
		},
	}
}

// Execute implements Tool.
func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	t.ResetSources()

	title := stringArg(args, "course_title")
	if title == "" {
		return "", fmt.Errorf("get_course_outline: course_title argument is required")
	}

	resolved := t.store.ResolveCourseName(ctx, title)
	if resolved == "" {
		return fmt.Sprintf("No course found matching '%s'", title), nil
	}

	course := t.store.CourseByTitle(ctx, resolved)
	if course == nil {
		return fmt.Sprintf("No course found matching '%s'", title), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", course.Title)
	if course.CourseLink != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", course.CourseLink)
	}
	fmt.Fprintf(&b, "Lessons (%d total):", len(course.Lessons))
	for _, l := range course.Lessons {
		fmt.Fprintf(&b, "\n%d: %s", l.Number, l.Title)
	}

	t.mu.Lock()
	t.sources = []Source{{Label: course.Title, Link: course.CourseLink}}
	t.mu.Unlock()
	return b.String(), nil
}

// LastSources implements Tool.
func (t *OutlineTool) LastSources() []Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sources
}

// ResetSources implements Tool.
func (t *OutlineTool) ResetSources() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources = nil
}
