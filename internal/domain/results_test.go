package domain

import "testing"

func TestErrorResults(t *testing.T) {
	r := ErrorResults("index unreachable")
	if r.Err != "index unreachable" {
		t.Errorf("Err = %q, want %q", r.Err, "index unreachable")
	}
	if len(r.Documents) != 0 || len(r.Metadata) != 0 || len(r.Distances) != 0 {
		t.Error("error results must carry no documents")
	}
	if !r.IsEmpty() {
		t.Error("error results must be empty")
	}
}

func TestSearchResults_EmptyVsError(t *testing.T) {
	empty := SearchResults{}
	if empty.Err != "" {
		t.Error("zero value must not carry an error")
	}
	if !empty.IsEmpty() {
		t.Error("zero value must be empty")
	}

	full := SearchResults{
		Documents: []string{"doc"},
		Metadata:  []ChunkMeta{{CourseTitle: "C", LessonNumber: 1}},
		Distances: []float64{0.2},
	}
	if full.IsEmpty() {
		t.Error("populated results must not be empty")
	}
}

func TestChunkMeta_HasLesson(t *testing.T) {
	if !(ChunkMeta{LessonNumber: 0}).HasLesson() {
		t.Error("lesson 0 is a valid lesson")
	}
	if (ChunkMeta{LessonNumber: -1}).HasLesson() {
		t.Error("negative lesson number means no lesson")
	}
}

func TestCourse_LessonByNumber(t *testing.T) {
	c := Course{
		Title: "Test Course",
		Lessons: []Lesson{
			{Number: 1, Title: "Intro", Link: "https://example.com/l1"},
			{Number: 2, Title: "Advanced"},
		},
	}

	l := c.LessonByNumber(2)
	if l == nil || l.Title != "Advanced" {
		t.Fatalf("LessonByNumber(2) = %+v, want Advanced", l)
	}
	if c.LessonByNumber(9) != nil {
		t.Error("unknown lesson number must return nil")
	}
}

func TestReply_FirstTextAndToolUses(t *testing.T) {
	r := Reply{
		Content: []ContentBlock{
			ToolUseBlock("t1", "search_course_content", map[string]any{"query": "x"}),
			TextBlock("thinking"),
			ToolUseBlock("t2", "get_course_outline", nil),
		},
		StopReason: StopToolUse,
	}

	if got := r.FirstText(); got != "thinking" {
		t.Errorf("FirstText = %q", got)
	}
	uses := r.ToolUses()
	if len(uses) != 2 {
		t.Fatalf("ToolUses len = %d, want 2", len(uses))
	}
	if uses[0].ID != "t1" || uses[1].Name != "get_course_outline" {
		t.Errorf("unexpected tool uses: %+v", uses)
	}

	none := Reply{Content: []ContentBlock{ToolUseBlock("t", "n", nil)}}
	if none.FirstText() != "" {
		t.Error("FirstText on tool-only reply must be empty")
	}
}
