// Package ingest parses course documents and slices them into
// embeddable chunks.
//
// The expected document shape is a small header followed by lesson
// sections:
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//
//	Lesson 0: Introduction
//	Lesson Link: <url>
//	<lesson text>
package ingest

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/kailas-cloud/coursechat/internal/domain"
)

var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// Processor turns course documents into a catalog entry plus content
// chunks. Chunking is sentence-aware with a character budget and overlap;
// chunk quality beyond that is out of scope.
type Processor struct {
	chunkSize    int
	chunkOverlap int
}

// NewProcessor creates a Processor with the given chunking budget.
func NewProcessor(chunkSize, chunkOverlap int) *Processor {
	return &Processor{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// ProcessFile reads and parses one course document.
func (p *Processor) ProcessFile(path string) (*domain.Course, []domain.CourseChunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read course document: %w", err)
	}
	course, chunks, err := p.Process(string(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return course, chunks, nil
}

// segment is one run of text belonging to the same lesson; lesson is nil
// for text before the first lesson marker.
type segment struct {
	lesson *int
	text   []string
}

// Process parses a course document. The title line is mandatory;
// everything else degrades gracefully.
func (p *Processor) Process(text string) (*domain.Course, []domain.CourseChunk, error) {
	course := &domain.Course{}
	segments := []segment{{}}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "Course Title:"):
			course.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Title:"))
			continue
		case strings.HasPrefix(trimmed, "Course Link:"):
			course.CourseLink = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Link:"))
			continue
		case strings.HasPrefix(trimmed, "Course Instructor:"):
			course.Instructor = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Instructor:"))
			continue
		}

		if m := lessonMarker.FindStringSubmatch(trimmed); m != nil {
			number, _ := strconv.Atoi(m[1])
			course.Lessons = append(course.Lessons, domain.Lesson{Number: number, Title: m[2]})
			n := number
			segments = append(segments, segment{lesson: &n})
			continue
		}

		if strings.HasPrefix(trimmed, "Lesson Link:") && len(course.Lessons) > 0 {
			course.Lessons[len(course.Lessons)-1].Link = strings.TrimSpace(strings.TrimPrefix(trimmed, "Lesson Link:"))
			continue
		}

		if trimmed != "" {
			cur := &segments[len(segments)-1]
			cur.text = append(cur.text, trimmed)
		}
	}

	if course.Title == "" {
		return nil, nil, fmt.Errorf("document has no Course Title header")
	}

	var chunks []domain.CourseChunk
	for _, seg := range segments {
		body := strings.Join(seg.text, " ")
		if body == "" {
			continue
		}
		for _, piece := range chunkText(body, p.chunkSize, p.chunkOverlap) {
			chunks = append(chunks, domain.CourseChunk{
				Content:      p.withContext(course.Title, seg.lesson, piece),
				CourseTitle:  course.Title,
				LessonNumber: seg.lesson,
				ChunkIndex:   len(chunks),
			})
		}
	}
	return course, chunks, nil
}

// withContext prefixes a chunk so it stays attributable after retrieval.
func (p *Processor) withContext(title string, lesson *int, chunk string) string {
	if lesson != nil {
		return fmt.Sprintf("Course %s Lesson %d content: %s", title, *lesson, chunk)
	}
	return fmt.Sprintf("Course %s content: %s", title, chunk)
}

// chunkText packs sentences greedily up to size characters, then steps
// back far enough to cover the overlap budget before starting the next
// chunk. A sentence longer than the budget becomes its own chunk.
func chunkText(text string, size, overlap int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		var cur []string
		length := 0
		j := i
		for j < len(sentences) {
			sl := len(sentences[j])
			if len(cur) > 0 && length+1+sl > size {
				break
			}
			cur = append(cur, sentences[j])
			if len(cur) == 1 {
				length = sl
			} else {
				length += 1 + sl
			}
			j++
		}
		chunks = append(chunks, strings.Join(cur, " "))
		if j >= len(sentences) {
			break
		}

		back := j
		covered := 0
		for back > i+1 && covered < overlap {
			back--
			covered += len(sentences[back]) + 1
		}
		i = back
	}
	return chunks
}

func isTerminator(c byte) bool { return c == '.' || c == '!' || c == '?' }

// splitSentences breaks text at sentence terminators followed by
// whitespace, keeping the terminators.
func splitSentences(text string) []string {
	var out []string
	start := 0
	i := 0
	for i < len(text) {
		if isTerminator(text[i]) {
			j := i + 1
			for j < len(text) && isTerminator(text[j]) {
				j++
			}
			if j >= len(text) || text[j] == ' ' || text[j] == '\n' || text[j] == '\t' {
				if s := strings.TrimSpace(text[start:j]); s != "" {
					out = append(out, s)
				}
				start = j
				i = j
				continue
			}
			i = j
			continue
		}
		i++
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
