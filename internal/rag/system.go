// Package rag wires retrieval, tools, generation and session history into
// the query flow the HTTP layer exposes.
package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/coursechat/internal/domain"
	"github.com/kailas-cloud/coursechat/internal/generator"
	"github.com/kailas-cloud/coursechat/internal/logger"
	"github.com/kailas-cloud/coursechat/internal/tools"
)

// Store is the vector store surface the coordinator needs.
type Store interface {
	AddCourse(ctx context.Context, course *domain.Course) error
	AddChunks(ctx context.Context, chunks []domain.CourseChunk) error
	ExistingCourseTitles(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	CourseCount(ctx context.Context) int
	CourseTitles(ctx context.Context) []string
}

// Sessions is the conversation history surface.
type Sessions interface {
	History(id string) string
	AddExchange(id, user, assistant string)
}

// Registry is the tool registry surface. It doubles as the generator's
// tool executor.
type Registry interface {
	Definitions() []domain.ToolDefinition
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
	LastSources() []tools.Source
	ResetSources()
}

// Generator produces the answer for one query.
type Generator interface {
	Generate(ctx context.Context, query, history string, defs []domain.ToolDefinition, exec generator.ToolExecutor) (string, error)
}

// Processor parses course documents.
type Processor interface {
	ProcessFile(path string) (*domain.Course, []domain.CourseChunk, error)
}

// Analytics is the catalog summary for the courses endpoint.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// System coordinates one query end to end and owns document ingestion.
type System struct {
	store     Store
	gen       Generator
	sessions  Sessions
	registry  Registry
	processor Processor
	log       *zap.Logger
}

// New creates the coordinator.
func New(store Store, gen Generator, sessions Sessions, registry Registry, processor Processor, log *zap.Logger) *System {
	return &System{
		store:     store,
		gen:       gen,
		sessions:  sessions,
		registry:  registry,
		processor: processor,
		log:       log,
	}
}

// Query answers one user question. Sources reflect only this query's tool
// executions; they are cleared before and after so nothing bleeds between
// queries. An empty session id skips history on both ends.
func (s *System) Query(ctx context.Context, text, sessionID string) (string, []tools.Source, error) {
	history := ""
	if sessionID != "" {
		history = s.sessions.History(sessionID)
	}

	s.registry.ResetSources()

	answer, err := s.gen.Generate(ctx, text, history, s.registry.Definitions(), s.registry)
	if err != nil {
		s.registry.ResetSources()
		return "", nil, err
	}

	sources := s.registry.LastSources()
	s.registry.ResetSources()

	if sessionID != "" {
		s.sessions.AddExchange(sessionID, text, answer)
	}

	logger.FromContext(ctx).Debug("query answered",
		zap.Int("sources", len(sources)),
		zap.Bool("with_history", history != ""))
	return answer, sources, nil
}

// AddCourseDocument ingests one course document: catalog entry first,
// then the content chunks. Returns the parsed course and its chunk count.
func (s *System) AddCourseDocument(ctx context.Context, path string) (*domain.Course, int, error) {
	course, chunks, err := s.processor.ProcessFile(path)
	if err != nil {
		return nil, 0, err
	}

	if err := s.store.AddCourse(ctx, course); err != nil {
		return nil, 0, err
	}
	if err := s.store.AddChunks(ctx, chunks); err != nil {
		return nil, 0, err
	}

	s.log.Info("course ingested",
		zap.String("title", course.Title),
		zap.Int("lessons", len(course.Lessons)),
		zap.Int("chunks", len(chunks)))
	return course, len(chunks), nil
}

// AddCourseFolder ingests every course document in a directory, skipping
// titles already present in the catalog. With clearExisting the store is
// emptied first. Returns the number of courses and chunks added.
func (s *System) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) (int, int, error) {
	if clearExisting {
		if err := s.store.Clear(ctx); err != nil {
			return 0, 0, fmt.Errorf("clear store: %w", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read course folder: %w", err)
	}

	existing, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return 0, 0, err
	}
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t] = true
	}

	coursesAdded, chunksAdded := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !isCourseDocument(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		course, chunks, err := s.processor.ProcessFile(path)
		if err != nil {
			s.log.Warn("skipping unparseable document", zap.String("path", path), zap.Error(err))
			continue
		}
		if known[course.Title] {
			s.log.Debug("course already ingested", zap.String("title", course.Title))
			continue
		}

		if err := s.store.AddCourse(ctx, course); err != nil {
			return coursesAdded, chunksAdded, err
		}
		if err := s.store.AddChunks(ctx, chunks); err != nil {
			return coursesAdded, chunksAdded, err
		}

		known[course.Title] = true
		coursesAdded++
		chunksAdded += len(chunks)
		s.log.Info("course ingested",
			zap.String("title", course.Title),
			zap.Int("chunks", len(chunks)))
	}
	return coursesAdded, chunksAdded, nil
}

func isCourseDocument(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// CourseAnalytics summarizes the catalog for the courses endpoint.
func (s *System) CourseAnalytics(ctx context.Context) Analytics {
	return Analytics{
		TotalCourses: s.store.CourseCount(ctx),
		CourseTitles: s.store.CourseTitles(ctx),
	}
}
