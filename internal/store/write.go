package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/coursechat/internal/db"
	"github.com/kailas-cloud/coursechat/internal/domain"
)

// EnsureIndexes creates the catalog and content FT indexes if missing.
func (s *VectorStore) EnsureIndexes(ctx context.Context) error {
	catalog := db.NewIndex(s.catalogIndex()).
		Prefix(s.cfg.KeyPrefix + catalogSegment).
		Tag(fieldTitle).
		VectorHNSW(fieldVector, s.cfg.VectorDim, db.DistanceCosine, s.cfg.HNSWM, s.cfg.HNSWEFConstruct).
		MustBuild()

	content := db.NewIndex(s.contentIndex()).
		Prefix(s.cfg.KeyPrefix + contentSegment).
		Tag(fieldCourseTitle).
		Numeric(fieldLessonNumber).
		VectorHNSW(fieldVector, s.cfg.VectorDim, db.DistanceCosine, s.cfg.HNSWM, s.cfg.HNSWEFConstruct).
		MustBuild()

	for _, idx := range []*db.IndexDefinition{catalog, content} {
		if err := s.db.CreateIndex(ctx, idx); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
	}
	return nil
}

// AddCourse writes one catalog entry. The title is embedded so partial
// names can be resolved against it semantically.
func (s *VectorStore) AddCourse(ctx context.Context, course *domain.Course) error {
	vec, err := s.embedder.Embed(ctx, course.Title)
	if err != nil {
		return fmt.Errorf("embed course title: %w", err)
	}

	fields, err := courseToHash(course, vec)
	if err != nil {
		return err
	}
	if err := s.db.HSet(ctx, s.catalogKey(course.Title), fields); err != nil {
		return fmt.Errorf("write catalog entry %q: %w", course.Title, err)
	}
	return nil
}

// AddChunks embeds and writes content chunks in one pipelined batch.
func (s *VectorStore) AddChunks(ctx context.Context, chunks []domain.CourseChunk) error {
	items := make([]db.HashSetItem, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		vec, err := s.embedder.Embed(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("embed chunk %d of %q: %w", c.ChunkIndex, c.CourseTitle, err)
		}
		items = append(items, db.HashSetItem{
			Key:    s.contentKey(c.CourseTitle, c.ChunkIndex),
			Fields: chunkToHash(c, vec),
		})
	}
	if err := s.db.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("write content chunks: %w", err)
	}
	return nil
}

// ExistingCourseTitles returns the titles already present in the catalog.
// Unlike the read accessors this is an ingestion step and failures matter.
func (s *VectorStore) ExistingCourseTitles(ctx context.Context) ([]string, error) {
	keys, err := s.db.Scan(ctx, s.cfg.KeyPrefix+catalogSegment+"*")
	if err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}

	hashes, err := s.db.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	titles := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if t := h[fieldTitle]; t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}

// Clear deletes every catalog and content hash. The FT indexes stay; they
// drop documents as the hashes go.
func (s *VectorStore) Clear(ctx context.Context) error {
	for _, segment := range []string{catalogSegment, contentSegment} {
		keys, err := s.db.Scan(ctx, s.cfg.KeyPrefix+segment+"*")
		if err != nil {
			return fmt.Errorf("scan %s: %w", segment, err)
		}
		if err := s.db.Del(ctx, keys...); err != nil {
			return fmt.Errorf("delete %s: %w", segment, err)
		}
	}
	return nil
}
