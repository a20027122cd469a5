package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/kailas-cloud/coursechat/internal/domain"
)

func courseToHash(c *domain.Course, vec []float32) (map[string]string, error) {
	lessons := c.Lessons
	if lessons == nil {
		lessons = []domain.Lesson{}
	}
	raw, err := json.Marshal(lessons)
	if err != nil {
		return nil, fmt.Errorf("marshal lessons of %q: %w", c.Title, err)
	}

	return map[string]string{
		fieldTitle:       c.Title,
		fieldInstructor:  c.Instructor,
		fieldCourseLink:  c.CourseLink,
		fieldLessonsJSON: string(raw),
		fieldLessonCount: strconv.Itoa(len(lessons)),
		fieldVector:      vectorToBytes(vec),
	}, nil
}

// courseFromHash hydrates a domain Course from an HGETALL result map.
func courseFromHash(m map[string]string) (domain.Course, error) {
	c := domain.Course{
		Title:      m[fieldTitle],
		CourseLink: m[fieldCourseLink],
		Instructor: m[fieldInstructor],
	}
	if raw := m[fieldLessonsJSON]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Lessons); err != nil {
			return domain.Course{}, fmt.Errorf("parse lessons of %q: %w", c.Title, err)
		}
	}
	return c, nil
}

func chunkToHash(c *domain.CourseChunk, vec []float32) map[string]string {
	m := map[string]string{
		fieldContent:     c.Content,
		fieldCourseTitle: c.CourseTitle,
		fieldChunkIndex:  strconv.Itoa(c.ChunkIndex),
		fieldVector:      vectorToBytes(vec),
	}
	// Chunks before the first lesson marker carry no lesson_number field,
	// so a lesson filter can never match them.
	if c.LessonNumber != nil {
		m[fieldLessonNumber] = strconv.Itoa(*c.LessonNumber)
	}
	return m
}

func chunkMetaFromFields(fields map[string]string) domain.ChunkMeta {
	meta := domain.ChunkMeta{CourseTitle: fields[fieldCourseTitle], LessonNumber: -1}
	if v := fields[fieldLessonNumber]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			meta.LessonNumber = n
		}
	}
	if v := fields[fieldChunkIndex]; v != "" {
		meta.ChunkIndex, _ = strconv.Atoi(v)
	}
	return meta
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
