package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolkit/qr-attendance-api/internal/models"
)

// LessonRepository provides database access for scheduled lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new instance of LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

const lessonDetailColumns = `l.id, l.subject_id, l.class_id, l.start_time, l.end_time, l.created_at, s.name AS subject_name, c.name AS class_name, s.teacher_id, t.full_name AS teacher_name`

const lessonDetailJoins = `FROM lessons l JOIN subjects s ON s.id = l.subject_id JOIN classes c ON c.id = l.class_id JOIN users t ON t.id = s.teacher_id`

// FindByID returns a lesson with subject/class/teacher metadata.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.LessonDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE l.id = $1 LIMIT 1", lessonDetailColumns, lessonDetailJoins)
	var lesson models.LessonDetail
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lesson by id: %w", err)
	}
	return &lesson, nil
}

// List returns lessons matching the filter. Exactly one of TeacherID and
// StudentID may be set to scope the view; Date restricts to the calendar
// day of the start timestamp.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.LessonDetail, error) {
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("s.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("l.class_id IN (SELECT class_id FROM class_students WHERE student_id = $%d)", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Date != nil {
		dayStart := filter.Date.UTC().Truncate(24 * time.Hour)
		conditions = append(conditions, fmt.Sprintf("l.start_time >= $%d AND l.start_time < $%d", len(args)+1, len(args)+2))
		args = append(args, dayStart, dayStart.Add(24*time.Hour))
	}

	query := fmt.Sprintf("SELECT %s %s", lessonDetailColumns, lessonDetailJoins)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY l.start_time ASC"

	var lessons []models.LessonDetail
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// Create inserts a new lesson.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO lessons (id, subject_id, class_id, start_time, end_time, created_at) VALUES (:id, :subject_id, :class_id, :start_time, :end_time, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson; its tokens and attendance records cascade.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM lessons WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}
