package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolkit/qr-attendance-api/internal/models"
)

// AttendanceRepository provides database access for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new instance of AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert writes the attendance outcome for a (lesson, student) pair in one
// statement. A repeated scan for the same pair overwrites the previous
// status and marked_at, so the latest scan always wins.
func (r *AttendanceRepository) Upsert(ctx context.Context, lessonID, studentID string, status models.AttendanceStatus, markedAt time.Time) (*models.AttendanceRecord, error) {
	const query = `INSERT INTO attendance_records (id, lesson_id, student_id, status, marked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (lesson_id, student_id)
		DO UPDATE SET status = EXCLUDED.status, marked_at = EXCLUDED.marked_at, updated_at = EXCLUDED.updated_at
		RETURNING id, lesson_id, student_id, status, marked_at, created_at, updated_at`

	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, uuid.NewString(), lessonID, studentID, status, markedAt, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", err)
	}
	return &record, nil
}

const attendanceDetailColumns = `ar.id, ar.lesson_id, ar.student_id, ar.status, ar.marked_at, ar.created_at, ar.updated_at, u.full_name AS student_name, s.id AS subject_id, s.name AS subject_name, c.id AS class_id, c.name AS class_name, l.start_time`

const attendanceDetailJoins = `FROM attendance_records ar JOIN lessons l ON l.id = ar.lesson_id JOIN subjects s ON s.id = l.subject_id JOIN classes c ON c.id = l.class_id JOIN users u ON u.id = ar.student_id`

// List returns attendance records matching the filter. All filter fields
// combine with AND; role scoping happens by setting TeacherID or StudentID
// before the call.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, error) {
	conditions := []string{}
	args := []interface{}{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("s.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("ar.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("l.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("l.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Date != nil {
		dayStart := filter.Date.UTC().Truncate(24 * time.Hour)
		conditions = append(conditions, fmt.Sprintf("l.start_time >= $%d AND l.start_time < $%d", len(args)+1, len(args)+2))
		args = append(args, dayStart, dayStart.Add(24*time.Hour))
	}

	query := fmt.Sprintf("SELECT %s %s", attendanceDetailColumns, attendanceDetailJoins)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY l.start_time DESC, u.full_name ASC"

	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}
