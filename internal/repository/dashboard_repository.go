package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// DashboardRepository runs the aggregate count queries backing the
// role-scoped dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository creates a new instance of DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

func (r *DashboardRepository) count(ctx context.Context, label, query string, args ...interface{}) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", label, err)
	}
	return n, nil
}

// CountUsersByRole counts active users holding the given role.
func (r *DashboardRepository) CountUsersByRole(ctx context.Context, role string) (int, error) {
	return r.count(ctx, "users by role", `SELECT COUNT(*) FROM users WHERE role = $1 AND active = TRUE`, role)
}

// CountClasses counts all classes.
func (r *DashboardRepository) CountClasses(ctx context.Context) (int, error) {
	return r.count(ctx, "classes", `SELECT COUNT(*) FROM classes`)
}

// CountSubjects counts all subjects.
func (r *DashboardRepository) CountSubjects(ctx context.Context) (int, error) {
	return r.count(ctx, "subjects", `SELECT COUNT(*) FROM subjects`)
}

// CountLessons counts all lessons.
func (r *DashboardRepository) CountLessons(ctx context.Context) (int, error) {
	return r.count(ctx, "lessons", `SELECT COUNT(*) FROM lessons`)
}

// CountSubjectsByTeacher counts subjects taught by the teacher.
func (r *DashboardRepository) CountSubjectsByTeacher(ctx context.Context, teacherID string) (int, error) {
	return r.count(ctx, "subjects by teacher", `SELECT COUNT(*) FROM subjects WHERE teacher_id = $1`, teacherID)
}

// CountTodayLessonsByTeacher counts the teacher's lessons inside the day
// window [dayStart, dayStart+24h).
func (r *DashboardRepository) CountTodayLessonsByTeacher(ctx context.Context, teacherID string, dayStart time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM lessons l JOIN subjects s ON s.id = l.subject_id WHERE s.teacher_id = $1 AND l.start_time >= $2 AND l.start_time < $3`
	return r.count(ctx, "today lessons by teacher", query, teacherID, dayStart, dayStart.Add(24*time.Hour))
}

// CountStudentsByTeacher counts distinct students enrolled in any class the
// teacher's subjects are assigned to.
func (r *DashboardRepository) CountStudentsByTeacher(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT cs.student_id) FROM class_students cs JOIN subject_classes sc ON sc.class_id = cs.class_id JOIN subjects s ON s.id = sc.subject_id WHERE s.teacher_id = $1`
	return r.count(ctx, "students by teacher", query, teacherID)
}

// CountClassesByStudent counts the classes the student belongs to.
func (r *DashboardRepository) CountClassesByStudent(ctx context.Context, studentID string) (int, error) {
	return r.count(ctx, "classes by student", `SELECT COUNT(*) FROM class_students WHERE student_id = $1`, studentID)
}

// CountTodayLessonsByStudent counts the student's lessons inside the day
// window [dayStart, dayStart+24h).
func (r *DashboardRepository) CountTodayLessonsByStudent(ctx context.Context, studentID string, dayStart time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM lessons l WHERE l.class_id IN (SELECT class_id FROM class_students WHERE student_id = $1) AND l.start_time >= $2 AND l.start_time < $3`
	return r.count(ctx, "today lessons by student", query, studentID, dayStart, dayStart.Add(24*time.Hour))
}

// CountLessonsForStudent counts all lessons scheduled for the student's
// classes, the denominator of the attendance rate.
func (r *DashboardRepository) CountLessonsForStudent(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM lessons l WHERE l.class_id IN (SELECT class_id FROM class_students WHERE student_id = $1)`
	return r.count(ctx, "lessons for student", query, studentID)
}

// CountAttendedByStudent counts the student's lessons recorded as present
// or late, the numerator of the attendance rate.
func (r *DashboardRepository) CountAttendedByStudent(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance_records WHERE student_id = $1 AND status IN ('present', 'late')`
	return r.count(ctx, "attended lessons by student", query, studentID)
}
