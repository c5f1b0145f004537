package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolkit/qr-attendance-api/internal/models"
)

// ClassRepository provides database access for classes and their membership.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new instance of ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, created_at, updated_at FROM classes WHERE id = $1 LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// List returns all classes ordered by name.
func (r *ClassRepository) List(ctx context.Context) ([]models.Class, error) {
	const query = `SELECT id, name, created_at, updated_at FROM classes ORDER BY name ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, created_at, updated_at) VALUES (:id, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update renames a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class. Membership rows, lessons, tokens and attendance
// cascade at the store level.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM classes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// ReplaceStudents swaps the enrolled student set in one transaction. Only
// identities with the student role are attached; other IDs are ignored.
func (r *ClassRepository) ReplaceStudents(ctx context.Context, classID string, studentIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace students: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM class_students WHERE class_id = $1`, classID); err != nil {
		return fmt.Errorf("clear class students: %w", err)
	}

	const insert = `INSERT INTO class_students (class_id, student_id) SELECT $1, id FROM users WHERE id = $2 AND role = 'student' ON CONFLICT DO NOTHING`
	for _, studentID := range studentIDs {
		if _, err := tx.ExecContext(ctx, insert, classID, studentID); err != nil {
			return fmt.Errorf("add class student: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace students: %w", err)
	}
	return nil
}

// ListStudents returns the students currently enrolled in a class.
func (r *ClassRepository) ListStudents(ctx context.Context, classID string) ([]models.User, error) {
	const query = `SELECT u.id, u.phone, u.full_name, u.role, u.password_hash, u.active, u.last_login, u.created_at, u.updated_at FROM users u JOIN class_students cs ON cs.student_id = u.id WHERE cs.class_id = $1 ORDER BY u.full_name ASC`
	var students []models.User
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}
