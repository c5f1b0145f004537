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

// SubjectRepository provides database access for subjects and their class
// associations.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new instance of SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID returns a subject by identifier.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, name, teacher_id, created_at, updated_at FROM subjects WHERE id = $1 LIMIT 1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject by id: %w", err)
	}
	return &subject, nil
}

// List returns all subjects ordered by name.
func (r *SubjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	const query = `SELECT id, name, teacher_id, created_at, updated_at FROM subjects ORDER BY name ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListByTeacher returns the subjects owned by a teacher.
func (r *SubjectRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Subject, error) {
	const query = `SELECT id, name, teacher_id, created_at, updated_at FROM subjects WHERE teacher_id = $1 ORDER BY name ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, teacherID); err != nil {
		return nil, fmt.Errorf("list subjects by teacher: %w", err)
	}
	return subjects, nil
}

// Create inserts a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, name, teacher_id, created_at, updated_at) VALUES (:id, :name, :teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies the subject name and owner.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, teacher_id = :teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Delete removes a subject; its lessons cascade.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM subjects WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}

// ReplaceClasses swaps the classes the subject is taught to.
func (r *SubjectRepository) ReplaceClasses(ctx context.Context, subjectID string, classIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace classes: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM subject_classes WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("clear subject classes: %w", err)
	}

	const insert = `INSERT INTO subject_classes (subject_id, class_id) SELECT $1, id FROM classes WHERE id = $2 ON CONFLICT DO NOTHING`
	for _, classID := range classIDs {
		if _, err := tx.ExecContext(ctx, insert, subjectID, classID); err != nil {
			return fmt.Errorf("add subject class: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace classes: %w", err)
	}
	return nil
}

// ListClasses returns the classes a subject is taught to.
func (r *SubjectRepository) ListClasses(ctx context.Context, subjectID string) ([]models.Class, error) {
	const query = `SELECT c.id, c.name, c.created_at, c.updated_at FROM classes c JOIN subject_classes sc ON sc.class_id = c.id WHERE sc.subject_id = $1 ORDER BY c.name ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject classes: %w", err)
	}
	return classes, nil
}
