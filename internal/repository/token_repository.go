package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/schoolkit/qr-attendance-api/internal/models"
)

// TokenRepository provides database access for redemption tokens.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new instance of TokenRepository.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// ListEnrolledStudentIDs returns the students currently enrolled in the
// lesson's target class.
func (r *TokenRepository) ListEnrolledStudentIDs(ctx context.Context, lessonID string) ([]string, error) {
	const query = `SELECT cs.student_id FROM class_students cs JOIN lessons l ON l.class_id = cs.class_id WHERE l.id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, lessonID); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return ids, nil
}

// CreateBatch persists tokens inside one transaction. Pairs that already
// hold a token are skipped at the store level, so re-running issuance never
// duplicates rows or rewrites existing codes.
func (r *TokenRepository) CreateBatch(ctx context.Context, tokens []models.Token) error {
	if len(tokens) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin token batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO tokens (id, lesson_id, student_id, code, created_at) VALUES (:id, :lesson_id, :student_id, :code, :created_at) ON CONFLICT (lesson_id, student_id) DO NOTHING`
	for i := range tokens {
		if _, err := tx.NamedExecContext(ctx, insert, &tokens[i]); err != nil {
			return fmt.Errorf("insert token: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit token batch: %w", err)
	}
	return nil
}

// FindRedemptionContext resolves a redemption code to the token, the
// lesson's start time, and the teacher owning the lesson's subject. The
// lookup is an exact match on the unique code column.
func (r *TokenRepository) FindRedemptionContext(ctx context.Context, code string) (*models.RedemptionContext, error) {
	const query = `SELECT tk.id, tk.lesson_id, tk.student_id, tk.code, tk.created_at, l.start_time AS lesson_start, s.teacher_id FROM tokens tk JOIN lessons l ON l.id = tk.lesson_id JOIN subjects s ON s.id = l.subject_id WHERE tk.code = $1 LIMIT 1`
	var rc models.RedemptionContext
	if err := r.db.GetContext(ctx, &rc, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find token by code: %w", err)
	}
	return &rc, nil
}

const tokenDetailColumns = `tk.id, tk.lesson_id, tk.student_id, tk.code, tk.created_at, u.full_name AS student_name, s.name AS subject_name, c.name AS class_name, l.start_time, l.end_time`

const tokenDetailJoins = `FROM tokens tk JOIN lessons l ON l.id = tk.lesson_id JOIN subjects s ON s.id = l.subject_id JOIN classes c ON c.id = l.class_id JOIN users u ON u.id = tk.student_id`

// FindDetailByID returns a token with its lesson context.
func (r *TokenRepository) FindDetailByID(ctx context.Context, id string) (*models.TokenDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE tk.id = $1 LIMIT 1", tokenDetailColumns, tokenDetailJoins)
	var token models.TokenDetail
	if err := r.db.GetContext(ctx, &token, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find token by id: %w", err)
	}
	return &token, nil
}

// ListByStudent returns a student's tokens, optionally restricted to the
// calendar day of the lesson start.
func (r *TokenRepository) ListByStudent(ctx context.Context, studentID string, date *time.Time) ([]models.TokenDetail, error) {
	conditions := []string{"tk.student_id = $1"}
	args := []interface{}{studentID}

	if date != nil {
		dayStart := date.UTC().Truncate(24 * time.Hour)
		conditions = append(conditions, fmt.Sprintf("l.start_time >= $%d AND l.start_time < $%d", len(args)+1, len(args)+2))
		args = append(args, dayStart, dayStart.Add(24*time.Hour))
	}

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY l.start_time ASC", tokenDetailColumns, tokenDetailJoins, strings.Join(conditions, " AND "))

	var tokens []models.TokenDetail
	if err := r.db.SelectContext(ctx, &tokens, query, args...); err != nil {
		return nil, fmt.Errorf("list tokens by student: %w", err)
	}
	return tokens, nil
}

// CountByLesson returns the number of tokens issued for a lesson.
func (r *TokenRepository) CountByLesson(ctx context.Context, lessonID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tokens WHERE lesson_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, lessonID); err != nil {
		return 0, fmt.Errorf("count tokens by lesson: %w", err)
	}
	return count, nil
}
