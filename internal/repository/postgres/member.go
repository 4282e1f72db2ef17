package postgres

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/lib/pq"
)

type MemberRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewMemberRepository(db *sqlx.DB, log *slog.Logger) *MemberRepository {
	return &MemberRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *MemberRepository) Create(ctx context.Context, tx *sqlx.Tx, m *domain.ProjectMember) error {
	const op = "internal.repository.postgres.member.Create"

	// Cancelled memberships stay in the table deactivated; accepting the
	// same student again reactivates the existing row.
	query, args, err := r.sq.Insert("project_members").
		Columns("id", "project_id", "user_id", "role", "is_active", "joined_at").
		Values(m.ID, m.ProjectID, m.UserID, m.Role, m.IsActive, m.JoinedAt).
		Suffix(`ON CONFLICT (project_id, user_id) DO UPDATE
			SET is_active = EXCLUDED.is_active, role = EXCLUDED.role, joined_at = EXCLUDED.joined_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqForeignKeyViolation {
			return fmt.Errorf("%s: %w: project or user missing", op, apperrors.ErrNotFound)
		}

		return wrapTransient(op, err)
	}

	return nil
}

func (r *MemberRepository) ListActiveStudents(ctx context.Context, ext sqlx.ExtContext, projectID string) ([]domain.StudentMember, error) {
	ext = orDB(ext, r.db)

	const op = "internal.repository.postgres.member.ListActiveStudents"

	query, args, err := r.sq.Select("s.id AS student_id", "pm.user_id").
		From("project_members pm").
		Join("students s ON s.user_id = pm.user_id").
		Where(sq.Eq{
			"pm.project_id": projectID,
			"pm.role":       domain.MemberEstudiante,
			"pm.is_active":  true,
		}).
		OrderBy("pm.joined_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var members []domain.StudentMember
	if err := sqlx.SelectContext(ctx, ext, &members, query, args...); err != nil {
		return nil, wrapTransient(op, err)
	}

	return members, nil
}

func (r *MemberRepository) CountActiveStudents(ctx context.Context, ext sqlx.ExtContext, projectID string) (int, error) {
	ext = orDB(ext, r.db)

	const op = "internal.repository.postgres.member.CountActiveStudents"

	query, args, err := r.sq.Select("COUNT(*)").
		From("project_members").
		Where(sq.Eq{
			"project_id": projectID,
			"role":       domain.MemberEstudiante,
			"is_active":  true,
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var count int
	if err := sqlx.GetContext(ctx, ext, &count, query, args...); err != nil {
		return 0, wrapTransient(op, err)
	}

	return count, nil
}

func (r *MemberRepository) IsActiveStudentMember(ctx context.Context, ext sqlx.ExtContext, projectID, userID string) (bool, error) {
	ext = orDB(ext, r.db)

	const op = "internal.repository.postgres.member.IsActiveStudentMember"

	query, args, err := r.sq.Select("COUNT(*)").
		From("project_members").
		Where(sq.Eq{
			"project_id": projectID,
			"user_id":    userID,
			"role":       domain.MemberEstudiante,
			"is_active":  true,
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var count int
	if err := sqlx.GetContext(ctx, ext, &count, query, args...); err != nil {
		return false, wrapTransient(op, err)
	}

	return count > 0, nil
}

func (r *MemberRepository) Deactivate(ctx context.Context, tx *sqlx.Tx, projectID, userID string) error {
	const op = "internal.repository.postgres.member.Deactivate"

	query, args, err := r.sq.Update("project_members").
		Set("is_active", false).
		Where(sq.Eq{"project_id": projectID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return wrapTransient(op, err)
	}

	return nil
}

func (r *MemberRepository) DeactivateByProject(ctx context.Context, tx *sqlx.Tx, projectID string) error {
	const op = "internal.repository.postgres.member.DeactivateByProject"

	query, args, err := r.sq.Update("project_members").
		Set("is_active", false).
		Where(sq.Eq{"project_id": projectID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return wrapTransient(op, err)
	}

	return nil
}
