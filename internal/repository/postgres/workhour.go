package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/lib/pq"
)

const workHourColumns = "id, student_id, project_id, date, hours_worked, description, is_verified, verified_by, verified_at, is_project_completion, created_at"

type WorkHourRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewWorkHourRepository(db *sqlx.DB, log *slog.Logger) *WorkHourRepository {
	return &WorkHourRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *WorkHourRepository) Create(ctx context.Context, tx *sqlx.Tx, wh *domain.WorkHour) error {
	const op = "internal.repository.postgres.workhour.Create"

	query, args, err := r.sq.Insert("work_hours").
		Columns("id", "student_id", "project_id", "date", "hours_worked", "description",
			"is_verified", "verified_by", "verified_at", "is_project_completion", "created_at").
		Values(wh.ID, wh.StudentID, wh.ProjectID, wh.Date, wh.HoursWorked, wh.Description,
			wh.IsVerified, wh.VerifiedBy, wh.VerifiedAt, wh.IsProjectCompletion, wh.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			// Partial unique index: one completion accrual per (student, project).
			if pqErr.Code == pqUniqueViolation {
				return fmt.Errorf("%s: %w: completion accrual for student '%s' on project '%s'",
					op, apperrors.ErrAlreadyExists, wh.StudentID, wh.ProjectID)
			}

			if pqErr.Code == pqForeignKeyViolation {
				return fmt.Errorf("%s: %w: student or project missing", op, apperrors.ErrNotFound)
			}
		}

		return wrapTransient(op, err)
	}

	return nil
}

func (r *WorkHourRepository) getOne(ctx context.Context, ext sqlx.ExtContext, op, id string, forUpdate bool) (*domain.WorkHour, error) {
	ext = orDB(ext, r.db)

	builder := r.sq.Select(workHourColumns).
		From("work_hours").
		Where(sq.Eq{"id": id})

	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var wh domain.WorkHour
	if err := sqlx.GetContext(ctx, ext, &wh, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: work hour with id '%s'", op, apperrors.ErrNotFound, id)
		}

		return nil, wrapTransient(op, err)
	}

	return &wh, nil
}

func (r *WorkHourRepository) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.WorkHour, error) {
	const op = "internal.repository.postgres.workhour.GetByID"
	return r.getOne(ctx, ext, op, id, false)
}

func (r *WorkHourRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.WorkHour, error) {
	const op = "internal.repository.postgres.workhour.GetByIDForUpdate"
	return r.getOne(ctx, tx, op, id, true)
}

func (r *WorkHourRepository) MarkVerified(ctx context.Context, tx *sqlx.Tx, id, verifiedBy string, at time.Time) error {
	const op = "internal.repository.postgres.workhour.MarkVerified"

	query, args, err := r.sq.Update("work_hours").
		Set("is_verified", true).
		Set("verified_by", verifiedBy).
		Set("verified_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapTransient(op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w: work hour with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}

func (r *WorkHourRepository) SumVerifiedByStudent(ctx context.Context, ext sqlx.ExtContext, studentID string) (float64, error) {
	ext = orDB(ext, r.db)

	const op = "internal.repository.postgres.workhour.SumVerifiedByStudent"

	query, args, err := r.sq.Select("COALESCE(SUM(hours_worked), 0)").
		From("work_hours").
		Where(sq.Eq{"student_id": studentID, "is_verified": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var total float64
	if err := sqlx.GetContext(ctx, ext, &total, query, args...); err != nil {
		return 0, wrapTransient(op, err)
	}

	return total, nil
}
