package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/lib/pq"
)

const studentColumns = "id, user_id, api_level, api_level_approved_by_admin, total_hours, completed_projects, strikes, status, trl_level"

type StudentRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewStudentRepository(db *sqlx.DB, log *slog.Logger) *StudentRepository {
	return &StudentRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *StudentRepository) getOne(ctx context.Context, ext sqlx.ExtContext, op string, pred sq.Eq, forUpdate bool) (*domain.Student, error) {
	ext = orDB(ext, r.db)

	builder := r.sq.Select(studentColumns).
		From("students").
		Where(pred)

	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var s domain.Student
	if err := sqlx.GetContext(ctx, ext, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: student %v", op, apperrors.ErrNotFound, pred)
		}

		return nil, wrapTransient(op, err)
	}

	return &s, nil
}

func (r *StudentRepository) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Student, error) {
	const op = "internal.repository.postgres.student.GetByID"
	return r.getOne(ctx, ext, op, sq.Eq{"id": id}, false)
}

func (r *StudentRepository) GetByUserID(ctx context.Context, ext sqlx.ExtContext, userID string) (*domain.Student, error) {
	const op = "internal.repository.postgres.student.GetByUserID"
	return r.getOne(ctx, ext, op, sq.Eq{"user_id": userID}, false)
}

func (r *StudentRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Student, error) {
	const op = "internal.repository.postgres.student.GetByIDForUpdate"
	return r.getOne(ctx, tx, op, sq.Eq{"id": id}, true)
}

func (r *StudentRepository) SetApiLevel(ctx context.Context, tx *sqlx.Tx, id string, level int, approvedByAdmin bool) error {
	const op = "internal.repository.postgres.student.SetApiLevel"

	query, args, err := r.sq.Update("students").
		Set("api_level", level).
		Set("api_level_approved_by_admin", approvedByAdmin).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	return r.execExpectingRow(ctx, tx, op, id, query, args)
}

func (r *StudentRepository) AddVerifiedHours(ctx context.Context, tx *sqlx.Tx, id string, hours float64) error {
	const op = "internal.repository.postgres.student.AddVerifiedHours"

	query, args, err := r.sq.Update("students").
		Set("total_hours", sq.Expr("total_hours + ?", hours)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	return r.execExpectingRow(ctx, tx, op, id, query, args)
}

func (r *StudentRepository) IncrementCompletedProjects(ctx context.Context, tx *sqlx.Tx, id string) error {
	const op = "internal.repository.postgres.student.IncrementCompletedProjects"

	query, args, err := r.sq.Update("students").
		Set("completed_projects", sq.Expr("completed_projects + 1")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	return r.execExpectingRow(ctx, tx, op, id, query, args)
}

func (r *StudentRepository) SetStrikes(ctx context.Context, tx *sqlx.Tx, id string, strikes int, status domain.StudentStatus) error {
	const op = "internal.repository.postgres.student.SetStrikes"

	query, args, err := r.sq.Update("students").
		Set("strikes", strikes).
		Set("status", status).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	return r.execExpectingRow(ctx, tx, op, id, query, args)
}

func (r *StudentRepository) SetDerivedCounters(ctx context.Context, tx *sqlx.Tx, id string, totalHours float64, completedProjects, strikes int, status domain.StudentStatus) error {
	const op = "internal.repository.postgres.student.SetDerivedCounters"

	query, args, err := r.sq.Update("students").
		Set("total_hours", totalHours).
		Set("completed_projects", completedProjects).
		Set("strikes", strikes).
		Set("status", status).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	return r.execExpectingRow(ctx, tx, op, id, query, args)
}

func (r *StudentRepository) SetTrlLevel(ctx context.Context, ext sqlx.ExtContext, id string, trl *int) error {
	ext = orDB(ext, r.db)

	const op = "internal.repository.postgres.student.SetTrlLevel"

	query, args, err := r.sq.Update("students").
		Set("trl_level", trl).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapTransient(op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w: student with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}

func (r *StudentRepository) execExpectingRow(ctx context.Context, tx *sqlx.Tx, op, id, query string, args []interface{}) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqCheckViolation {
			return fmt.Errorf("%s: %w: %v", op, apperrors.ErrInvariantConflict, err)
		}

		return wrapTransient(op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w: student with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}
