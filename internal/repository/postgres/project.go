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
	"github.com/leanmaker/leanmaker-backend/internal/repository"
	"github.com/lib/pq"
)

const projectColumns = "id, company_id, title, area, required_hours, max_students, current_students, trl, api_level, status, published_at, estimated_end_date, real_end_date, created_at"

type ProjectRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewProjectRepository(db *sqlx.DB, log *slog.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *ProjectRepository) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Project, error) {
	ext = orDB(ext, r.db)

	const op = "internal.repository.postgres.project.GetByID"

	query, args, err := r.sq.Select(projectColumns).
		From("projects").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var p domain.Project
	if err := sqlx.GetContext(ctx, ext, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: project with id '%s'", op, apperrors.ErrNotFound, id)
		}

		return nil, wrapTransient(op, err)
	}

	return &p, nil
}

func (r *ProjectRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Project, error) {
	const op = "internal.repository.postgres.project.GetByIDForUpdate"

	query, args, err := r.sq.Select(projectColumns).
		From("projects").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var p domain.Project
	if err := tx.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: project with id '%s'", op, apperrors.ErrNotFound, id)
		}

		return nil, wrapTransient(op, err)
	}

	return &p, nil
}

func (r *ProjectRepository) ListVisible(ctx context.Context, f repository.VisibleProjectsFilter) ([]domain.Project, error) {
	const op = "internal.repository.postgres.project.ListVisible"

	builder := r.sq.Select(projectColumns).
		From("projects").
		Where(sq.Eq{"status": []domain.ProjectStatus{domain.ProjectPublished, domain.ProjectActive}}).
		Where(sq.LtOrEq{"api_level": f.MaxApiLevel}).
		Where(sq.LtOrEq{"trl": f.MaxTrl}).
		Where("current_students < max_students").
		OrderBy("published_at DESC", "id ASC")

	if f.Area != nil {
		builder = builder.Where(sq.Eq{"area": *f.Area})
	}

	if f.MinTrl != nil {
		builder = builder.Where(sq.GtOrEq{"trl": *f.MinTrl})
	}

	if f.Limit > 0 {
		builder = builder.Limit(f.Limit)
	}

	if f.Offset > 0 {
		builder = builder.Offset(f.Offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var projects []domain.Project
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, wrapTransient(op, err)
	}

	return projects, nil
}

func (r *ProjectRepository) SetStatus(ctx context.Context, tx *sqlx.Tx, id string, status domain.ProjectStatus, publishedAt, realEndDate *time.Time) error {
	const op = "internal.repository.postgres.project.SetStatus"

	builder := r.sq.Update("projects").
		Set("status", status).
		Where(sq.Eq{"id": id})

	if publishedAt != nil {
		builder = builder.Set("published_at", *publishedAt)
	}

	if realEndDate != nil {
		builder = builder.Set("real_end_date", *realEndDate)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapTransient(op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w: project with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}

func (r *ProjectRepository) IncrementCurrentStudents(ctx context.Context, tx *sqlx.Tx, id string) error {
	const op = "internal.repository.postgres.project.IncrementCurrentStudents"

	query, args, err := r.sq.Update("projects").
		Set("current_students", sq.Expr("current_students + 1")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		// The check constraint caps current_students at max_students.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqCheckViolation {
			return &apperrors.ProjectFullError{ProjectID: id}
		}

		return wrapTransient(op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w: project with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}

func (r *ProjectRepository) SetCurrentStudents(ctx context.Context, tx *sqlx.Tx, id string, n int) error {
	const op = "internal.repository.postgres.project.SetCurrentStudents"

	query, args, err := r.sq.Update("projects").
		Set("current_students", n).
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
		return fmt.Errorf("%s: %w: project with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}
