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

const applicationColumns = "id, student_id, project_id, status, applied_at, responded_at"

type ApplicationRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewApplicationRepository(db *sqlx.DB, log *slog.Logger) *ApplicationRepository {
	return &ApplicationRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *ApplicationRepository) Create(ctx context.Context, tx *sqlx.Tx, app *domain.Application) error {
	const op = "internal.repository.postgres.application.Create"

	query, args, err := r.sq.Insert("applications").
		Columns("id", "student_id", "project_id", "status", "applied_at").
		Values(app.ID, app.StudentID, app.ProjectID, app.Status, app.AppliedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			// Partial unique index on open applications.
			if pqErr.Code == pqUniqueViolation {
				return &apperrors.AlreadyAppliedError{StudentID: app.StudentID, ProjectID: app.ProjectID}
			}

			if pqErr.Code == pqForeignKeyViolation {
				return fmt.Errorf("%s: %w: student or project missing", op, apperrors.ErrNotFound)
			}
		}

		return wrapTransient(op, err)
	}

	return nil
}

func (r *ApplicationRepository) getOne(ctx context.Context, ext sqlx.ExtContext, op, id string, forUpdate bool) (*domain.Application, error) {
	ext = orDB(ext, r.db)

	builder := r.sq.Select(applicationColumns).
		From("applications").
		Where(sq.Eq{"id": id})

	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var app domain.Application
	if err := sqlx.GetContext(ctx, ext, &app, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: application with id '%s'", op, apperrors.ErrNotFound, id)
		}

		return nil, wrapTransient(op, err)
	}

	return &app, nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Application, error) {
	const op = "internal.repository.postgres.application.GetByID"
	return r.getOne(ctx, ext, op, id, false)
}

func (r *ApplicationRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Application, error) {
	const op = "internal.repository.postgres.application.GetByIDForUpdate"
	return r.getOne(ctx, tx, op, id, true)
}

func (r *ApplicationRepository) SetStatus(ctx context.Context, tx *sqlx.Tx, id string, status domain.ApplicationStatus, respondedAt *time.Time) error {
	const op = "internal.repository.postgres.application.SetStatus"

	builder := r.sq.Update("applications").
		Set("status", status).
		Where(sq.Eq{"id": id})

	if respondedAt != nil {
		builder = builder.Set("responded_at", *respondedAt)
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
		return fmt.Errorf("%s: %w: application with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}

func (r *ApplicationRepository) HasBlocking(ctx context.Context, ext sqlx.ExtContext, studentID, projectID string) (bool, error) {
	ext = orDB(ext, r.db)

	const op = "internal.repository.postgres.application.HasBlocking"

	query, args, err := r.sq.Select("COUNT(*)").
		From("applications").
		Where(sq.Eq{
			"student_id": studentID,
			"project_id": projectID,
			"status":     domain.BlockingApplicationStatuses,
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

func (r *ApplicationRepository) ListByProjectAndStatuses(ctx context.Context, tx *sqlx.Tx, projectID string, statuses []domain.ApplicationStatus) ([]domain.Application, error) {
	const op = "internal.repository.postgres.application.ListByProjectAndStatuses"

	query, args, err := r.sq.Select(applicationColumns).
		From("applications").
		Where(sq.Eq{"project_id": projectID, "status": statuses}).
		OrderBy("applied_at ASC").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var apps []domain.Application
	if err := tx.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, wrapTransient(op, err)
	}

	return apps, nil
}

func (r *ApplicationRepository) TransitionByProject(ctx context.Context, tx *sqlx.Tx, projectID string, from, to domain.ApplicationStatus) (int, error) {
	const op = "internal.repository.postgres.application.TransitionByProject"

	query, args, err := r.sq.Update("applications").
		Set("status", to).
		Where(sq.Eq{"project_id": projectID, "status": from}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapTransient(op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to count affected rows: %w", op, err)
	}

	return int(rowsAffected), nil
}

func (r *ApplicationRepository) CountByStudentAndStatus(ctx context.Context, ext sqlx.ExtContext, studentID string, status domain.ApplicationStatus) (int, error) {
	ext = orDB(ext, r.db)

	const op = "internal.repository.postgres.application.CountByStudentAndStatus"

	query, args, err := r.sq.Select("COUNT(*)").
		From("applications").
		Where(sq.Eq{"student_id": studentID, "status": status}).
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
