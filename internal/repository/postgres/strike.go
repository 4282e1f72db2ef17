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

const strikeReportColumns = "id, company_id, student_id, project_id, reason, severity, status, reviewed_by, reviewed_at, created_at"

type StrikeRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewStrikeRepository(db *sqlx.DB, log *slog.Logger) *StrikeRepository {
	return &StrikeRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *StrikeRepository) CreateReport(ctx context.Context, ext sqlx.ExtContext, report *domain.StrikeReport) error {
	ext = orDB(ext, r.db)

	const op = "internal.repository.postgres.strike.CreateReport"

	query, args, err := r.sq.Insert("strike_reports").
		Columns("id", "company_id", "student_id", "project_id", "reason", "severity", "status", "created_at").
		Values(report.ID, report.CompanyID, report.StudentID, report.ProjectID,
			report.Reason, report.Severity, report.Status, report.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqForeignKeyViolation {
			return fmt.Errorf("%s: %w: student, company or project missing", op, apperrors.ErrNotFound)
		}

		return wrapTransient(op, err)
	}

	return nil
}

func (r *StrikeRepository) GetReportByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.StrikeReport, error) {
	const op = "internal.repository.postgres.strike.GetReportByIDForUpdate"

	query, args, err := r.sq.Select(strikeReportColumns).
		From("strike_reports").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var report domain.StrikeReport
	if err := tx.GetContext(ctx, &report, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: strike report with id '%s'", op, apperrors.ErrNotFound, id)
		}

		return nil, wrapTransient(op, err)
	}

	return &report, nil
}

func (r *StrikeRepository) SetReportStatus(ctx context.Context, tx *sqlx.Tx, id string, status domain.StrikeReportStatus, reviewedBy string, at time.Time) error {
	const op = "internal.repository.postgres.strike.SetReportStatus"

	query, args, err := r.sq.Update("strike_reports").
		Set("status", status).
		Set("reviewed_by", reviewedBy).
		Set("reviewed_at", at).
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
		return fmt.Errorf("%s: %w: strike report with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}

func (r *StrikeRepository) ListReports(ctx context.Context, status *domain.StrikeReportStatus, limit, offset uint64) ([]domain.StrikeReport, error) {
	const op = "internal.repository.postgres.strike.ListReports"

	builder := r.sq.Select(strikeReportColumns).
		From("strike_reports").
		OrderBy("created_at DESC")

	if status != nil {
		builder = builder.Where(sq.Eq{"status": *status})
	}

	if limit > 0 {
		builder = builder.Limit(limit)
	}

	if offset > 0 {
		builder = builder.Offset(offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var reports []domain.StrikeReport
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, wrapTransient(op, err)
	}

	return reports, nil
}

func (r *StrikeRepository) CreateStrike(ctx context.Context, tx *sqlx.Tx, strike *domain.Strike) error {
	const op = "internal.repository.postgres.strike.CreateStrike"

	query, args, err := r.sq.Insert("strikes").
		Columns("id", "student_id", "company_id", "project_id", "reason", "severity", "issued_by", "issued_at", "is_active").
		Values(strike.ID, strike.StudentID, strike.CompanyID, strike.ProjectID,
			strike.Reason, strike.Severity, strike.IssuedBy, strike.IssuedAt, strike.IsActive).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return wrapTransient(op, err)
	}

	return nil
}

func (r *StrikeRepository) CountActiveByStudent(ctx context.Context, ext sqlx.ExtContext, studentID string) (int, error) {
	ext = orDB(ext, r.db)

	const op = "internal.repository.postgres.strike.CountActiveByStudent"

	query, args, err := r.sq.Select("COUNT(*)").
		From("strikes").
		Where(sq.Eq{"student_id": studentID, "is_active": true}).
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
