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
)

type CompanyRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewCompanyRepository(db *sqlx.DB, log *slog.Logger) *CompanyRepository {
	return &CompanyRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *CompanyRepository) getOne(ctx context.Context, ext sqlx.ExtContext, op string, pred sq.Eq) (*domain.Company, error) {
	ext = orDB(ext, r.db)

	// The user flags ride along so Company.Status() can be derived without
	// a second query.
	query, args, err := r.sq.Select(
		"c.id", "c.user_id", "c.name", "c.rating",
		"u.is_active AS user_is_active",
		"u.is_verified AS user_is_verified",
	).
		From("companies c").
		Join("users u ON u.id = c.user_id").
		Where(pred).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var c domain.Company
	if err := sqlx.GetContext(ctx, ext, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: company %v", op, apperrors.ErrNotFound, pred)
		}

		return nil, wrapTransient(op, err)
	}

	return &c, nil
}

func (r *CompanyRepository) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Company, error) {
	const op = "internal.repository.postgres.company.GetByID"
	return r.getOne(ctx, ext, op, sq.Eq{"c.id": id})
}

func (r *CompanyRepository) GetByUserID(ctx context.Context, ext sqlx.ExtContext, userID string) (*domain.Company, error) {
	const op = "internal.repository.postgres.company.GetByUserID"
	return r.getOne(ctx, ext, op, sq.Eq{"c.user_id": userID})
}
