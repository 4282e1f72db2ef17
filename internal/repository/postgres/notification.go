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

type NotificationRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewNotificationRepository(db *sqlx.DB, log *slog.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *NotificationRepository) Create(ctx context.Context, ext sqlx.ExtContext, n *domain.Notification) error {
	ext = orDB(ext, r.db)

	const op = "internal.repository.postgres.notification.Create"

	query, args, err := r.sq.Insert("notifications").
		Columns("id", "user_id", "kind", "title", "body", "link", "read", "created_at").
		Values(n.ID, n.UserID, n.Kind, n.Title, n.Body, n.Link, n.Read, n.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqForeignKeyViolation {
			return fmt.Errorf("%s: %w: recipient user '%s'", op, apperrors.ErrNotFound, n.UserID)
		}

		return wrapTransient(op, err)
	}

	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit, offset uint64) ([]domain.Notification, error) {
	const op = "internal.repository.postgres.notification.ListByUser"

	builder := r.sq.Select("id", "user_id", "kind", "title", "body", "link", "read", "created_at").
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")

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

	var notifications []domain.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, wrapTransient(op, err)
	}

	return notifications, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	const op = "internal.repository.postgres.notification.MarkRead"

	query, args, err := r.sq.Update("notifications").
		Set("read", true).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapTransient(op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w: notification with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}
