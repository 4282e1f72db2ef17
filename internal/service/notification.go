package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/internal/repository"
)

// StoreNotifier delivers notices by inserting notification rows. It runs
// outside the producing transaction, so an insert failure never rolls a
// transition back.
type StoreNotifier struct {
	clock         Clock
	notifications repository.NotificationRepository
}

func NewStoreNotifier(clock Clock, notifications repository.NotificationRepository) *StoreNotifier {
	return &StoreNotifier{clock: clock, notifications: notifications}
}

func (n *StoreNotifier) Notify(ctx context.Context, notice Notice) error {
	return n.notifications.Create(ctx, nil, &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    notice.Recipient,
		Kind:      notice.Kind,
		Title:     notice.Title,
		Body:      notice.Body,
		Link:      notice.Link,
		CreatedAt: n.clock.Now(),
	})
}

// NotificationService is the user-facing feed over the notification sink.
type NotificationService interface {
	List(ctx context.Context, actor domain.Actor, limit, offset uint64) ([]domain.Notification, error)
	MarkRead(ctx context.Context, actor domain.Actor, notificationID string) error
}

type NotificationServiceImpl struct {
	log           *slog.Logger
	notifications repository.NotificationRepository
}

func NewNotificationService(log *slog.Logger, notifications repository.NotificationRepository) *NotificationServiceImpl {
	return &NotificationServiceImpl{log: log, notifications: notifications}
}

func (s *NotificationServiceImpl) List(ctx context.Context, actor domain.Actor, limit, offset uint64) ([]domain.Notification, error) {
	const op = "internal.service.notification.List"

	if actor.UserID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrUnauthenticated)
	}

	notifications, err := s.notifications.ListByUser(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list notifications: %w", op, err)
	}

	if notifications == nil {
		notifications = []domain.Notification{}
	}

	return notifications, nil
}

func (s *NotificationServiceImpl) MarkRead(ctx context.Context, actor domain.Actor, notificationID string) error {
	const op = "internal.service.notification.MarkRead"

	if actor.UserID == "" {
		return fmt.Errorf("%s: %w", op, apperrors.ErrUnauthenticated)
	}

	if err := s.notifications.MarkRead(ctx, notificationID, actor.UserID); err != nil {
		return fmt.Errorf("%s: failed to mark notification read: %w", op, err)
	}

	s.log.Debug("notification marked read",
		slog.String("op", op),
		slog.String("notification_id", notificationID))

	return nil
}
