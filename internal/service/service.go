// Package service implements the applicant-project lifecycle core: project
// visibility, api-level progression, work-hour validation and the
// application/project state machines. Services own transactions; every
// transition runs inside a single one, and notifications are emitted only
// after a successful commit.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/pkg/logger/sl"
)

// Transactor begins transactions; satisfied by *sqlx.DB.
type Transactor interface {
	BeginTxx(context.Context, *sql.TxOptions) (*sqlx.Tx, error)
}

// Clock abstracts wall-clock time so transitions are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// NewClock returns the production clock.
func NewClock() Clock { return realClock{} }

// Notice is a notification to be delivered to a user. The core only
// enqueues; the Notifier is responsible for delivery.
type Notice struct {
	Recipient string
	Kind      string
	Title     string
	Body      string
	Link      *string
}

// Notifier accepts notices for delivery. Implementations must tolerate
// being called after the transaction that produced the notice committed.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// txRunner carries the shared transaction plumbing of the services: a
// bounded per-transition timeout, a single retry on transient store errors
// and rollback-on-error semantics.
type txRunner struct {
	db      Transactor
	log     *slog.Logger
	timeout time.Duration
}

func (r *txRunner) transaction(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	err := r.attempt(ctx, op, fn)
	if err != nil && errors.Is(err, apperrors.ErrTransientStore) {
		r.log.Warn("retrying transition after transient store error",
			slog.String("op", op), sl.Err(err))

		err = r.attempt(ctx, op, fn)
	}

	return err
}

func (r *txRunner) attempt(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.log.Error("failed to rollback transaction", sl.Err(err))
		}
	}()

	if err := fn(tx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", op, apperrors.ErrTransitionTimeout)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", op, apperrors.ErrTransitionTimeout)
		}

		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

// emit delivers collected notices after a successful commit. Delivery
// failures are logged and never affect the committed transition.
func (r *txRunner) emit(ctx context.Context, notifier Notifier, notices []Notice) {
	for _, n := range notices {
		if err := notifier.Notify(ctx, n); err != nil {
			r.log.Error("failed to deliver notification",
				slog.String("recipient", n.Recipient),
				slog.String("kind", n.Kind),
				sl.Err(err))
		}
	}
}

func requireRole(actor domain.Actor, role domain.Role) error {
	if actor.UserID == "" {
		return apperrors.ErrUnauthenticated
	}

	if actor.Role != role {
		return fmt.Errorf("%w: role '%s' required", apperrors.ErrForbidden, role)
	}

	return nil
}

func requireCompanyOrAdmin(actor domain.Actor) error {
	if actor.UserID == "" {
		return apperrors.ErrUnauthenticated
	}

	if actor.Role != domain.RoleCompany && actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: company or admin role required", apperrors.ErrForbidden)
	}

	return nil
}
