package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/internal/repository"
)

// ApiLevelService owns the student api level. It is the only legitimate
// writer of the field besides the explicit admin override.
type ApiLevelService interface {
	// Recompute re-derives the level from the student's counters. It never
	// lowers a persisted level.
	Recompute(ctx context.Context, actor domain.Actor, studentID string) (*domain.Student, error)

	// SetLevel is the explicit admin override; it records the level
	// verbatim and sets the admin lock.
	SetLevel(ctx context.Context, actor domain.Actor, studentID string, level int) (*domain.Student, error)
}

type ApiLevelServiceImpl struct {
	log      *slog.Logger
	students repository.StudentRepository
	txRunner
}

func NewApiLevelService(
	db Transactor,
	log *slog.Logger,
	students repository.StudentRepository,
	transitionTimeout time.Duration,
) *ApiLevelServiceImpl {
	return &ApiLevelServiceImpl{
		log:      log,
		students: students,
		txRunner: txRunner{db: db, log: log, timeout: transitionTimeout},
	}
}

// recomputeStudentLevel applies the derived-score rule to a student whose
// row is already locked in tx. Promotions are persisted together with the
// admin lock, so later automatic runs cannot undo them; a computed level at
// or below the persisted one changes nothing. The student struct is updated
// in place. Shared by every trigger point.
func recomputeStudentLevel(ctx context.Context, tx *sqlx.Tx, students repository.StudentRepository, s *domain.Student) (bool, error) {
	computed := domain.ComputedApiLevel(s.TotalHours, s.CompletedProjects)
	if computed <= s.ApiLevel {
		return false, nil
	}

	if err := students.SetApiLevel(ctx, tx, s.ID, computed, true); err != nil {
		return false, fmt.Errorf("failed to persist api level promotion: %w", err)
	}

	s.ApiLevel = computed
	s.ApiLevelApprovedByAdmin = true

	return true, nil
}

func (s *ApiLevelServiceImpl) Recompute(ctx context.Context, actor domain.Actor, studentID string) (*domain.Student, error) {
	const op = "internal.service.apilevel.Recompute"
	log := s.log.With(slog.String("op", op), slog.String("student_id", studentID))

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var student *domain.Student

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		var err error

		student, err = s.students.GetByIDForUpdate(ctx, tx, studentID)
		if err != nil {
			return fmt.Errorf("%s: failed to get student with lock: %w", op, err)
		}

		promoted, err := recomputeStudentLevel(ctx, tx, s.students, student)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if promoted {
			log.Info("student promoted", slog.Int("api_level", student.ApiLevel))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return student, nil
}

func (s *ApiLevelServiceImpl) SetLevel(ctx context.Context, actor domain.Actor, studentID string, level int) (*domain.Student, error) {
	const op = "internal.service.apilevel.SetLevel"
	log := s.log.With(slog.String("op", op), slog.String("student_id", studentID), slog.Int("level", level))

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if level < domain.MinApiLevel || level > domain.MaxApiLevel {
		return nil, fmt.Errorf("%s: %w: api level must be in [%d, %d]",
			op, apperrors.ErrInvalidRequest, domain.MinApiLevel, domain.MaxApiLevel)
	}

	var student *domain.Student

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		var err error

		student, err = s.students.GetByIDForUpdate(ctx, tx, studentID)
		if err != nil {
			return fmt.Errorf("%s: failed to get student with lock: %w", op, err)
		}

		if err := s.students.SetApiLevel(ctx, tx, studentID, level, true); err != nil {
			return fmt.Errorf("%s: failed to set api level: %w", op, err)
		}

		student.ApiLevel = level
		student.ApiLevelApprovedByAdmin = true

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("api level set by admin override")

	return student, nil
}
