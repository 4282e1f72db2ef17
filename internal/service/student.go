package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/internal/repository"
)

// UpdateStudentProfileRequest carries the profile fields a student may edit.
// ApiLevelPresent is set when the request body mentioned api_level at all;
// the field is owned by the level machinery and rejected here regardless of
// value.
type UpdateStudentProfileRequest struct {
	TrlLevel        *int
	ApiLevelPresent bool
}

// StudentService is the student's own profile surface.
type StudentService interface {
	GetProfile(ctx context.Context, actor domain.Actor) (*domain.Student, error)
	UpdateProfile(ctx context.Context, actor domain.Actor, req UpdateStudentProfileRequest) (*domain.Student, error)
}

type StudentServiceImpl struct {
	log      *slog.Logger
	students repository.StudentRepository
}

func NewStudentService(log *slog.Logger, students repository.StudentRepository) *StudentServiceImpl {
	return &StudentServiceImpl{log: log, students: students}
}

func (s *StudentServiceImpl) GetProfile(ctx context.Context, actor domain.Actor) (*domain.Student, error) {
	const op = "internal.service.student.GetProfile"

	if err := requireRole(actor, domain.RoleStudent); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	student, err := s.students.GetByUserID(ctx, nil, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get student: %w", op, err)
	}

	return student, nil
}

func (s *StudentServiceImpl) UpdateProfile(ctx context.Context, actor domain.Actor, req UpdateStudentProfileRequest) (*domain.Student, error) {
	const op = "internal.service.student.UpdateProfile"
	log := s.log.With(slog.String("op", op))

	if err := requireRole(actor, domain.RoleStudent); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.ApiLevelPresent {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrApiLevelProtected)
	}

	if req.TrlLevel != nil && (*req.TrlLevel < domain.MinTrl || *req.TrlLevel > domain.MaxTrl) {
		return nil, fmt.Errorf("%s: %w: trl_level must be in [%d, %d]",
			op, apperrors.ErrInvalidRequest, domain.MinTrl, domain.MaxTrl)
	}

	student, err := s.students.GetByUserID(ctx, nil, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get student: %w", op, err)
	}

	if req.TrlLevel != nil {
		if err := s.students.SetTrlLevel(ctx, nil, student.ID, req.TrlLevel); err != nil {
			return nil, fmt.Errorf("%s: failed to set trl level: %w", op, err)
		}

		student.TrlLevel = req.TrlLevel
	}

	log.Info("student profile updated", slog.String("student_id", student.ID))

	return student, nil
}
