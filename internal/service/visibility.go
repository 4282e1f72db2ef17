package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/internal/repository"
)

// VisibleProjectsQuery carries the caller's own filters and pagination; the
// matching gate itself is derived from the student.
type VisibleProjectsQuery struct {
	Area   *string
	MinTrl *int
	MaxTrl *int
	Limit  uint64
	Offset uint64
}

// VisibilityService answers which published projects a student may see and
// apply to, parameterised by the student's api level and the project's TRL.
type VisibilityService interface {
	ListVisibleProjects(ctx context.Context, actor domain.Actor, q VisibleProjectsQuery) ([]domain.Project, error)
}

type VisibilityServiceImpl struct {
	db       Transactor
	log      *slog.Logger
	students repository.StudentRepository
	projects repository.ProjectQueryRepository
}

func NewVisibilityService(
	db Transactor,
	log *slog.Logger,
	students repository.StudentRepository,
	projects repository.ProjectQueryRepository,
) *VisibilityServiceImpl {
	return &VisibilityServiceImpl{
		db:       db,
		log:      log,
		students: students,
		projects: projects,
	}
}

func (s *VisibilityServiceImpl) ListVisibleProjects(ctx context.Context, actor domain.Actor, q VisibleProjectsQuery) ([]domain.Project, error) {
	const op = "internal.service.visibility.ListVisibleProjects"

	if err := requireRole(actor, domain.RoleStudent); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	student, err := s.students.GetByUserID(ctx, nil, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get student: %w", op, err)
	}

	// A suspended student matches nothing; the query never fails on
	// matching.
	if student.Status == domain.StudentSuspended {
		return []domain.Project{}, nil
	}

	// The caller's max_trl narrows within the api-level window, never
	// widens it.
	maxTrl := domain.MaxTrlForApiLevel(student.ApiLevel)
	if q.MaxTrl != nil && *q.MaxTrl < maxTrl {
		maxTrl = *q.MaxTrl
	}

	projects, err := s.projects.ListVisible(ctx, repository.VisibleProjectsFilter{
		MaxApiLevel: student.ApiLevel,
		MaxTrl:      maxTrl,
		Area:        q.Area,
		MinTrl:      q.MinTrl,
		Limit:       q.Limit,
		Offset:      q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list visible projects: %w", op, err)
	}

	if projects == nil {
		projects = []domain.Project{}
	}

	return projects, nil
}

// checkApplyGates validates the apply predicate for a (student, project)
// pair, in gate order: suspension, project state, api level, trl window and
// capacity. The already-applied gate is enforced separately by the unique
// index on open applications.
func checkApplyGates(student *domain.Student, project *domain.Project) error {
	if student.Status == domain.StudentSuspended {
		return apperrors.ErrStudentSuspended
	}

	if project.Status != domain.ProjectPublished && project.Status != domain.ProjectActive {
		return &apperrors.StateConflictError{
			Entity: "project",
			ID:     project.ID,
			From:   string(project.Status),
			Event:  "apply",
		}
	}

	if project.ApiLevel > student.ApiLevel {
		return apperrors.ErrForbiddenApiLevel
	}

	if project.Trl > domain.MaxTrlForApiLevel(student.ApiLevel) {
		return apperrors.ErrForbiddenTRL
	}

	if project.CurrentStudents >= project.MaxStudents {
		return &apperrors.ProjectFullError{ProjectID: project.ID}
	}

	return nil
}
