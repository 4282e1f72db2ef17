package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/internal/repository"
)

// ProjectService drives the project state machine:
// draft -> published -> active -> completed, with cancelled and deleted as
// the admin exits. Completing a project fans out to every active student
// member: application completed, completed_projects bumped, the completion
// work hour accrued and the api level recomputed.
type ProjectService interface {
	// Publish moves a draft project to published. Publishing an already
	// published project is a no-op.
	Publish(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error)

	// Start moves a published project to active and its accepted
	// applications to active as a batch. Starting an already active
	// project is a no-op.
	Start(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error)

	// Complete finishes an active project. Completing an already completed
	// project is a no-op. With zero active members confirmEmpty must be
	// set.
	Complete(ctx context.Context, actor domain.Actor, projectID string, confirmEmpty bool) (*domain.Project, error)

	// Cancel moves a pre-terminal project to cancelled, rejects its open
	// applications and deactivates members. Counters stay untouched.
	Cancel(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error)

	// Delete soft-deletes a pre-terminal project the same way Cancel does.
	Delete(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error)
}

type ProjectServiceImpl struct {
	log          *slog.Logger
	clock        Clock
	notifier     Notifier
	students     repository.StudentRepository
	companies    repository.CompanyRepository
	projectCmd   repository.ProjectCommandRepository
	applications repository.ApplicationRepository
	members      repository.MemberRepository
	workHours    repository.WorkHourRepository
	txRunner
}

func NewProjectService(
	db Transactor,
	log *slog.Logger,
	clock Clock,
	notifier Notifier,
	students repository.StudentRepository,
	companies repository.CompanyRepository,
	projectCmd repository.ProjectCommandRepository,
	applications repository.ApplicationRepository,
	members repository.MemberRepository,
	workHours repository.WorkHourRepository,
	transitionTimeout time.Duration,
) *ProjectServiceImpl {
	return &ProjectServiceImpl{
		log:          log,
		clock:        clock,
		notifier:     notifier,
		students:     students,
		companies:    companies,
		projectCmd:   projectCmd,
		applications: applications,
		members:      members,
		workHours:    workHours,
		txRunner:     txRunner{db: db, log: log, timeout: transitionTimeout},
	}
}

func (s *ProjectServiceImpl) Publish(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	const op = "internal.service.project.Publish"
	log := s.log.With(slog.String("op", op), slog.String("project_id", projectID))

	if err := requireCompanyOrAdmin(actor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		project     *domain.Project
		alreadyDone bool
	)

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		alreadyDone = false

		var err error

		project, err = s.projectCmd.GetByIDForUpdate(ctx, tx, projectID)
		if err != nil {
			return fmt.Errorf("%s: failed to get project with lock: %w", op, err)
		}

		if err := s.requireOwner(ctx, tx, actor, project); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if project.Status == domain.ProjectPublished {
			alreadyDone = true
			return nil
		}

		if project.Status != domain.ProjectDraft {
			return fmt.Errorf("%s: %w", op, &apperrors.StateConflictError{
				Entity: "project",
				ID:     project.ID,
				From:   string(project.Status),
				Event:  "publish",
			})
		}

		if err := validatePublishable(project); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		now := s.clock.Now()

		if err := s.projectCmd.SetStatus(ctx, tx, project.ID, domain.ProjectPublished, &now, nil); err != nil {
			return fmt.Errorf("%s: failed to set project status: %w", op, err)
		}

		project.Status = domain.ProjectPublished
		project.PublishedAt = &now

		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyDone {
		log.Info("project already published, no-op")
		return project, nil
	}

	log.Info("project published")

	return project, nil
}

func (s *ProjectServiceImpl) Start(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	const op = "internal.service.project.Start"
	log := s.log.With(slog.String("op", op), slog.String("project_id", projectID))

	if err := requireCompanyOrAdmin(actor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		project     *domain.Project
		alreadyDone bool
		started     int
		notices     []Notice
	)

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		alreadyDone = false
		notices = notices[:0]

		var err error

		project, err = s.projectCmd.GetByIDForUpdate(ctx, tx, projectID)
		if err != nil {
			return fmt.Errorf("%s: failed to get project with lock: %w", op, err)
		}

		if err := s.requireOwner(ctx, tx, actor, project); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if project.Status == domain.ProjectActive {
			alreadyDone = true
			return nil
		}

		if project.Status != domain.ProjectPublished {
			return fmt.Errorf("%s: %w", op, &apperrors.StateConflictError{
				Entity: "project",
				ID:     project.ID,
				From:   string(project.Status),
				Event:  "start",
			})
		}

		if err := s.projectCmd.SetStatus(ctx, tx, project.ID, domain.ProjectActive, nil, nil); err != nil {
			return fmt.Errorf("%s: failed to set project status: %w", op, err)
		}

		project.Status = domain.ProjectActive

		started, err = s.applications.TransitionByProject(ctx, tx, project.ID,
			domain.ApplicationAccepted, domain.ApplicationActive)
		if err != nil {
			return fmt.Errorf("%s: failed to activate applications: %w", op, err)
		}

		members, err := s.members.ListActiveStudents(ctx, tx, project.ID)
		if err != nil {
			return fmt.Errorf("%s: failed to list members: %w", op, err)
		}

		for _, m := range members {
			notices = append(notices, Notice{
				Recipient: m.UserID,
				Kind:      "project.started",
				Title:     "Project started",
				Body:      fmt.Sprintf("Project '%s' has started", project.Title),
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyDone {
		log.Info("project already active, no-op")
		return project, nil
	}

	s.emit(ctx, s.notifier, notices)

	log.Info("project started", slog.Int("applications_activated", started))

	return project, nil
}

func (s *ProjectServiceImpl) Complete(ctx context.Context, actor domain.Actor, projectID string, confirmEmpty bool) (*domain.Project, error) {
	const op = "internal.service.project.Complete"
	log := s.log.With(slog.String("op", op), slog.String("project_id", projectID))

	if err := requireCompanyOrAdmin(actor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		project     *domain.Project
		alreadyDone bool
		completed   int
		notices     []Notice
	)

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		alreadyDone = false
		completed = 0
		notices = notices[:0]

		var err error

		project, err = s.projectCmd.GetByIDForUpdate(ctx, tx, projectID)
		if err != nil {
			return fmt.Errorf("%s: failed to get project with lock: %w", op, err)
		}

		if err := s.requireOwner(ctx, tx, actor, project); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if project.Status == domain.ProjectCompleted {
			alreadyDone = true
			return nil
		}

		if project.Status != domain.ProjectActive {
			return fmt.Errorf("%s: %w", op, &apperrors.StateConflictError{
				Entity: "project",
				ID:     project.ID,
				From:   string(project.Status),
				Event:  "complete",
			})
		}

		studentMembers, err := s.members.ListActiveStudents(ctx, tx, project.ID)
		if err != nil {
			return fmt.Errorf("%s: failed to list members: %w", op, err)
		}

		if len(studentMembers) == 0 && !confirmEmpty {
			return fmt.Errorf("%s: %w: completing with no active members requires explicit confirmation",
				op, apperrors.ErrInvariantConflict)
		}

		now := s.clock.Now()
		project.RealEndDate = &now

		// Legacy accepted rows of a started project complete together
		// with the active ones.
		for _, from := range []domain.ApplicationStatus{domain.ApplicationActive, domain.ApplicationAccepted} {
			n, err := s.applications.TransitionByProject(ctx, tx, project.ID, from, domain.ApplicationCompleted)
			if err != nil {
				return fmt.Errorf("%s: failed to complete applications: %w", op, err)
			}

			completed += n
		}

		for _, m := range studentMembers {
			student, err := s.students.GetByIDForUpdate(ctx, tx, m.StudentID)
			if err != nil {
				return fmt.Errorf("%s: failed to get student with lock: %w", op, err)
			}

			if err := s.students.IncrementCompletedProjects(ctx, tx, student.ID); err != nil {
				return fmt.Errorf("%s: failed to bump completed projects: %w", op, err)
			}

			student.CompletedProjects++

			accrued, err := accrueCompletion(ctx, tx, s.workHours, s.students, s.clock, project, student, actor.UserID)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}

			if !accrued {
				log.Info("completion accrual already present, skipped",
					slog.String("student_id", student.ID))
			}

			if _, err := recomputeStudentLevel(ctx, tx, s.students, student); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}

			notices = append(notices, Notice{
				Recipient: m.UserID,
				Kind:      "project.completed",
				Title:     "Project completed",
				Body:      fmt.Sprintf("Project '%s' was completed, %d hours were credited", project.Title, project.RequiredHours),
			})
		}

		if err := s.members.DeactivateByProject(ctx, tx, project.ID); err != nil {
			return fmt.Errorf("%s: failed to deactivate members: %w", op, err)
		}

		if err := s.projectCmd.SetStatus(ctx, tx, project.ID, domain.ProjectCompleted, nil, &now); err != nil {
			return fmt.Errorf("%s: failed to set project status: %w", op, err)
		}

		project.Status = domain.ProjectCompleted

		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyDone {
		log.Info("project already completed, no-op")
		return project, nil
	}

	s.emit(ctx, s.notifier, notices)

	log.Info("project completed", slog.Int("applications_completed", completed))

	return project, nil
}

func (s *ProjectServiceImpl) Cancel(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	return s.terminate(ctx, actor, projectID, domain.ProjectCancelled, "cancel")
}

func (s *ProjectServiceImpl) Delete(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	return s.terminate(ctx, actor, projectID, domain.ProjectDeleted, "delete")
}

// terminate is the shared cancel/delete path: reject open applications,
// deactivate members, set the terminal status. Counters stay untouched.
func (s *ProjectServiceImpl) terminate(ctx context.Context, actor domain.Actor, projectID string, target domain.ProjectStatus, event string) (*domain.Project, error) {
	op := fmt.Sprintf("internal.service.project.%s", event)
	log := s.log.With(slog.String("op", op), slog.String("project_id", projectID))

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		project     *domain.Project
		alreadyDone bool
		notices     []Notice
	)

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		alreadyDone = false
		notices = notices[:0]

		var err error

		project, err = s.projectCmd.GetByIDForUpdate(ctx, tx, projectID)
		if err != nil {
			return fmt.Errorf("%s: failed to get project with lock: %w", op, err)
		}

		if project.Status == target {
			alreadyDone = true
			return nil
		}

		if project.Status == domain.ProjectCompleted ||
			project.Status == domain.ProjectCancelled ||
			project.Status == domain.ProjectDeleted {
			return fmt.Errorf("%s: %w", op, &apperrors.StateConflictError{
				Entity: "project",
				ID:     project.ID,
				From:   string(project.Status),
				Event:  event,
			})
		}

		members, err := s.members.ListActiveStudents(ctx, tx, project.ID)
		if err != nil {
			return fmt.Errorf("%s: failed to list members: %w", op, err)
		}

		for _, from := range []domain.ApplicationStatus{
			domain.ApplicationPending,
			domain.ApplicationAccepted,
			domain.ApplicationActive,
		} {
			if _, err := s.applications.TransitionByProject(ctx, tx, project.ID, from, domain.ApplicationRejected); err != nil {
				return fmt.Errorf("%s: failed to reject applications: %w", op, err)
			}
		}

		if err := s.members.DeactivateByProject(ctx, tx, project.ID); err != nil {
			return fmt.Errorf("%s: failed to deactivate members: %w", op, err)
		}

		if err := s.projectCmd.SetStatus(ctx, tx, project.ID, target, nil, nil); err != nil {
			return fmt.Errorf("%s: failed to set project status: %w", op, err)
		}

		project.Status = target

		for _, m := range members {
			notices = append(notices, Notice{
				Recipient: m.UserID,
				Kind:      "project." + string(target),
				Title:     "Project " + string(target),
				Body:      fmt.Sprintf("Project '%s' was %s by an administrator", project.Title, target),
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyDone {
		log.Info("project already in target state, no-op", slog.String("status", string(target)))
		return project, nil
	}

	s.emit(ctx, s.notifier, notices)

	log.Info("project terminated", slog.String("status", string(target)))

	return project, nil
}

// validatePublishable checks the publish invariants on the project row.
func validatePublishable(p *domain.Project) error {
	switch {
	case p.Trl < domain.MinTrl || p.Trl > domain.MaxTrl:
		return fmt.Errorf("%w: trl must be in [%d, %d]", apperrors.ErrInvariantConflict, domain.MinTrl, domain.MaxTrl)
	case p.RequiredHours <= 0:
		return fmt.Errorf("%w: required_hours must be positive", apperrors.ErrInvariantConflict)
	case p.MaxStudents < 1:
		return fmt.Errorf("%w: max_students must be at least 1", apperrors.ErrInvariantConflict)
	case p.ApiLevel < domain.MinApiLevel || p.ApiLevel > domain.MaxApiLevel:
		return fmt.Errorf("%w: api_level must be in [%d, %d]", apperrors.ErrInvariantConflict, domain.MinApiLevel, domain.MaxApiLevel)
	default:
		return nil
	}
}

func (s *ProjectServiceImpl) requireOwner(ctx context.Context, tx *sqlx.Tx, actor domain.Actor, project *domain.Project) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}

	company, err := s.companies.GetByUserID(ctx, tx, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrForbidden
		}

		return fmt.Errorf("failed to get company: %w", err)
	}

	if company.ID != project.CompanyID {
		return fmt.Errorf("%w: project belongs to another company", apperrors.ErrForbidden)
	}

	if company.Status() != domain.CompanyActive {
		return fmt.Errorf("%w: company is %s", apperrors.ErrForbidden, company.Status())
	}

	return nil
}
