package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/internal/repository"
)

// ApplicationService drives the application state machine:
// pending -> accepted -> active -> completed, with rejected and withdrawn as
// the terminal side exits.
type ApplicationService interface {
	// Apply creates a pending application if every visibility gate passes.
	Apply(ctx context.Context, actor domain.Actor, projectID string) (*domain.Application, error)

	// Accept moves a pending application to accepted, registers the
	// student as a project member and takes one place. Accepting an
	// already-accepted application is a no-op.
	Accept(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error)

	// Reject moves a pending application to rejected. The student may
	// apply again afterwards.
	Reject(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error)

	// Withdraw lets the owning student retract a pending application.
	Withdraw(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error)

	// Cancel is the admin escape hatch: it rejects an application in any
	// non-terminal state. An accepted or active application also gives its
	// place back.
	Cancel(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error)
}

type ApplicationServiceImpl struct {
	log          *slog.Logger
	clock        Clock
	notifier     Notifier
	students     repository.StudentRepository
	companies    repository.CompanyRepository
	projectCmd   repository.ProjectCommandRepository
	applications repository.ApplicationRepository
	members      repository.MemberRepository
	txRunner
}

func NewApplicationService(
	db Transactor,
	log *slog.Logger,
	clock Clock,
	notifier Notifier,
	students repository.StudentRepository,
	companies repository.CompanyRepository,
	projectCmd repository.ProjectCommandRepository,
	applications repository.ApplicationRepository,
	members repository.MemberRepository,
	transitionTimeout time.Duration,
) *ApplicationServiceImpl {
	return &ApplicationServiceImpl{
		log:          log,
		clock:        clock,
		notifier:     notifier,
		students:     students,
		companies:    companies,
		projectCmd:   projectCmd,
		applications: applications,
		members:      members,
		txRunner:     txRunner{db: db, log: log, timeout: transitionTimeout},
	}
}

func (s *ApplicationServiceImpl) Apply(ctx context.Context, actor domain.Actor, projectID string) (*domain.Application, error) {
	const op = "internal.service.application.Apply"
	log := s.log.With(slog.String("op", op), slog.String("project_id", projectID))

	if err := requireRole(actor, domain.RoleStudent); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		app     *domain.Application
		notices []Notice
	)

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		notices = notices[:0]

		student, err := s.students.GetByUserID(ctx, tx, actor.UserID)
		if err != nil {
			return fmt.Errorf("%s: failed to get student: %w", op, err)
		}

		project, err := s.projectCmd.GetByIDForUpdate(ctx, tx, projectID)
		if err != nil {
			return fmt.Errorf("%s: failed to get project with lock: %w", op, err)
		}

		if err := checkApplyGates(student, project); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		// Friendly pre-check; the partial unique index on open
		// applications closes the race.
		blocked, err := s.applications.HasBlocking(ctx, tx, student.ID, projectID)
		if err != nil {
			return fmt.Errorf("%s: failed to check open applications: %w", op, err)
		}

		if blocked {
			return fmt.Errorf("%s: %w", op,
				&apperrors.AlreadyAppliedError{StudentID: student.ID, ProjectID: projectID})
		}

		app = &domain.Application{
			ID:        uuid.NewString(),
			StudentID: student.ID,
			ProjectID: projectID,
			Status:    domain.ApplicationPending,
			AppliedAt: s.clock.Now(),
		}

		if err := s.applications.Create(ctx, tx, app); err != nil {
			return fmt.Errorf("%s: failed to create application: %w", op, err)
		}

		company, err := s.companies.GetByID(ctx, tx, project.CompanyID)
		if err != nil {
			return fmt.Errorf("%s: failed to get company: %w", op, err)
		}

		notices = append(notices, Notice{
			Recipient: company.UserID,
			Kind:      "application.received",
			Title:     "New application",
			Body:      fmt.Sprintf("A student applied to '%s'", project.Title),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, s.notifier, notices)

	log.Info("application created", slog.String("application_id", app.ID))

	return app, nil
}

func (s *ApplicationServiceImpl) Accept(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error) {
	const op = "internal.service.application.Accept"
	log := s.log.With(slog.String("op", op), slog.String("application_id", applicationID))

	if err := requireCompanyOrAdmin(actor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		app         *domain.Application
		alreadyDone bool
		notices     []Notice
	)

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		alreadyDone = false
		notices = notices[:0]

		var err error

		app, err = s.applications.GetByIDForUpdate(ctx, tx, applicationID)
		if err != nil {
			return fmt.Errorf("%s: failed to get application with lock: %w", op, err)
		}

		project, err := s.projectCmd.GetByIDForUpdate(ctx, tx, app.ProjectID)
		if err != nil {
			return fmt.Errorf("%s: failed to get project with lock: %w", op, err)
		}

		// Ownership is checked before the idempotent short-circuit so a
		// foreign company never learns the application's state.
		if err := s.requireProjectOwner(ctx, tx, actor, project); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if app.Status == domain.ApplicationAccepted || app.Status == domain.ApplicationActive {
			alreadyDone = true
			return nil
		}

		if app.Status != domain.ApplicationPending {
			return fmt.Errorf("%s: %w", op, &apperrors.StateConflictError{
				Entity: "application",
				ID:     app.ID,
				From:   string(app.Status),
				Event:  "accept",
			})
		}

		if project.Status != domain.ProjectPublished && project.Status != domain.ProjectActive {
			return fmt.Errorf("%s: %w", op, &apperrors.StateConflictError{
				Entity: "project",
				ID:     project.ID,
				From:   string(project.Status),
				Event:  "accept_application",
			})
		}

		if project.CurrentStudents >= project.MaxStudents {
			return fmt.Errorf("%s: %w", op, &apperrors.ProjectFullError{ProjectID: project.ID})
		}

		student, err := s.students.GetByID(ctx, tx, app.StudentID)
		if err != nil {
			return fmt.Errorf("%s: failed to get student: %w", op, err)
		}

		if student.Status == domain.StudentSuspended {
			return fmt.Errorf("%s: %w", op, apperrors.ErrStudentSuspended)
		}

		now := s.clock.Now()

		member := &domain.ProjectMember{
			ID:        uuid.NewString(),
			ProjectID: project.ID,
			UserID:    student.UserID,
			Role:      domain.MemberEstudiante,
			IsActive:  true,
			JoinedAt:  now,
		}

		if err := s.members.Create(ctx, tx, member); err != nil {
			return fmt.Errorf("%s: failed to create member: %w", op, err)
		}

		// The check constraint on current_students closes the capacity
		// race between concurrent accepts.
		if err := s.projectCmd.IncrementCurrentStudents(ctx, tx, project.ID); err != nil {
			return fmt.Errorf("%s: failed to take place: %w", op, err)
		}

		activeCount, err := s.members.CountActiveStudents(ctx, tx, project.ID)
		if err != nil {
			return fmt.Errorf("%s: failed to count active members: %w", op, err)
		}

		if activeCount != project.CurrentStudents+1 {
			return fmt.Errorf("%s: %w: active members %d, places taken %d",
				op, apperrors.ErrInvariantConflict, activeCount, project.CurrentStudents+1)
		}

		// On an already-running project the accepted application goes
		// straight to active.
		target := domain.ApplicationAccepted
		if project.Status == domain.ProjectActive {
			target = domain.ApplicationActive
		}

		if err := s.applications.SetStatus(ctx, tx, app.ID, target, &now); err != nil {
			return fmt.Errorf("%s: failed to set application status: %w", op, err)
		}

		app.Status = target
		app.RespondedAt = &now

		notices = append(notices, Notice{
			Recipient: student.UserID,
			Kind:      "application.accepted",
			Title:     "Application accepted",
			Body:      fmt.Sprintf("You were accepted to '%s'", project.Title),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyDone {
		log.Info("application already accepted, no-op")
		return app, nil
	}

	s.emit(ctx, s.notifier, notices)

	log.Info("application accepted", slog.String("status", string(app.Status)))

	return app, nil
}

func (s *ApplicationServiceImpl) Reject(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error) {
	const op = "internal.service.application.Reject"
	log := s.log.With(slog.String("op", op), slog.String("application_id", applicationID))

	if err := requireCompanyOrAdmin(actor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		app         *domain.Application
		alreadyDone bool
		notices     []Notice
	)

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		alreadyDone = false
		notices = notices[:0]

		var err error

		app, err = s.applications.GetByIDForUpdate(ctx, tx, applicationID)
		if err != nil {
			return fmt.Errorf("%s: failed to get application with lock: %w", op, err)
		}

		project, err := s.projectCmd.GetByIDForUpdate(ctx, tx, app.ProjectID)
		if err != nil {
			return fmt.Errorf("%s: failed to get project with lock: %w", op, err)
		}

		if err := s.requireProjectOwner(ctx, tx, actor, project); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if app.Status == domain.ApplicationRejected {
			alreadyDone = true
			return nil
		}

		if app.Status != domain.ApplicationPending {
			return fmt.Errorf("%s: %w", op, &apperrors.StateConflictError{
				Entity: "application",
				ID:     app.ID,
				From:   string(app.Status),
				Event:  "reject",
			})
		}

		now := s.clock.Now()

		if err := s.applications.SetStatus(ctx, tx, app.ID, domain.ApplicationRejected, &now); err != nil {
			return fmt.Errorf("%s: failed to set application status: %w", op, err)
		}

		app.Status = domain.ApplicationRejected
		app.RespondedAt = &now

		student, err := s.students.GetByID(ctx, tx, app.StudentID)
		if err != nil {
			return fmt.Errorf("%s: failed to get student: %w", op, err)
		}

		notices = append(notices, Notice{
			Recipient: student.UserID,
			Kind:      "application.rejected",
			Title:     "Application rejected",
			Body:      fmt.Sprintf("Your application to '%s' was rejected", project.Title),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyDone {
		log.Info("application already rejected, no-op")
		return app, nil
	}

	s.emit(ctx, s.notifier, notices)

	log.Info("application rejected")

	return app, nil
}

func (s *ApplicationServiceImpl) Withdraw(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error) {
	const op = "internal.service.application.Withdraw"
	log := s.log.With(slog.String("op", op), slog.String("application_id", applicationID))

	if err := requireRole(actor, domain.RoleStudent); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		app         *domain.Application
		alreadyDone bool
	)

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		alreadyDone = false

		var err error

		app, err = s.applications.GetByIDForUpdate(ctx, tx, applicationID)
		if err != nil {
			return fmt.Errorf("%s: failed to get application with lock: %w", op, err)
		}

		student, err := s.students.GetByUserID(ctx, tx, actor.UserID)
		if err != nil {
			return fmt.Errorf("%s: failed to get student: %w", op, err)
		}

		if app.StudentID != student.ID {
			return fmt.Errorf("%s: %w: application belongs to another student", op, apperrors.ErrForbidden)
		}

		if app.Status == domain.ApplicationWithdrawn {
			alreadyDone = true
			return nil
		}

		if app.Status != domain.ApplicationPending {
			return fmt.Errorf("%s: %w", op, &apperrors.StateConflictError{
				Entity: "application",
				ID:     app.ID,
				From:   string(app.Status),
				Event:  "withdraw",
			})
		}

		now := s.clock.Now()

		if err := s.applications.SetStatus(ctx, tx, app.ID, domain.ApplicationWithdrawn, &now); err != nil {
			return fmt.Errorf("%s: failed to set application status: %w", op, err)
		}

		app.Status = domain.ApplicationWithdrawn
		app.RespondedAt = &now

		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyDone {
		log.Info("application already withdrawn, no-op")
		return app, nil
	}

	log.Info("application withdrawn")

	return app, nil
}

func (s *ApplicationServiceImpl) Cancel(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error) {
	const op = "internal.service.application.Cancel"
	log := s.log.With(slog.String("op", op), slog.String("application_id", applicationID))

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		app     *domain.Application
		notices []Notice
	)

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		notices = notices[:0]

		var err error

		app, err = s.applications.GetByIDForUpdate(ctx, tx, applicationID)
		if err != nil {
			return fmt.Errorf("%s: failed to get application with lock: %w", op, err)
		}

		if app.Status.Terminal() {
			return fmt.Errorf("%s: %w", op, &apperrors.StateConflictError{
				Entity: "application",
				ID:     app.ID,
				From:   string(app.Status),
				Event:  "cancel",
			})
		}

		project, err := s.projectCmd.GetByIDForUpdate(ctx, tx, app.ProjectID)
		if err != nil {
			return fmt.Errorf("%s: failed to get project with lock: %w", op, err)
		}

		student, err := s.students.GetByID(ctx, tx, app.StudentID)
		if err != nil {
			return fmt.Errorf("%s: failed to get student: %w", op, err)
		}

		wasMember := app.Status == domain.ApplicationAccepted || app.Status == domain.ApplicationActive

		now := s.clock.Now()

		if err := s.applications.SetStatus(ctx, tx, app.ID, domain.ApplicationRejected, &now); err != nil {
			return fmt.Errorf("%s: failed to set application status: %w", op, err)
		}

		app.Status = domain.ApplicationRejected
		app.RespondedAt = &now

		// A cancelled member gives the place back so capacity matches the
		// active membership again.
		if wasMember {
			if err := s.members.Deactivate(ctx, tx, project.ID, student.UserID); err != nil {
				return fmt.Errorf("%s: failed to deactivate member: %w", op, err)
			}

			count, err := s.members.CountActiveStudents(ctx, tx, project.ID)
			if err != nil {
				return fmt.Errorf("%s: failed to count active members: %w", op, err)
			}

			if err := s.projectCmd.SetCurrentStudents(ctx, tx, project.ID, count); err != nil {
				return fmt.Errorf("%s: failed to update places: %w", op, err)
			}
		}

		notices = append(notices, Notice{
			Recipient: student.UserID,
			Kind:      "application.cancelled",
			Title:     "Application cancelled",
			Body:      fmt.Sprintf("Your application to '%s' was cancelled by an administrator", project.Title),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, s.notifier, notices)

	log.Info("application cancelled by admin")

	return app, nil
}

// requireProjectOwner checks that the actor is the admin or the company
// owning the project. A blocked or suspended company may not act.
func (s *ApplicationServiceImpl) requireProjectOwner(ctx context.Context, tx *sqlx.Tx, actor domain.Actor, project *domain.Project) error {
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
