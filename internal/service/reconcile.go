package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/internal/repository"
)

// ReconcileService re-derives persisted counters from source rows. The
// persisted values are authoritative at read time; this is the admin tool
// for when they drift.
type ReconcileService interface {
	// ReconcileStudent recomputes total_hours, completed_projects and
	// strikes from work hours, applications and strikes, then re-runs the
	// api-level rule. Suspension only escalates; an admin lifts it
	// elsewhere.
	ReconcileStudent(ctx context.Context, actor domain.Actor, studentID string) (*domain.Student, error)

	// ReconcileProject recomputes current_students from active members.
	ReconcileProject(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error)
}

type ReconcileServiceImpl struct {
	log          *slog.Logger
	students     repository.StudentRepository
	projectCmd   repository.ProjectCommandRepository
	applications repository.ApplicationRepository
	members      repository.MemberRepository
	workHours    repository.WorkHourRepository
	strikes      repository.StrikeRepository
	txRunner
}

func NewReconcileService(
	db Transactor,
	log *slog.Logger,
	students repository.StudentRepository,
	projectCmd repository.ProjectCommandRepository,
	applications repository.ApplicationRepository,
	members repository.MemberRepository,
	workHours repository.WorkHourRepository,
	strikes repository.StrikeRepository,
	transitionTimeout time.Duration,
) *ReconcileServiceImpl {
	return &ReconcileServiceImpl{
		log:          log,
		students:     students,
		projectCmd:   projectCmd,
		applications: applications,
		members:      members,
		workHours:    workHours,
		strikes:      strikes,
		txRunner:     txRunner{db: db, log: log, timeout: transitionTimeout},
	}
}

func (s *ReconcileServiceImpl) ReconcileStudent(ctx context.Context, actor domain.Actor, studentID string) (*domain.Student, error) {
	const op = "internal.service.reconcile.ReconcileStudent"
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

		hours, err := s.workHours.SumVerifiedByStudent(ctx, tx, student.ID)
		if err != nil {
			return fmt.Errorf("%s: failed to sum verified hours: %w", op, err)
		}

		completedProjects, err := s.applications.CountByStudentAndStatus(ctx, tx, student.ID, domain.ApplicationCompleted)
		if err != nil {
			return fmt.Errorf("%s: failed to count completed applications: %w", op, err)
		}

		strikes, err := s.strikes.CountActiveByStudent(ctx, tx, student.ID)
		if err != nil {
			return fmt.Errorf("%s: failed to count strikes: %w", op, err)
		}

		// Reconciliation can suspend on a strike count it just surfaced,
		// but never un-suspends on its own.
		status := student.Status
		if strikes >= domain.MaxStrikes {
			status = domain.StudentSuspended
		}

		if err := s.students.SetDerivedCounters(ctx, tx, student.ID, hours, completedProjects, strikes, status); err != nil {
			return fmt.Errorf("%s: failed to set derived counters: %w", op, err)
		}

		student.TotalHours = hours
		student.CompletedProjects = completedProjects
		student.Strikes = strikes
		student.Status = status

		if _, err := recomputeStudentLevel(ctx, tx, s.students, student); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("student reconciled",
		slog.Float64("total_hours", student.TotalHours),
		slog.Int("completed_projects", student.CompletedProjects),
		slog.Int("strikes", student.Strikes),
		slog.Int("api_level", student.ApiLevel))

	return student, nil
}

func (s *ReconcileServiceImpl) ReconcileProject(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	const op = "internal.service.reconcile.ReconcileProject"
	log := s.log.With(slog.String("op", op), slog.String("project_id", projectID))

	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var project *domain.Project

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		var err error

		project, err = s.projectCmd.GetByIDForUpdate(ctx, tx, projectID)
		if err != nil {
			return fmt.Errorf("%s: failed to get project with lock: %w", op, err)
		}

		count, err := s.members.CountActiveStudents(ctx, tx, project.ID)
		if err != nil {
			return fmt.Errorf("%s: failed to count active members: %w", op, err)
		}

		if count == project.CurrentStudents {
			return nil
		}

		if err := s.projectCmd.SetCurrentStudents(ctx, tx, project.ID, count); err != nil {
			return fmt.Errorf("%s: failed to set places: %w", op, err)
		}

		log.Warn("current_students diverged from membership",
			slog.Int("was", project.CurrentStudents),
			slog.Int("now", count))

		project.CurrentStudents = count

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("project reconciled", slog.Int("current_students", project.CurrentStudents))

	return project, nil
}
