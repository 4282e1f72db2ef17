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

// LogWorkHourRequest is a student's manual hour log.
type LogWorkHourRequest struct {
	ProjectID   string
	Date        time.Time
	HoursWorked float64
	Description string
}

// WorkHourService records manually logged hours, verifies them and performs
// the project-completion accrual.
type WorkHourService interface {
	// LogHours creates an unverified work-hour row. Totals are not touched
	// until verification.
	LogHours(ctx context.Context, actor domain.Actor, req LogWorkHourRequest) (*domain.WorkHour, error)

	// Verify marks a work hour verified, credits the student's total and
	// recomputes the api level. Verifying an already-verified row is a
	// no-op.
	Verify(ctx context.Context, actor domain.Actor, workHourID string) (*domain.WorkHour, error)
}

type WorkHourServiceImpl struct {
	log       *slog.Logger
	clock     Clock
	students  repository.StudentRepository
	companies repository.CompanyRepository
	projects  repository.ProjectQueryRepository
	members   repository.MemberRepository
	workHours repository.WorkHourRepository
	txRunner
}

func NewWorkHourService(
	db Transactor,
	log *slog.Logger,
	clock Clock,
	students repository.StudentRepository,
	companies repository.CompanyRepository,
	projects repository.ProjectQueryRepository,
	members repository.MemberRepository,
	workHours repository.WorkHourRepository,
	transitionTimeout time.Duration,
) *WorkHourServiceImpl {
	return &WorkHourServiceImpl{
		log:       log,
		clock:     clock,
		students:  students,
		companies: companies,
		projects:  projects,
		members:   members,
		workHours: workHours,
		txRunner:  txRunner{db: db, log: log, timeout: transitionTimeout},
	}
}

func (s *WorkHourServiceImpl) LogHours(ctx context.Context, actor domain.Actor, req LogWorkHourRequest) (*domain.WorkHour, error) {
	const op = "internal.service.workhour.LogHours"
	log := s.log.With(slog.String("op", op), slog.String("project_id", req.ProjectID))

	if err := requireRole(actor, domain.RoleStudent); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.HoursWorked <= 0 {
		return nil, fmt.Errorf("%s: %w: hours_worked must be positive", op, apperrors.ErrInvalidRequest)
	}

	now := s.clock.Now()
	if req.Date.After(now) {
		return nil, fmt.Errorf("%s: %w: date must not be in the future", op, apperrors.ErrInvalidRequest)
	}

	student, err := s.students.GetByUserID(ctx, nil, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get student: %w", op, err)
	}

	isMember, err := s.members.IsActiveStudentMember(ctx, nil, req.ProjectID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to check membership: %w", op, err)
	}

	if !isMember {
		return nil, fmt.Errorf("%s: %w: student is not an active member of project '%s'",
			op, apperrors.ErrForbidden, req.ProjectID)
	}

	wh := &domain.WorkHour{
		ID:          uuid.NewString(),
		StudentID:   student.ID,
		ProjectID:   req.ProjectID,
		Date:        req.Date,
		HoursWorked: req.HoursWorked,
		Description: req.Description,
		CreatedAt:   now,
	}

	err = s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		return s.workHours.Create(ctx, tx, wh)
	})
	if err != nil {
		return nil, err
	}

	log.Info("work hours logged", slog.String("work_hour_id", wh.ID), slog.Float64("hours", wh.HoursWorked))

	return wh, nil
}

func (s *WorkHourServiceImpl) Verify(ctx context.Context, actor domain.Actor, workHourID string) (*domain.WorkHour, error) {
	const op = "internal.service.workhour.Verify"
	log := s.log.With(slog.String("op", op), slog.String("work_hour_id", workHourID))

	if err := requireCompanyOrAdmin(actor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		wh            *domain.WorkHour
		alreadyDone   bool
		promotedTo    int
		promotionSeen bool
		verifiedAt    = s.clock.Now()
	)

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		alreadyDone = false
		promotionSeen = false

		var err error

		wh, err = s.workHours.GetByIDForUpdate(ctx, tx, workHourID)
		if err != nil {
			return fmt.Errorf("%s: failed to get work hour with lock: %w", op, err)
		}

		// Ownership is checked before the idempotent short-circuit so a
		// foreign company never learns the record's state.
		if err := s.requireOwnerOrAdmin(ctx, actor, wh.ProjectID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if wh.IsVerified {
			alreadyDone = true
			return nil
		}

		if err := s.workHours.MarkVerified(ctx, tx, workHourID, actor.UserID, verifiedAt); err != nil {
			return fmt.Errorf("%s: failed to mark verified: %w", op, err)
		}

		student, err := s.students.GetByIDForUpdate(ctx, tx, wh.StudentID)
		if err != nil {
			return fmt.Errorf("%s: failed to get student with lock: %w", op, err)
		}

		if err := s.students.AddVerifiedHours(ctx, tx, student.ID, wh.HoursWorked); err != nil {
			return fmt.Errorf("%s: failed to add verified hours: %w", op, err)
		}

		student.TotalHours += wh.HoursWorked

		promoted, err := recomputeStudentLevel(ctx, tx, s.students, student)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if promoted {
			promotionSeen = true
			promotedTo = student.ApiLevel
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyDone {
		log.Info("work hour already verified, no-op")
		return wh, nil
	}

	wh.IsVerified = true
	wh.VerifiedBy = &actor.UserID
	wh.VerifiedAt = &verifiedAt

	log.Info("work hour verified", slog.Float64("hours", wh.HoursWorked))

	if promotionSeen {
		log.Info("student promoted after verification", slog.Int("api_level", promotedTo))
	}

	return wh, nil
}

// requireOwnerOrAdmin checks that the actor is the admin or the company
// owning the work hour's project.
func (s *WorkHourServiceImpl) requireOwnerOrAdmin(ctx context.Context, actor domain.Actor, projectID string) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}

	project, err := s.projects.GetByID(ctx, nil, projectID)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}

	company, err := s.companies.GetByUserID(ctx, nil, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrForbidden
		}

		return fmt.Errorf("failed to get company: %w", err)
	}

	if company.ID != project.CompanyID {
		return fmt.Errorf("%w: project belongs to another company", apperrors.ErrForbidden)
	}

	return nil
}

// accrueCompletion creates the verified completion work hour for one student
// of a completing project and credits the hours. A pre-existing accrual row
// means a previous completion already credited this student; the accrual is
// skipped. Runs inside the caller's transaction; the student row must be
// locked.
func accrueCompletion(
	ctx context.Context,
	tx *sqlx.Tx,
	workHours repository.WorkHourRepository,
	students repository.StudentRepository,
	clock Clock,
	project *domain.Project,
	student *domain.Student,
	verifiedBy string,
) (bool, error) {
	now := clock.Now()

	date := now
	if project.RealEndDate != nil {
		date = *project.RealEndDate
	} else if project.EstimatedEndDate != nil {
		date = *project.EstimatedEndDate
	}

	wh := &domain.WorkHour{
		ID:                  uuid.NewString(),
		StudentID:           student.ID,
		ProjectID:           project.ID,
		Date:                date,
		HoursWorked:         float64(project.RequiredHours),
		Description:         fmt.Sprintf("Completion of project '%s'", project.Title),
		IsVerified:          true,
		VerifiedBy:          &verifiedBy,
		VerifiedAt:          &now,
		IsProjectCompletion: true,
		CreatedAt:           now,
	}

	if err := workHours.Create(ctx, tx, wh); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return false, nil
		}

		return false, fmt.Errorf("failed to create completion accrual: %w", err)
	}

	if err := students.AddVerifiedHours(ctx, tx, student.ID, wh.HoursWorked); err != nil {
		return false, fmt.Errorf("failed to credit completion hours: %w", err)
	}

	student.TotalHours += wh.HoursWorked

	return true, nil
}
