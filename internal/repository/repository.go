// Package repository defines the interfaces for the data persistence layer.
// These interfaces abstract the underlying database implementation from the service layer.
//
// Methods taking an ext sqlx.ExtContext run within the given transaction
// when one is supplied; a nil ext runs the call directly on the connection.
package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
)

// VisibleProjectsFilter carries the matching-gate parameters computed from
// the student plus the caller's own filters and pagination.
type VisibleProjectsFilter struct {
	MaxApiLevel int
	MaxTrl      int

	Area   *string
	MinTrl *int
	Limit  uint64
	Offset uint64
}

// StudentRepository defines the contract for student rows, including the
// derived counters maintained by the core services.
type StudentRepository interface {
	// GetByID retrieves a student by id. The ext argument allows the call to
	// run within a transaction (*sqlx.Tx) or directly on the DB connection.
	// Returns apperrors.ErrNotFound if the student does not exist.
	GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Student, error)

	// GetByUserID retrieves the student owned by the given user.
	GetByUserID(ctx context.Context, ext sqlx.ExtContext, userID string) (*domain.Student, error)

	// GetByIDForUpdate retrieves a student and acquires a row-level lock
	// ("FOR UPDATE"). All derived-counter writes happen under this lock.
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Student, error)

	// SetApiLevel persists the api level and the admin-approved flag.
	SetApiLevel(ctx context.Context, tx *sqlx.Tx, id string, level int, approvedByAdmin bool) error

	// AddVerifiedHours adds hours to total_hours.
	AddVerifiedHours(ctx context.Context, tx *sqlx.Tx, id string, hours float64) error

	// IncrementCompletedProjects bumps completed_projects by one.
	IncrementCompletedProjects(ctx context.Context, tx *sqlx.Tx, id string) error

	// SetStrikes persists the strike counter and status together, so the
	// three-strikes suspension is atomic with the counter.
	SetStrikes(ctx context.Context, tx *sqlx.Tx, id string, strikes int, status domain.StudentStatus) error

	// SetDerivedCounters overwrites all derived counters at once; used by
	// reconciliation.
	SetDerivedCounters(ctx context.Context, tx *sqlx.Tx, id string, totalHours float64, completedProjects, strikes int, status domain.StudentStatus) error

	// SetTrlLevel updates the advisory trl_level profile field.
	SetTrlLevel(ctx context.Context, ext sqlx.ExtContext, id string, trl *int) error
}

// CompanyRepository defines read access to company rows. The company's
// external status is derived from the joined user flags.
type CompanyRepository interface {
	GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Company, error)
	GetByUserID(ctx context.Context, ext sqlx.ExtContext, userID string) (*domain.Company, error)
}

// ProjectQueryRepository defines read-only project operations, following the
// CQRS split the transition side uses for locking.
type ProjectQueryRepository interface {
	GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Project, error)

	// ListVisible applies the visibility gate: published/active status,
	// api-level and trl windows, free capacity; ordered by published_at
	// descending with id ascending as tie-break for stable pagination.
	ListVisible(ctx context.Context, f VisibleProjectsFilter) ([]domain.Project, error)
}

// ProjectCommandRepository defines write and locking operations on projects.
// All methods are expected to run within a transaction.
type ProjectCommandRepository interface {
	// GetByIDForUpdate locks the project row; every project transition
	// starts here so concurrent transitions observe strict linear order.
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Project, error)

	// SetStatus updates the status and, when non-nil, published_at or
	// real_end_date.
	SetStatus(ctx context.Context, tx *sqlx.Tx, id string, status domain.ProjectStatus, publishedAt, realEndDate *time.Time) error

	// IncrementCurrentStudents bumps current_students by one. The database
	// check constraint rejects going past max_students.
	IncrementCurrentStudents(ctx context.Context, tx *sqlx.Tx, id string) error

	// SetCurrentStudents overwrites the counter; used by reconciliation.
	SetCurrentStudents(ctx context.Context, tx *sqlx.Tx, id string, n int) error
}

// ApplicationRepository defines the contract for application rows and their
// state machine bookkeeping.
type ApplicationRepository interface {
	// Create inserts a pending application. Returns an
	// apperrors.AlreadyAppliedError if the student already has an open
	// (non-rejected, non-withdrawn) application for the project.
	Create(ctx context.Context, tx *sqlx.Tx, app *domain.Application) error

	GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Application, error)

	// GetByIDForUpdate locks the application row at transition entry.
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Application, error)

	// SetStatus updates the status and, when non-nil, responded_at.
	SetStatus(ctx context.Context, tx *sqlx.Tx, id string, status domain.ApplicationStatus, respondedAt *time.Time) error

	// HasBlocking reports whether an application in a blocking status
	// exists for the pair.
	HasBlocking(ctx context.Context, ext sqlx.ExtContext, studentID, projectID string) (bool, error)

	// ListByProjectAndStatuses returns the project's applications in any of
	// the given statuses, locked for update.
	ListByProjectAndStatuses(ctx context.Context, tx *sqlx.Tx, projectID string, statuses []domain.ApplicationStatus) ([]domain.Application, error)

	// TransitionByProject moves every application of the project from one
	// status to another and returns the number of rows moved.
	TransitionByProject(ctx context.Context, tx *sqlx.Tx, projectID string, from, to domain.ApplicationStatus) (int, error)

	// CountByStudentAndStatus counts a student's applications in a status;
	// used by reconciliation.
	CountByStudentAndStatus(ctx context.Context, ext sqlx.ExtContext, studentID string, status domain.ApplicationStatus) (int, error)
}

// MemberRepository defines the contract for project membership rows.
type MemberRepository interface {
	// Create inserts a membership row. A deactivated membership for the
	// same (project, user) pair is reactivated in place.
	Create(ctx context.Context, tx *sqlx.Tx, m *domain.ProjectMember) error

	// ListActiveStudents returns the student ids and user ids of the
	// project's active student members.
	ListActiveStudents(ctx context.Context, ext sqlx.ExtContext, projectID string) ([]domain.StudentMember, error)

	// CountActiveStudents counts active members with the student role; the
	// post-transition invariant check compares it to current_students.
	CountActiveStudents(ctx context.Context, ext sqlx.ExtContext, projectID string) (int, error)

	// IsActiveStudentMember reports whether the user is an active student
	// member of the project.
	IsActiveStudentMember(ctx context.Context, ext sqlx.ExtContext, projectID, userID string) (bool, error)

	// Deactivate marks one member of the project inactive.
	Deactivate(ctx context.Context, tx *sqlx.Tx, projectID, userID string) error

	// DeactivateByProject marks all members of the project inactive.
	DeactivateByProject(ctx context.Context, tx *sqlx.Tx, projectID string) error
}

// WorkHourRepository defines the contract for work-hour rows.
type WorkHourRepository interface {
	// Create inserts a work-hour row. For completion accruals it returns
	// apperrors.ErrAlreadyExists when an accrual for the (student, project)
	// pair already exists.
	Create(ctx context.Context, tx *sqlx.Tx, wh *domain.WorkHour) error

	GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.WorkHour, error)

	// GetByIDForUpdate locks the work-hour row for verification.
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.WorkHour, error)

	// MarkVerified flips is_verified and records the verifier.
	MarkVerified(ctx context.Context, tx *sqlx.Tx, id, verifiedBy string, at time.Time) error

	// SumVerifiedByStudent sums hours_worked over the student's verified
	// rows; the source of truth for total_hours reconciliation.
	SumVerifiedByStudent(ctx context.Context, ext sqlx.ExtContext, studentID string) (float64, error)
}

// StrikeRepository defines the contract for strikes and strike reports.
type StrikeRepository interface {
	CreateReport(ctx context.Context, ext sqlx.ExtContext, r *domain.StrikeReport) error

	// GetReportByIDForUpdate locks the report row for the admin review
	// transition.
	GetReportByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.StrikeReport, error)

	SetReportStatus(ctx context.Context, tx *sqlx.Tx, id string, status domain.StrikeReportStatus, reviewedBy string, at time.Time) error

	ListReports(ctx context.Context, status *domain.StrikeReportStatus, limit, offset uint64) ([]domain.StrikeReport, error)

	CreateStrike(ctx context.Context, tx *sqlx.Tx, s *domain.Strike) error

	// CountActiveByStudent counts the student's active strikes.
	CountActiveByStudent(ctx context.Context, ext sqlx.ExtContext, studentID string) (int, error)
}

// NotificationRepository defines the contract for the notification sink and
// the user-facing notification feed.
type NotificationRepository interface {
	Create(ctx context.Context, ext sqlx.ExtContext, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string, limit, offset uint64) ([]domain.Notification, error)

	// MarkRead flips read for the user's own notification. Returns
	// apperrors.ErrNotFound if the row does not exist or belongs to
	// someone else.
	MarkRead(ctx context.Context, id, userID string) error
}
