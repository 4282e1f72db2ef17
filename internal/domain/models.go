package domain

import (
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleCompany Role = "company"
	RoleAdmin   Role = "admin"
)

// Actor is the resolved identity of the authenticated caller.
type Actor struct {
	UserID string
	Role   Role
}

type User struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	Role       Role      `db:"role" json:"role"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	IsVerified bool      `db:"is_verified" json:"is_verified"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type StudentStatus string

const (
	StudentActive    StudentStatus = "active"
	StudentSuspended StudentStatus = "suspended"
)

type Student struct {
	ID                      string        `db:"id" json:"id"`
	UserID                  string        `db:"user_id" json:"user_id"`
	ApiLevel                int           `db:"api_level" json:"api_level"`
	ApiLevelApprovedByAdmin bool          `db:"api_level_approved_by_admin" json:"api_level_approved_by_admin"`
	TotalHours              float64       `db:"total_hours" json:"total_hours"`
	CompletedProjects       int           `db:"completed_projects" json:"completed_projects"`
	Strikes                 int           `db:"strikes" json:"strikes"`
	Status                  StudentStatus `db:"status" json:"status"`
	TrlLevel                *int          `db:"trl_level" json:"trl_level"`
}

// CompanyStatus is derived from the linked user's flags and never stored.
type CompanyStatus string

const (
	CompanyActive    CompanyStatus = "active"
	CompanySuspended CompanyStatus = "suspended"
	CompanyBlocked   CompanyStatus = "blocked"
)

type Company struct {
	ID     string  `db:"id" json:"id"`
	UserID string  `db:"user_id" json:"user_id"`
	Name   string  `db:"name" json:"name"`
	Rating float64 `db:"rating" json:"rating"`

	// Flags of the linked user, selected via join.
	UserIsActive   bool `db:"user_is_active" json:"user_is_active"`
	UserIsVerified bool `db:"user_is_verified" json:"user_is_verified"`
}

// Status derives the external company status from the owner's user flags.
func (c Company) Status() CompanyStatus {
	switch {
	case !c.UserIsVerified:
		return CompanyBlocked
	case !c.UserIsActive:
		return CompanySuspended
	default:
		return CompanyActive
	}
}

type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectPublished ProjectStatus = "published"
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
	ProjectDeleted   ProjectStatus = "deleted"
)

type Project struct {
	ID               string        `db:"id" json:"id"`
	CompanyID        string        `db:"company_id" json:"company_id"`
	Title            string        `db:"title" json:"title"`
	Area             string        `db:"area" json:"area"`
	RequiredHours    int           `db:"required_hours" json:"required_hours"`
	MaxStudents      int           `db:"max_students" json:"max_students"`
	CurrentStudents  int           `db:"current_students" json:"current_students"`
	Trl              int           `db:"trl" json:"trl"`
	ApiLevel         int           `db:"api_level" json:"api_level"`
	Status           ProjectStatus `db:"status" json:"status"`
	PublishedAt      *time.Time    `db:"published_at" json:"published_at"`
	EstimatedEndDate *time.Time    `db:"estimated_end_date" json:"estimated_end_date"`
	RealEndDate      *time.Time    `db:"real_end_date" json:"real_end_date"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationActive    ApplicationStatus = "active"
	ApplicationCompleted ApplicationStatus = "completed"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

// BlockingApplicationStatuses are the statuses that prevent a student from
// applying to the same project again. Rejected and withdrawn rows stay in
// history and do not block.
var BlockingApplicationStatuses = []ApplicationStatus{
	ApplicationPending,
	ApplicationAccepted,
	ApplicationActive,
	ApplicationCompleted,
}

// Terminal reports whether no further transition can leave the status.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationRejected || s == ApplicationCompleted || s == ApplicationWithdrawn
}

type Application struct {
	ID          string            `db:"id" json:"id"`
	StudentID   string            `db:"student_id" json:"student_id"`
	ProjectID   string            `db:"project_id" json:"project_id"`
	Status      ApplicationStatus `db:"status" json:"status"`
	AppliedAt   time.Time         `db:"applied_at" json:"applied_at"`
	RespondedAt *time.Time        `db:"responded_at" json:"responded_at"`
}

type MemberRole string

const (
	MemberEstudiante MemberRole = "estudiante"
	MemberCompanyRep MemberRole = "company_rep"
)

type ProjectMember struct {
	ID        string     `db:"id" json:"id"`
	ProjectID string     `db:"project_id" json:"project_id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Role      MemberRole `db:"role" json:"role"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	JoinedAt  time.Time  `db:"joined_at" json:"joined_at"`
}

// StudentMember pairs a project member row with the member's student id;
// used when project completion fans out per student.
type StudentMember struct {
	StudentID string `db:"student_id" json:"student_id"`
	UserID    string `db:"user_id" json:"user_id"`
}

type WorkHour struct {
	ID                  string     `db:"id" json:"id"`
	StudentID           string     `db:"student_id" json:"student_id"`
	ProjectID           string     `db:"project_id" json:"project_id"`
	Date                time.Time  `db:"date" json:"date"`
	HoursWorked         float64    `db:"hours_worked" json:"hours_worked"`
	Description         string     `db:"description" json:"description"`
	IsVerified          bool       `db:"is_verified" json:"is_verified"`
	VerifiedBy          *string    `db:"verified_by" json:"verified_by"`
	VerifiedAt          *time.Time `db:"verified_at" json:"verified_at"`
	IsProjectCompletion bool       `db:"is_project_completion" json:"is_project_completion"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}

type Strike struct {
	ID         string     `db:"id" json:"id"`
	StudentID  string     `db:"student_id" json:"student_id"`
	CompanyID  string     `db:"company_id" json:"company_id"`
	ProjectID  *string    `db:"project_id" json:"project_id"`
	Reason     string     `db:"reason" json:"reason"`
	Severity   string     `db:"severity" json:"severity"`
	IssuedBy   string     `db:"issued_by" json:"issued_by"`
	IssuedAt   time.Time  `db:"issued_at" json:"issued_at"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at"`
}

type StrikeReportStatus string

const (
	ReportPending  StrikeReportStatus = "pending"
	ReportApproved StrikeReportStatus = "approved"
	ReportRejected StrikeReportStatus = "rejected"
)

type StrikeReport struct {
	ID         string             `db:"id" json:"id"`
	CompanyID  string             `db:"company_id" json:"company_id"`
	StudentID  string             `db:"student_id" json:"student_id"`
	ProjectID  *string            `db:"project_id" json:"project_id"`
	Reason     string             `db:"reason" json:"reason"`
	Severity   string             `db:"severity" json:"severity"`
	Status     StrikeReportStatus `db:"status" json:"status"`
	ReviewedBy *string            `db:"reviewed_by" json:"reviewed_by"`
	ReviewedAt *time.Time         `db:"reviewed_at" json:"reviewed_at"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
}

type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Kind      string    `db:"kind" json:"kind"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	Link      *string   `db:"link" json:"link"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MaxStrikes is the number of active strikes that suspends a student.
const MaxStrikes = 3
