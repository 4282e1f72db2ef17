package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/internal/repository"
	"github.com/stretchr/testify/mock"
)

type TransactorMock struct {
	mock.Mock
}

var _ Transactor = (*TransactorMock)(nil)

func (m *TransactorMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*sqlx.Tx), args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

var _ Notifier = (*NotifierMock)(nil)

func (m *NotifierMock) Notify(ctx context.Context, n Notice) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type StudentRepositoryMock struct {
	mock.Mock
}

var _ repository.StudentRepository = (*StudentRepositoryMock)(nil)

func (m *StudentRepositoryMock) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Student, error) {
	args := m.Called(ctx, ext, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Student), args.Error(1)
}

func (m *StudentRepositoryMock) GetByUserID(ctx context.Context, ext sqlx.ExtContext, userID string) (*domain.Student, error) {
	args := m.Called(ctx, ext, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Student), args.Error(1)
}

func (m *StudentRepositoryMock) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Student, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Student), args.Error(1)
}

func (m *StudentRepositoryMock) SetApiLevel(ctx context.Context, tx *sqlx.Tx, id string, level int, approvedByAdmin bool) error {
	args := m.Called(ctx, tx, id, level, approvedByAdmin)
	return args.Error(0)
}

func (m *StudentRepositoryMock) AddVerifiedHours(ctx context.Context, tx *sqlx.Tx, id string, hours float64) error {
	args := m.Called(ctx, tx, id, hours)
	return args.Error(0)
}

func (m *StudentRepositoryMock) IncrementCompletedProjects(ctx context.Context, tx *sqlx.Tx, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *StudentRepositoryMock) SetStrikes(ctx context.Context, tx *sqlx.Tx, id string, strikes int, status domain.StudentStatus) error {
	args := m.Called(ctx, tx, id, strikes, status)
	return args.Error(0)
}

func (m *StudentRepositoryMock) SetDerivedCounters(ctx context.Context, tx *sqlx.Tx, id string, totalHours float64, completedProjects, strikes int, status domain.StudentStatus) error {
	args := m.Called(ctx, tx, id, totalHours, completedProjects, strikes, status)
	return args.Error(0)
}

func (m *StudentRepositoryMock) SetTrlLevel(ctx context.Context, ext sqlx.ExtContext, id string, trl *int) error {
	args := m.Called(ctx, ext, id, trl)
	return args.Error(0)
}

type CompanyRepositoryMock struct {
	mock.Mock
}

var _ repository.CompanyRepository = (*CompanyRepositoryMock)(nil)

func (m *CompanyRepositoryMock) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Company, error) {
	args := m.Called(ctx, ext, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Company), args.Error(1)
}

func (m *CompanyRepositoryMock) GetByUserID(ctx context.Context, ext sqlx.ExtContext, userID string) (*domain.Company, error) {
	args := m.Called(ctx, ext, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Company), args.Error(1)
}

type ProjectQueryRepositoryMock struct {
	mock.Mock
}

var _ repository.ProjectQueryRepository = (*ProjectQueryRepositoryMock)(nil)

func (m *ProjectQueryRepositoryMock) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Project, error) {
	args := m.Called(ctx, ext, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *ProjectQueryRepositoryMock) ListVisible(ctx context.Context, f repository.VisibleProjectsFilter) ([]domain.Project, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Project), args.Error(1)
}

type ProjectCommandRepositoryMock struct {
	mock.Mock
}

var _ repository.ProjectCommandRepository = (*ProjectCommandRepositoryMock)(nil)

func (m *ProjectCommandRepositoryMock) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Project, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *ProjectCommandRepositoryMock) SetStatus(ctx context.Context, tx *sqlx.Tx, id string, status domain.ProjectStatus, publishedAt, realEndDate *time.Time) error {
	args := m.Called(ctx, tx, id, status, publishedAt, realEndDate)
	return args.Error(0)
}

func (m *ProjectCommandRepositoryMock) IncrementCurrentStudents(ctx context.Context, tx *sqlx.Tx, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *ProjectCommandRepositoryMock) SetCurrentStudents(ctx context.Context, tx *sqlx.Tx, id string, n int) error {
	args := m.Called(ctx, tx, id, n)
	return args.Error(0)
}

type ApplicationRepositoryMock struct {
	mock.Mock
}

var _ repository.ApplicationRepository = (*ApplicationRepositoryMock)(nil)

func (m *ApplicationRepositoryMock) Create(ctx context.Context, tx *sqlx.Tx, app *domain.Application) error {
	args := m.Called(ctx, tx, app)
	return args.Error(0)
}

func (m *ApplicationRepositoryMock) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.Application, error) {
	args := m.Called(ctx, ext, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *ApplicationRepositoryMock) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Application, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *ApplicationRepositoryMock) SetStatus(ctx context.Context, tx *sqlx.Tx, id string, status domain.ApplicationStatus, respondedAt *time.Time) error {
	args := m.Called(ctx, tx, id, status, respondedAt)
	return args.Error(0)
}

func (m *ApplicationRepositoryMock) HasBlocking(ctx context.Context, ext sqlx.ExtContext, studentID, projectID string) (bool, error) {
	args := m.Called(ctx, ext, studentID, projectID)
	return args.Bool(0), args.Error(1)
}

func (m *ApplicationRepositoryMock) ListByProjectAndStatuses(ctx context.Context, tx *sqlx.Tx, projectID string, statuses []domain.ApplicationStatus) ([]domain.Application, error) {
	args := m.Called(ctx, tx, projectID, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Application), args.Error(1)
}

func (m *ApplicationRepositoryMock) TransitionByProject(ctx context.Context, tx *sqlx.Tx, projectID string, from, to domain.ApplicationStatus) (int, error) {
	args := m.Called(ctx, tx, projectID, from, to)
	return args.Int(0), args.Error(1)
}

func (m *ApplicationRepositoryMock) CountByStudentAndStatus(ctx context.Context, ext sqlx.ExtContext, studentID string, status domain.ApplicationStatus) (int, error) {
	args := m.Called(ctx, ext, studentID, status)
	return args.Int(0), args.Error(1)
}

type MemberRepositoryMock struct {
	mock.Mock
}

var _ repository.MemberRepository = (*MemberRepositoryMock)(nil)

func (m *MemberRepositoryMock) Create(ctx context.Context, tx *sqlx.Tx, member *domain.ProjectMember) error {
	args := m.Called(ctx, tx, member)
	return args.Error(0)
}

func (m *MemberRepositoryMock) ListActiveStudents(ctx context.Context, ext sqlx.ExtContext, projectID string) ([]domain.StudentMember, error) {
	args := m.Called(ctx, ext, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.StudentMember), args.Error(1)
}

func (m *MemberRepositoryMock) CountActiveStudents(ctx context.Context, ext sqlx.ExtContext, projectID string) (int, error) {
	args := m.Called(ctx, ext, projectID)
	return args.Int(0), args.Error(1)
}

func (m *MemberRepositoryMock) IsActiveStudentMember(ctx context.Context, ext sqlx.ExtContext, projectID, userID string) (bool, error) {
	args := m.Called(ctx, ext, projectID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MemberRepositoryMock) Deactivate(ctx context.Context, tx *sqlx.Tx, projectID, userID string) error {
	args := m.Called(ctx, tx, projectID, userID)
	return args.Error(0)
}

func (m *MemberRepositoryMock) DeactivateByProject(ctx context.Context, tx *sqlx.Tx, projectID string) error {
	args := m.Called(ctx, tx, projectID)
	return args.Error(0)
}

type WorkHourRepositoryMock struct {
	mock.Mock
}

var _ repository.WorkHourRepository = (*WorkHourRepositoryMock)(nil)

func (m *WorkHourRepositoryMock) Create(ctx context.Context, tx *sqlx.Tx, wh *domain.WorkHour) error {
	args := m.Called(ctx, tx, wh)
	return args.Error(0)
}

func (m *WorkHourRepositoryMock) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*domain.WorkHour, error) {
	args := m.Called(ctx, ext, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.WorkHour), args.Error(1)
}

func (m *WorkHourRepositoryMock) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.WorkHour, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.WorkHour), args.Error(1)
}

func (m *WorkHourRepositoryMock) MarkVerified(ctx context.Context, tx *sqlx.Tx, id, verifiedBy string, at time.Time) error {
	args := m.Called(ctx, tx, id, verifiedBy, at)
	return args.Error(0)
}

func (m *WorkHourRepositoryMock) SumVerifiedByStudent(ctx context.Context, ext sqlx.ExtContext, studentID string) (float64, error) {
	args := m.Called(ctx, ext, studentID)
	return args.Get(0).(float64), args.Error(1)
}

type StrikeRepositoryMock struct {
	mock.Mock
}

var _ repository.StrikeRepository = (*StrikeRepositoryMock)(nil)

func (m *StrikeRepositoryMock) CreateReport(ctx context.Context, ext sqlx.ExtContext, r *domain.StrikeReport) error {
	args := m.Called(ctx, ext, r)
	return args.Error(0)
}

func (m *StrikeRepositoryMock) GetReportByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.StrikeReport, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.StrikeReport), args.Error(1)
}

func (m *StrikeRepositoryMock) SetReportStatus(ctx context.Context, tx *sqlx.Tx, id string, status domain.StrikeReportStatus, reviewedBy string, at time.Time) error {
	args := m.Called(ctx, tx, id, status, reviewedBy, at)
	return args.Error(0)
}

func (m *StrikeRepositoryMock) ListReports(ctx context.Context, status *domain.StrikeReportStatus, limit, offset uint64) ([]domain.StrikeReport, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.StrikeReport), args.Error(1)
}

func (m *StrikeRepositoryMock) CreateStrike(ctx context.Context, tx *sqlx.Tx, s *domain.Strike) error {
	args := m.Called(ctx, tx, s)
	return args.Error(0)
}

func (m *StrikeRepositoryMock) CountActiveByStudent(ctx context.Context, ext sqlx.ExtContext, studentID string) (int, error) {
	args := m.Called(ctx, ext, studentID)
	return args.Int(0), args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

var _ repository.NotificationRepository = (*NotificationRepositoryMock)(nil)

func (m *NotificationRepositoryMock) Create(ctx context.Context, ext sqlx.ExtContext, n *domain.Notification) error {
	args := m.Called(ctx, ext, n)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) ListByUser(ctx context.Context, userID string, limit, offset uint64) ([]domain.Notification, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}
