package http

import (
	"context"

	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/leanmaker/leanmaker-backend/internal/service"
	"github.com/stretchr/testify/mock"
)

var _ service.VisibilityService = (*VisibilityServiceMock)(nil)

type VisibilityServiceMock struct {
	mock.Mock
}

func (m *VisibilityServiceMock) ListVisibleProjects(ctx context.Context, actor domain.Actor, q service.VisibleProjectsQuery) ([]domain.Project, error) {
	args := m.Called(ctx, actor, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Project), args.Error(1)
}

var _ service.ApplicationService = (*ApplicationServiceMock)(nil)

type ApplicationServiceMock struct {
	mock.Mock
}

func (m *ApplicationServiceMock) Apply(ctx context.Context, actor domain.Actor, projectID string) (*domain.Application, error) {
	args := m.Called(ctx, actor, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *ApplicationServiceMock) Accept(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error) {
	args := m.Called(ctx, actor, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *ApplicationServiceMock) Reject(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error) {
	args := m.Called(ctx, actor, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *ApplicationServiceMock) Withdraw(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error) {
	args := m.Called(ctx, actor, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *ApplicationServiceMock) Cancel(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error) {
	args := m.Called(ctx, actor, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Application), args.Error(1)
}

var _ service.ProjectService = (*ProjectServiceMock)(nil)

type ProjectServiceMock struct {
	mock.Mock
}

func (m *ProjectServiceMock) Publish(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	args := m.Called(ctx, actor, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *ProjectServiceMock) Start(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	args := m.Called(ctx, actor, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *ProjectServiceMock) Complete(ctx context.Context, actor domain.Actor, projectID string, confirmEmpty bool) (*domain.Project, error) {
	args := m.Called(ctx, actor, projectID, confirmEmpty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *ProjectServiceMock) Cancel(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	args := m.Called(ctx, actor, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *ProjectServiceMock) Delete(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	args := m.Called(ctx, actor, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Project), args.Error(1)
}

var _ service.WorkHourService = (*WorkHourServiceMock)(nil)

type WorkHourServiceMock struct {
	mock.Mock
}

func (m *WorkHourServiceMock) LogHours(ctx context.Context, actor domain.Actor, req service.LogWorkHourRequest) (*domain.WorkHour, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.WorkHour), args.Error(1)
}

func (m *WorkHourServiceMock) Verify(ctx context.Context, actor domain.Actor, workHourID string) (*domain.WorkHour, error) {
	args := m.Called(ctx, actor, workHourID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.WorkHour), args.Error(1)
}

var _ service.ApiLevelService = (*ApiLevelServiceMock)(nil)

type ApiLevelServiceMock struct {
	mock.Mock
}

func (m *ApiLevelServiceMock) Recompute(ctx context.Context, actor domain.Actor, studentID string) (*domain.Student, error) {
	args := m.Called(ctx, actor, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Student), args.Error(1)
}

func (m *ApiLevelServiceMock) SetLevel(ctx context.Context, actor domain.Actor, studentID string, level int) (*domain.Student, error) {
	args := m.Called(ctx, actor, studentID, level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Student), args.Error(1)
}

var _ service.StrikeService = (*StrikeServiceMock)(nil)

type StrikeServiceMock struct {
	mock.Mock
}

func (m *StrikeServiceMock) FileReport(ctx context.Context, actor domain.Actor, req service.FileStrikeReportRequest) (*domain.StrikeReport, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.StrikeReport), args.Error(1)
}

func (m *StrikeServiceMock) Review(ctx context.Context, actor domain.Actor, reportID string, decision service.ReviewDecision) (*domain.StrikeReport, error) {
	args := m.Called(ctx, actor, reportID, decision)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.StrikeReport), args.Error(1)
}

func (m *StrikeServiceMock) ListReports(ctx context.Context, actor domain.Actor, status *domain.StrikeReportStatus, limit, offset uint64) ([]domain.StrikeReport, error) {
	args := m.Called(ctx, actor, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.StrikeReport), args.Error(1)
}

var _ service.ReconcileService = (*ReconcileServiceMock)(nil)

type ReconcileServiceMock struct {
	mock.Mock
}

func (m *ReconcileServiceMock) ReconcileStudent(ctx context.Context, actor domain.Actor, studentID string) (*domain.Student, error) {
	args := m.Called(ctx, actor, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Student), args.Error(1)
}

func (m *ReconcileServiceMock) ReconcileProject(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	args := m.Called(ctx, actor, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Project), args.Error(1)
}

var _ service.StudentService = (*StudentServiceMock)(nil)

type StudentServiceMock struct {
	mock.Mock
}

func (m *StudentServiceMock) GetProfile(ctx context.Context, actor domain.Actor) (*domain.Student, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Student), args.Error(1)
}

func (m *StudentServiceMock) UpdateProfile(ctx context.Context, actor domain.Actor, req service.UpdateStudentProfileRequest) (*domain.Student, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Student), args.Error(1)
}

var _ service.NotificationService = (*NotificationServiceMock)(nil)

type NotificationServiceMock struct {
	mock.Mock
}

func (m *NotificationServiceMock) List(ctx context.Context, actor domain.Actor, limit, offset uint64) ([]domain.Notification, error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *NotificationServiceMock) MarkRead(ctx context.Context, actor domain.Actor, notificationID string) error {
	args := m.Called(ctx, actor, notificationID)
	return args.Error(0)
}
