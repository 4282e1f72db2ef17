package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newReconcileService(
	transactor *TransactorMock,
	students *StudentRepositoryMock,
	projectCmd *ProjectCommandRepositoryMock,
	applications *ApplicationRepositoryMock,
	members *MemberRepositoryMock,
	workHours *WorkHourRepositoryMock,
	strikes *StrikeRepositoryMock,
) *ReconcileServiceImpl {
	return NewReconcileService(
		transactor, newTestLogger(),
		students, projectCmd, applications, members, workHours, strikes,
		5*time.Second,
	)
}

func TestReconcileServiceImpl_ReconcileStudent(t *testing.T) {
	ctx := context.Background()
	admin := domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}

	t.Run("Counters re-derived from source rows", func(t *testing.T) {
		transactor := new(TransactorMock)
		students := new(StudentRepositoryMock)
		projectCmd := new(ProjectCommandRepositoryMock)
		applications := new(ApplicationRepositoryMock)
		members := new(MemberRepositoryMock)
		workHours := new(WorkHourRepositoryMock)
		strikes := new(StrikeRepositoryMock)

		_, mockedTx, smock := newMockDBAndTx(t)
		smock.ExpectCommit()

		transactor.On("BeginTxx", mock.Anything, (*sql.TxOptions)(nil)).Return(mockedTx, nil).Once()
		students.On("GetByIDForUpdate", mock.Anything, mockedTx, "stu-1").
			Return(&domain.Student{ID: "stu-1", ApiLevel: 1, TotalHours: 10, CompletedProjects: 0, Strikes: 0, Status: domain.StudentActive}, nil).Once()
		workHours.On("SumVerifiedByStudent", mock.Anything, mockedTx, "stu-1").Return(45.0, nil).Once()
		applications.On("CountByStudentAndStatus", mock.Anything, mockedTx, "stu-1", domain.ApplicationCompleted).Return(1, nil).Once()
		strikes.On("CountActiveByStudent", mock.Anything, mockedTx, "stu-1").Return(1, nil).Once()
		students.On("SetDerivedCounters", mock.Anything, mockedTx, "stu-1", 45.0, 1, 1, domain.StudentActive).Return(nil).Once()
		// 45 verified hours recompute to level 3.
		students.On("SetApiLevel", mock.Anything, mockedTx, "stu-1", 3, true).Return(nil).Once()

		svc := newReconcileService(transactor, students, projectCmd, applications, members, workHours, strikes)

		student, err := svc.ReconcileStudent(ctx, admin, "stu-1")
		require.NoError(t, err)
		assert.Equal(t, 45.0, student.TotalHours)
		assert.Equal(t, 1, student.CompletedProjects)
		assert.Equal(t, 1, student.Strikes)
		assert.Equal(t, 3, student.ApiLevel)

		students.AssertExpectations(t)
		workHours.AssertExpectations(t)
		applications.AssertExpectations(t)
		strikes.AssertExpectations(t)
	})

	t.Run("Three surfaced strikes suspend", func(t *testing.T) {
		transactor := new(TransactorMock)
		students := new(StudentRepositoryMock)
		applications := new(ApplicationRepositoryMock)
		workHours := new(WorkHourRepositoryMock)
		strikes := new(StrikeRepositoryMock)

		_, mockedTx, smock := newMockDBAndTx(t)
		smock.ExpectCommit()

		transactor.On("BeginTxx", mock.Anything, (*sql.TxOptions)(nil)).Return(mockedTx, nil).Once()
		students.On("GetByIDForUpdate", mock.Anything, mockedTx, "stu-1").
			Return(&domain.Student{ID: "stu-1", ApiLevel: 2, TotalHours: 30, CompletedProjects: 1, Strikes: 1, Status: domain.StudentActive}, nil).Once()
		workHours.On("SumVerifiedByStudent", mock.Anything, mockedTx, "stu-1").Return(30.0, nil).Once()
		applications.On("CountByStudentAndStatus", mock.Anything, mockedTx, "stu-1", domain.ApplicationCompleted).Return(1, nil).Once()
		strikes.On("CountActiveByStudent", mock.Anything, mockedTx, "stu-1").Return(3, nil).Once()
		students.On("SetDerivedCounters", mock.Anything, mockedTx, "stu-1", 30.0, 1, 3, domain.StudentSuspended).Return(nil).Once()

		svc := newReconcileService(transactor, students, new(ProjectCommandRepositoryMock), applications, new(MemberRepositoryMock), workHours, strikes)

		student, err := svc.ReconcileStudent(ctx, admin, "stu-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StudentSuspended, student.Status)

		students.AssertExpectations(t)
	})

	t.Run("Forbidden for company", func(t *testing.T) {
		svc := newReconcileService(new(TransactorMock), new(StudentRepositoryMock), new(ProjectCommandRepositoryMock),
			new(ApplicationRepositoryMock), new(MemberRepositoryMock), new(WorkHourRepositoryMock), new(StrikeRepositoryMock))

		_, err := svc.ReconcileStudent(ctx, domain.Actor{UserID: "c-1", Role: domain.RoleCompany}, "stu-1")
		require.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}

func TestReconcileServiceImpl_ReconcileProject(t *testing.T) {
	ctx := context.Background()
	admin := domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}

	t.Run("Diverged counter is overwritten", func(t *testing.T) {
		transactor := new(TransactorMock)
		projectCmd := new(ProjectCommandRepositoryMock)
		members := new(MemberRepositoryMock)

		_, mockedTx, smock := newMockDBAndTx(t)
		smock.ExpectCommit()

		transactor.On("BeginTxx", mock.Anything, (*sql.TxOptions)(nil)).Return(mockedTx, nil).Once()
		projectCmd.On("GetByIDForUpdate", mock.Anything, mockedTx, "p-1").
			Return(&domain.Project{ID: "p-1", CurrentStudents: 3, MaxStudents: 5}, nil).Once()
		members.On("CountActiveStudents", mock.Anything, mockedTx, "p-1").Return(2, nil).Once()
		projectCmd.On("SetCurrentStudents", mock.Anything, mockedTx, "p-1", 2).Return(nil).Once()

		svc := newReconcileService(transactor, new(StudentRepositoryMock), projectCmd,
			new(ApplicationRepositoryMock), members, new(WorkHourRepositoryMock), new(StrikeRepositoryMock))

		project, err := svc.ReconcileProject(ctx, admin, "p-1")
		require.NoError(t, err)
		assert.Equal(t, 2, project.CurrentStudents)

		projectCmd.AssertExpectations(t)
		members.AssertExpectations(t)
	})

	t.Run("Matching counter is left alone", func(t *testing.T) {
		transactor := new(TransactorMock)
		projectCmd := new(ProjectCommandRepositoryMock)
		members := new(MemberRepositoryMock)

		_, mockedTx, smock := newMockDBAndTx(t)
		smock.ExpectCommit()

		transactor.On("BeginTxx", mock.Anything, (*sql.TxOptions)(nil)).Return(mockedTx, nil).Once()
		projectCmd.On("GetByIDForUpdate", mock.Anything, mockedTx, "p-1").
			Return(&domain.Project{ID: "p-1", CurrentStudents: 2, MaxStudents: 5}, nil).Once()
		members.On("CountActiveStudents", mock.Anything, mockedTx, "p-1").Return(2, nil).Once()

		svc := newReconcileService(transactor, new(StudentRepositoryMock), projectCmd,
			new(ApplicationRepositoryMock), members, new(WorkHourRepositoryMock), new(StrikeRepositoryMock))

		project, err := svc.ReconcileProject(ctx, admin, "p-1")
		require.NoError(t, err)
		assert.Equal(t, 2, project.CurrentStudents)

		projectCmd.AssertNotCalled(t, "SetCurrentStudents", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
