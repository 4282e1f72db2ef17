//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberRepository_CreateReactivatesCancelledMembership(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	truncateTables(t, testDB)
	repo := NewMemberRepository(testDB, logger)
	ctx := context.Background()

	studentID := seedStudent(t)
	companyID := seedCompany(t)
	projectID := seedProject(t, companyID, "published", 2, 1, 3, 0)

	var userID string
	require.NoError(t, testDB.Get(&userID, `SELECT user_id FROM students WHERE id = $1`, studentID))

	inTx := func(fn func(tx *sqlx.Tx) error) {
		t.Helper()
		tx, err := testDB.Beginx()
		require.NoError(t, err)
		defer tx.Rollback()
		require.NoError(t, fn(tx))
		require.NoError(t, tx.Commit())
	}

	newMember := func() *domain.ProjectMember {
		return &domain.ProjectMember{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			UserID:    userID,
			Role:      domain.MemberEstudiante,
			IsActive:  true,
			JoinedAt:  time.Now(),
		}
	}

	inTx(func(tx *sqlx.Tx) error { return repo.Create(ctx, tx, newMember()) })

	// Admin cancel leaves the membership row behind, deactivated.
	inTx(func(tx *sqlx.Tx) error { return repo.Deactivate(ctx, tx, projectID, userID) })

	active, err := repo.IsActiveStudentMember(ctx, nil, projectID, userID)
	require.NoError(t, err)
	assert.False(t, active)

	// Accepting the student again after a reapply must reactivate the
	// existing row instead of tripping the (project, user) unique key.
	inTx(func(tx *sqlx.Tx) error { return repo.Create(ctx, tx, newMember()) })

	active, err = repo.IsActiveStudentMember(ctx, nil, projectID, userID)
	require.NoError(t, err)
	assert.True(t, active)

	count, err := repo.CountActiveStudents(ctx, nil, projectID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
