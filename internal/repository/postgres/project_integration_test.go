//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectRepository_ListVisible(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	truncateTables(t, testDB)
	repo := NewProjectRepository(testDB, logger)
	ctx := context.Background()

	companyID := seedCompany(t)

	visible := seedProject(t, companyID, "published", 2, 1, 3, 0)
	alsoActive := seedProject(t, companyID, "active", 2, 1, 3, 1)
	tooHighTrl := seedProject(t, companyID, "published", 5, 1, 3, 0)
	tooHighLevel := seedProject(t, companyID, "published", 2, 3, 3, 0)
	draft := seedProject(t, companyID, "draft", 2, 1, 3, 0)
	full := seedProject(t, companyID, "published", 2, 1, 2, 2)

	projects, err := repo.ListVisible(ctx, repository.VisibleProjectsFilter{
		MaxApiLevel: 1,
		MaxTrl:      2,
		Limit:       20,
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}

	assert.ElementsMatch(t, []string{visible, alsoActive}, ids)
	assert.NotContains(t, ids, tooHighTrl)
	assert.NotContains(t, ids, tooHighLevel)
	assert.NotContains(t, ids, draft)
	assert.NotContains(t, ids, full)

	// A level-3 student sees projects up to TRL 6 and api level 3.
	projects, err = repo.ListVisible(ctx, repository.VisibleProjectsFilter{
		MaxApiLevel: 3,
		MaxTrl:      6,
		Limit:       20,
	})
	require.NoError(t, err)
	assert.Len(t, projects, 4)

	// The caller's own min_trl filter narrows within the window.
	minTrl := 5
	projects, err = repo.ListVisible(ctx, repository.VisibleProjectsFilter{
		MaxApiLevel: 3,
		MaxTrl:      6,
		MinTrl:      &minTrl,
		Limit:       20,
	})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, tooHighTrl, projects[0].ID)
}

func TestProjectRepository_IncrementCurrentStudents_CapacityCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	truncateTables(t, testDB)
	repo := NewProjectRepository(testDB, logger)
	ctx := context.Background()

	companyID := seedCompany(t)
	projectID := seedProject(t, companyID, "published", 2, 1, 2, 1)

	tx, err := testDB.Beginx()
	require.NoError(t, err)
	err = repo.IncrementCurrentStudents(ctx, tx, projectID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	// The check constraint closes the race once the project is full.
	tx, err = testDB.Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.IncrementCurrentStudents(ctx, tx, projectID)
	var projectFull *apperrors.ProjectFullError
	require.ErrorAs(t, err, &projectFull)
	assert.Equal(t, projectID, projectFull.ProjectID)
}
