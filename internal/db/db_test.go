package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greport/greport/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { database.Close() })
	return database
}

func seedRepo(t *testing.T, database *DB, id int64, fullName string) *models.Repository {
	t.Helper()
	owner, name, err := parseTestFullName(fullName)
	require.NoError(t, err)
	repo := &models.Repository{ID: id, Owner: owner, Name: name, FullName: fullName}
	require.NoError(t, database.UpsertRepository(repo))
	return repo
}

func parseTestFullName(fullName string) (string, string, error) {
	for i := range fullName {
		if fullName[i] == '/' {
			return fullName[:i], fullName[i+1:], nil
		}
	}
	return fullName, "", nil
}

func TestMigrateIsIdempotent(t *testing.T) {
	database := openTestDB(t)
	require.NoError(t, database.Migrate())

	var version int
	require.NoError(t, database.QueryRow(
		`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, len(migrations), version)
}

func TestRepositoryRoundTrip(t *testing.T) {
	database := openTestDB(t)
	seedRepo(t, database, 1, "acme/rockets")
	seedRepo(t, database, 2, "acme/widgets")

	repos, err := database.ListRepositories()
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "acme/rockets", repos[0].FullName)

	repo, err := database.GetRepositoryByFullName("acme/rockets")
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, int64(1), repo.ID)

	missing, err := database.GetRepositoryByFullName("nobody/nothing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	n, err := database.CountRepositories()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIssueUpsertIsIdempotent(t *testing.T) {
	database := openTestDB(t)
	repo := seedRepo(t, database, 1, "acme/rockets")

	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	issue := &models.Issue{
		ID:          100,
		Number:      1,
		Title:       "engine overheats",
		State:       "open",
		AuthorLogin: "alice",
		CreatedAt:   created,
		UpdatedAt:   created,
		Labels:      []string{"bug", "priority-high"},
		Assignees:   []string{"bob"},
	}

	require.NoError(t, database.UpsertIssues(repo.ID, []*models.Issue{issue}))
	require.NoError(t, database.UpsertIssues(repo.ID, []*models.Issue{issue}))

	issues, err := database.ListIssues(repo.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "engine overheats", issues[0].Title)
	assert.Equal(t, []string{"bug", "priority-high"}, issues[0].Labels)
	assert.Equal(t, []string{"bob"}, issues[0].Assignees)
}

func TestIssueLabelRemovalReflectedOnResync(t *testing.T) {
	database := openTestDB(t)
	repo := seedRepo(t, database, 1, "acme/rockets")

	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	issue := &models.Issue{
		ID: 100, Number: 1, Title: "t", State: "open",
		CreatedAt: created, UpdatedAt: created,
		Labels: []string{"bug", "wontfix"},
	}
	require.NoError(t, database.UpsertIssues(repo.ID, []*models.Issue{issue}))

	issue.Labels = []string{"bug"}
	require.NoError(t, database.UpsertIssues(repo.ID, []*models.Issue{issue}))

	issues, err := database.ListIssues(repo.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, []string{"bug"}, issues[0].Labels)
}

func TestIssueMilestoneTitleJoined(t *testing.T) {
	database := openTestDB(t)
	repo := seedRepo(t, database, 1, "acme/rockets")

	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, database.UpsertMilestones(repo.ID, []*models.Milestone{
		{ID: 7, Number: 1, Title: "v1.0", State: "open", CreatedAt: created},
	}))

	milestoneID := int64(7)
	require.NoError(t, database.UpsertIssues(repo.ID, []*models.Issue{
		{ID: 100, Number: 1, Title: "t", State: "open", MilestoneID: &milestoneID,
			CreatedAt: created, UpdatedAt: created},
	}))

	issues, err := database.ListIssues(repo.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.NotNil(t, issues[0].MilestoneTitle)
	assert.Equal(t, "v1.0", *issues[0].MilestoneTitle)
}

func TestGetMilestoneByTitleIgnoresCase(t *testing.T) {
	database := openTestDB(t)
	repo := seedRepo(t, database, 1, "acme/rockets")

	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, database.UpsertMilestones(repo.ID, []*models.Milestone{
		{ID: 7, Number: 1, Title: "v1.0", State: "open", CreatedAt: created},
	}))

	m, err := database.GetMilestoneByTitle(repo.ID, "V1.0")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "v1.0", m.Title)

	missing, err := database.GetMilestoneByTitle(repo.ID, "v2.0")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteRepositoryCascades(t *testing.T) {
	database := openTestDB(t)
	repo := seedRepo(t, database, 1, "acme/rockets")

	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, database.UpsertIssues(repo.ID, []*models.Issue{
		{ID: 100, Number: 1, Title: "t", State: "open",
			CreatedAt: created, UpdatedAt: created, Labels: []string{"bug"}},
	}))
	require.NoError(t, database.UpsertPulls(repo.ID, []*models.PullRequest{
		{ID: 200, Number: 2, Title: "p", State: "open",
			CreatedAt: created, UpdatedAt: created},
	}))
	require.NoError(t, database.MarkSurfaceSynced(repo.ID, SurfaceIssues, time.Now()))

	require.NoError(t, database.DeleteRepository(repo.ID))

	for _, table := range []string{"issues", "issue_labels", "pulls", "sync_status"} {
		var n int
		require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, "table %s", table)
	}
}

func TestSyncStatusSurfaces(t *testing.T) {
	database := openTestDB(t)
	repo := seedRepo(t, database, 1, "acme/rockets")

	status, err := database.GetSyncStatus(repo.ID)
	require.NoError(t, err)
	assert.Nil(t, status)

	issuesAt := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, database.MarkSurfaceSynced(repo.ID, SurfaceIssues, issuesAt))
	require.NoError(t, database.MarkSurfaceSynced(repo.ID, SurfacePulls, issuesAt.Add(time.Minute)))

	status, err = database.GetSyncStatus(repo.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	require.NotNil(t, status.IssuesSyncedAt)
	assert.True(t, status.IssuesSyncedAt.Equal(issuesAt))
	require.NotNil(t, status.PullsSyncedAt)
	assert.Nil(t, status.ReleasesSyncedAt)
	assert.Empty(t, status.LastError)

	// An error is recorded and then cleared by the next success.
	require.NoError(t, database.RecordSyncError(repo.ID, "boom", issuesAt.Add(2*time.Minute)))
	status, err = database.GetSyncStatus(repo.ID)
	require.NoError(t, err)
	assert.Equal(t, "boom", status.LastError)

	require.NoError(t, database.MarkSurfaceSynced(repo.ID, SurfaceIssues, issuesAt.Add(3*time.Minute)))
	status, err = database.GetSyncStatus(repo.ID)
	require.NoError(t, err)
	assert.Empty(t, status.LastError)
}

func TestReleaseUpsertNaturalKey(t *testing.T) {
	database := openTestDB(t)
	repo := seedRepo(t, database, 1, "acme/rockets")

	created := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	rel := &models.Release{ID: 300, TagName: "v1.0.0", Name: "First", CreatedAt: created}
	require.NoError(t, database.UpsertReleases(repo.ID, []*models.Release{rel}))

	rel.Name = "First (patched)"
	require.NoError(t, database.UpsertReleases(repo.ID, []*models.Release{rel}))

	releases, err := database.ListReleases(repo.ID)
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, "First (patched)", releases[0].Name)
}

func TestProjectStorageRoundTrip(t *testing.T) {
	database := openTestDB(t)

	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	project := &models.Project{
		NodeID: "PVT_1", Number: 4, Owner: "acme", Title: "Roadmap",
		TotalItems: 2, CreatedAt: created, UpdatedAt: created,
	}
	require.NoError(t, database.UpsertProjects([]*models.Project{project}))
	require.NoError(t, database.ReplaceProjectFields("PVT_1", []*models.ProjectField{
		{NodeID: "F_1", Name: "Status", FieldType: "SINGLE_SELECT"},
	}))
	require.NoError(t, database.UpsertProjectItems("PVT_1", []*models.ProjectItem{
		{NodeID: "I_1", ContentType: "Issue", ContentNumber: 12, Title: "t",
			CreatedAt: created, UpdatedAt: created},
	}))

	got, err := database.GetProject("ACME", 4)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Roadmap", got.Title)

	fields, err := database.ListProjectFields("PVT_1")
	require.NoError(t, err)
	require.Len(t, fields, 1)

	items, err := database.ListProjectItems("PVT_1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 12, items[0].ContentNumber)
}
