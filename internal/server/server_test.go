package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greport/greport/internal/db"
	"github.com/greport/greport/internal/github"
	"github.com/greport/greport/internal/models"
)

var serverNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

type testHarness struct {
	db     *db.DB
	engine *gin.Engine
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { _ = database.Close() })

	registry := github.NewRegistry(
		[]github.OrgCredential{{Name: "acme", Credential: github.Credential{Token: "t"}}},
		github.Credential{WebURL: "https://github.com"},
		nil,
	)
	srv := New(database, registry, nil, Config{}, nil)
	srv.now = func() time.Time { return serverNow }
	return &testHarness{db: database, engine: srv.Router()}
}

func (h *testHarness) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func (h *testHarness) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func (h *testHarness) seedRepo(t *testing.T, id int64, fullName string) *models.Repository {
	t.Helper()
	slash := strings.Index(fullName, "/")
	repo := &models.Repository{
		ID: id, Owner: fullName[:slash], Name: fullName[slash+1:], FullName: fullName,
	}
	require.NoError(t, h.db.UpsertRepository(repo))
	return repo
}

func (h *testHarness) seedIssues(t *testing.T, repoID int64, count int, state string) {
	t.Helper()
	var issues []*models.Issue
	for i := 1; i <= count; i++ {
		created := serverNow.Add(-time.Duration(i) * 24 * time.Hour)
		issue := &models.Issue{
			ID: repoID*1000 + int64(i), Number: i, Title: "issue", State: state,
			AuthorLogin: "alice", CreatedAt: created, UpdatedAt: created,
		}
		if state == "closed" {
			closed := created.Add(2 * time.Hour)
			issue.ClosedAt = &closed
		}
		issues = append(issues, issue)
	}
	require.NoError(t, h.db.UpsertIssues(repoID, issues))
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListReposEnvelope(t *testing.T) {
	h := newHarness(t)
	h.seedRepo(t, 1, "acme/rockets")

	rec := h.get(t, "/api/v1/repos")
	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decode(t, rec)
	require.Contains(t, envelope, "data")

	var repos []models.Repository
	require.NoError(t, json.Unmarshal(envelope["data"], &repos))
	require.Len(t, repos, 1)
	assert.Equal(t, "acme/rockets", repos[0].FullName)
}

func TestUnknownRepoIs404(t *testing.T) {
	h := newHarness(t)
	rec := h.get(t, "/api/v1/repos/nobody/nothing/issues")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestIssuesPagination(t *testing.T) {
	h := newHarness(t)
	repo := h.seedRepo(t, 1, "acme/rockets")
	h.seedIssues(t, repo.ID, 45, "open")

	rec := h.get(t, "/api/v1/repos/acme/rockets/issues")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []models.Issue `json:"data"`
		Meta pageMeta       `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 30)
	assert.Equal(t, pageMeta{Page: 1, PerPage: 30, Total: 45, TotalPages: 2}, envelope.Meta)

	rec = h.get(t, "/api/v1/repos/acme/rockets/issues?page=2")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 15)
	assert.Equal(t, 2, envelope.Meta.Page)

	// per_page is capped, not rejected.
	rec = h.get(t, "/api/v1/repos/acme/rockets/issues?per_page=500")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 100, envelope.Meta.PerPage)

	// A page past the end is empty, not an error.
	rec = h.get(t, "/api/v1/repos/acme/rockets/issues?page=9")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Empty(t, envelope.Data)
}

func TestBadQueryParams(t *testing.T) {
	h := newHarness(t)
	repo := h.seedRepo(t, 1, "acme/rockets")
	h.seedIssues(t, repo.ID, 1, "open")

	for _, path := range []string{
		"/api/v1/repos/acme/rockets/issues?page=zero",
		"/api/v1/repos/acme/rockets/issues?page=0",
		"/api/v1/repos/acme/rockets/issues?state=merged",
		"/api/v1/repos/acme/rockets/issues/velocity?period=quarter",
		"/api/v1/repos/acme/rockets/issues/velocity?last=-3",
		"/api/v1/repos/acme/rockets/sla?response_hours=fast",
		"/api/v1/repos/acme/rockets/calendar?start_date=July",
		"/api/v1/repos/acme/rockets/calendar?types=issues,bogus",
	} {
		rec := h.get(t, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "validation", errorCode(t, rec), path)
	}
}

func TestBurndownRequiresMilestone(t *testing.T) {
	h := newHarness(t)
	h.seedRepo(t, 1, "acme/rockets")

	rec := h.get(t, "/api/v1/repos/acme/rockets/issues/burndown")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.get(t, "/api/v1/repos/acme/rockets/issues/burndown?milestone=v9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssueMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	repo := h.seedRepo(t, 1, "acme/rockets")
	h.seedIssues(t, repo.ID, 3, "open")
	h.seedIssues(t, 2000+repo.ID, 0, "open") // no such repo, noop

	rec := h.get(t, "/api/v1/repos/acme/rockets/issues/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Total int `json:"total"`
			Open  int `json:"open"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 3, envelope.Data.Total)
	assert.Equal(t, 3, envelope.Data.Open)
}

func TestTrackRepoValidation(t *testing.T) {
	h := newHarness(t)

	rec := h.post(t, "/api/v1/repos", `{"full_name":"not-a-repo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorCode(t, rec))

	rec = h.post(t, "/api/v1/repos", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackRepoCap(t *testing.T) {
	h := newHarness(t)
	for i := 1; i <= MaxTrackedRepos; i++ {
		h.seedRepo(t, int64(i), "acme/repo-"+string(rune('a'+i)))
	}

	rec := h.post(t, "/api/v1/repos", `{"full_name":"acme/one-too-many"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorCode(t, rec))
}

func TestTrackExistingRepoIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seedRepo(t, 1, "acme/rockets")

	// Already tracked, so no host round trip happens.
	rec := h.post(t, "/api/v1/repos", `{"full_name":"acme/rockets"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUntrackRepo(t *testing.T) {
	h := newHarness(t)
	repo := h.seedRepo(t, 1, "acme/rockets")
	h.seedIssues(t, repo.ID, 2, "open")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/repos/acme/rockets", nil)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.get(t, "/api/v1/repos/acme/rockets/issues")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSlaEndpointWithOverrides(t *testing.T) {
	h := newHarness(t)
	repo := h.seedRepo(t, 1, "acme/rockets")
	h.seedIssues(t, repo.ID, 2, "open") // ages 24h and 48h

	rec := h.get(t, "/api/v1/repos/acme/rockets/sla?response_hours=100&resolution_hours=30")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Summary struct {
				TotalOpen          int `json:"total_open"`
				ResolutionBreached int `json:"resolution_breached"`
			} `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.Data.Summary.TotalOpen)
	assert.Equal(t, 1, envelope.Data.Summary.ResolutionBreached)
}

func TestOrgsEndpoint(t *testing.T) {
	h := newHarness(t)

	rec := h.get(t, "/api/v1/orgs")
	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []models.Organization `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "acme", envelope.Data[0].Name)
	assert.True(t, envelope.Data[0].HasToken)

	rec = h.get(t, "/api/v1/orgs/umbrella/projects")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAggregateIssueMetrics(t *testing.T) {
	h := newHarness(t)
	a := h.seedRepo(t, 1, "acme/rockets")
	b := h.seedRepo(t, 2, "acme/widgets")
	h.seedIssues(t, a.ID, 3, "open")
	h.seedIssues(t, b.ID, 2, "closed")

	rec := h.get(t, "/api/v1/aggregate/issues/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Total        int                        `json:"total"`
			Open         int                        `json:"open"`
			Closed       int                        `json:"closed"`
			ByRepository map[string]json.RawMessage `json:"by_repository"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 5, envelope.Data.Total)
	assert.Equal(t, 3, envelope.Data.Open)
	assert.Equal(t, 2, envelope.Data.Closed)
	assert.Len(t, envelope.Data.ByRepository, 2)
}

func TestAggregateIssuesTagsRepository(t *testing.T) {
	h := newHarness(t)
	a := h.seedRepo(t, 1, "acme/rockets")
	h.seedIssues(t, a.ID, 1, "open")

	rec := h.get(t, "/api/v1/aggregate/issues")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []struct {
			Repository string `json:"repository"`
			Number     int    `json:"number"`
		} `json:"data"`
		Meta pageMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "acme/rockets", envelope.Data[0].Repository)
	assert.Equal(t, 1, envelope.Data[0].Number)
}

func TestCalendarEndpoint(t *testing.T) {
	h := newHarness(t)
	repo := h.seedRepo(t, 1, "acme/rockets")
	h.seedIssues(t, repo.ID, 2, "open")

	rec := h.get(t, "/api/v1/repos/acme/rockets/calendar?start_date=2025-06-01&end_date=2025-07-31&types=issues")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			StartDate string `json:"start_date"`
			Summary   struct {
				TotalEvents int `json:"total_events"`
			} `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "2025-06-01", envelope.Data.StartDate)
	assert.Equal(t, 2, envelope.Data.Summary.TotalEvents)
}

func TestVelocityEndpoint(t *testing.T) {
	h := newHarness(t)
	repo := h.seedRepo(t, 1, "acme/rockets")
	h.seedIssues(t, repo.ID, 4, "open")

	rec := h.get(t, "/api/v1/repos/acme/rockets/issues/velocity?period=week&last=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Period     string `json:"period"`
			DataPoints []struct {
				Opened int `json:"opened"`
			} `json:"data_points"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "week", envelope.Data.Period)
	assert.Len(t, envelope.Data.DataPoints, 2)
}
