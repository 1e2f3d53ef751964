package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greport/greport/internal/metrics"
	"github.com/greport/greport/internal/models"
)

func TestIssueMetricsRecomputesMeans(t *testing.T) {
	avgA, avgB := 5.0, 20.0
	perRepo := map[string]*metrics.IssueMetrics{
		"acme/widgets": {
			Total: 4, Open: 2, Closed: 2, StaleCount: 1,
			AvgTimeToCloseHours: &avgA,
			CloseHoursSum:       10, ClosedSampleSize: 2,
			ByLabel:    map[string]int{"bug": 2},
			ByAssignee: map[string]int{"alice": 1, "Unassigned": 3},
		},
		"acme/gadgets": {
			Total: 2, Open: 1, Closed: 1,
			AvgTimeToCloseHours: &avgB,
			CloseHoursSum:       20, ClosedSampleSize: 1,
			ByLabel:    map[string]int{"bug": 1, "docs": 1},
			ByAssignee: map[string]int{"alice": 2},
		},
	}

	agg := IssueMetrics(perRepo)

	assert.Equal(t, 6, agg.Total)
	assert.Equal(t, 3, agg.Open)
	assert.Equal(t, 3, agg.Closed)
	assert.Equal(t, 1, agg.StaleCount)

	// 30 close-hours over 3 closed issues, not the mean of 5 and 20.
	require.NotNil(t, agg.AvgTimeToCloseHours)
	assert.InDelta(t, 10.0, *agg.AvgTimeToCloseHours, 0.001)

	assert.Equal(t, 3, agg.ByLabel["bug"])
	assert.Equal(t, 1, agg.ByLabel["docs"])
	assert.Equal(t, 3, agg.ByAssignee["alice"])
	assert.Len(t, agg.ByRepository, 2)
}

func TestIssueMetricsEmpty(t *testing.T) {
	agg := IssueMetrics(nil)
	assert.Zero(t, agg.Total)
	assert.Nil(t, agg.AvgTimeToCloseHours)
}

func TestPullMetrics(t *testing.T) {
	perRepo := map[string]*metrics.PullMetrics{
		"a/a": {
			Total: 3, Open: 1, Closed: 2, Merged: 2, DraftCount: 1,
			MergeHoursSum: 12, MergedSampleSize: 2,
			BySize: map[string]int{"S": 2, "M": 1},
		},
		"b/b": {
			Total: 1, Closed: 1, Merged: 1,
			MergeHoursSum: 6, MergedSampleSize: 1,
			BySize: map[string]int{"S": 1},
		},
	}

	agg := PullMetrics(perRepo)
	assert.Equal(t, 4, agg.Total)
	assert.Equal(t, 3, agg.Merged)
	require.NotNil(t, agg.AvgTimeToMergeHours)
	assert.InDelta(t, 6.0, *agg.AvgTimeToMergeHours, 0.001)
	assert.Equal(t, 3, agg.BySize["S"])
}

func TestContributorsRollup(t *testing.T) {
	perRepo := map[string][]metrics.ContributorStats{
		"a/a": {
			{Login: "alice", IssuesCreated: 3, PrsCreated: 1, PrsMerged: 1},
			{Login: "bob", IssuesCreated: 1},
		},
		"b/b": {
			{Login: "alice", IssuesCreated: 2, PrsCreated: 2, PrsMerged: 2},
		},
	}

	out := Contributors(perRepo, "issues", 0)
	require.Len(t, out, 2)
	assert.Equal(t, "alice", out[0].Login)
	assert.Equal(t, 5, out[0].IssuesCreated)
	assert.Equal(t, 3, out[0].PrsMerged)
	assert.Equal(t, []string{"a/a", "b/b"}, out[0].Repositories)
	assert.Equal(t, []string{"a/a"}, out[1].Repositories)
}

func TestVelocitySumsBuckets(t *testing.T) {
	series := func(opened, closed []int) *metrics.VelocityMetrics {
		v := &metrics.VelocityMetrics{Period: "week"}
		starts := []string{"2025-01-06T00:00:00Z", "2025-01-13T00:00:00Z", "2025-01-20T00:00:00Z"}
		for i := range starts {
			v.DataPoints = append(v.DataPoints, metrics.VelocityPoint{
				PeriodStart: starts[i],
				Opened:      opened[i],
				Closed:      closed[i],
				NetChange:   opened[i] - closed[i],
			})
		}
		return v
	}

	perRepo := map[string]*metrics.VelocityMetrics{
		"a/a": series([]int{1, 2, 1}, []int{0, 1, 0}),
		"b/b": series([]int{1, 2, 3}, []int{1, 1, 1}),
	}

	agg, err := Velocity(perRepo)
	require.NoError(t, err)
	require.Len(t, agg.DataPoints, 3)
	assert.Equal(t, 2, agg.DataPoints[0].Opened)
	assert.Equal(t, 4, agg.DataPoints[1].Opened)
	assert.Equal(t, 4, agg.DataPoints[2].Opened)
	assert.InDelta(t, 10.0/3, agg.AvgOpened, 0.001)
	assert.Equal(t, "increasing", agg.Trend)
}

func TestVelocityRejectsMisalignedSeries(t *testing.T) {
	perRepo := map[string]*metrics.VelocityMetrics{
		"a/a": {Period: "week", DataPoints: []metrics.VelocityPoint{{PeriodStart: "2025-01-06T00:00:00Z"}}},
		"b/b": {Period: "day", DataPoints: []metrics.VelocityPoint{{PeriodStart: "2025-01-06T00:00:00Z"}}},
	}
	_, err := Velocity(perRepo)
	assert.Error(t, err)
}

func TestReleasePlans(t *testing.T) {
	perRepo := map[string]*metrics.ReleasePlan{
		"a/a": {
			Upcoming: []metrics.UpcomingMilestone{{Title: "v2", DueOn: "2025-08-01"}},
			Timeline: []metrics.TimelineEntry{{Date: "2025-08-01", Kind: "milestone", Title: "v2"}},
		},
		"b/b": {
			Upcoming:       []metrics.UpcomingMilestone{{Title: "v1", DueOn: "2025-07-01"}},
			RecentReleases: []metrics.RecentRelease{{TagName: "v0.9", PublishedAt: "2025-06-01"}},
			Timeline:       []metrics.TimelineEntry{{Date: "2025-06-01", Kind: "release", Title: "v0.9"}},
		},
	}

	merged := ReleasePlans(perRepo)
	require.Len(t, merged.Upcoming, 2)
	assert.Equal(t, "v1", merged.Upcoming[0].Title)
	assert.Equal(t, "v2", merged.Upcoming[1].Title)
	require.Len(t, merged.Timeline, 2)
	assert.Equal(t, "2025-06-01", merged.Timeline[0].Date)
}

func TestProjectsSummary(t *testing.T) {
	projects := []*models.Project{
		{NodeID: "p1", Owner: "acme", TotalItems: 10},
		{NodeID: "p2", Owner: "acme", TotalItems: 5, Closed: true},
		{NodeID: "p3", Owner: "umbrella", TotalItems: 2},
	}

	summary := Projects(projects)
	assert.Equal(t, 3, summary.TotalProjects)
	assert.Equal(t, 2, summary.OpenProjects)
	assert.Equal(t, 17, summary.TotalItems)
	assert.Equal(t, 2, summary.ByOwner["acme"])

	empty := Projects(nil)
	assert.NotNil(t, empty.Projects)
	assert.Zero(t, empty.TotalProjects)
}
