package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greport/greport/internal/models"
)

var testNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func openIssue(number int, createdAgo time.Duration) *models.Issue {
	created := testNow.Add(-createdAgo)
	return &models.Issue{
		ID: int64(number), Number: number, Title: "issue", State: "open",
		AuthorLogin: "alice", CreatedAt: created, UpdatedAt: created,
	}
}

func closedIssue(number int, createdAgo, openFor time.Duration) *models.Issue {
	issue := openIssue(number, createdAgo)
	issue.State = "closed"
	closed := issue.CreatedAt.Add(openFor)
	issue.ClosedAt = &closed
	issue.UpdatedAt = closed
	return issue
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func TestIssueMetricsTotals(t *testing.T) {
	issues := []*models.Issue{
		openIssue(1, days(2)),
		openIssue(2, days(10)),
		closedIssue(3, days(20), 48*time.Hour),
		closedIssue(4, days(30), 24*time.Hour),
	}
	issues[0].Labels = []string{"bug"}
	issues[1].Labels = []string{"bug", "help wanted"}
	issues[1].Assignees = []string{"bob"}
	title := "v1.0"
	issues[2].MilestoneTitle = &title

	m := ComputeIssueMetrics(issues, IssueFilter{State: "all"}, 0, testNow)

	assert.Equal(t, 4, m.Total)
	assert.Equal(t, 2, m.Open)
	assert.Equal(t, 2, m.Closed)
	require.NotNil(t, m.AvgTimeToCloseHours)
	assert.InDelta(t, 36.0, *m.AvgTimeToCloseHours, 0.001)
	require.NotNil(t, m.MedianTimeToCloseHours)
	assert.InDelta(t, 36.0, *m.MedianTimeToCloseHours, 0.001)
	assert.Equal(t, 2, m.ByLabel["bug"])
	assert.Equal(t, 1, m.ByLabel["help wanted"])
	assert.Equal(t, 1, m.ByAssignee["bob"])
	assert.Equal(t, 3, m.ByAssignee["Unassigned"])
	assert.Equal(t, 1, m.ByMilestone["v1.0"])
	assert.Equal(t, 3, m.ByMilestone["No Milestone"])
	assert.Equal(t, 72.0, m.CloseHoursSum)
	assert.Equal(t, 2, m.ClosedSampleSize)
}

func TestIssueMetricsEmptyPopulation(t *testing.T) {
	m := ComputeIssueMetrics(nil, IssueFilter{}, 0, testNow)

	assert.Zero(t, m.Total)
	assert.Nil(t, m.AvgTimeToCloseHours)
	assert.Nil(t, m.MedianTimeToCloseHours)
	assert.Empty(t, m.ByLabel)
	// Distribution buckets are emitted even when empty.
	require.Len(t, m.AgeDistribution, 5)
	for _, bucket := range m.AgeDistribution {
		assert.Zero(t, bucket.Count)
	}
}

func TestIssueFilterStateAndDays(t *testing.T) {
	issues := []*models.Issue{
		openIssue(1, days(2)),
		openIssue(2, days(40)),
		closedIssue(3, days(5), time.Hour),
	}

	open := FilterIssues(issues, IssueFilter{State: "open"}, testNow)
	assert.Len(t, open, 2)

	recent := FilterIssues(issues, IssueFilter{State: "all", Days: 7}, testNow)
	assert.Len(t, recent, 2)

	recentOpen := FilterIssues(issues, IssueFilter{State: "open", Days: 7}, testNow)
	require.Len(t, recentOpen, 1)
	assert.Equal(t, 1, recentOpen[0].Number)
}

func TestStaleDetection(t *testing.T) {
	// Spec scenario: updated 10, 31 and 60 days ago against a 30 day rule.
	issues := []*models.Issue{
		openIssue(1, days(90)),
		openIssue(2, days(90)),
		openIssue(3, days(90)),
	}
	issues[0].UpdatedAt = testNow.Add(-days(10))
	issues[1].UpdatedAt = testNow.Add(-days(31))
	issues[2].UpdatedAt = testNow.Add(-days(60))

	stale := StaleIssues(issues, 30, testNow)
	require.Len(t, stale, 2)
	assert.Equal(t, 2, stale[0].Number)
	assert.Equal(t, 3, stale[1].Number)

	// Closed issues never count as stale.
	closed := closedIssue(4, days(90), time.Hour)
	assert.False(t, IsStale(closed, 30, testNow))
}

func TestAgeDistributionBuckets(t *testing.T) {
	issues := []*models.Issue{
		openIssue(1, 12*time.Hour), // <1d
		openIssue(2, days(3)),      // 1-7d
		openIssue(3, days(15)),     // 7-30d
		openIssue(4, days(45)),     // 30-90d
		openIssue(5, days(200)),    // 90d+
		closedIssue(6, days(200), time.Hour),
	}

	buckets := AgeDistribution(issues, testNow)
	require.Len(t, buckets, 5)
	for i, bucket := range buckets {
		assert.Equal(t, 1, bucket.Count, "bucket %s", buckets[i].Label)
	}
	assert.Equal(t, "<1d", buckets[0].Label)
	assert.Equal(t, "90d+", buckets[4].Label)
	assert.Nil(t, buckets[4].MaxDays)
}

func TestAgeHoursNeverNegative(t *testing.T) {
	future := testNow.Add(time.Hour)
	assert.Zero(t, AgeHours(future, testNow))
	assert.InDelta(t, 24.0, AgeHours(testNow.Add(-days(1)), testNow), 0.001)
}
