package metrics

import (
	"time"

	"github.com/greport/greport/internal/models"
)

// IssueFilter narrows the issue population before deriving metrics.
// State is open, closed or all; Days cuts off by created_at age.
type IssueFilter struct {
	State string
	Days  int
}

// IssueMetrics is the rollup over a repository's issues. CloseHoursSum
// and ClosedSampleSize carry the underlying population so aggregation
// can recompute means instead of averaging averages.
type IssueMetrics struct {
	Total                  int            `json:"total"`
	Open                   int            `json:"open"`
	Closed                 int            `json:"closed"`
	AvgTimeToCloseHours    *float64       `json:"avg_time_to_close_hours"`
	MedianTimeToCloseHours *float64       `json:"median_time_to_close_hours"`
	ByLabel                map[string]int `json:"by_label"`
	ByAssignee             map[string]int `json:"by_assignee"`
	ByMilestone            map[string]int `json:"by_milestone"`
	AgeDistribution        []AgeBucket    `json:"age_distribution"`
	StaleCount             int            `json:"stale_count"`
	CloseHoursSum          float64        `json:"close_hours_sum"`
	ClosedSampleSize       int            `json:"closed_sample_size"`
}

// noAssignee and noMilestone are the grouping keys for absent links.
const (
	noAssignee  = "Unassigned"
	noMilestone = "No Milestone"
)

// FilterIssues applies the state and age filters.
func FilterIssues(issues []*models.Issue, filter IssueFilter, now time.Time) []*models.Issue {
	out := make([]*models.Issue, 0, len(issues))
	cutoff := time.Time{}
	if filter.Days > 0 {
		cutoff = now.Add(-time.Duration(filter.Days) * 24 * time.Hour)
	}
	for _, issue := range issues {
		if filter.State != "" && filter.State != "all" && issue.State != filter.State {
			continue
		}
		if !cutoff.IsZero() && issue.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

// ComputeIssueMetrics derives the issue rollup. staleDays defaults to 30.
func ComputeIssueMetrics(issues []*models.Issue, filter IssueFilter, staleDays int, now time.Time) *IssueMetrics {
	filtered := FilterIssues(issues, filter, now)

	m := &IssueMetrics{
		ByLabel:     make(map[string]int),
		ByAssignee:  make(map[string]int),
		ByMilestone: make(map[string]int),
	}

	var closeHours []float64
	for _, issue := range filtered {
		m.Total++
		if issue.State == "open" {
			m.Open++
		} else {
			m.Closed++
		}

		if issue.ClosedAt != nil {
			closeHours = append(closeHours, HoursBetween(issue.CreatedAt, *issue.ClosedAt))
		}

		for _, label := range issue.Labels {
			m.ByLabel[label]++
		}
		if len(issue.Assignees) == 0 {
			m.ByAssignee[noAssignee]++
		} else {
			for _, assignee := range issue.Assignees {
				m.ByAssignee[assignee]++
			}
		}
		if issue.MilestoneTitle != nil && *issue.MilestoneTitle != "" {
			m.ByMilestone[*issue.MilestoneTitle]++
		} else {
			m.ByMilestone[noMilestone]++
		}

		if IsStale(issue, staleDays, now) {
			m.StaleCount++
		}
	}

	m.AvgTimeToCloseHours = mean(closeHours)
	m.MedianTimeToCloseHours = median(closeHours)
	m.CloseHoursSum = sum(closeHours)
	m.ClosedSampleSize = len(closeHours)
	m.AgeDistribution = AgeDistribution(filtered, now)
	return m
}
