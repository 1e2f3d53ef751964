package metrics

import (
	"time"

	"github.com/greport/greport/internal/models"
)

// PullMetrics is the rollup over a repository's pull requests.
// Merge-time statistics cover merged rows only.
type PullMetrics struct {
	Total                  int            `json:"total"`
	Open                   int            `json:"open"`
	Closed                 int            `json:"closed"`
	Merged                 int            `json:"merged"`
	DraftCount             int            `json:"draft_count"`
	AvgTimeToMergeHours    *float64       `json:"avg_time_to_merge_hours"`
	MedianTimeToMergeHours *float64       `json:"median_time_to_merge_hours"`
	BySize                 map[string]int `json:"by_size"`
	ByAuthor               map[string]int `json:"by_author"`
	ByBaseBranch           map[string]int `json:"by_base_branch"`
	MergeHoursSum          float64        `json:"merge_hours_sum"`
	MergedSampleSize       int            `json:"merged_sample_size"`
}

// FilterPulls applies the state and age filters.
func FilterPulls(pulls []*models.PullRequest, filter IssueFilter, now time.Time) []*models.PullRequest {
	out := make([]*models.PullRequest, 0, len(pulls))
	cutoff := time.Time{}
	if filter.Days > 0 {
		cutoff = now.Add(-time.Duration(filter.Days) * 24 * time.Hour)
	}
	for _, pr := range pulls {
		if filter.State != "" && filter.State != "all" && pr.State != filter.State {
			continue
		}
		if !cutoff.IsZero() && pr.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, pr)
	}
	return out
}

// ComputePullMetrics derives the pull-request rollup.
func ComputePullMetrics(pulls []*models.PullRequest, filter IssueFilter, now time.Time) *PullMetrics {
	filtered := FilterPulls(pulls, filter, now)

	m := &PullMetrics{
		BySize:       make(map[string]int),
		ByAuthor:     make(map[string]int),
		ByBaseBranch: make(map[string]int),
	}

	var mergeHours []float64
	for _, pr := range filtered {
		m.Total++
		if pr.State == "open" {
			m.Open++
			if pr.Draft {
				m.DraftCount++
			}
		} else {
			m.Closed++
		}
		if pr.Merged {
			m.Merged++
			if pr.MergedAt != nil {
				mergeHours = append(mergeHours, HoursBetween(pr.CreatedAt, *pr.MergedAt))
			}
		}

		m.BySize[SizeBin(pr)]++
		author := pr.AuthorLogin
		if author == "" {
			author = "unknown"
		}
		m.ByAuthor[author]++
		if pr.BaseRef != "" {
			m.ByBaseBranch[pr.BaseRef]++
		}
	}

	m.AvgTimeToMergeHours = mean(mergeHours)
	m.MedianTimeToMergeHours = median(mergeHours)
	m.MergeHoursSum = sum(mergeHours)
	m.MergedSampleSize = len(mergeHours)
	return m
}
