// Package aggregate composes per-repository derivations into cross-repo
// views. Sum-like fields add, mean-like fields are recomputed from the
// underlying populations, and the per-repo breakdown is kept on every
// response so callers can drill down without re-querying.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/greport/greport/internal/metrics"
	"github.com/greport/greport/internal/models"
)

// IssueMetricsAggregate is the cross-repo issue rollup.
type IssueMetricsAggregate struct {
	Total               int                              `json:"total"`
	Open                int                              `json:"open"`
	Closed              int                              `json:"closed"`
	StaleCount          int                              `json:"stale_count"`
	AvgTimeToCloseHours *float64                         `json:"avg_time_to_close_hours"`
	ByLabel             map[string]int                   `json:"by_label"`
	ByAssignee          map[string]int                   `json:"by_assignee"`
	ByMilestone         map[string]int                   `json:"by_milestone"`
	AgeDistribution     []metrics.AgeBucket              `json:"age_distribution"`
	ByRepository        map[string]*metrics.IssueMetrics `json:"by_repository"`
}

// IssueMetrics adds the per-repo rollups. Averages come from the summed
// close-hour populations, never from averaging the per-repo averages.
func IssueMetrics(perRepo map[string]*metrics.IssueMetrics) *IssueMetricsAggregate {
	agg := &IssueMetricsAggregate{
		ByLabel:      map[string]int{},
		ByAssignee:   map[string]int{},
		ByMilestone:  map[string]int{},
		ByRepository: perRepo,
	}

	var hoursSum float64
	var sampleSize int
	for _, m := range perRepo {
		agg.Total += m.Total
		agg.Open += m.Open
		agg.Closed += m.Closed
		agg.StaleCount += m.StaleCount
		hoursSum += m.CloseHoursSum
		sampleSize += m.ClosedSampleSize
		addCounts(agg.ByLabel, m.ByLabel)
		addCounts(agg.ByAssignee, m.ByAssignee)
		addCounts(agg.ByMilestone, m.ByMilestone)
		agg.AgeDistribution = addBuckets(agg.AgeDistribution, m.AgeDistribution)
	}
	if sampleSize > 0 {
		avg := hoursSum / float64(sampleSize)
		agg.AvgTimeToCloseHours = &avg
	}
	return agg
}

// PullMetricsAggregate is the cross-repo pull-request rollup.
type PullMetricsAggregate struct {
	Total               int                             `json:"total"`
	Open                int                             `json:"open"`
	Closed              int                             `json:"closed"`
	Merged              int                             `json:"merged"`
	DraftCount          int                             `json:"draft_count"`
	AvgTimeToMergeHours *float64                        `json:"avg_time_to_merge_hours"`
	BySize              map[string]int                  `json:"by_size"`
	ByAuthor            map[string]int                  `json:"by_author"`
	ByBaseBranch        map[string]int                  `json:"by_base_branch"`
	ByRepository        map[string]*metrics.PullMetrics `json:"by_repository"`
}

// PullMetrics adds the per-repo pull rollups.
func PullMetrics(perRepo map[string]*metrics.PullMetrics) *PullMetricsAggregate {
	agg := &PullMetricsAggregate{
		BySize:       map[string]int{},
		ByAuthor:     map[string]int{},
		ByBaseBranch: map[string]int{},
		ByRepository: perRepo,
	}

	var hoursSum float64
	var sampleSize int
	for _, m := range perRepo {
		agg.Total += m.Total
		agg.Open += m.Open
		agg.Closed += m.Closed
		agg.Merged += m.Merged
		agg.DraftCount += m.DraftCount
		hoursSum += m.MergeHoursSum
		sampleSize += m.MergedSampleSize
		addCounts(agg.BySize, m.BySize)
		addCounts(agg.ByAuthor, m.ByAuthor)
		addCounts(agg.ByBaseBranch, m.ByBaseBranch)
	}
	if sampleSize > 0 {
		avg := hoursSum / float64(sampleSize)
		agg.AvgTimeToMergeHours = &avg
	}
	return agg
}

// Contributor is one login's activity summed across repositories.
type Contributor struct {
	Login         string   `json:"login"`
	IssuesCreated int      `json:"issues_created"`
	PrsCreated    int      `json:"prs_created"`
	PrsMerged     int      `json:"prs_merged"`
	Repositories  []string `json:"repositories"`
}

// Contributors collapses per-repo leaderboards by login, summing counts
// and unioning the repository sets.
func Contributors(perRepo map[string][]metrics.ContributorStats, sortBy string, limit int) []Contributor {
	byLogin := map[string]*Contributor{}
	repoSets := map[string]map[string]bool{}

	for repo, stats := range perRepo {
		for _, s := range stats {
			c, ok := byLogin[s.Login]
			if !ok {
				c = &Contributor{Login: s.Login}
				byLogin[s.Login] = c
				repoSets[s.Login] = map[string]bool{}
			}
			c.IssuesCreated += s.IssuesCreated
			c.PrsCreated += s.PrsCreated
			c.PrsMerged += s.PrsMerged
			repoSets[s.Login][repo] = true
		}
	}

	out := make([]Contributor, 0, len(byLogin))
	for login, c := range byLogin {
		for repo := range repoSets[login] {
			c.Repositories = append(c.Repositories, repo)
		}
		sort.Strings(c.Repositories)
		out = append(out, *c)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if sortBy == "prs" {
			if a.PrsMerged != b.PrsMerged {
				return a.PrsMerged > b.PrsMerged
			}
		} else {
			if a.IssuesCreated != b.IssuesCreated {
				return a.IssuesCreated > b.IssuesCreated
			}
		}
		return a.Login < b.Login
	})

	if limit <= 0 {
		limit = metrics.DefaultContributorLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// VelocityAggregate is the cross-repo velocity series.
type VelocityAggregate struct {
	Period       string                              `json:"period"`
	DataPoints   []metrics.VelocityPoint             `json:"data_points"`
	AvgOpened    float64                             `json:"avg_opened"`
	AvgClosed    float64                             `json:"avg_closed"`
	Trend        string                              `json:"trend"`
	ByRepository map[string]*metrics.VelocityMetrics `json:"by_repository"`
}

// Velocity sums per-repo series bucket by bucket. Every input must share
// the same period and bucket boundaries; the caller derives them all with
// the same parameters and clock. The trend comes from the summed opened
// counts, not from a vote of per-repo trends.
func Velocity(perRepo map[string]*metrics.VelocityMetrics) (*VelocityAggregate, error) {
	agg := &VelocityAggregate{ByRepository: perRepo}

	for repo, v := range perRepo {
		if agg.DataPoints == nil {
			agg.Period = v.Period
			agg.DataPoints = make([]metrics.VelocityPoint, len(v.DataPoints))
			for i, p := range v.DataPoints {
				agg.DataPoints[i].PeriodStart = p.PeriodStart
			}
		}
		if v.Period != agg.Period || len(v.DataPoints) != len(agg.DataPoints) {
			return nil, fmt.Errorf("velocity series for %s does not align with the aggregate window", repo)
		}
		for i, p := range v.DataPoints {
			if p.PeriodStart != agg.DataPoints[i].PeriodStart {
				return nil, fmt.Errorf("velocity series for %s does not align with the aggregate window", repo)
			}
			agg.DataPoints[i].Opened += p.Opened
			agg.DataPoints[i].Closed += p.Closed
			agg.DataPoints[i].NetChange += p.NetChange
			agg.DataPoints[i].CumulativeOpen += p.CumulativeOpen
		}
	}

	opened := make([]int, len(agg.DataPoints))
	var openedTotal, closedTotal int
	for i, p := range agg.DataPoints {
		opened[i] = p.Opened
		openedTotal += p.Opened
		closedTotal += p.Closed
	}
	if n := len(agg.DataPoints); n > 0 {
		agg.AvgOpened = float64(openedTotal) / float64(n)
		agg.AvgClosed = float64(closedTotal) / float64(n)
	}
	agg.Trend = metrics.TrendOf(opened)
	return agg, nil
}

// ReleasePlans merges per-repo plans, re-sorting each section.
func ReleasePlans(perRepo map[string]*metrics.ReleasePlan) *metrics.ReleasePlan {
	merged := &metrics.ReleasePlan{
		Upcoming:       []metrics.UpcomingMilestone{},
		RecentReleases: []metrics.RecentRelease{},
		Timeline:       []metrics.TimelineEntry{},
	}
	for _, plan := range perRepo {
		merged.Upcoming = append(merged.Upcoming, plan.Upcoming...)
		merged.RecentReleases = append(merged.RecentReleases, plan.RecentReleases...)
		merged.Timeline = append(merged.Timeline, plan.Timeline...)
	}
	sort.SliceStable(merged.Upcoming, func(i, j int) bool {
		return merged.Upcoming[i].DueOn < merged.Upcoming[j].DueOn
	})
	sort.SliceStable(merged.RecentReleases, func(i, j int) bool {
		return merged.RecentReleases[i].PublishedAt > merged.RecentReleases[j].PublishedAt
	})
	sort.SliceStable(merged.Timeline, func(i, j int) bool {
		return merged.Timeline[i].Date < merged.Timeline[j].Date
	})
	return merged
}

// ProjectsSummary is the cross-org project rollup.
type ProjectsSummary struct {
	TotalProjects int               `json:"total_projects"`
	OpenProjects  int               `json:"open_projects"`
	TotalItems    int               `json:"total_items"`
	ByOwner       map[string]int    `json:"by_owner"`
	Projects      []*models.Project `json:"projects"`
}

// Projects summarizes the boards across every configured organization.
func Projects(projects []*models.Project) *ProjectsSummary {
	summary := &ProjectsSummary{
		ByOwner:  map[string]int{},
		Projects: projects,
	}
	if summary.Projects == nil {
		summary.Projects = []*models.Project{}
	}
	for _, p := range projects {
		summary.TotalProjects++
		if !p.Closed {
			summary.OpenProjects++
		}
		summary.TotalItems += p.TotalItems
		summary.ByOwner[p.Owner]++
	}
	return summary
}

func addCounts(dst, src map[string]int) {
	for k, v := range src {
		dst[k] += v
	}
}

// addBuckets adds distributions with identical boundary definitions.
func addBuckets(dst, src []metrics.AgeBucket) []metrics.AgeBucket {
	if dst == nil {
		dst = append(dst, src...)
		return dst
	}
	for i := range src {
		if i < len(dst) {
			dst[i].Count += src[i].Count
		}
	}
	return dst
}
