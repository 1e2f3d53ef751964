package metrics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/greport/greport/internal/models"
)

// DefaultBlockerLabels mark issues that hold a milestone back.
var DefaultBlockerLabels = []string{"blocker", "blocked"}

// Release-plan milestone statuses.
const (
	PlanOnTrack = "on_track"
	PlanAtRisk  = "at_risk"
	PlanOverdue = "overdue"
)

// ReleasePlanConfig bounds the plan's windows. Zero values take the
// defaults of three months each way and the standard blocker labels.
type ReleasePlanConfig struct {
	MonthsBack    int
	MonthsForward int
	BlockerLabels []string
}

func (c ReleasePlanConfig) withDefaults() ReleasePlanConfig {
	if c.MonthsBack <= 0 {
		c.MonthsBack = 3
	}
	if c.MonthsForward <= 0 {
		c.MonthsForward = 3
	}
	if len(c.BlockerLabels) == 0 {
		c.BlockerLabels = DefaultBlockerLabels
	}
	return c
}

// UpcomingMilestone is one open milestone with a due date.
type UpcomingMilestone struct {
	Title           string  `json:"title"`
	DueOn           string  `json:"due_on"`
	ProgressPercent float64 `json:"progress_percent"`
	DaysRemaining   int     `json:"days_remaining"`
	OpenIssues      int     `json:"open_issues"`
	ClosedIssues    int     `json:"closed_issues"`
	BlockerCount    int     `json:"blocker_count"`
	Status          string  `json:"status"`
}

// RecentRelease is one published release in the lookback window.
type RecentRelease struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name,omitempty"`
	PublishedAt string `json:"published_at"`
	Kind        string `json:"kind"` // draft | prerelease | stable
}

// TimelineEntry is one dated row on the combined plan timeline.
type TimelineEntry struct {
	Date     string `json:"date"`
	Kind     string `json:"kind"` // milestone | release
	Title    string `json:"title"`
	IsFuture bool   `json:"is_future"`
}

// ReleasePlan is the combined forward/backward release view.
type ReleasePlan struct {
	Upcoming       []UpcomingMilestone `json:"upcoming"`
	RecentReleases []RecentRelease     `json:"recent_releases"`
	Timeline       []TimelineEntry     `json:"timeline"`
}

// ReleaseKind tags a release draft, prerelease or stable.
func ReleaseKind(rel *models.Release) string {
	switch {
	case rel.Draft:
		return "draft"
	case rel.Prerelease:
		return "prerelease"
	default:
		return "stable"
	}
}

// ComputeReleasePlan derives the plan from milestones, their linked
// issues, and releases.
func ComputeReleasePlan(milestones []*models.Milestone, issues []*models.Issue, releases []*models.Release, cfg ReleasePlanConfig, now time.Time) *ReleasePlan {
	cfg = cfg.withDefaults()
	now = now.UTC()
	forwardCutoff := now.AddDate(0, cfg.MonthsForward, 0)
	backCutoff := now.AddDate(0, -cfg.MonthsBack, 0)

	// Matched case-insensitively so "Blocker" counts alongside "blocker".
	blockers := make(map[string]bool, len(cfg.BlockerLabels))
	for _, label := range cfg.BlockerLabels {
		blockers[strings.ToLower(label)] = true
	}

	plan := &ReleasePlan{
		Upcoming:       []UpcomingMilestone{},
		RecentReleases: []RecentRelease{},
		Timeline:       []TimelineEntry{},
	}

	for _, m := range milestones {
		if m.State != "open" || m.DueOn == nil || m.DueOn.After(forwardCutoff) {
			continue
		}

		progress := 0.0
		if total := m.OpenIssues + m.ClosedIssues; total > 0 {
			progress = round1(float64(m.ClosedIssues) / float64(total) * 100)
		}
		daysRemaining := int(math.Ceil(m.DueOn.Sub(now).Hours() / 24))

		blockerCount := 0
		for _, issue := range issues {
			if issue.State != "open" || issue.MilestoneID == nil || *issue.MilestoneID != m.ID {
				continue
			}
			for _, label := range issue.Labels {
				if blockers[strings.ToLower(label)] {
					blockerCount++
					break
				}
			}
		}

		status := PlanOnTrack
		switch {
		case daysRemaining < 0:
			status = PlanOverdue
		case (daysRemaining < 7 && progress < 75) || blockerCount > 0:
			status = PlanAtRisk
		}

		plan.Upcoming = append(plan.Upcoming, UpcomingMilestone{
			Title:           m.Title,
			DueOn:           m.DueOn.UTC().Format(dateLayout),
			ProgressPercent: progress,
			DaysRemaining:   daysRemaining,
			OpenIssues:      m.OpenIssues,
			ClosedIssues:    m.ClosedIssues,
			BlockerCount:    blockerCount,
			Status:          status,
		})
		plan.Timeline = append(plan.Timeline, TimelineEntry{
			Date:     m.DueOn.UTC().Format(dateLayout),
			Kind:     "milestone",
			Title:    m.Title,
			IsFuture: m.DueOn.After(now),
		})
	}

	for _, rel := range releases {
		if rel.PublishedAt == nil || rel.PublishedAt.Before(backCutoff) {
			continue
		}
		title := rel.Name
		if title == "" {
			title = rel.TagName
		}
		plan.RecentReleases = append(plan.RecentReleases, RecentRelease{
			TagName:     rel.TagName,
			Name:        rel.Name,
			PublishedAt: rel.PublishedAt.UTC().Format(dateLayout),
			Kind:        ReleaseKind(rel),
		})
		plan.Timeline = append(plan.Timeline, TimelineEntry{
			Date:     rel.PublishedAt.UTC().Format(dateLayout),
			Kind:     "release",
			Title:    title,
			IsFuture: rel.PublishedAt.After(now),
		})
	}

	sort.Slice(plan.Upcoming, func(i, j int) bool {
		return plan.Upcoming[i].DueOn < plan.Upcoming[j].DueOn
	})
	sort.Slice(plan.RecentReleases, func(i, j int) bool {
		return plan.RecentReleases[i].PublishedAt > plan.RecentReleases[j].PublishedAt
	})
	sort.SliceStable(plan.Timeline, func(i, j int) bool {
		return plan.Timeline[i].Date < plan.Timeline[j].Date
	})
	return plan
}
