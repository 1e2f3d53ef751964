package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/greport/greport/internal/models"
)

// Calendar event types.
const (
	EventIssueCreated     = "issue_created"
	EventIssueClosed      = "issue_closed"
	EventPrMerged         = "pr_merged"
	EventReleasePublished = "release_published"
	EventMilestoneDue     = "milestone_due"
	EventMilestoneClosed  = "milestone_closed"
)

// CalendarEvent is one dated entry on the activity calendar.
type CalendarEvent struct {
	ID         string   `json:"id"`
	EventType  string   `json:"event_type"`
	Title      string   `json:"title"`
	Date       string   `json:"date"`
	Number     *int     `json:"number,omitempty"`
	State      string   `json:"state,omitempty"`
	Repository string   `json:"repository"`
	Labels     []string `json:"labels"`
	Milestone  *string  `json:"milestone,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// CalendarSummary counts the emitted events per type.
type CalendarSummary struct {
	TotalEvents int            `json:"total_events"`
	ByType      map[string]int `json:"by_type"`
}

// CalendarData is the full calendar view for one window.
type CalendarData struct {
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Events    []CalendarEvent `json:"events"`
	Summary   CalendarSummary `json:"summary"`
}

// CalendarInput bundles one repository's rows for calendar derivation.
type CalendarInput struct {
	RepoFullName string
	WebURL       string
	Issues       []*models.Issue
	Pulls        []*models.PullRequest
	Milestones   []*models.Milestone
	Releases     []*models.Release
}

// CalendarTypes is the entity-type filter. Zero value means all types.
type CalendarTypes struct {
	Issues     bool
	Pulls      bool
	Milestones bool
	Releases   bool
}

// AllCalendarTypes enables every entity type.
func AllCalendarTypes() CalendarTypes {
	return CalendarTypes{Issues: true, Pulls: true, Milestones: true, Releases: true}
}

// ParseCalendarTypes reads a comma-separated subset of
// issues,milestones,releases,pulls. Empty input selects all.
func ParseCalendarTypes(raw []string) (CalendarTypes, error) {
	if len(raw) == 0 {
		return AllCalendarTypes(), nil
	}
	var types CalendarTypes
	for _, t := range raw {
		switch t {
		case "issues":
			types.Issues = true
		case "pulls":
			types.Pulls = true
		case "milestones":
			types.Milestones = true
		case "releases":
			types.Releases = true
		default:
			return types, fmt.Errorf("unknown calendar type %q", t)
		}
	}
	return types, nil
}

// DefaultCalendarWindow is the first day of the previous month through
// the last day of the next month around now.
func DefaultCalendarWindow(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 2, -1)
	return start, end
}

// ComputeCalendar emits the dated events inside [start, end] for the
// selected entity types, sorted by date.
func ComputeCalendar(input CalendarInput, start, end time.Time, types CalendarTypes) *CalendarData {
	data := &CalendarData{
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
		Events:    []CalendarEvent{},
		Summary:   CalendarSummary{ByType: map[string]int{}},
	}
	windowEnd := dateOf(end).AddDate(0, 0, 1).Add(-time.Nanosecond)
	windowStart := dateOf(start)
	inWindow := func(t time.Time) bool {
		t = t.UTC()
		return !t.Before(windowStart) && !t.After(windowEnd)
	}
	repo := input.RepoFullName
	webURL := input.WebURL
	if webURL == "" {
		webURL = "https://github.com"
	}

	add := func(eventType, title string, date time.Time, number *int, state string, labels []string, milestone *string, url string) {
		if labels == nil {
			labels = []string{}
		}
		data.Events = append(data.Events, CalendarEvent{
			ID:         eventID(repo, eventType, number, title),
			EventType:  eventType,
			Title:      title,
			Date:       date.UTC().Format(dateLayout),
			Number:     number,
			State:      state,
			Repository: repo,
			Labels:     labels,
			Milestone:  milestone,
			URL:        url,
		})
	}

	if types.Issues {
		for _, issue := range input.Issues {
			n := issue.Number
			url := fmt.Sprintf("%s/%s/issues/%d", webURL, repo, issue.Number)
			if inWindow(issue.CreatedAt) {
				add(EventIssueCreated, issue.Title, issue.CreatedAt, &n, issue.State, issue.Labels, issue.MilestoneTitle, url)
			}
			if issue.ClosedAt != nil && inWindow(*issue.ClosedAt) {
				add(EventIssueClosed, issue.Title, *issue.ClosedAt, &n, issue.State, issue.Labels, issue.MilestoneTitle, url)
			}
		}
	}
	if types.Pulls {
		for _, pr := range input.Pulls {
			if !pr.Merged || pr.MergedAt == nil || !inWindow(*pr.MergedAt) {
				continue
			}
			n := pr.Number
			url := fmt.Sprintf("%s/%s/pull/%d", webURL, repo, pr.Number)
			add(EventPrMerged, pr.Title, *pr.MergedAt, &n, pr.State, pr.Labels, nil, url)
		}
	}
	if types.Releases {
		for _, rel := range input.Releases {
			if rel.PublishedAt == nil || !inWindow(*rel.PublishedAt) {
				continue
			}
			title := rel.Name
			if title == "" {
				title = rel.TagName
			}
			url := fmt.Sprintf("%s/%s/releases/tag/%s", webURL, repo, rel.TagName)
			add(EventReleasePublished, title, *rel.PublishedAt, nil, "", nil, nil, url)
		}
	}
	if types.Milestones {
		for _, m := range input.Milestones {
			title := m.Title
			url := fmt.Sprintf("%s/%s/milestone/%d", webURL, repo, m.Number)
			if m.DueOn != nil && inWindow(*m.DueOn) {
				add(EventMilestoneDue, title, *m.DueOn, nil, m.State, nil, &title, url)
			}
			if m.ClosedAt != nil && inWindow(*m.ClosedAt) {
				add(EventMilestoneClosed, title, *m.ClosedAt, nil, m.State, nil, &title, url)
			}
		}
	}

	sort.SliceStable(data.Events, func(i, j int) bool {
		if data.Events[i].Date != data.Events[j].Date {
			return data.Events[i].Date < data.Events[j].Date
		}
		return data.Events[i].ID < data.Events[j].ID
	})

	data.Summary.TotalEvents = len(data.Events)
	for _, ev := range data.Events {
		data.Summary.ByType[ev.EventType]++
	}
	return data
}

// MergeCalendars composes per-repo calendars into one window, re-sorting
// and re-summarizing.
func MergeCalendars(calendars []*CalendarData, start, end time.Time) *CalendarData {
	merged := &CalendarData{
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
		Events:    []CalendarEvent{},
		Summary:   CalendarSummary{ByType: map[string]int{}},
	}
	for _, c := range calendars {
		merged.Events = append(merged.Events, c.Events...)
	}
	sort.SliceStable(merged.Events, func(i, j int) bool {
		if merged.Events[i].Date != merged.Events[j].Date {
			return merged.Events[i].Date < merged.Events[j].Date
		}
		return merged.Events[i].ID < merged.Events[j].ID
	})
	merged.Summary.TotalEvents = len(merged.Events)
	for _, ev := range merged.Events {
		merged.Summary.ByType[ev.EventType]++
	}
	return merged
}

func eventID(repo, eventType string, number *int, title string) string {
	slug := ""
	switch eventType {
	case EventIssueCreated:
		slug = "issue-created"
	case EventIssueClosed:
		slug = "issue-closed"
	case EventPrMerged:
		slug = "pr-merged"
	case EventReleasePublished:
		slug = "release"
	case EventMilestoneDue:
		slug = "milestone-due"
	case EventMilestoneClosed:
		slug = "milestone-closed"
	}
	if number != nil {
		return fmt.Sprintf("%s-%s-%d", repo, slug, *number)
	}
	return fmt.Sprintf("%s-%s-%s", repo, slug, title)
}
