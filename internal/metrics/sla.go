package metrics

import (
	"sort"
	"time"

	"github.com/greport/greport/internal/models"
)

// Default SLA thresholds in hours.
const (
	DefaultResponseHours   = 24
	DefaultResolutionHours = 168
)

// SlaThresholds is one response/resolution pair.
type SlaThresholds struct {
	ResponseHours   float64 `json:"response_time_hours"`
	ResolutionHours float64 `json:"resolution_time_hours"`
}

// SlaConfig supplies the default thresholds plus per-priority-label
// overrides keyed by label name.
type SlaConfig struct {
	SlaThresholds
	Priorities map[string]SlaThresholds
}

// DefaultSlaConfig returns the 24h/168h defaults.
func DefaultSlaConfig() SlaConfig {
	return SlaConfig{
		SlaThresholds: SlaThresholds{
			ResponseHours:   DefaultResponseHours,
			ResolutionHours: DefaultResolutionHours,
		},
	}
}

// thresholdsFor picks the first priority-label override carried by the
// issue, falling back to the defaults.
func (c SlaConfig) thresholdsFor(issue *models.Issue) (SlaThresholds, string) {
	for _, label := range issue.Labels {
		if t, ok := c.Priorities[label]; ok {
			return t, label
		}
	}
	return c.SlaThresholds, ""
}

// SLA status type tags.
const (
	SlaOk                 = "ok"
	SlaAtRisk             = "at_risk"
	SlaResponseBreached   = "response_breached"
	SlaResolutionBreached = "resolution_breached"
)

// SlaStatus is the tagged classification of one open issue.
type SlaStatus struct {
	Type           string   `json:"type"`
	HoursOverdue   *float64 `json:"hours_overdue,omitempty"`
	PercentElapsed *float64 `json:"percent_elapsed,omitempty"`
}

// SlaIssue is one classified issue in an SLA report.
type SlaIssue struct {
	Number   int       `json:"number"`
	Title    string    `json:"title"`
	AgeHours float64   `json:"age_hours"`
	Priority string    `json:"priority,omitempty"`
	Status   SlaStatus `json:"status"`
}

// SlaSummary partitions the open issues by classification.
type SlaSummary struct {
	TotalOpen          int     `json:"total_open"`
	WithinSla          int     `json:"within_sla"`
	ResponseBreached   int     `json:"response_breached"`
	ResolutionBreached int     `json:"resolution_breached"`
	AtRisk             int     `json:"at_risk"`
	ComplianceRate     float64 `json:"compliance_rate"`
}

// SlaReport is the full SLA view of a repository's open issues.
type SlaReport struct {
	Summary   SlaSummary `json:"summary"`
	Breaching []SlaIssue `json:"breaching"`
	AtRisk    []SlaIssue `json:"at_risk"`
}

// responseEventTypes are the timeline event kinds that count as a first
// response when authored by someone other than the issue author.
var responseEventTypes = map[string]bool{
	"commented": true,
	"assigned":  true,
	"labeled":   true,
}

// hasResponse reports whether any qualifying event by a non-author exists.
func hasResponse(issue *models.Issue, events []*models.IssueEvent) bool {
	for _, ev := range events {
		if ev.IssueNumber != issue.Number {
			continue
		}
		if !responseEventTypes[ev.Event] {
			continue
		}
		if ev.ActorLogin == "" || ev.ActorLogin == issue.AuthorLogin {
			continue
		}
		return true
	}
	return false
}

// classifySla applies the breach ladder to one open issue.
func classifySla(ageHours float64, responded bool, t SlaThresholds) SlaStatus {
	if ageHours > t.ResolutionHours {
		overdue := round1(ageHours - t.ResolutionHours)
		return SlaStatus{Type: SlaResolutionBreached, HoursOverdue: &overdue}
	}
	if !responded && ageHours > t.ResponseHours {
		overdue := round1(ageHours - t.ResponseHours)
		return SlaStatus{Type: SlaResponseBreached, HoursOverdue: &overdue}
	}
	if t.ResolutionHours > 0 && ageHours/t.ResolutionHours >= 0.8 {
		percent := round1(ageHours / t.ResolutionHours * 100)
		return SlaStatus{Type: SlaAtRisk, PercentElapsed: &percent}
	}
	return SlaStatus{Type: SlaOk}
}

// ComputeSla derives the SLA report over a repository's open issues.
func ComputeSla(issues []*models.Issue, events []*models.IssueEvent, cfg SlaConfig, now time.Time) *SlaReport {
	report := &SlaReport{
		Breaching: []SlaIssue{},
		AtRisk:    []SlaIssue{},
	}

	for _, issue := range issues {
		if issue.State != "open" {
			continue
		}
		report.Summary.TotalOpen++

		thresholds, priority := cfg.thresholdsFor(issue)
		age := AgeHours(issue.CreatedAt, now)
		status := classifySla(age, hasResponse(issue, events), thresholds)

		entry := SlaIssue{
			Number:   issue.Number,
			Title:    issue.Title,
			AgeHours: round1(age),
			Priority: priority,
			Status:   status,
		}

		switch status.Type {
		case SlaOk:
			report.Summary.WithinSla++
		case SlaAtRisk:
			report.Summary.AtRisk++
			report.AtRisk = append(report.AtRisk, entry)
		case SlaResponseBreached:
			report.Summary.ResponseBreached++
			report.Breaching = append(report.Breaching, entry)
		case SlaResolutionBreached:
			report.Summary.ResolutionBreached++
			report.Breaching = append(report.Breaching, entry)
		}
	}

	if report.Summary.TotalOpen > 0 {
		report.Summary.ComplianceRate = round1(
			float64(report.Summary.WithinSla) / float64(report.Summary.TotalOpen) * 100)
	}

	sort.Slice(report.Breaching, func(i, j int) bool {
		return report.Breaching[i].AgeHours > report.Breaching[j].AgeHours
	})
	sort.Slice(report.AtRisk, func(i, j int) bool {
		return report.AtRisk[i].AgeHours > report.AtRisk[j].AgeHours
	})
	return report
}
