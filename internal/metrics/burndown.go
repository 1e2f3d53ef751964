package metrics

import (
	"time"

	"github.com/greport/greport/internal/models"
)

const dateLayout = "2006-01-02"

// BurndownPoint is the real remaining/completed count at end of one day.
type BurndownPoint struct {
	Date      string `json:"date"`
	Remaining int    `json:"remaining"`
	Completed int    `json:"completed"`
}

// IdealPoint is one step of the linear total-to-zero reference line.
type IdealPoint struct {
	Date      string  `json:"date"`
	Remaining float64 `json:"remaining"`
}

// BurndownReport charts a milestone's issue set over its date range.
type BurndownReport struct {
	Milestone           string          `json:"milestone"`
	TotalIssues         int             `json:"total_issues"`
	StartDate           string          `json:"start_date"`
	EndDate             string          `json:"end_date"`
	DataPoints          []BurndownPoint `json:"data_points"`
	IdealBurndown       []IdealPoint    `json:"ideal_burndown"`
	ProjectedCompletion *string         `json:"projected_completion"`
}

// ComputeBurndown charts the issues linked to a milestone from the
// milestone's creation date to its due date, or now when no due date is
// set.
func ComputeBurndown(milestone *models.Milestone, issues []*models.Issue, now time.Time) *BurndownReport {
	var linked []*models.Issue
	for _, issue := range issues {
		if issue.MilestoneID != nil && *issue.MilestoneID == milestone.ID {
			linked = append(linked, issue)
		}
	}
	total := len(linked)

	start := dateOf(milestone.CreatedAt)
	end := dateOf(now)
	if milestone.DueOn != nil {
		end = dateOf(*milestone.DueOn)
	}
	if end.Before(start) {
		end = start
	}

	report := &BurndownReport{
		Milestone:   milestone.Title,
		TotalIssues: total,
		StartDate:   start.Format(dateLayout),
		EndDate:     end.Format(dateLayout),
	}

	days := int(end.Sub(start).Hours()/24) + 1
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		endOfDay := day.AddDate(0, 0, 1).Add(-time.Nanosecond)

		remaining := 0
		for _, issue := range linked {
			if issue.CreatedAt.After(endOfDay) {
				continue
			}
			if issue.ClosedAt == nil || issue.ClosedAt.After(endOfDay) {
				remaining++
			}
		}
		report.DataPoints = append(report.DataPoints, BurndownPoint{
			Date:      day.Format(dateLayout),
			Remaining: remaining,
			Completed: total - remaining,
		})

		ideal := float64(total)
		if days > 1 {
			ideal = float64(total) * (1 - float64(i)/float64(days-1))
		} else if i > 0 {
			ideal = 0
		}
		report.IdealBurndown = append(report.IdealBurndown, IdealPoint{
			Date:      day.Format(dateLayout),
			Remaining: ideal,
		})
	}

	report.ProjectedCompletion = projectCompletion(report.DataPoints)
	return report
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// projectCompletion extrapolates from the last 7 real points by least
// squares. A non-negative slope means no projected finish.
func projectCompletion(points []BurndownPoint) *string {
	window := points
	if len(window) > 7 {
		window = window[len(window)-7:]
	}
	if len(window) < 2 {
		return nil
	}

	// Least-squares slope of remaining over day index.
	n := float64(len(window))
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range window {
		x := float64(i)
		y := float64(p.Remaining)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return nil
	}
	slope := (n*sumXY - sumX*sumY) / denom
	if slope >= 0 {
		return nil
	}

	lastRemaining := float64(window[len(window)-1].Remaining)
	if lastRemaining <= 0 {
		date := window[len(window)-1].Date
		return &date
	}

	lastDate, err := time.Parse(dateLayout, window[len(window)-1].Date)
	if err != nil {
		return nil
	}
	daysToZero := int(lastRemaining/-slope) + 1
	projected := lastDate.AddDate(0, 0, daysToZero).Format(dateLayout)
	return &projected
}
