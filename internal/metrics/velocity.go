package metrics

import (
	"time"

	"github.com/greport/greport/internal/models"
)

// Period is a velocity bucketing granularity.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ValidPeriod reports whether p is a supported bucketing granularity.
func ValidPeriod(p string) bool {
	switch Period(p) {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// VelocityPoint is one bucket of opened/closed issue counts.
type VelocityPoint struct {
	PeriodStart    string `json:"period_start"`
	Opened         int    `json:"opened"`
	Closed         int    `json:"closed"`
	NetChange      int    `json:"net_change"`
	CumulativeOpen int    `json:"cumulative_open"`
}

// VelocityMetrics is the time-series view of issue flow.
type VelocityMetrics struct {
	Period     string          `json:"period"`
	DataPoints []VelocityPoint `json:"data_points"`
	AvgOpened  float64         `json:"avg_opened"`
	AvgClosed  float64         `json:"avg_closed"`
	Trend      string          `json:"trend"` // increasing | decreasing | stable
}

// bucketStart truncates t to the start of its bucket: calendar day UTC,
// ISO week starting Monday UTC, or calendar month UTC.
func bucketStart(t time.Time, period Period) time.Time {
	t = t.UTC()
	switch period {
	case PeriodWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Weekday() is Sunday-based; shift so Monday is day zero.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// nextBucket advances one bucket.
func nextBucket(start time.Time, period Period) time.Time {
	switch period {
	case PeriodWeek:
		return start.AddDate(0, 0, 7)
	case PeriodMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// prevBucket steps one bucket back.
func prevBucket(start time.Time, period Period) time.Time {
	switch period {
	case PeriodWeek:
		return start.AddDate(0, 0, -7)
	case PeriodMonth:
		return start.AddDate(0, -1, 0)
	default:
		return start.AddDate(0, 0, -1)
	}
}

// ComputeVelocity emits the last `last` buckets up to and including the
// one containing now. Cumulative open is seeded with the issues already
// open at the first bucket's start.
func ComputeVelocity(issues []*models.Issue, period Period, last int, now time.Time) *VelocityMetrics {
	if last < 1 {
		last = 1
	}

	starts := make([]time.Time, last)
	starts[last-1] = bucketStart(now, period)
	for i := last - 2; i >= 0; i-- {
		starts[i] = prevBucket(starts[i+1], period)
	}

	firstStart := starts[0]
	cumulative := 0
	for _, issue := range issues {
		if issue.CreatedAt.Before(firstStart) &&
			(issue.ClosedAt == nil || !issue.ClosedAt.Before(firstStart)) {
			cumulative++
		}
	}

	points := make([]VelocityPoint, 0, last)
	var openedTotal, closedTotal int
	for _, start := range starts {
		end := nextBucket(start, period)
		point := VelocityPoint{PeriodStart: start.Format(time.RFC3339)}
		for _, issue := range issues {
			if inBucket(issue.CreatedAt, start, end) {
				point.Opened++
			}
			if issue.ClosedAt != nil && inBucket(*issue.ClosedAt, start, end) {
				point.Closed++
			}
		}
		point.NetChange = point.Opened - point.Closed
		cumulative += point.NetChange
		point.CumulativeOpen = cumulative
		openedTotal += point.Opened
		closedTotal += point.Closed
		points = append(points, point)
	}

	return &VelocityMetrics{
		Period:     string(period),
		DataPoints: points,
		AvgOpened:  float64(openedTotal) / float64(last),
		AvgClosed:  float64(closedTotal) / float64(last),
		Trend:      classifyTrend(points),
	}
}

func inBucket(t, start, end time.Time) bool {
	t = t.UTC()
	return !t.Before(start) && t.Before(end)
}

// classifyTrend compares the mean opened count of the first and last
// thirds of the buckets against a 10 percent band.
func classifyTrend(points []VelocityPoint) string {
	opened := make([]int, len(points))
	for i, p := range points {
		opened[i] = p.Opened
	}
	return TrendOf(opened)
}

// TrendOf classifies a per-bucket count series. The aggregator feeds it
// summed buckets so the cross-repo trend is not a vote of per-repo trends.
func TrendOf(opened []int) string {
	third := len(opened) / 3
	if third == 0 {
		return "stable"
	}
	var first, last float64
	for i := 0; i < third; i++ {
		first += float64(opened[i])
		last += float64(opened[len(opened)-third+i])
	}
	first /= float64(third)
	last /= float64(third)

	switch {
	case last > first*1.1:
		return "increasing"
	case last < first*0.9:
		return "decreasing"
	default:
		return "stable"
	}
}
