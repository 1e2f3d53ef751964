// Package metrics is the derivation layer: pure functions from warehouse
// rows plus an injected clock to analytics outputs. The definitions of
// age, bucketing and distributions live here and nowhere else.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/greport/greport/internal/models"
)

// DefaultStaleDays is the stale threshold when none is configured.
const DefaultStaleDays = 30

// AgeHours is the age of a timestamp as of now, in floating-point hours,
// computed from UTC instants, never negative.
func AgeHours(createdAt, now time.Time) float64 {
	h := now.UTC().Sub(createdAt.UTC()).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// HoursBetween is the span from a to b in hours, never negative.
func HoursBetween(a, b time.Time) float64 {
	return AgeHours(a, b)
}

// IsStale reports whether an issue is open and untouched past the threshold.
func IsStale(issue *models.Issue, staleDays int, now time.Time) bool {
	if staleDays <= 0 {
		staleDays = DefaultStaleDays
	}
	cutoff := now.Add(-time.Duration(staleDays) * 24 * time.Hour)
	return issue.State == "open" && issue.UpdatedAt.Before(cutoff)
}

// StaleIssues filters the open issues untouched past the threshold.
func StaleIssues(issues []*models.Issue, staleDays int, now time.Time) []*models.Issue {
	var stale []*models.Issue
	for _, issue := range issues {
		if IsStale(issue, staleDays, now) {
			stale = append(stale, issue)
		}
	}
	return stale
}

// AgeBucket is one row of an age distribution. MaxDays is nil on the
// unbounded tail bucket.
type AgeBucket struct {
	Label   string `json:"label"`
	MinDays int    `json:"min_days"`
	MaxDays *int   `json:"max_days,omitempty"`
	Count   int    `json:"count"`
}

func intPtr(v int) *int { return &v }

// ageBucketDefs are the fixed distribution boundaries over open-issue age.
func ageBucketDefs() []AgeBucket {
	return []AgeBucket{
		{Label: "<1d", MinDays: 0, MaxDays: intPtr(1)},
		{Label: "1-7d", MinDays: 1, MaxDays: intPtr(7)},
		{Label: "7-30d", MinDays: 7, MaxDays: intPtr(30)},
		{Label: "30-90d", MinDays: 30, MaxDays: intPtr(90)},
		{Label: "90d+", MinDays: 90},
	}
}

// AgeDistribution buckets the open issues by age in days.
func AgeDistribution(issues []*models.Issue, now time.Time) []AgeBucket {
	buckets := ageBucketDefs()
	for _, issue := range issues {
		if issue.State != "open" {
			continue
		}
		days := AgeHours(issue.CreatedAt, now) / 24
		for i := range buckets {
			if days < float64(buckets[i].MinDays) {
				continue
			}
			if buckets[i].MaxDays != nil && days >= float64(*buckets[i].MaxDays) {
				continue
			}
			buckets[i].Count++
			break
		}
	}
	return buckets
}

// SizeBin classifies a pull request by total changed lines.
func SizeBin(pr *models.PullRequest) string {
	switch lines := pr.Additions + pr.Deletions; {
	case lines < 10:
		return "XS"
	case lines < 100:
		return "S"
	case lines < 500:
		return "M"
	case lines < 1000:
		return "L"
	default:
		return "XL"
	}
}

// mean returns the arithmetic mean, nil when the sample is empty.
func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}

// median returns the median, nil when the sample is empty.
func median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	var m float64
	if len(sorted)%2 == 0 {
		m = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		m = sorted[mid]
	}
	return &m
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}
