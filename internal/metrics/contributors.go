package metrics

import (
	"sort"

	"github.com/greport/greport/internal/models"
)

// DefaultContributorLimit bounds leaderboards when no limit is given.
const DefaultContributorLimit = 20

// ContributorStats is one login's activity counts.
type ContributorStats struct {
	Login         string `json:"login"`
	IssuesCreated int    `json:"issues_created"`
	PrsCreated    int    `json:"prs_created"`
	PrsMerged     int    `json:"prs_merged"`
}

// ComputeContributors builds the leaderboard over issue and pull authors.
// sortBy "prs" orders by merged pull count, anything else by issues
// created; ties break on login for a stable order.
func ComputeContributors(issues []*models.Issue, pulls []*models.PullRequest, sortBy string, limit int) []ContributorStats {
	byLogin := make(map[string]*ContributorStats)
	get := func(login string) *ContributorStats {
		if login == "" {
			login = "unknown"
		}
		if c, ok := byLogin[login]; ok {
			return c
		}
		c := &ContributorStats{Login: login}
		byLogin[login] = c
		return c
	}

	for _, issue := range issues {
		get(issue.AuthorLogin).IssuesCreated++
	}
	for _, pr := range pulls {
		c := get(pr.AuthorLogin)
		c.PrsCreated++
		if pr.Merged {
			c.PrsMerged++
		}
	}

	out := make([]ContributorStats, 0, len(byLogin))
	for _, c := range byLogin {
		out = append(out, *c)
	}
	SortContributors(out, sortBy)

	if limit <= 0 {
		limit = DefaultContributorLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortContributors orders a leaderboard in place by the caller's key.
func SortContributors(stats []ContributorStats, sortBy string) {
	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
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
}
