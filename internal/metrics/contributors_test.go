package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greport/greport/internal/models"
)

func TestComputeContributors(t *testing.T) {
	issues := []*models.Issue{
		openIssue(1, days(1)), // alice
		openIssue(2, days(2)), // alice
		openIssue(3, days(3)),
	}
	issues[2].AuthorLogin = "carol"

	pulls := []*models.PullRequest{
		mergedPull(10, days(4), time.Hour), // alice
		mergedPull(11, days(5), time.Hour),
		pull(12, "open", days(1)),
	}
	pulls[1].AuthorLogin = "bob"
	pulls[2].AuthorLogin = "bob"

	byIssues := ComputeContributors(issues, pulls, "issues", 0)
	require.Len(t, byIssues, 3)
	assert.Equal(t, "alice", byIssues[0].Login)
	assert.Equal(t, 2, byIssues[0].IssuesCreated)
	assert.Equal(t, 1, byIssues[0].PrsMerged)
	// carol and bob tie at issue counts below alice; login breaks the tie.
	assert.Equal(t, "carol", byIssues[1].Login)
	assert.Equal(t, "bob", byIssues[2].Login)
	assert.Equal(t, 2, byIssues[2].PrsCreated)

	byPrs := ComputeContributors(issues, pulls, "prs", 0)
	// alice and bob both merged one; alice wins on login.
	assert.Equal(t, "alice", byPrs[0].Login)
	assert.Equal(t, "bob", byPrs[1].Login)
	assert.Equal(t, "carol", byPrs[2].Login)
}

func TestContributorsLimit(t *testing.T) {
	var issues []*models.Issue
	for i := 0; i < 30; i++ {
		issue := openIssue(i+1, days(1))
		issue.AuthorLogin = string(rune('a'+i%26)) + "-user"
		issues = append(issues, issue)
	}

	assert.Len(t, ComputeContributors(issues, nil, "issues", 0), DefaultContributorLimit)
	assert.Len(t, ComputeContributors(issues, nil, "issues", 5), 5)
}

func TestContributorsUnknownAuthor(t *testing.T) {
	issue := openIssue(1, days(1))
	issue.AuthorLogin = ""
	out := ComputeContributors([]*models.Issue{issue}, nil, "issues", 0)
	require.Len(t, out, 1)
	assert.Equal(t, "unknown", out[0].Login)
}
