// Package github is the typed host client: paginated REST and GraphQL
// operations with rate-limit awareness and retry, plus the credential
// registry that scopes clients per organization.
package github

import (
	"context"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/greport/greport/internal/apperrors"
	"github.com/greport/greport/internal/models"
)

// Client wraps the GitHub REST and GraphQL surfaces for one credential.
type Client struct {
	rest    *gh.Client
	graphql *projectsClient
	limits  *rateState
	log     *logrus.Entry
}

// NewClient creates a client for a credential. An empty token yields an
// unauthenticated client with the anonymous rate budget.
func NewClient(token, baseURL string, log *logrus.Entry) (*Client, error) {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), ts)
	}

	rest := gh.NewClient(hc)
	if baseURL != "" && baseURL != defaultBaseURL {
		var err error
		rest, err = rest.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, apperrors.Validation("invalid base URL %q: %v", baseURL, err)
		}
	}

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Client{
		rest:    rest,
		graphql: newProjectsClient(hc, baseURL),
		limits:  &rateState{},
		log:     log,
	}, nil
}

const defaultBaseURL = "https://api.github.com"

// do runs one idempotent request through the retry loop. fn must be safe
// to call repeatedly.
func (c *Client) do(ctx context.Context, op string, fn func() (*gh.Response, error)) error {
	if err := c.limits.waitIfExhausted(ctx, c.log); err != nil {
		return err
	}

	var lastErr *apperrors.AppError
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := fn()
		c.limits.observe(resp)
		if err == nil {
			return nil
		}

		lastErr = classify(err)
		if !retryable(lastErr) {
			return lastErr
		}

		delay := backoffDelay(attempt)
		if lastErr.Code == apperrors.CodeRateLimited && lastErr.RetryAfter > delay {
			delay = lastErr.RetryAfter + jitter(time.Second)
		}
		if delay > 15*time.Minute {
			return lastErr
		}

		c.log.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"delay":   delay.Round(time.Millisecond),
			"error":   lastErr.Message,
		}).Warn("retrying host request")

		if err := sleepCtx(ctx, delay); err != nil {
			return apperrors.From(err)
		}
	}
	return lastErr
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*models.Repository, error) {
	var repo *gh.Repository
	err := c.do(ctx, "get repository", func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		repo, resp, err = c.rest.Repositories.Get(ctx, owner, name)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return convertRepository(repo), nil
}

// ListIssues lists a repository's issues, excluding pull requests, updated
// since the given time when non-zero. Pages are fetched at the host max.
func (c *Client) ListIssues(ctx context.Context, owner, name string, since time.Time) ([]*models.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	if !since.IsZero() {
		opts.Since = since
	}

	var all []*models.Issue
	for {
		var page []*gh.Issue
		var resp *gh.Response
		err := c.do(ctx, "list issues", func() (*gh.Response, error) {
			var err error
			page, resp, err = c.rest.Issues.ListByRepo(ctx, owner, name, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, is := range page {
			if is.IsPullRequest() {
				continue
			}
			all = append(all, convertIssue(is))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetIssue fetches a single issue by number.
func (c *Client) GetIssue(ctx context.Context, owner, name string, number int) (*models.Issue, error) {
	var issue *gh.Issue
	err := c.do(ctx, "get issue", func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		issue, resp, err = c.rest.Issues.Get(ctx, owner, name, number)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return convertIssue(issue), nil
}

// ListPulls lists all pull requests. The list endpoint omits additions,
// deletions and the merged flag, so each row is backfilled with a detail
// fetch.
func (c *Client) ListPulls(ctx context.Context, owner, name string) ([]*models.PullRequest, error) {
	opts := &gh.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var all []*models.PullRequest
	for {
		var page []*gh.PullRequest
		var resp *gh.Response
		err := c.do(ctx, "list pulls", func() (*gh.Response, error) {
			var err error
			page, resp, err = c.rest.PullRequests.List(ctx, owner, name, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, pr := range page {
			full, err := c.getPullDetail(ctx, owner, name, pr.GetNumber())
			if err != nil {
				return nil, err
			}
			all = append(all, convertPull(full))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetPull fetches a single pull request by number.
func (c *Client) GetPull(ctx context.Context, owner, name string, number int) (*models.PullRequest, error) {
	pr, err := c.getPullDetail(ctx, owner, name, number)
	if err != nil {
		return nil, err
	}
	return convertPull(pr), nil
}

func (c *Client) getPullDetail(ctx context.Context, owner, name string, number int) (*gh.PullRequest, error) {
	var pr *gh.PullRequest
	err := c.do(ctx, "get pull", func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		pr, resp, err = c.rest.PullRequests.Get(ctx, owner, name, number)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return pr, nil
}

// ListMilestones lists all milestones regardless of state.
func (c *Client) ListMilestones(ctx context.Context, owner, name string) ([]*models.Milestone, error) {
	opts := &gh.MilestoneListOptions{
		State:       "all",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var all []*models.Milestone
	for {
		var page []*gh.Milestone
		var resp *gh.Response
		err := c.do(ctx, "list milestones", func() (*gh.Response, error) {
			var err error
			page, resp, err = c.rest.Issues.ListMilestones(ctx, owner, name, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, m := range page {
			all = append(all, convertMilestone(m))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListReleases lists all releases.
func (c *Client) ListReleases(ctx context.Context, owner, name string) ([]*models.Release, error) {
	opts := &gh.ListOptions{PerPage: 100}

	var all []*models.Release
	for {
		var page []*gh.RepositoryRelease
		var resp *gh.Response
		err := c.do(ctx, "list releases", func() (*gh.Response, error) {
			var err error
			page, resp, err = c.rest.Repositories.ListReleases(ctx, owner, name, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, r := range page {
			all = append(all, convertRelease(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListIssueTimeline lists an issue's timeline events. The timeline surface
// includes commented, labeled and assigned entries that the plain events
// endpoint omits.
func (c *Client) ListIssueTimeline(ctx context.Context, owner, name string, issueNumber int) ([]*models.IssueEvent, error) {
	opts := &gh.ListOptions{PerPage: 100}

	var all []*models.IssueEvent
	for {
		var page []*gh.Timeline
		var resp *gh.Response
		err := c.do(ctx, "list issue timeline", func() (*gh.Response, error) {
			var err error
			page, resp, err = c.rest.Issues.ListIssueTimeline(ctx, owner, name, issueNumber, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, ev := range page {
			converted := convertTimelineEvent(ev, issueNumber)
			if converted != nil {
				all = append(all, converted)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// Viewer returns the login of the authenticated user. Used by credential
// validation.
func (c *Client) Viewer(ctx context.Context) (string, error) {
	var user *gh.User
	err := c.do(ctx, "get viewer", func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		user, resp, err = c.rest.Users.Get(ctx, "")
		return resp, err
	})
	if err != nil {
		return "", err
	}
	return user.GetLogin(), nil
}

// RateLimit returns the last observed core rate-limit state.
func (c *Client) RateLimit() (remaining int, reset time.Time, observed bool) {
	return c.limits.snapshot()
}

// ParseFullName splits "owner/name" into its parts.
func ParseFullName(fullName string) (owner, name string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperrors.Validation("invalid repository format, expected 'owner/name', got %q", fullName)
	}
	return parts[0], parts[1], nil
}
