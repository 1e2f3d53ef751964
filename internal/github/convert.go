package github

import (
	"time"

	gh "github.com/google/go-github/v57/github"

	"github.com/greport/greport/internal/models"
)

func convertRepository(repo *gh.Repository) *models.Repository {
	var createdAt, updatedAt *time.Time
	if repo.CreatedAt != nil {
		t := repo.CreatedAt.Time
		createdAt = &t
	}
	if repo.UpdatedAt != nil {
		t := repo.UpdatedAt.Time
		updatedAt = &t
	}
	return &models.Repository{
		ID:            repo.GetID(),
		Owner:         repo.GetOwner().GetLogin(),
		Name:          repo.GetName(),
		FullName:      repo.GetFullName(),
		Description:   repo.GetDescription(),
		DefaultBranch: repo.GetDefaultBranch(),
		Private:       repo.GetPrivate(),
		Org:           repo.GetOrganization().GetLogin(),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

func convertIssue(issue *gh.Issue) *models.Issue {
	var closedAt *time.Time
	if issue.ClosedAt != nil {
		t := issue.ClosedAt.Time
		closedAt = &t
	}

	var milestoneID *int64
	var milestoneTitle *string
	if issue.Milestone != nil {
		id := issue.Milestone.GetID()
		title := issue.Milestone.GetTitle()
		milestoneID = &id
		milestoneTitle = &title
	}

	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	assignees := make([]string, 0, len(issue.Assignees))
	for _, a := range issue.Assignees {
		assignees = append(assignees, a.GetLogin())
	}

	return &models.Issue{
		ID:             issue.GetID(),
		Number:         issue.GetNumber(),
		Title:          issue.GetTitle(),
		Body:           issue.GetBody(),
		State:          issue.GetState(),
		AuthorLogin:    issue.GetUser().GetLogin(),
		Comments:       issue.GetComments(),
		MilestoneID:    milestoneID,
		MilestoneTitle: milestoneTitle,
		CreatedAt:      issue.GetCreatedAt().Time,
		UpdatedAt:      issue.GetUpdatedAt().Time,
		ClosedAt:       closedAt,
		Labels:         labels,
		Assignees:      assignees,
	}
}

func convertPull(pr *gh.PullRequest) *models.PullRequest {
	var mergedAt, closedAt *time.Time
	if pr.MergedAt != nil {
		t := pr.MergedAt.Time
		mergedAt = &t
	}
	if pr.ClosedAt != nil {
		t := pr.ClosedAt.Time
		closedAt = &t
	}

	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	return &models.PullRequest{
		ID:           pr.GetID(),
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		State:        pr.GetState(),
		Draft:        pr.GetDraft(),
		Merged:       pr.GetMerged(),
		MergedAt:     mergedAt,
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		HeadRef:      pr.GetHead().GetRef(),
		BaseRef:      pr.GetBase().GetRef(),
		AuthorLogin:  pr.GetUser().GetLogin(),
		CreatedAt:    pr.GetCreatedAt().Time,
		UpdatedAt:    pr.GetUpdatedAt().Time,
		ClosedAt:     closedAt,
		Labels:       labels,
	}
}

func convertMilestone(m *gh.Milestone) *models.Milestone {
	var dueOn, closedAt *time.Time
	if m.DueOn != nil {
		t := m.DueOn.Time
		dueOn = &t
	}
	if m.ClosedAt != nil {
		t := m.ClosedAt.Time
		closedAt = &t
	}
	return &models.Milestone{
		ID:           m.GetID(),
		Number:       m.GetNumber(),
		Title:        m.GetTitle(),
		Description:  m.GetDescription(),
		State:        m.GetState(),
		OpenIssues:   m.GetOpenIssues(),
		ClosedIssues: m.GetClosedIssues(),
		DueOn:        dueOn,
		CreatedAt:    m.GetCreatedAt().Time,
		ClosedAt:     closedAt,
	}
}

func convertRelease(r *gh.RepositoryRelease) *models.Release {
	var publishedAt *time.Time
	if r.PublishedAt != nil {
		t := r.PublishedAt.Time
		publishedAt = &t
	}
	return &models.Release{
		ID:          r.GetID(),
		TagName:     r.GetTagName(),
		Name:        r.GetName(),
		Body:        r.GetBody(),
		Draft:       r.GetDraft(),
		Prerelease:  r.GetPrerelease(),
		AuthorLogin: r.GetAuthor().GetLogin(),
		CreatedAt:   r.GetCreatedAt().Time,
		PublishedAt: publishedAt,
	}
}

// convertTimelineEvent maps one timeline entry to an issue event row.
// Entries without an id or timestamp (some cross-reference kinds) are
// dropped; they carry nothing the derivations read.
func convertTimelineEvent(ev *gh.Timeline, issueNumber int) *models.IssueEvent {
	if ev.GetID() == 0 || ev.CreatedAt == nil {
		return nil
	}
	out := &models.IssueEvent{
		ID:          ev.GetID(),
		IssueNumber: issueNumber,
		Event:       ev.GetEvent(),
		ActorLogin:  ev.GetActor().GetLogin(),
		CreatedAt:   ev.CreatedAt.Time,
	}
	if ev.Label != nil {
		out.Label = ev.Label.GetName()
	}
	if ev.Assignee != nil {
		out.Assignee = ev.Assignee.GetLogin()
	}
	if ev.Milestone != nil {
		out.MilestoneTitle = ev.Milestone.GetTitle()
	}
	// Timeline comment entries report their author under User.
	if out.ActorLogin == "" && ev.User != nil {
		out.ActorLogin = ev.User.GetLogin()
	}
	return out
}
