package models

import (
	"time"
)

// Repository is a tracked GitHub repository. It is the root of everything
// else in the warehouse; deleting it cascades to all child rows.
type Repository struct {
	ID            int64      `json:"id"`
	Owner         string     `json:"owner"`
	Name          string     `json:"name"`
	FullName      string     `json:"full_name"`
	Description   string     `json:"description,omitempty"`
	DefaultBranch string     `json:"default_branch,omitempty"`
	Private       bool       `json:"private"`
	Org           string     `json:"org,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	SyncedAt      time.Time  `json:"synced_at"`
}

// Milestone mirrors a GitHub milestone. OpenIssues and ClosedIssues are the
// host's reported counts and may disagree with the linked issue rows.
type Milestone struct {
	ID           int64      `json:"id"`
	RepositoryID int64      `json:"repository_id"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	State        string     `json:"state"`
	OpenIssues   int        `json:"open_issues"`
	ClosedIssues int        `json:"closed_issues"`
	DueOn        *time.Time `json:"due_on,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	SyncedAt     time.Time  `json:"synced_at"`
}

// Issue mirrors a GitHub issue. Labels, Assignees and MilestoneTitle are
// populated on read by joining the membership tables.
type Issue struct {
	ID             int64      `json:"id"`
	RepositoryID   int64      `json:"repository_id"`
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	Body           string     `json:"body,omitempty"`
	State          string     `json:"state"`
	AuthorLogin    string     `json:"author"`
	Comments       int        `json:"comments"`
	MilestoneID    *int64     `json:"milestone_id,omitempty"`
	MilestoneTitle *string    `json:"milestone,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	Labels         []string   `json:"labels"`
	Assignees      []string   `json:"assignees"`
	SyncedAt       time.Time  `json:"synced_at"`
}

// PullRequest mirrors a GitHub pull request. Merged implies State == "closed".
type PullRequest struct {
	ID           int64      `json:"id"`
	RepositoryID int64      `json:"repository_id"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Body         string     `json:"body,omitempty"`
	State        string     `json:"state"`
	Draft        bool       `json:"draft"`
	Merged       bool       `json:"merged"`
	MergedAt     *time.Time `json:"merged_at,omitempty"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	ChangedFiles int        `json:"changed_files"`
	HeadRef      string     `json:"head_ref,omitempty"`
	BaseRef      string     `json:"base_ref,omitempty"`
	AuthorLogin  string     `json:"author"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	Labels       []string   `json:"labels"`
	SyncedAt     time.Time  `json:"synced_at"`
}

// Release mirrors a GitHub release.
type Release struct {
	ID           int64      `json:"id"`
	RepositoryID int64      `json:"repository_id"`
	TagName      string     `json:"tag_name"`
	Name         string     `json:"name,omitempty"`
	Body         string     `json:"body,omitempty"`
	Draft        bool       `json:"draft"`
	Prerelease   bool       `json:"prerelease"`
	AuthorLogin  string     `json:"author,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	SyncedAt     time.Time  `json:"synced_at"`
}

// IssueEvent is one entry from an issue's timeline. Label, Assignee and
// MilestoneTitle carry the event's optional context, empty when absent.
type IssueEvent struct {
	ID             int64     `json:"id"`
	RepositoryID   int64     `json:"repository_id"`
	IssueNumber    int       `json:"issue_number"`
	Event          string    `json:"event"`
	ActorLogin     string    `json:"actor,omitempty"`
	Label          string    `json:"label,omitempty"`
	Assignee       string    `json:"assignee,omitempty"`
	MilestoneTitle string    `json:"milestone,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	SyncedAt       time.Time `json:"synced_at"`
}

// Project is a GitHub Projects V2 board owned by an organization.
type Project struct {
	NodeID      string    `json:"node_id"`
	Number      int       `json:"number"`
	Owner       string    `json:"owner"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Closed      bool      `json:"closed"`
	TotalItems  int       `json:"total_items"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SyncedAt    time.Time `json:"synced_at"`
}

// ProjectField is a field definition on a project board. ConfigJSON holds
// the host's field configuration verbatim; it is interpreted at render time.
type ProjectField struct {
	NodeID        string `json:"node_id"`
	ProjectNodeID string `json:"project_node_id"`
	Name          string `json:"name"`
	FieldType     string `json:"field_type"`
	ConfigJSON    string `json:"config_json,omitempty"`
}

// ProjectItem is one card on a project board. ContentJSON and
// FieldValuesJSON are opaque blobs projected by the HTTP surface.
type ProjectItem struct {
	NodeID          string    `json:"node_id"`
	ProjectNodeID   string    `json:"project_node_id"`
	ContentType     string    `json:"content_type"`
	ContentNumber   int       `json:"content_number,omitempty"`
	Title           string    `json:"title"`
	State           string    `json:"state,omitempty"`
	URL             string    `json:"url,omitempty"`
	RepoFullName    string    `json:"repository,omitempty"`
	ContentJSON     string    `json:"content_json,omitempty"`
	FieldValuesJSON string    `json:"field_values_json,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	SyncedAt        time.Time `json:"synced_at"`
}

// SyncStatus records per-surface sync progress for one repository.
type SyncStatus struct {
	RepositoryID       int64      `json:"repository_id"`
	IssuesSyncedAt     *time.Time `json:"issues_synced_at,omitempty"`
	PullsSyncedAt      *time.Time `json:"pulls_synced_at,omitempty"`
	ReleasesSyncedAt   *time.Time `json:"releases_synced_at,omitempty"`
	MilestonesSyncedAt *time.Time `json:"milestones_synced_at,omitempty"`
	EventsSyncedAt     *time.Time `json:"events_synced_at,omitempty"`
	LastError          string     `json:"last_error,omitempty"`
	LastErrorAt        *time.Time `json:"last_error_at,omitempty"`
}

// Organization is a configured GitHub organization, the root for projects.
type Organization struct {
	Name         string     `json:"name"`
	BaseURL      string     `json:"base_url,omitempty"`
	WebURL       string     `json:"web_url,omitempty"`
	HasToken     bool       `json:"has_token"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}
