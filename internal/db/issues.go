package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/greport/greport/internal/models"
)

// UpsertIssues saves one page of issues in a single transaction. Label
// and assignee membership rows are erased and re-inserted per issue so
// removals on the host are reflected locally.
func (db *DB) UpsertIssues(repoID int64, issues []*models.Issue) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin issue upsert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, issue := range issues {
		if err := upsertIssueTx(tx, repoID, issue, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit issue upsert: %w", err)
	}
	return nil
}

func upsertIssueTx(tx *sql.Tx, repoID int64, issue *models.Issue, now time.Time) error {
	query := `
	INSERT INTO issues (id, repository_id, number, title, body, state, author, comments, milestone_id, created_at, updated_at, closed_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(repository_id, number) DO UPDATE SET
		title = excluded.title,
		body = excluded.body,
		state = excluded.state,
		author = excluded.author,
		comments = excluded.comments,
		milestone_id = excluded.milestone_id,
		updated_at = excluded.updated_at,
		closed_at = excluded.closed_at,
		synced_at = excluded.synced_at
	`

	_, err := tx.Exec(query,
		issue.ID, repoID, issue.Number, issue.Title, issue.Body, issue.State,
		issue.AuthorLogin, issue.Comments, issue.MilestoneID,
		issue.CreatedAt, issue.UpdatedAt, issue.ClosedAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save issue #%d: %w", issue.Number, err)
	}

	if _, err := tx.Exec(`DELETE FROM issue_labels WHERE issue_id = ?`, issue.ID); err != nil {
		return fmt.Errorf("failed to clear issue labels: %w", err)
	}
	for _, label := range issue.Labels {
		if _, err := tx.Exec(
			`INSERT INTO issue_labels (issue_id, label) VALUES (?, ?)`,
			issue.ID, label,
		); err != nil {
			return fmt.Errorf("failed to save issue label %q: %w", label, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM issue_assignees WHERE issue_id = ?`, issue.ID); err != nil {
		return fmt.Errorf("failed to clear issue assignees: %w", err)
	}
	for _, assignee := range issue.Assignees {
		if _, err := tx.Exec(
			`INSERT INTO issue_assignees (issue_id, assignee) VALUES (?, ?)`,
			issue.ID, assignee,
		); err != nil {
			return fmt.Errorf("failed to save issue assignee %q: %w", assignee, err)
		}
	}
	return nil
}

// ListIssues returns all of a repository's issues with labels, assignees
// and milestone titles stitched in, ordered by number.
func (db *DB) ListIssues(repoID int64) ([]*models.Issue, error) {
	rows, err := db.Query(`
	SELECT i.id, i.repository_id, i.number, i.title, i.body, i.state, i.author,
	       i.comments, i.milestone_id, m.title, i.created_at, i.updated_at,
	       i.closed_at, i.synced_at
	FROM issues i
	LEFT JOIN milestones m ON m.id = i.milestone_id
	WHERE i.repository_id = ?
	ORDER BY i.number`, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []*models.Issue
	byID := make(map[int64]*models.Issue)
	for rows.Next() {
		var issue models.Issue
		var body, author sql.NullString
		var milestoneID sql.NullInt64
		var milestoneTitle sql.NullString
		var closedAt sql.NullTime
		err := rows.Scan(
			&issue.ID, &issue.RepositoryID, &issue.Number, &issue.Title, &body,
			&issue.State, &author, &issue.Comments, &milestoneID, &milestoneTitle,
			&issue.CreatedAt, &issue.UpdatedAt, &closedAt, &issue.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.Body = body.String
		issue.AuthorLogin = author.String
		if milestoneID.Valid {
			id := milestoneID.Int64
			issue.MilestoneID = &id
		}
		if milestoneTitle.Valid {
			title := milestoneTitle.String
			issue.MilestoneTitle = &title
		}
		if closedAt.Valid {
			t := closedAt.Time
			issue.ClosedAt = &t
		}
		issue.Labels = []string{}
		issue.Assignees = []string{}
		issues = append(issues, &issue)
		byID[issue.ID] = &issue
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.attachIssueMemberships(repoID, byID); err != nil {
		return nil, err
	}
	return issues, nil
}

func (db *DB) attachIssueMemberships(repoID int64, byID map[int64]*models.Issue) error {
	labelRows, err := db.Query(`
	SELECT il.issue_id, il.label
	FROM issue_labels il
	JOIN issues i ON i.id = il.issue_id
	WHERE i.repository_id = ?
	ORDER BY il.label`, repoID)
	if err != nil {
		return fmt.Errorf("failed to list issue labels: %w", err)
	}
	defer labelRows.Close()
	for labelRows.Next() {
		var issueID int64
		var label string
		if err := labelRows.Scan(&issueID, &label); err != nil {
			return fmt.Errorf("failed to scan issue label: %w", err)
		}
		if issue, ok := byID[issueID]; ok {
			issue.Labels = append(issue.Labels, label)
		}
	}
	if err := labelRows.Err(); err != nil {
		return err
	}

	assigneeRows, err := db.Query(`
	SELECT ia.issue_id, ia.assignee
	FROM issue_assignees ia
	JOIN issues i ON i.id = ia.issue_id
	WHERE i.repository_id = ?
	ORDER BY ia.assignee`, repoID)
	if err != nil {
		return fmt.Errorf("failed to list issue assignees: %w", err)
	}
	defer assigneeRows.Close()
	for assigneeRows.Next() {
		var issueID int64
		var assignee string
		if err := assigneeRows.Scan(&issueID, &assignee); err != nil {
			return fmt.Errorf("failed to scan issue assignee: %w", err)
		}
		if issue, ok := byID[issueID]; ok {
			issue.Assignees = append(issue.Assignees, assignee)
		}
	}
	return assigneeRows.Err()
}
