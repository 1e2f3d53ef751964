package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/greport/greport/internal/models"
)

// UpsertIssueEvents saves one page of issue events in a single
// transaction. Events are append-only on the host; re-upserting by id
// keeps the pass idempotent.
func (db *DB) UpsertIssueEvents(repoID int64, events []*models.IssueEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin event upsert: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO issue_events (id, repository_id, issue_number, event, actor, label, assignee, milestone_title, created_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		event = excluded.event,
		actor = excluded.actor,
		label = excluded.label,
		assignee = excluded.assignee,
		milestone_title = excluded.milestone_title,
		synced_at = excluded.synced_at
	`

	now := time.Now().UTC()
	for _, ev := range events {
		_, err := tx.Exec(query,
			ev.ID, repoID, ev.IssueNumber, ev.Event, ev.ActorLogin, ev.Label,
			ev.Assignee, ev.MilestoneTitle, ev.CreatedAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save issue event %d: %w", ev.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event upsert: %w", err)
	}
	return nil
}

// ListIssueEvents returns all of a repository's issue events ordered by
// creation time.
func (db *DB) ListIssueEvents(repoID int64) ([]*models.IssueEvent, error) {
	rows, err := db.Query(`
	SELECT id, repository_id, issue_number, event, actor, label, assignee,
	       milestone_title, created_at, synced_at
	FROM issue_events
	WHERE repository_id = ?
	ORDER BY created_at`, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issue events: %w", err)
	}
	defer rows.Close()

	var events []*models.IssueEvent
	for rows.Next() {
		var ev models.IssueEvent
		var actor, label, assignee, milestoneTitle sql.NullString
		err := rows.Scan(
			&ev.ID, &ev.RepositoryID, &ev.IssueNumber, &ev.Event, &actor,
			&label, &assignee, &milestoneTitle, &ev.CreatedAt, &ev.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue event: %w", err)
		}
		ev.ActorLogin = actor.String
		ev.Label = label.String
		ev.Assignee = assignee.String
		ev.MilestoneTitle = milestoneTitle.String
		events = append(events, &ev)
	}
	return events, rows.Err()
}
