package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/greport/greport/internal/models"
)

// UpsertMilestones saves one page of milestones in a single transaction.
func (db *DB) UpsertMilestones(repoID int64, milestones []*models.Milestone) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin milestone upsert: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO milestones (id, repository_id, number, title, description, state, open_issues, closed_issues, due_on, created_at, closed_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(repository_id, number) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		state = excluded.state,
		open_issues = excluded.open_issues,
		closed_issues = excluded.closed_issues,
		due_on = excluded.due_on,
		closed_at = excluded.closed_at,
		synced_at = excluded.synced_at
	`

	now := time.Now().UTC()
	for _, m := range milestones {
		_, err := tx.Exec(query,
			m.ID, repoID, m.Number, m.Title, m.Description, m.State,
			m.OpenIssues, m.ClosedIssues, m.DueOn, m.CreatedAt, m.ClosedAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save milestone %q: %w", m.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit milestone upsert: %w", err)
	}
	return nil
}

// ListMilestones returns all of a repository's milestones ordered by number.
func (db *DB) ListMilestones(repoID int64) ([]*models.Milestone, error) {
	rows, err := db.Query(`
	SELECT id, repository_id, number, title, description, state, open_issues,
	       closed_issues, due_on, created_at, closed_at, synced_at
	FROM milestones
	WHERE repository_id = ?
	ORDER BY number`, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*models.Milestone
	for rows.Next() {
		var m models.Milestone
		var description sql.NullString
		var dueOn, closedAt sql.NullTime
		err := rows.Scan(
			&m.ID, &m.RepositoryID, &m.Number, &m.Title, &description, &m.State,
			&m.OpenIssues, &m.ClosedIssues, &dueOn, &m.CreatedAt, &closedAt,
			&m.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		m.Description = description.String
		if dueOn.Valid {
			t := dueOn.Time
			m.DueOn = &t
		}
		if closedAt.Valid {
			t := closedAt.Time
			m.ClosedAt = &t
		}
		milestones = append(milestones, &m)
	}
	return milestones, rows.Err()
}

// GetMilestoneByTitle looks up a milestone by its title, ignoring case.
// Returns nil without error when absent.
func (db *DB) GetMilestoneByTitle(repoID int64, title string) (*models.Milestone, error) {
	milestones, err := db.ListMilestones(repoID)
	if err != nil {
		return nil, err
	}
	for _, m := range milestones {
		if strings.EqualFold(m.Title, title) {
			return m, nil
		}
	}
	return nil, nil
}
