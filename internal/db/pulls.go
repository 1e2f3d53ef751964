package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/greport/greport/internal/models"
)

// UpsertPulls saves one page of pull requests in a single transaction.
func (db *DB) UpsertPulls(repoID int64, pulls []*models.PullRequest) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin pull upsert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, pr := range pulls {
		if err := upsertPullTx(tx, repoID, pr, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pull upsert: %w", err)
	}
	return nil
}

func upsertPullTx(tx *sql.Tx, repoID int64, pr *models.PullRequest, now time.Time) error {
	query := `
	INSERT INTO pulls (id, repository_id, number, title, body, state, draft, merged, merged_at, additions, deletions, changed_files, head_ref, base_ref, author, created_at, updated_at, closed_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(repository_id, number) DO UPDATE SET
		title = excluded.title,
		body = excluded.body,
		state = excluded.state,
		draft = excluded.draft,
		merged = excluded.merged,
		merged_at = excluded.merged_at,
		additions = excluded.additions,
		deletions = excluded.deletions,
		changed_files = excluded.changed_files,
		head_ref = excluded.head_ref,
		base_ref = excluded.base_ref,
		author = excluded.author,
		updated_at = excluded.updated_at,
		closed_at = excluded.closed_at,
		synced_at = excluded.synced_at
	`

	_, err := tx.Exec(query,
		pr.ID, repoID, pr.Number, pr.Title, pr.Body, pr.State, pr.Draft,
		pr.Merged, pr.MergedAt, pr.Additions, pr.Deletions, pr.ChangedFiles,
		pr.HeadRef, pr.BaseRef, pr.AuthorLogin, pr.CreatedAt, pr.UpdatedAt,
		pr.ClosedAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save pull #%d: %w", pr.Number, err)
	}

	if _, err := tx.Exec(`DELETE FROM pull_labels WHERE pull_id = ?`, pr.ID); err != nil {
		return fmt.Errorf("failed to clear pull labels: %w", err)
	}
	for _, label := range pr.Labels {
		if _, err := tx.Exec(
			`INSERT INTO pull_labels (pull_id, label) VALUES (?, ?)`,
			pr.ID, label,
		); err != nil {
			return fmt.Errorf("failed to save pull label %q: %w", label, err)
		}
	}
	return nil
}

// ListPulls returns all of a repository's pull requests with labels
// stitched in, ordered by number.
func (db *DB) ListPulls(repoID int64) ([]*models.PullRequest, error) {
	rows, err := db.Query(`
	SELECT id, repository_id, number, title, body, state, draft, merged,
	       merged_at, additions, deletions, changed_files, head_ref, base_ref,
	       author, created_at, updated_at, closed_at, synced_at
	FROM pulls
	WHERE repository_id = ?
	ORDER BY number`, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pulls: %w", err)
	}
	defer rows.Close()

	var pulls []*models.PullRequest
	byID := make(map[int64]*models.PullRequest)
	for rows.Next() {
		var pr models.PullRequest
		var body, headRef, baseRef, author sql.NullString
		var mergedAt, closedAt sql.NullTime
		err := rows.Scan(
			&pr.ID, &pr.RepositoryID, &pr.Number, &pr.Title, &body, &pr.State,
			&pr.Draft, &pr.Merged, &mergedAt, &pr.Additions, &pr.Deletions,
			&pr.ChangedFiles, &headRef, &baseRef, &author, &pr.CreatedAt,
			&pr.UpdatedAt, &closedAt, &pr.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pull: %w", err)
		}
		pr.Body = body.String
		pr.HeadRef = headRef.String
		pr.BaseRef = baseRef.String
		pr.AuthorLogin = author.String
		if mergedAt.Valid {
			t := mergedAt.Time
			pr.MergedAt = &t
		}
		if closedAt.Valid {
			t := closedAt.Time
			pr.ClosedAt = &t
		}
		pr.Labels = []string{}
		pulls = append(pulls, &pr)
		byID[pr.ID] = &pr
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	labelRows, err := db.Query(`
	SELECT pl.pull_id, pl.label
	FROM pull_labels pl
	JOIN pulls p ON p.id = pl.pull_id
	WHERE p.repository_id = ?
	ORDER BY pl.label`, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pull labels: %w", err)
	}
	defer labelRows.Close()
	for labelRows.Next() {
		var pullID int64
		var label string
		if err := labelRows.Scan(&pullID, &label); err != nil {
			return nil, fmt.Errorf("failed to scan pull label: %w", err)
		}
		if pr, ok := byID[pullID]; ok {
			pr.Labels = append(pr.Labels, label)
		}
	}
	return pulls, labelRows.Err()
}
