package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/greport/greport/internal/models"
)

// UpsertReleases saves one page of releases in a single transaction.
// (repository_id, tag) is the natural key.
func (db *DB) UpsertReleases(repoID int64, releases []*models.Release) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin release upsert: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO releases (id, repository_id, tag_name, name, body, draft, prerelease, author, created_at, published_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(repository_id, tag_name) DO UPDATE SET
		name = excluded.name,
		body = excluded.body,
		draft = excluded.draft,
		prerelease = excluded.prerelease,
		author = excluded.author,
		published_at = excluded.published_at,
		synced_at = excluded.synced_at
	`

	now := time.Now().UTC()
	for _, r := range releases {
		_, err := tx.Exec(query,
			r.ID, repoID, r.TagName, r.Name, r.Body, r.Draft, r.Prerelease,
			r.AuthorLogin, r.CreatedAt, r.PublishedAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save release %q: %w", r.TagName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit release upsert: %w", err)
	}
	return nil
}

// ListReleases returns all of a repository's releases, newest created first.
func (db *DB) ListReleases(repoID int64) ([]*models.Release, error) {
	rows, err := db.Query(`
	SELECT id, repository_id, tag_name, name, body, draft, prerelease, author,
	       created_at, published_at, synced_at
	FROM releases
	WHERE repository_id = ?
	ORDER BY created_at DESC`, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	defer rows.Close()

	var releases []*models.Release
	for rows.Next() {
		var r models.Release
		var name, body, author sql.NullString
		var publishedAt sql.NullTime
		err := rows.Scan(
			&r.ID, &r.RepositoryID, &r.TagName, &name, &body, &r.Draft,
			&r.Prerelease, &author, &r.CreatedAt, &publishedAt, &r.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		r.Name = name.String
		r.Body = body.String
		r.AuthorLogin = author.String
		if publishedAt.Valid {
			t := publishedAt.Time
			r.PublishedAt = &t
		}
		releases = append(releases, &r)
	}
	return releases, rows.Err()
}
