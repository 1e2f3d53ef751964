package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/greport/greport/internal/models"
)

// UpsertRepository saves repository metadata, keyed by the host id.
func (db *DB) UpsertRepository(repo *models.Repository) error {
	query := `
	INSERT INTO repositories (id, owner, name, full_name, description, default_branch, private, org, created_at, updated_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner = excluded.owner,
		name = excluded.name,
		full_name = excluded.full_name,
		description = excluded.description,
		default_branch = excluded.default_branch,
		private = excluded.private,
		org = excluded.org,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		synced_at = excluded.synced_at
	`

	_, err := db.Exec(query,
		repo.ID, repo.Owner, repo.Name, repo.FullName, repo.Description,
		repo.DefaultBranch, repo.Private, repo.Org, repo.CreatedAt,
		repo.UpdatedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save repository: %w", err)
	}
	return nil
}

func scanRepository(row interface{ Scan(...any) error }) (*models.Repository, error) {
	var repo models.Repository
	var description, defaultBranch, org sql.NullString
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(
		&repo.ID, &repo.Owner, &repo.Name, &repo.FullName, &description,
		&defaultBranch, &repo.Private, &org, &createdAt, &updatedAt, &repo.SyncedAt,
	)
	if err != nil {
		return nil, err
	}
	repo.Description = description.String
	repo.DefaultBranch = defaultBranch.String
	repo.Org = org.String
	if createdAt.Valid {
		t := createdAt.Time
		repo.CreatedAt = &t
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		repo.UpdatedAt = &t
	}
	return &repo, nil
}

const repositoryColumns = `id, owner, name, full_name, description, default_branch, private, org, created_at, updated_at, synced_at`

// GetRepositoryByFullName looks up a tracked repository. Returns nil
// without error when not tracked.
func (db *DB) GetRepositoryByFullName(fullName string) (*models.Repository, error) {
	row := db.QueryRow(
		`SELECT `+repositoryColumns+` FROM repositories WHERE full_name = ?`, fullName)
	repo, err := scanRepository(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return repo, nil
}

// ListRepositories lists all tracked repositories ordered by full name.
func (db *DB) ListRepositories() ([]*models.Repository, error) {
	rows, err := db.Query(
		`SELECT ` + repositoryColumns + ` FROM repositories ORDER BY full_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var repos []*models.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// CountRepositories returns the number of tracked repositories.
func (db *DB) CountRepositories() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM repositories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count repositories: %w", err)
	}
	return n, nil
}

// DeleteRepository untracks a repository. Child rows cascade.
func (db *DB) DeleteRepository(repoID int64) error {
	_, err := db.Exec(`DELETE FROM repositories WHERE id = ?`, repoID)
	if err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	return nil
}
