package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/greport/greport/internal/models"
)

// Surface names the sync surfaces tracked in sync_status.
type Surface string

const (
	SurfaceIssues     Surface = "issues"
	SurfacePulls      Surface = "pulls"
	SurfaceReleases   Surface = "releases"
	SurfaceMilestones Surface = "milestones"
	SurfaceEvents     Surface = "events"
)

func (s Surface) column() string {
	return string(s) + "_synced_at"
}

// GetSyncStatus returns the sync status row for a repository, or nil
// when no sync has run yet.
func (db *DB) GetSyncStatus(repoID int64) (*models.SyncStatus, error) {
	row := db.QueryRow(`
	SELECT repository_id, issues_synced_at, pulls_synced_at, releases_synced_at,
	       milestones_synced_at, events_synced_at, last_error, last_error_at
	FROM sync_status WHERE repository_id = ?`, repoID)

	var status models.SyncStatus
	var issues, pulls, releases, milestones, events, errorAt sql.NullTime
	var lastError sql.NullString
	err := row.Scan(
		&status.RepositoryID, &issues, &pulls, &releases, &milestones,
		&events, &lastError, &errorAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}

	assign := func(nt sql.NullTime) *time.Time {
		if !nt.Valid {
			return nil
		}
		t := nt.Time
		return &t
	}
	status.IssuesSyncedAt = assign(issues)
	status.PullsSyncedAt = assign(pulls)
	status.ReleasesSyncedAt = assign(releases)
	status.MilestonesSyncedAt = assign(milestones)
	status.EventsSyncedAt = assign(events)
	status.LastError = lastError.String
	status.LastErrorAt = assign(errorAt)
	return &status, nil
}

// MarkSurfaceSynced records a surface's successful completion time and
// clears any previous error.
func (db *DB) MarkSurfaceSynced(repoID int64, surface Surface, at time.Time) error {
	query := fmt.Sprintf(`
	INSERT INTO sync_status (repository_id, %[1]s)
	VALUES (?, ?)
	ON CONFLICT(repository_id) DO UPDATE SET
		%[1]s = excluded.%[1]s,
		last_error = NULL,
		last_error_at = NULL
	`, surface.column())

	if _, err := db.Exec(query, repoID, at.UTC()); err != nil {
		return fmt.Errorf("failed to mark %s synced: %w", surface, err)
	}
	return nil
}

// RecordSyncError stores the latest sync failure for a repository.
func (db *DB) RecordSyncError(repoID int64, message string, at time.Time) error {
	query := `
	INSERT INTO sync_status (repository_id, last_error, last_error_at)
	VALUES (?, ?, ?)
	ON CONFLICT(repository_id) DO UPDATE SET
		last_error = excluded.last_error,
		last_error_at = excluded.last_error_at
	`
	if _, err := db.Exec(query, repoID, message, at.UTC()); err != nil {
		return fmt.Errorf("failed to record sync error: %w", err)
	}
	return nil
}
