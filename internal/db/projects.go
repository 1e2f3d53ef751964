package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/greport/greport/internal/models"
)

// UpsertOrganization records an organization's sync time.
func (db *DB) UpsertOrganization(org *models.Organization, syncedAt time.Time) error {
	query := `
	INSERT INTO organizations (name, base_url, web_url, last_synced_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		base_url = excluded.base_url,
		web_url = excluded.web_url,
		last_synced_at = excluded.last_synced_at
	`
	if _, err := db.Exec(query, org.Name, org.BaseURL, org.WebURL, syncedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save organization: %w", err)
	}
	return nil
}

// GetOrganization returns a stored organization row, or nil when absent.
func (db *DB) GetOrganization(name string) (*models.Organization, error) {
	row := db.QueryRow(
		`SELECT name, base_url, web_url, last_synced_at FROM organizations WHERE name = ?`, name)

	var org models.Organization
	var baseURL, webURL sql.NullString
	var lastSyncedAt sql.NullTime
	if err := row.Scan(&org.Name, &baseURL, &webURL, &lastSyncedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	org.BaseURL = baseURL.String
	org.WebURL = webURL.String
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		org.LastSyncedAt = &t
	}
	return &org, nil
}

// UpsertProjects saves an organization's project boards in one transaction.
func (db *DB) UpsertProjects(projects []*models.Project) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin project upsert: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO projects (node_id, number, owner, title, description, url, closed, total_items, created_at, updated_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(node_id) DO UPDATE SET
		number = excluded.number,
		owner = excluded.owner,
		title = excluded.title,
		description = excluded.description,
		url = excluded.url,
		closed = excluded.closed,
		total_items = excluded.total_items,
		updated_at = excluded.updated_at,
		synced_at = excluded.synced_at
	`

	now := time.Now().UTC()
	for _, p := range projects {
		_, err := tx.Exec(query,
			p.NodeID, p.Number, p.Owner, p.Title, p.Description, p.URL,
			p.Closed, p.TotalItems, p.CreatedAt, p.UpdatedAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save project %q: %w", p.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project upsert: %w", err)
	}
	return nil
}

// ReplaceProjectFields swaps a project's field definitions in one
// transaction. Field sets are small; full replacement avoids drift.
func (db *DB) ReplaceProjectFields(projectNodeID string, fields []*models.ProjectField) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin field replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM project_fields WHERE project_node_id = ?`, projectNodeID); err != nil {
		return fmt.Errorf("failed to clear project fields: %w", err)
	}
	for _, f := range fields {
		_, err := tx.Exec(
			`INSERT INTO project_fields (node_id, project_node_id, name, field_type, config_json)
			VALUES (?, ?, ?, ?, ?)`,
			f.NodeID, projectNodeID, f.Name, f.FieldType, f.ConfigJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to save project field %q: %w", f.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit field replace: %w", err)
	}
	return nil
}

// UpsertProjectItems saves one page of project items in a single transaction.
func (db *DB) UpsertProjectItems(projectNodeID string, items []*models.ProjectItem) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin item upsert: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO project_items (node_id, project_node_id, content_type, content_number, title, state, url, repo_full_name, content_json, field_values_json, created_at, updated_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(node_id) DO UPDATE SET
		content_type = excluded.content_type,
		content_number = excluded.content_number,
		title = excluded.title,
		state = excluded.state,
		url = excluded.url,
		repo_full_name = excluded.repo_full_name,
		content_json = excluded.content_json,
		field_values_json = excluded.field_values_json,
		updated_at = excluded.updated_at,
		synced_at = excluded.synced_at
	`

	now := time.Now().UTC()
	for _, item := range items {
		_, err := tx.Exec(query,
			item.NodeID, projectNodeID, item.ContentType, item.ContentNumber,
			item.Title, item.State, item.URL, item.RepoFullName,
			item.ContentJSON, item.FieldValuesJSON, item.CreatedAt,
			item.UpdatedAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save project item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item upsert: %w", err)
	}
	return nil
}

// ListProjects lists an owner's project boards ordered by number.
func (db *DB) ListProjects(owner string) ([]*models.Project, error) {
	rows, err := db.Query(`
	SELECT node_id, number, owner, title, description, url, closed,
	       total_items, created_at, updated_at, synced_at
	FROM projects
	WHERE owner = ? COLLATE NOCASE
	ORDER BY number`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject looks up one project board by owner and number. Returns nil
// without error when absent.
func (db *DB) GetProject(owner string, number int) (*models.Project, error) {
	row := db.QueryRow(`
	SELECT node_id, number, owner, title, description, url, closed,
	       total_items, created_at, updated_at, synced_at
	FROM projects
	WHERE owner = ? COLLATE NOCASE AND number = ?`, owner, number)

	p, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	var p models.Project
	var description, url sql.NullString
	err := row.Scan(
		&p.NodeID, &p.Number, &p.Owner, &p.Title, &description, &url,
		&p.Closed, &p.TotalItems, &p.CreatedAt, &p.UpdatedAt, &p.SyncedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	p.URL = url.String
	return &p, nil
}

// ListProjectFields lists a project's field definitions.
func (db *DB) ListProjectFields(projectNodeID string) ([]*models.ProjectField, error) {
	rows, err := db.Query(`
	SELECT node_id, project_node_id, name, field_type, config_json
	FROM project_fields
	WHERE project_node_id = ?
	ORDER BY name`, projectNodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project fields: %w", err)
	}
	defer rows.Close()

	var fields []*models.ProjectField
	for rows.Next() {
		var f models.ProjectField
		var fieldType, configJSON sql.NullString
		if err := rows.Scan(&f.NodeID, &f.ProjectNodeID, &f.Name, &fieldType, &configJSON); err != nil {
			return nil, fmt.Errorf("failed to scan project field: %w", err)
		}
		f.FieldType = fieldType.String
		f.ConfigJSON = configJSON.String
		fields = append(fields, &f)
	}
	return fields, rows.Err()
}

// ListProjectItems lists a project's items ordered by update time.
func (db *DB) ListProjectItems(projectNodeID string) ([]*models.ProjectItem, error) {
	rows, err := db.Query(`
	SELECT node_id, project_node_id, content_type, content_number, title,
	       state, url, repo_full_name, content_json, field_values_json,
	       created_at, updated_at, synced_at
	FROM project_items
	WHERE project_node_id = ?
	ORDER BY updated_at DESC`, projectNodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project items: %w", err)
	}
	defer rows.Close()

	var items []*models.ProjectItem
	for rows.Next() {
		var item models.ProjectItem
		var contentNumber sql.NullInt64
		var title, state, url, repo, content, fieldValues sql.NullString
		err := rows.Scan(
			&item.NodeID, &item.ProjectNodeID, &item.ContentType,
			&contentNumber, &title, &state, &url, &repo, &content,
			&fieldValues, &item.CreatedAt, &item.UpdatedAt, &item.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project item: %w", err)
		}
		item.ContentNumber = int(contentNumber.Int64)
		item.Title = title.String
		item.State = state.String
		item.URL = url.String
		item.RepoFullName = repo.String
		item.ContentJSON = content.String
		item.FieldValuesJSON = fieldValues.String
		items = append(items, &item)
	}
	return items, rows.Err()
}
