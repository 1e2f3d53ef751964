package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/greport/greport/internal/models"
)

// ProjectsResult reports one organization's project-board sync.
type ProjectsResult struct {
	Organization   string    `json:"organization"`
	ProjectsSynced int       `json:"projects_synced"`
	ItemsSynced    int       `json:"items_synced"`
	Warnings       []string  `json:"warnings"`
	SyncedAt       time.Time `json:"synced_at"`
}

// SyncOrgProjects syncs an organization's Projects V2 boards, their field
// definitions and items. A failed board degrades to a warning.
func (c *Coordinator) SyncOrgProjects(ctx context.Context, org string) (*ProjectsResult, error) {
	log := c.log.WithField("organization", org)
	started := c.now().UTC()

	client, err := c.registry.ClientFor(org)
	if err != nil {
		return nil, err
	}

	projects, err := client.ListOrgProjects(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects for %s: %w", org, err)
	}
	if err := c.db.UpsertProjects(projects); err != nil {
		return nil, err
	}

	result := &ProjectsResult{
		Organization:   org,
		ProjectsSynced: len(projects),
		Warnings:       []string{},
		SyncedAt:       started,
	}

	var warnings *multierror.Error
	for _, project := range projects {
		fields, err := client.ListProjectFields(ctx, org, project.Number)
		if err != nil {
			warnings = multierror.Append(warnings,
				fmt.Errorf("project %d fields: %w", project.Number, err))
			continue
		}
		if err := c.db.ReplaceProjectFields(project.NodeID, fields); err != nil {
			warnings = multierror.Append(warnings, err)
			continue
		}

		items, err := client.ListProjectItems(ctx, org, project.Number)
		if err != nil {
			warnings = multierror.Append(warnings,
				fmt.Errorf("project %d items: %w", project.Number, err))
			continue
		}
		if err := c.db.UpsertProjectItems(project.NodeID, items); err != nil {
			warnings = multierror.Append(warnings, err)
			continue
		}
		result.ItemsSynced += len(items)
	}

	for _, werr := range warnings.WrappedErrors() {
		result.Warnings = append(result.Warnings, werr.Error())
	}

	orgRow := &models.Organization{Name: org}
	for _, configured := range c.registry.Organizations() {
		if configured.Name == org {
			orgRow = &configured
			break
		}
	}
	if err := c.db.UpsertOrganization(orgRow, c.now().UTC()); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"projects": result.ProjectsSynced,
		"items":    result.ItemsSynced,
		"warnings": len(result.Warnings),
	}).Info("organization projects synced")
	return result, nil
}

// SyncAllOrgProjects syncs every configured organization's boards, one
// worker per organization credential.
func (c *Coordinator) SyncAllOrgProjects(ctx context.Context) ([]*ProjectsResult, error) {
	orgs := c.registry.Organizations()
	results := make([]*ProjectsResult, len(orgs))

	g, gctx := errgroup.WithContext(ctx)
	for i, org := range orgs {
		i, name := i, org.Name
		g.Go(func() error {
			result, err := c.SyncOrgProjects(gctx, name)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
