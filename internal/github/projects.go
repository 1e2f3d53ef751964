package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shurcooL/githubv4"

	"github.com/greport/greport/internal/models"
)

// projectsClient queries the Projects V2 surface, which is GraphQL-only.
type projectsClient struct {
	client *githubv4.Client
}

func newProjectsClient(hc *http.Client, baseURL string) *projectsClient {
	if baseURL != "" && baseURL != defaultBaseURL {
		endpoint := strings.TrimSuffix(baseURL, "/") + "/graphql"
		return &projectsClient{client: githubv4.NewEnterpriseClient(endpoint, hc)}
	}
	return &projectsClient{client: githubv4.NewClient(hc)}
}

type projectNode struct {
	ID               githubv4.ID
	Number           githubv4.Int
	Title            githubv4.String
	ShortDescription githubv4.String
	URL              githubv4.String
	Closed           githubv4.Boolean
	CreatedAt        githubv4.DateTime
	UpdatedAt        githubv4.DateTime
	Items            struct {
		TotalCount githubv4.Int
	} `graphql:"items(first: 1)"`
}

type pageInfo struct {
	EndCursor   githubv4.String
	HasNextPage githubv4.Boolean
}

func convertProject(owner string, node projectNode) *models.Project {
	return &models.Project{
		NodeID:      fmt.Sprintf("%v", node.ID),
		Number:      int(node.Number),
		Owner:       owner,
		Title:       string(node.Title),
		Description: string(node.ShortDescription),
		URL:         string(node.URL),
		Closed:      bool(node.Closed),
		TotalItems:  int(node.Items.TotalCount),
		CreatedAt:   node.CreatedAt.Time,
		UpdatedAt:   node.UpdatedAt.Time,
	}
}

// ListOrgProjects lists an organization's project boards.
func (c *Client) ListOrgProjects(ctx context.Context, org string) ([]*models.Project, error) {
	var all []*models.Project
	var cursor *githubv4.String

	for {
		var query struct {
			Organization struct {
				ProjectsV2 struct {
					Nodes    []projectNode
					PageInfo pageInfo
				} `graphql:"projectsV2(first: 50, after: $cursor)"`
			} `graphql:"organization(login: $org)"`
		}
		variables := map[string]interface{}{
			"org":    githubv4.String(org),
			"cursor": cursor,
		}
		if err := c.graphql.client.Query(ctx, &query, variables); err != nil {
			return nil, classify(err)
		}

		for _, node := range query.Organization.ProjectsV2.Nodes {
			all = append(all, convertProject(org, node))
		}
		if !bool(query.Organization.ProjectsV2.PageInfo.HasNextPage) {
			break
		}
		next := query.Organization.ProjectsV2.PageInfo.EndCursor
		cursor = &next
	}
	return all, nil
}

// GetOrgProject fetches one project board by number.
func (c *Client) GetOrgProject(ctx context.Context, org string, number int) (*models.Project, error) {
	var query struct {
		Organization struct {
			ProjectV2 projectNode `graphql:"projectV2(number: $number)"`
		} `graphql:"organization(login: $org)"`
	}
	variables := map[string]interface{}{
		"org":    githubv4.String(org),
		"number": githubv4.Int(number),
	}
	if err := c.graphql.client.Query(ctx, &query, variables); err != nil {
		return nil, classify(err)
	}
	return convertProject(org, query.Organization.ProjectV2), nil
}

type projectFieldNode struct {
	TypeName githubv4.String `graphql:"__typename"`
	Common   struct {
		ID       githubv4.ID
		Name     githubv4.String
		DataType githubv4.String
	} `graphql:"... on ProjectV2FieldCommon"`
	SingleSelect struct {
		Options []struct {
			ID   githubv4.String
			Name githubv4.String
		}
	} `graphql:"... on ProjectV2SingleSelectField"`
}

// ListProjectFields lists a project's field definitions. Single-select
// option sets are preserved as an opaque configuration blob.
func (c *Client) ListProjectFields(ctx context.Context, org string, number int) ([]*models.ProjectField, error) {
	var query struct {
		Organization struct {
			ProjectV2 struct {
				ID     githubv4.ID
				Fields struct {
					Nodes    []projectFieldNode
					PageInfo pageInfo
				} `graphql:"fields(first: 50, after: $cursor)"`
			} `graphql:"projectV2(number: $number)"`
		} `graphql:"organization(login: $org)"`
	}

	var all []*models.ProjectField
	var cursor *githubv4.String
	for {
		variables := map[string]interface{}{
			"org":    githubv4.String(org),
			"number": githubv4.Int(number),
			"cursor": cursor,
		}
		if err := c.graphql.client.Query(ctx, &query, variables); err != nil {
			return nil, classify(err)
		}

		projectNodeID := fmt.Sprintf("%v", query.Organization.ProjectV2.ID)
		for _, node := range query.Organization.ProjectV2.Fields.Nodes {
			field := &models.ProjectField{
				NodeID:        fmt.Sprintf("%v", node.Common.ID),
				ProjectNodeID: projectNodeID,
				Name:          string(node.Common.Name),
				FieldType:     string(node.Common.DataType),
			}
			if len(node.SingleSelect.Options) > 0 {
				options := make([]map[string]string, 0, len(node.SingleSelect.Options))
				for _, opt := range node.SingleSelect.Options {
					options = append(options, map[string]string{
						"id":   string(opt.ID),
						"name": string(opt.Name),
					})
				}
				blob, err := json.Marshal(map[string]interface{}{"options": options})
				if err == nil {
					field.ConfigJSON = string(blob)
				}
			}
			all = append(all, field)
		}
		if !bool(query.Organization.ProjectV2.Fields.PageInfo.HasNextPage) {
			break
		}
		next := query.Organization.ProjectV2.Fields.PageInfo.EndCursor
		cursor = &next
	}
	return all, nil
}

type projectItemNode struct {
	ID        githubv4.ID
	Type      githubv4.String
	CreatedAt githubv4.DateTime
	UpdatedAt githubv4.DateTime
	Content   struct {
		TypeName githubv4.String `graphql:"__typename"`
		Issue    struct {
			Number     githubv4.Int
			Title      githubv4.String
			State      githubv4.String
			URL        githubv4.String
			Repository struct {
				NameWithOwner githubv4.String
			}
		} `graphql:"... on Issue"`
		PullRequest struct {
			Number     githubv4.Int
			Title      githubv4.String
			State      githubv4.String
			URL        githubv4.String
			Repository struct {
				NameWithOwner githubv4.String
			}
		} `graphql:"... on PullRequest"`
		DraftIssue struct {
			Title githubv4.String
		} `graphql:"... on DraftIssue"`
	}
	FieldValues struct {
		Nodes []projectFieldValueNode
	} `graphql:"fieldValues(first: 30)"`
}

type projectFieldValueNode struct {
	TypeName githubv4.String `graphql:"__typename"`
	Text     struct {
		Text  githubv4.String
		Field struct {
			Common struct {
				Name githubv4.String
			} `graphql:"... on ProjectV2FieldCommon"`
		}
	} `graphql:"... on ProjectV2ItemFieldTextValue"`
	SingleSelect struct {
		Name  githubv4.String
		Field struct {
			Common struct {
				Name githubv4.String
			} `graphql:"... on ProjectV2FieldCommon"`
		}
	} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
	Number struct {
		Number githubv4.Float
		Field  struct {
			Common struct {
				Name githubv4.String
			} `graphql:"... on ProjectV2FieldCommon"`
		}
	} `graphql:"... on ProjectV2ItemFieldNumberValue"`
	Date struct {
		Date  githubv4.String
		Field struct {
			Common struct {
				Name githubv4.String
			} `graphql:"... on ProjectV2FieldCommon"`
		}
	} `graphql:"... on ProjectV2ItemFieldDateValue"`
	Iteration struct {
		Title     githubv4.String
		StartDate githubv4.String
		Field     struct {
			Common struct {
				Name githubv4.String
			} `graphql:"... on ProjectV2FieldCommon"`
		}
	} `graphql:"... on ProjectV2ItemFieldIterationValue"`
}

// fieldValueProjection is the render-time view of one dynamic field value.
// Unknown field types fall back to string values.
type fieldValueProjection struct {
	FieldName string  `json:"field_name"`
	Type      string  `json:"type"`
	Value     string  `json:"value,omitempty"`
	Number    float64 `json:"number,omitempty"`
}

func projectFieldValues(nodes []projectFieldValueNode) string {
	out := make([]fieldValueProjection, 0, len(nodes))
	for _, node := range nodes {
		switch string(node.TypeName) {
		case "ProjectV2ItemFieldTextValue":
			out = append(out, fieldValueProjection{
				FieldName: string(node.Text.Field.Common.Name),
				Type:      "text",
				Value:     string(node.Text.Text),
			})
		case "ProjectV2ItemFieldSingleSelectValue":
			out = append(out, fieldValueProjection{
				FieldName: string(node.SingleSelect.Field.Common.Name),
				Type:      "single_select",
				Value:     string(node.SingleSelect.Name),
			})
		case "ProjectV2ItemFieldNumberValue":
			out = append(out, fieldValueProjection{
				FieldName: string(node.Number.Field.Common.Name),
				Type:      "number",
				Number:    float64(node.Number.Number),
			})
		case "ProjectV2ItemFieldDateValue":
			out = append(out, fieldValueProjection{
				FieldName: string(node.Date.Field.Common.Name),
				Type:      "date",
				Value:     string(node.Date.Date),
			})
		case "ProjectV2ItemFieldIterationValue":
			out = append(out, fieldValueProjection{
				FieldName: string(node.Iteration.Field.Common.Name),
				Type:      "iteration",
				Value:     string(node.Iteration.Title),
			})
		}
	}
	if len(out) == 0 {
		return ""
	}
	blob, err := json.Marshal(out)
	if err != nil {
		return ""
	}
	return string(blob)
}

// ListProjectItems lists a project's items with their field values.
func (c *Client) ListProjectItems(ctx context.Context, org string, number int) ([]*models.ProjectItem, error) {
	var all []*models.ProjectItem
	var cursor *githubv4.String

	for {
		var query struct {
			Organization struct {
				ProjectV2 struct {
					ID    githubv4.ID
					Items struct {
						Nodes    []projectItemNode
						PageInfo pageInfo
					} `graphql:"items(first: 50, after: $cursor)"`
				} `graphql:"projectV2(number: $number)"`
			} `graphql:"organization(login: $org)"`
		}
		variables := map[string]interface{}{
			"org":    githubv4.String(org),
			"number": githubv4.Int(number),
			"cursor": cursor,
		}
		if err := c.graphql.client.Query(ctx, &query, variables); err != nil {
			return nil, classify(err)
		}

		projectNodeID := fmt.Sprintf("%v", query.Organization.ProjectV2.ID)
		for _, node := range query.Organization.ProjectV2.Items.Nodes {
			all = append(all, convertProjectItem(projectNodeID, node))
		}
		if !bool(query.Organization.ProjectV2.Items.PageInfo.HasNextPage) {
			break
		}
		next := query.Organization.ProjectV2.Items.PageInfo.EndCursor
		cursor = &next
	}
	return all, nil
}

func convertProjectItem(projectNodeID string, node projectItemNode) *models.ProjectItem {
	item := &models.ProjectItem{
		NodeID:          fmt.Sprintf("%v", node.ID),
		ProjectNodeID:   projectNodeID,
		ContentType:     string(node.Content.TypeName),
		FieldValuesJSON: projectFieldValues(node.FieldValues.Nodes),
		CreatedAt:       node.CreatedAt.Time,
		UpdatedAt:       node.UpdatedAt.Time,
	}

	switch item.ContentType {
	case "Issue":
		item.ContentNumber = int(node.Content.Issue.Number)
		item.Title = string(node.Content.Issue.Title)
		item.State = string(node.Content.Issue.State)
		item.URL = string(node.Content.Issue.URL)
		item.RepoFullName = string(node.Content.Issue.Repository.NameWithOwner)
	case "PullRequest":
		item.ContentNumber = int(node.Content.PullRequest.Number)
		item.Title = string(node.Content.PullRequest.Title)
		item.State = string(node.Content.PullRequest.State)
		item.URL = string(node.Content.PullRequest.URL)
		item.RepoFullName = string(node.Content.PullRequest.Repository.NameWithOwner)
	case "DraftIssue":
		item.Title = string(node.Content.DraftIssue.Title)
	}

	if blob, err := json.Marshal(map[string]interface{}{
		"type":       item.ContentType,
		"number":     item.ContentNumber,
		"title":      item.Title,
		"state":      item.State,
		"url":        item.URL,
		"repository": item.RepoFullName,
	}); err == nil {
		item.ContentJSON = string(blob)
	}
	return item
}
