package server

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/greport/greport/internal/apperrors"
	"github.com/greport/greport/internal/models"
)

func (s *Server) listOrgs(c *gin.Context) {
	orgs := s.registry.Organizations()
	for i := range orgs {
		if stored, err := s.db.GetOrganization(orgs[i].Name); err == nil && stored != nil {
			orgs[i].LastSyncedAt = stored.LastSyncedAt
		}
	}
	respond(c, orgs)
}

// projectFromPath resolves the org/number path pair to a stored project.
func (s *Server) projectFromPath(c *gin.Context) (*models.Project, bool) {
	org := c.Param("org")
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		respondError(c, apperrors.Validation("invalid project number %q", c.Param("number")))
		return nil, false
	}
	project, err := s.db.GetProject(org, number)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return nil, false
	}
	if project == nil {
		respondError(c, apperrors.NotFound("project %d not found for %s", number, org))
		return nil, false
	}
	return project, true
}

func (s *Server) listProjects(c *gin.Context) {
	org := c.Param("org")
	if !s.registry.HasOrg(org) {
		respondError(c, apperrors.NotFound("organization %s is not configured", org))
		return
	}
	projects, err := s.db.ListProjects(org)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respond(c, projects)
}

func (s *Server) getProject(c *gin.Context) {
	project, ok := s.projectFromPath(c)
	if !ok {
		return
	}
	fields, err := s.db.ListProjectFields(project.NodeID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respond(c, gin.H{"project": project, "fields": projectFieldViews(fields)})
}

func (s *Server) listProjectItems(c *gin.Context) {
	project, ok := s.projectFromPath(c)
	if !ok {
		return
	}
	items, err := s.db.ListProjectItems(project.NodeID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respondPage(c, projectItemViews(items))
}

// ProjectMetrics is the rollup over one board's items.
type ProjectMetrics struct {
	TotalItems    int            `json:"total_items"`
	ByContentType map[string]int `json:"by_content_type"`
	ByState       map[string]int `json:"by_state"`
	ByRepository  map[string]int `json:"by_repository"`
}

func (s *Server) projectMetrics(c *gin.Context) {
	project, ok := s.projectFromPath(c)
	if !ok {
		return
	}
	items, err := s.db.ListProjectItems(project.NodeID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}

	m := &ProjectMetrics{
		ByContentType: map[string]int{},
		ByState:       map[string]int{},
		ByRepository:  map[string]int{},
	}
	for _, item := range items {
		m.TotalItems++
		m.ByContentType[item.ContentType]++
		if item.State != "" {
			m.ByState[item.State]++
		}
		if item.RepoFullName != "" {
			m.ByRepository[item.RepoFullName]++
		}
	}
	respond(c, m)
}

func (s *Server) syncOrgProjects(c *gin.Context) {
	org := c.Param("org")
	if !s.registry.HasOrg(org) {
		respondError(c, apperrors.NotFound("organization %s is not configured", org))
		return
	}
	result, err := s.coordinator.SyncOrgProjects(c.Request.Context(), org)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, result)
}

// projectFieldView decodes the stored configuration blob for rendering.
type projectFieldView struct {
	NodeID    string          `json:"node_id"`
	Name      string          `json:"name"`
	FieldType string          `json:"field_type"`
	Config    json.RawMessage `json:"config,omitempty"`
}

func projectFieldViews(fields []*models.ProjectField) []projectFieldView {
	out := make([]projectFieldView, 0, len(fields))
	for _, f := range fields {
		view := projectFieldView{NodeID: f.NodeID, Name: f.Name, FieldType: f.FieldType}
		if f.ConfigJSON != "" {
			view.Config = json.RawMessage(f.ConfigJSON)
		}
		out = append(out, view)
	}
	return out
}

// projectItemView projects the opaque blobs as raw JSON on the wire.
type projectItemView struct {
	NodeID      string          `json:"node_id"`
	ContentType string          `json:"content_type"`
	Number      int             `json:"number,omitempty"`
	Title       string          `json:"title"`
	State       string          `json:"state,omitempty"`
	URL         string          `json:"url,omitempty"`
	Repository  string          `json:"repository,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	FieldValues json.RawMessage `json:"field_values,omitempty"`
}

func projectItemViews(items []*models.ProjectItem) []projectItemView {
	out := make([]projectItemView, 0, len(items))
	for _, item := range items {
		view := projectItemView{
			NodeID:      item.NodeID,
			ContentType: item.ContentType,
			Number:      item.ContentNumber,
			Title:       item.Title,
			State:       item.State,
			URL:         item.URL,
			Repository:  item.RepoFullName,
		}
		if item.ContentJSON != "" {
			view.Content = json.RawMessage(item.ContentJSON)
		}
		if item.FieldValuesJSON != "" {
			view.FieldValues = json.RawMessage(item.FieldValuesJSON)
		}
		out = append(out, view)
	}
	return out
}
