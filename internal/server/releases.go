package server

import (
	"github.com/gin-gonic/gin"

	"github.com/greport/greport/internal/apperrors"
	"github.com/greport/greport/internal/metrics"
)

func (s *Server) listReleases(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	releases, err := s.db.ListReleases(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respondPage(c, releases)
}

func (s *Server) releaseNotes(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	title := c.Query("milestone")
	if title == "" {
		respondError(c, apperrors.Validation("milestone parameter is required"))
		return
	}
	milestone, err := s.db.GetMilestoneByTitle(repo.ID, title)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	if milestone == nil {
		respondError(c, apperrors.NotFound("milestone %q not found in %s", title, repo.FullName))
		return
	}
	issues, err := s.db.ListIssues(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	pulls, err := s.db.ListPulls(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respond(c, metrics.ComputeReleaseNotes(milestone, issues, pulls))
}
