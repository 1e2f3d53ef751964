package server

import (
	"github.com/gin-gonic/gin"

	"github.com/greport/greport/internal/apperrors"
	"github.com/greport/greport/internal/metrics"
)

func (s *Server) listIssues(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	filter, ok := issueFilter(c)
	if !ok {
		return
	}
	issues, err := s.db.ListIssues(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respondPage(c, metrics.FilterIssues(issues, filter, s.now()))
}

func (s *Server) issueMetrics(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	filter, ok := issueFilter(c)
	if !ok {
		return
	}
	issues, err := s.db.ListIssues(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respond(c, metrics.ComputeIssueMetrics(issues, filter, s.cfg.StaleDays, s.now()))
}

func (s *Server) issueVelocity(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	period, last, ok := velocityParams(c)
	if !ok {
		return
	}
	issues, err := s.db.ListIssues(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respond(c, metrics.ComputeVelocity(issues, period, last, s.now()))
}

func velocityParams(c *gin.Context) (metrics.Period, int, bool) {
	period := c.DefaultQuery("period", "week")
	if !metrics.ValidPeriod(period) {
		respondError(c, apperrors.Validation("invalid period %q, expected day, week or month", period))
		return "", 0, false
	}
	last, ok := intQuery(c, "last", 12, 1)
	if !ok {
		return "", 0, false
	}
	return metrics.Period(period), last, true
}

func (s *Server) issueBurndown(c *gin.Context) {
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
	respond(c, metrics.ComputeBurndown(milestone, issues, s.now()))
}

func (s *Server) staleIssues(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	days, ok := intQuery(c, "days", s.cfg.StaleDays, 1)
	if !ok {
		return
	}
	issues, err := s.db.ListIssues(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respondPage(c, metrics.StaleIssues(issues, days, s.now()))
}
