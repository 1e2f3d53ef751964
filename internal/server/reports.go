package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/greport/greport/internal/apperrors"
	"github.com/greport/greport/internal/metrics"
	"github.com/greport/greport/internal/models"
)

func (s *Server) contributors(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	sortBy := c.DefaultQuery("sort_by", "issues")
	limit, ok := intQuery(c, "limit", metrics.DefaultContributorLimit, 1)
	if !ok {
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
	respond(c, metrics.ComputeContributors(issues, pulls, sortBy, limit))
}

func (s *Server) slaReport(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	cfg := s.cfg.Sla
	response, ok := floatQuery(c, "response_hours", cfg.ResponseHours)
	if !ok {
		return
	}
	resolution, ok := floatQuery(c, "resolution_hours", cfg.ResolutionHours)
	if !ok {
		return
	}
	cfg.ResponseHours = response
	cfg.ResolutionHours = resolution

	issues, err := s.db.ListIssues(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	events, err := s.db.ListIssueEvents(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respond(c, metrics.ComputeSla(issues, events, cfg, s.now()))
}

// calendarWindow reads start_date/end_date, defaulting to previous month
// through next month, and validates ordering.
func (s *Server) calendarWindow(c *gin.Context) (start, end time.Time, types metrics.CalendarTypes, ok bool) {
	defStart, defEnd := metrics.DefaultCalendarWindow(s.now())
	start, ok = dateQuery(c, "start_date", defStart)
	if !ok {
		return
	}
	end, ok = dateQuery(c, "end_date", defEnd)
	if !ok {
		return
	}
	if end.Before(start) {
		respondError(c, apperrors.Validation("end_date precedes start_date"))
		return start, end, types, false
	}

	var raw []string
	if v := c.Query("types"); v != "" {
		raw = strings.Split(v, ",")
	}
	types, err := metrics.ParseCalendarTypes(raw)
	if err != nil {
		respondError(c, apperrors.Validation("%v", err))
		return start, end, types, false
	}
	return start, end, types, true
}

// calendarInput loads one repository's rows for calendar derivation.
func (s *Server) calendarInput(repo *models.Repository) (metrics.CalendarInput, error) {
	issues, err := s.db.ListIssues(repo.ID)
	if err != nil {
		return metrics.CalendarInput{}, err
	}
	pulls, err := s.db.ListPulls(repo.ID)
	if err != nil {
		return metrics.CalendarInput{}, err
	}
	milestones, err := s.db.ListMilestones(repo.ID)
	if err != nil {
		return metrics.CalendarInput{}, err
	}
	releases, err := s.db.ListReleases(repo.ID)
	if err != nil {
		return metrics.CalendarInput{}, err
	}
	return metrics.CalendarInput{
		RepoFullName: repo.FullName,
		WebURL:       s.registry.Resolve(repo.Owner).WebURL,
		Issues:       issues,
		Pulls:        pulls,
		Milestones:   milestones,
		Releases:     releases,
	}, nil
}

func (s *Server) calendar(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	start, end, types, ok := s.calendarWindow(c)
	if !ok {
		return
	}
	input, err := s.calendarInput(repo)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respond(c, metrics.ComputeCalendar(input, start, end, types))
}

// planConfig reads months_back/months_forward with the 3-month defaults.
func planConfig(c *gin.Context) (metrics.ReleasePlanConfig, bool) {
	back, ok := intQuery(c, "months_back", 3, 1)
	if !ok {
		return metrics.ReleasePlanConfig{}, false
	}
	forward, ok := intQuery(c, "months_forward", 3, 1)
	if !ok {
		return metrics.ReleasePlanConfig{}, false
	}
	return metrics.ReleasePlanConfig{MonthsBack: back, MonthsForward: forward}, true
}

func (s *Server) releasePlan(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	cfg, ok := planConfig(c)
	if !ok {
		return
	}
	milestones, err := s.db.ListMilestones(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	issues, err := s.db.ListIssues(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	releases, err := s.db.ListReleases(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respond(c, metrics.ComputeReleasePlan(milestones, issues, releases, cfg, s.now()))
}
