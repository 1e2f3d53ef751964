package server

import (
	"github.com/gin-gonic/gin"

	"github.com/greport/greport/internal/aggregate"
	"github.com/greport/greport/internal/apperrors"
	"github.com/greport/greport/internal/metrics"
	"github.com/greport/greport/internal/models"
)

// eachRepo runs fn over every tracked repository, stopping on the first
// failure.
func (s *Server) eachRepo(fn func(repo *models.Repository) error) error {
	repos, err := s.db.ListRepositories()
	if err != nil {
		return apperrors.Warehouse(err)
	}
	for _, repo := range repos {
		if err := fn(repo); err != nil {
			return err
		}
	}
	return nil
}

// repoIssue tags an issue row with its repository for cross-repo lists.
type repoIssue struct {
	Repository string `json:"repository"`
	*models.Issue
}

func (s *Server) aggregateIssues(c *gin.Context) {
	filter, ok := issueFilter(c)
	if !ok {
		return
	}
	var all []repoIssue
	err := s.eachRepo(func(repo *models.Repository) error {
		issues, err := s.db.ListIssues(repo.ID)
		if err != nil {
			return apperrors.Warehouse(err)
		}
		for _, issue := range metrics.FilterIssues(issues, filter, s.now()) {
			all = append(all, repoIssue{Repository: repo.FullName, Issue: issue})
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, all)
}

type repoPull struct {
	Repository string `json:"repository"`
	*models.PullRequest
}

func (s *Server) aggregatePulls(c *gin.Context) {
	filter, ok := issueFilter(c)
	if !ok {
		return
	}
	var all []repoPull
	err := s.eachRepo(func(repo *models.Repository) error {
		pulls, err := s.db.ListPulls(repo.ID)
		if err != nil {
			return apperrors.Warehouse(err)
		}
		for _, pr := range metrics.FilterPulls(pulls, filter, s.now()) {
			all = append(all, repoPull{Repository: repo.FullName, PullRequest: pr})
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, all)
}

func (s *Server) aggregateIssueMetrics(c *gin.Context) {
	filter, ok := issueFilter(c)
	if !ok {
		return
	}
	perRepo := map[string]*metrics.IssueMetrics{}
	err := s.eachRepo(func(repo *models.Repository) error {
		issues, err := s.db.ListIssues(repo.ID)
		if err != nil {
			return apperrors.Warehouse(err)
		}
		perRepo[repo.FullName] = metrics.ComputeIssueMetrics(issues, filter, s.cfg.StaleDays, s.now())
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, aggregate.IssueMetrics(perRepo))
}

func (s *Server) aggregatePullMetrics(c *gin.Context) {
	filter, ok := issueFilter(c)
	if !ok {
		return
	}
	perRepo := map[string]*metrics.PullMetrics{}
	err := s.eachRepo(func(repo *models.Repository) error {
		pulls, err := s.db.ListPulls(repo.ID)
		if err != nil {
			return apperrors.Warehouse(err)
		}
		perRepo[repo.FullName] = metrics.ComputePullMetrics(pulls, filter, s.now())
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, aggregate.PullMetrics(perRepo))
}

func (s *Server) aggregateContributors(c *gin.Context) {
	sortBy := c.DefaultQuery("sort_by", "issues")
	limit, ok := intQuery(c, "limit", metrics.DefaultContributorLimit, 1)
	if !ok {
		return
	}
	perRepo := map[string][]metrics.ContributorStats{}
	err := s.eachRepo(func(repo *models.Repository) error {
		issues, err := s.db.ListIssues(repo.ID)
		if err != nil {
			return apperrors.Warehouse(err)
		}
		pulls, err := s.db.ListPulls(repo.ID)
		if err != nil {
			return apperrors.Warehouse(err)
		}
		// Per-repo leaderboards stay unlimited so the rollup does not
		// drop a login that is mid-table everywhere but big in total.
		perRepo[repo.FullName] = metrics.ComputeContributors(issues, pulls, sortBy, len(issues)+len(pulls)+1)
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, aggregate.Contributors(perRepo, sortBy, limit))
}

func (s *Server) aggregateVelocity(c *gin.Context) {
	period, last, ok := velocityParams(c)
	if !ok {
		return
	}
	now := s.now()
	perRepo := map[string]*metrics.VelocityMetrics{}
	err := s.eachRepo(func(repo *models.Repository) error {
		issues, err := s.db.ListIssues(repo.ID)
		if err != nil {
			return apperrors.Warehouse(err)
		}
		perRepo[repo.FullName] = metrics.ComputeVelocity(issues, period, last, now)
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	agg, err := aggregate.Velocity(perRepo)
	if err != nil {
		respondError(c, apperrors.Internal(err))
		return
	}
	respond(c, agg)
}

func (s *Server) aggregateCalendar(c *gin.Context) {
	start, end, types, ok := s.calendarWindow(c)
	if !ok {
		return
	}
	var calendars []*metrics.CalendarData
	err := s.eachRepo(func(repo *models.Repository) error {
		input, err := s.calendarInput(repo)
		if err != nil {
			return apperrors.Warehouse(err)
		}
		calendars = append(calendars, metrics.ComputeCalendar(input, start, end, types))
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, metrics.MergeCalendars(calendars, start, end))
}

func (s *Server) aggregateReleasePlan(c *gin.Context) {
	cfg, ok := planConfig(c)
	if !ok {
		return
	}
	perRepo := map[string]*metrics.ReleasePlan{}
	err := s.eachRepo(func(repo *models.Repository) error {
		milestones, err := s.db.ListMilestones(repo.ID)
		if err != nil {
			return apperrors.Warehouse(err)
		}
		issues, err := s.db.ListIssues(repo.ID)
		if err != nil {
			return apperrors.Warehouse(err)
		}
		releases, err := s.db.ListReleases(repo.ID)
		if err != nil {
			return apperrors.Warehouse(err)
		}
		perRepo[repo.FullName] = metrics.ComputeReleasePlan(milestones, issues, releases, cfg, s.now())
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, aggregate.ReleasePlans(perRepo))
}

func (s *Server) aggregateProjects(c *gin.Context) {
	var all []*models.Project
	for _, org := range s.registry.Organizations() {
		projects, err := s.db.ListProjects(org.Name)
		if err != nil {
			respondError(c, apperrors.Warehouse(err))
			return
		}
		all = append(all, projects...)
	}
	respond(c, aggregate.Projects(all))
}
