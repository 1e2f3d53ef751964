// Package server is the HTTP surface: routing, parameter validation,
// response envelopes and error mapping. It holds no business logic; all
// outputs come from the warehouse, the derivation layer or the sync
// coordinator.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/greport/greport/internal/db"
	"github.com/greport/greport/internal/github"
	"github.com/greport/greport/internal/metrics"
	"github.com/greport/greport/internal/sync"
)

// RequestTimeout bounds every handler; downstream work inherits it
// through the request context.
const RequestTimeout = 30 * time.Second

// MaxTrackedRepos caps the tracked-repo set. The warehouse and the host's
// rate budget are sized for a small dashboard, not a fleet.
const MaxTrackedRepos = 5

// Config tunes the server's derivation defaults.
type Config struct {
	Sla       metrics.SlaConfig
	StaleDays int
}

// Server wires the warehouse, registry and coordinator behind gin.
type Server struct {
	db          *db.DB
	registry    *github.Registry
	coordinator *sync.Coordinator
	cfg         Config
	log         *logrus.Entry
	now         func() time.Time
}

// New builds a server. Zero-value config fields take the derivation
// defaults.
func New(database *db.DB, registry *github.Registry, coordinator *sync.Coordinator, cfg Config, log *logrus.Entry) *Server {
	if cfg.Sla.ResponseHours == 0 && cfg.Sla.ResolutionHours == 0 {
		cfg.Sla = metrics.DefaultSlaConfig()
	}
	if cfg.StaleDays <= 0 {
		cfg.StaleDays = metrics.DefaultStaleDays
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		db:          database,
		registry:    registry,
		coordinator: coordinator,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger(), deadline(RequestTimeout))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/repos", s.listRepos)
		v1.POST("/repos", s.trackRepo)
		v1.POST("/sync", s.batchSync)

		repo := v1.Group("/repos/:owner/:repo")
		{
			repo.DELETE("", s.untrackRepo)
			repo.POST("/sync", s.syncRepo)

			repo.GET("/issues", s.listIssues)
			repo.GET("/issues/metrics", s.issueMetrics)
			repo.GET("/issues/velocity", s.issueVelocity)
			repo.GET("/issues/burndown", s.issueBurndown)
			repo.GET("/issues/stale", s.staleIssues)

			repo.GET("/pulls", s.listPulls)
			repo.GET("/pulls/metrics", s.pullMetrics)

			repo.GET("/releases", s.listReleases)
			repo.GET("/releases/notes", s.releaseNotes)

			repo.GET("/contributors", s.contributors)
			repo.GET("/sla", s.slaReport)
			repo.GET("/calendar", s.calendar)
			repo.GET("/release-plan", s.releasePlan)
		}

		v1.GET("/orgs", s.listOrgs)
		v1.GET("/orgs/:org/projects", s.listProjects)
		v1.GET("/orgs/:org/projects/:number", s.getProject)
		v1.GET("/orgs/:org/projects/:number/items", s.listProjectItems)
		v1.GET("/orgs/:org/projects/:number/metrics", s.projectMetrics)
		v1.POST("/orgs/:org/projects/sync", s.syncOrgProjects)

		agg := v1.Group("/aggregate")
		{
			agg.GET("/issues", s.aggregateIssues)
			agg.GET("/pulls", s.aggregatePulls)
			agg.GET("/issues/metrics", s.aggregateIssueMetrics)
			agg.GET("/pulls/metrics", s.aggregatePullMetrics)
			agg.GET("/contributors", s.aggregateContributors)
			agg.GET("/velocity", s.aggregateVelocity)
			agg.GET("/calendar", s.aggregateCalendar)
			agg.GET("/release-plan", s.aggregateReleasePlan)
			agg.GET("/projects", s.aggregateProjects)
		}
	}
	return engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

// deadline bounds the request context so downstream host and warehouse
// calls give up before the client does.
func deadline(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Debug("request served")
	}
}
