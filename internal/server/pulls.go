package server

import (
	"github.com/gin-gonic/gin"

	"github.com/greport/greport/internal/apperrors"
	"github.com/greport/greport/internal/metrics"
)

func (s *Server) listPulls(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	filter, ok := issueFilter(c)
	if !ok {
		return
	}
	pulls, err := s.db.ListPulls(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respondPage(c, metrics.FilterPulls(pulls, filter, s.now()))
}

func (s *Server) pullMetrics(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	filter, ok := issueFilter(c)
	if !ok {
		return
	}
	pulls, err := s.db.ListPulls(repo.ID)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respond(c, metrics.ComputePullMetrics(pulls, filter, s.now()))
}
