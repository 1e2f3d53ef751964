package server

import (
	"github.com/gin-gonic/gin"

	"github.com/greport/greport/internal/apperrors"
	"github.com/greport/greport/internal/github"
)

func (s *Server) listRepos(c *gin.Context) {
	repos, err := s.db.ListRepositories()
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respond(c, repos)
}

type trackRequest struct {
	FullName string `json:"full_name"`
}

// trackRepo validates the name, enforces the tracked-repo cap, fetches
// the repository from the host and stores it. The first sync is left to
// the caller.
func (s *Server) trackRepo(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("invalid request body: %v", err))
		return
	}
	owner, name, err := github.ParseFullName(req.FullName)
	if err != nil {
		respondError(c, err)
		return
	}

	count, err := s.db.CountRepositories()
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	if count >= MaxTrackedRepos {
		respondError(c, apperrors.Validation(
			"tracked repository limit of %d reached, untrack one first", MaxTrackedRepos))
		return
	}

	existing, err := s.db.GetRepositoryByFullName(req.FullName)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	if existing != nil {
		respond(c, existing)
		return
	}

	client, err := s.registry.ClientFor(owner)
	if err != nil {
		respondError(c, err)
		return
	}
	repo, err := client.GetRepository(c.Request.Context(), owner, name)
	if err != nil {
		respondError(c, err)
		return
	}
	if s.registry.HasOrg(owner) {
		repo.Org = owner
	}
	if err := s.db.UpsertRepository(repo); err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respondCreated(c, repo)
}

func (s *Server) untrackRepo(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	if err := s.db.DeleteRepository(repo.ID); err != nil {
		respondError(c, apperrors.Warehouse(err))
		return
	}
	respond(c, gin.H{"deleted": repo.FullName})
}

func (s *Server) syncRepo(c *gin.Context) {
	repo, ok := s.repoFromPath(c)
	if !ok {
		return
	}
	owner, name, err := github.ParseFullName(repo.FullName)
	if err != nil {
		respondError(c, err)
		return
	}
	force := c.Query("force") == "true"
	result, err := s.coordinator.SyncRepository(c.Request.Context(), owner, name, force)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, result)
}

func (s *Server) batchSync(c *gin.Context) {
	force := c.Query("force") == "true"
	result, err := s.coordinator.SyncAll(c.Request.Context(), force)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, result)
}
