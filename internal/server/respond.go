package server

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/greport/greport/internal/apperrors"
	"github.com/greport/greport/internal/metrics"
	"github.com/greport/greport/internal/models"
)

// Pagination defaults and bounds.
const (
	defaultPage    = 1
	defaultPerPage = 30
	maxPerPage     = 100
)

type pageMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// respondPage slices a full result set into the requested page and wraps
// it in the list envelope.
func respondPage[T any](c *gin.Context, items []T) {
	page, perPage, ok := pageParams(c)
	if !ok {
		return
	}

	total := len(items)
	totalPages := (total + perPage - 1) / perPage

	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	window := items[start:end]
	if window == nil {
		window = []T{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": window,
		"meta": pageMeta{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages},
	})
}

// respondError maps an error onto the error envelope. Deadline expiry on
// the request context wins over whatever the downstream failure was.
func respondError(c *gin.Context, err error) {
	if ctxErr := c.Request.Context().Err(); ctxErr != nil {
		err = ctxErr
	}
	appErr := apperrors.From(err)
	if appErr.Code == apperrors.CodeRateLimited && appErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus(), gin.H{
		"error": gin.H{"code": appErr.Code, "message": appErr.Message},
	})
}

func pageParams(c *gin.Context) (page, perPage int, ok bool) {
	page, ok = intQuery(c, "page", defaultPage, 1)
	if !ok {
		return 0, 0, false
	}
	perPage, ok = intQuery(c, "per_page", defaultPerPage, 1)
	if !ok {
		return 0, 0, false
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage, true
}

// intQuery parses an integer query parameter, responding 400 on garbage
// or values below min.
func intQuery(c *gin.Context, name string, def, min int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		respondError(c, apperrors.Validation("invalid %s parameter %q", name, raw))
		return 0, false
	}
	return v, true
}

// floatQuery parses a positive float query parameter.
func floatQuery(c *gin.Context, name string, def float64) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		respondError(c, apperrors.Validation("invalid %s parameter %q", name, raw))
		return 0, false
	}
	return v, true
}

// stateParam validates state ∈ {open, closed, all}, defaulting to all.
func stateParam(c *gin.Context) (string, bool) {
	state := c.DefaultQuery("state", "all")
	switch state {
	case "open", "closed", "all":
		return state, true
	}
	respondError(c, apperrors.Validation("invalid state %q, expected open, closed or all", state))
	return "", false
}

// issueFilter reads the shared state and days parameters.
func issueFilter(c *gin.Context) (metrics.IssueFilter, bool) {
	state, ok := stateParam(c)
	if !ok {
		return metrics.IssueFilter{}, false
	}
	days, ok := intQuery(c, "days", 0, 1)
	if !ok {
		return metrics.IssueFilter{}, false
	}
	return metrics.IssueFilter{State: state, Days: days}, true
}

// dateQuery parses an ISO-8601 YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, name string, def time.Time) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		respondError(c, apperrors.Validation("invalid %s %q, expected YYYY-MM-DD", name, raw))
		return time.Time{}, false
	}
	return t, true
}

// repoFromPath resolves the owner/repo path pair to a tracked repository,
// responding 404 when it is not in the warehouse.
func (s *Server) repoFromPath(c *gin.Context) (*models.Repository, bool) {
	fullName := c.Param("owner") + "/" + c.Param("repo")
	repo, err := s.db.GetRepositoryByFullName(fullName)
	if err != nil {
		respondError(c, apperrors.Warehouse(err))
		return nil, false
	}
	if repo == nil {
		respondError(c, apperrors.NotFound("repository %s is not tracked", fullName))
		return nil, false
	}
	return repo, true
}
