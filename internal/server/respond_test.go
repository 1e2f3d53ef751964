package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/greport/greport/internal/apperrors"
)

func TestRespondErrorRateLimitSetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/limited", func(c *gin.Context) {
		respondError(c, apperrors.RateLimited(30*time.Second+500*time.Millisecond))
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/limited", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	// Sub-second remainders round up so clients never retry early.
	assert.Equal(t, "31", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", errorCode(t, rec))
}

func TestRespondErrorOtherCodesSkipRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/missing", func(c *gin.Context) {
		respondError(c, apperrors.NotFound("nothing here"))
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
}
