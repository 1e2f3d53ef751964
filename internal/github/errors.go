package github

import (
	"context"
	"errors"
	"net/http"
	"time"

	gh "github.com/google/go-github/v57/github"

	"github.com/greport/greport/internal/apperrors"
)

// classify maps a go-github error to the shared error taxonomy. Transient
// classes are handled by the retry loop before reaching callers.
func classify(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return apperrors.RateLimited(time.Until(rateErr.Rate.Reset.Time))
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		retryAfter := time.Minute
		if abuseErr.RetryAfter != nil {
			retryAfter = *abuseErr.RetryAfter
		}
		return apperrors.RateLimited(retryAfter)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.Unauthorized("host rejected credential")
		case http.StatusNotFound, http.StatusGone:
			return apperrors.NotFound("host resource not found")
		case http.StatusTooManyRequests:
			return apperrors.RateLimited(time.Minute)
		default:
			return apperrors.HostError(respErr.Response.StatusCode, respErr.Message)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.From(err)
	}

	// Connection-level failure with no HTTP response.
	return &apperrors.AppError{
		Code:    apperrors.CodeHostError,
		Message: "transport error contacting host",
		Err:     err,
	}
}

// retryable reports whether the retry loop should attempt the request
// again: 5xx, transport failures and rate limits qualify, other 4xx do not.
func retryable(appErr *apperrors.AppError) bool {
	if appErr == nil {
		return false
	}
	switch appErr.Code {
	case apperrors.CodeRateLimited:
		return true
	case apperrors.CodeHostError:
		return appErr.Status == 0 || appErr.Status >= 500
	default:
		return false
	}
}
