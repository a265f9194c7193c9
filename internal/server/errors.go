package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/llm"
	"github.com/abhisek/socratic/internal/session"
)

// ErrExtractorUnavailable is returned by /v1/concepts when no LLM provider
// is configured.
var ErrExtractorUnavailable = errors.New("concept extraction is not configured")

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var (
		rateLimit   *llm.ErrRateLimit
		invalid     *llm.ErrInvalidResponse
		unavailable *llm.ErrProviderUnavailable
		truncated   *llm.ErrMaxTokensExceeded
		verrs       validator.ValidationErrors
	)
	switch {
	case errors.Is(err, assessment.ErrValidation), errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assessment.ErrInvalidState), errors.Is(err, session.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, session.ErrOracleUnavailable), errors.Is(err, ErrExtractorUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrOracleFailed),
		errors.As(err, &rateLimit), errors.As(err, &invalid),
		errors.As(err, &unavailable), errors.As(err, &truncated):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorTitle(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusNotFound:
		return "session not found"
	case http.StatusConflict:
		return "session state conflict"
	case http.StatusServiceUnavailable:
		return "LLM provider not configured"
	case http.StatusBadGateway:
		return "LLM request failed"
	default:
		return "internal error"
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, errorBody{Error: errorTitle(status), Details: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: errorTitle(http.StatusBadRequest), Details: err.Error()})
}
