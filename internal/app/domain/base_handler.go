package domain

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/middleware"
	"github.com/FACorreiaa/go-radar/internal/app/models"
)

type BaseHandler struct {
	Logger *zap.Logger
}

func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	return &BaseHandler{Logger: logger}
}

// UserID returns the authenticated user or writes a 401 and reports false.
func (h *BaseHandler) UserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		h.RespondError(c, models.ErrUnauthenticated, "authenticate")
		return uuid.Nil, false
	}
	return id, true
}

// ParamUUID reads a uuid path parameter or writes a 400 and reports false.
func (h *BaseHandler) ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// RespondError maps the error taxonomy onto HTTP status codes.
func (h *BaseHandler) RespondError(c *gin.Context, err error, operation string) {
	status, body := StatusFor(err)
	l := h.Logger.With(zap.String("operation", operation), zap.Int("status", status))
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		l.Error("Request failed", zap.Error(err))
	} else {
		l.Info("Request rejected", zap.Error(err))
	}
	c.JSON(status, body)
}

// StatusFor returns the status code and response body for an error.
func StatusFor(err error) (int, gin.H) {
	switch {
	case errors.Is(err, models.ErrResolutionNotFound):
		return http.StatusNotFound, gin.H{
			"error":   "could not find this place",
			"details": "Try adding the district or checking the spelling",
		}
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		}
	case errors.Is(err, models.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, gin.H{
			"error":   "Place service temporarily unavailable",
			"details": "Please try again in a moment",
		}
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": "Place not found"}
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized, gin.H{"error": "Authentication required"}
	default:
		return http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": "An app error occurred. Please try again later.",
		}
	}
}
