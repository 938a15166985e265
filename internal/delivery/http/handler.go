package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
	"github.com/ScullyB96/trading-card-oracle-sub000/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	comping *usecase.CompingService
}

// NewHandler creates a new HTTP handler
func NewHandler(comping *usecase.CompingService) *Handler {
	return &Handler{comping: comping}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "card-comp-backend",
		"version": "1.0.0",
	})
}

// SearchComps runs the comp pipeline for one card. Pipeline-internal
// failures (unreachable sources, timeouts, no data) come back inside a 200
// response; only malformed requests and empty source selections reject.
func (h *Handler) SearchComps(c *gin.Context) {
	var req usecase.CompRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	response, err := h.comping.Run(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoSources):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":        err.Error(),
				"validSources": domain.AllSources,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	if response.Debug != nil {
		response.Debug.RequestID = c.GetString(requestIDKey)
	}

	c.JSON(http.StatusOK, response)
}
