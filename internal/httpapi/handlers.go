package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suncheck/suncheck/internal/models"
	"github.com/suncheck/suncheck/internal/pipeline"
)

// errorBody is the JSON error contract: a short code plus a human string.
func errorBody(code, detail string) gin.H {
	return gin.H{"error": code, "detail": detail}
}

func (s *Server) handleHealth(c *gin.Context) {
	summarizer := "fallback-template"
	if s.health.SummarizerConfigured {
		summarizer = "configured"
	}
	database := "stateless"
	if s.health.DatabaseConnected {
		database = "connected"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"services": gin.H{
			"scoring_engine": models.AlgorithmVersion,
			"summarizer":     summarizer,
			"elevation_api":  s.health.ElevationProvider,
			"database":       database,
		},
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_input", "malformed request body: "+err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestDeadline)
	defer cancel()

	resp, err := s.pipe.Analyze(ctx, req)
	if err != nil {
		var verr *pipeline.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, errorBody("invalid_input", verr.Detail))
		case errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusGatewayTimeout, errorBody("timeout", "analysis exceeded the request deadline"))
		case errors.Is(err, context.Canceled):
			c.Status(http.StatusRequestTimeout)
		default:
			c.JSON(http.StatusInternalServerError, errorBody("internal", err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := s.cfg.HistoryLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, errorBody("invalid_input", "invalid limit"))
			return
		}
		limit = parsed
	}

	records, err := s.pipe.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("internal", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(records), "analyses": records})
}

func (s *Server) handleRegions(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		c.JSON(http.StatusBadRequest, errorBody("invalid_input", "invalid lat"))
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		c.JSON(http.StatusBadRequest, errorBody("invalid_input", "invalid lng"))
		return
	}

	c.JSON(http.StatusOK, s.pipe.RegionStats(lat, lng))
}
