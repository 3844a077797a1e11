package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sentinel-logs/sentinel/internal/store"
	"github.com/sentinel-logs/sentinel/internal/worker"
	"github.com/sentinel-logs/sentinel/pkg/types"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleCreateRawLog(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
		Source  string `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing content field"})
		return
	}

	raw := &types.RawLog{
		ID:         uuid.NewString(),
		Content:    req.Content,
		Source:     req.Source,
		IngestedAt: time.Now().UTC(),
	}
	if err := s.store.CreateRawLog(c.Request.Context(), raw); err != nil {
		s.logger.Error().Err(err).Msg("raw log insert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store raw log"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          raw.ID,
		"ingested_at": raw.IngestedAt,
	})
}

// handleProcess runs the retrying pipeline for a stored raw log, either
// synchronously or queued onto the worker pool with ?async=1.
func (s *Server) handleProcess(c *gin.Context) {
	id := c.Param("id")

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if s.pool == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "async processing is not enabled"})
			return
		}
		switch err := s.pool.Submit(id); err {
		case nil:
			c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "queued"})
		case worker.ErrQueueFull, worker.ErrPoolClosed:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	result := s.pipeline.Process(c.Request.Context(), id)
	c.JSON(statusFor(result), result)
}

func (s *Server) handleIngest(c *gin.Context) {
	var req struct {
		Content string            `json:"content" binding:"required"`
		Source  string            `json:"source"`
		Labels  map[string]string `json:"labels"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing content field"})
		return
	}

	result := s.pipeline.ProcessEntry(c.Request.Context(), req.Content, types.SourceInfo{
		Source: req.Source,
		Labels: req.Labels,
	})
	c.JSON(statusFor(result), result)
}

// statusFor maps a pipeline result onto an HTTP status. The result body is
// returned either way; the pipeline never raises.
func statusFor(result types.ProcessingResult) int {
	if result.Success {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func (s *Server) handleListEvents(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if _, err := s.store.GetRawLog(ctx, id); err != nil {
		if errors.Is(err, store.ErrRawLogNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "raw log not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query raw log"})
		return
	}

	events, err := s.store.ListEventsByRawLog(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("raw_log_id", id).Msg("event listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"raw_log_id": id,
		"events":     events,
		"count":      len(events),
	})
}

func (s *Server) handleEventsBySeverity(c *gin.Context) {
	minSeverity := types.SeverityMin
	if v := c.Query("min_severity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !types.SeverityInRange(n) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_severity must be an integer in [1,10]"})
			return
		}
		minSeverity = n
	}

	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	events, err := s.store.ListEventsBySeverity(c.Request.Context(), minSeverity, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("severity query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"min_severity": minSeverity,
		"events":       events,
		"count":        len(events),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	resp := gin.H{"pipeline": s.pipeline.Stats()}
	if s.pool != nil {
		resp["workers"] = s.pool.Metrics()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleResetStats(c *gin.Context) {
	s.pipeline.ResetStats()
	c.Status(http.StatusNoContent)
}
