package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/curbfleet/dispatch/internal/api/dto"
	"github.com/curbfleet/dispatch/internal/dispatch"
	"github.com/curbfleet/dispatch/internal/feed"
	"github.com/curbfleet/dispatch/internal/geo"
	"github.com/curbfleet/dispatch/internal/storage"
	"github.com/gin-gonic/gin"
)

const defaultHistoryPageSize = 50

// GetQueue handles GET /api/v1/couriers/:courier_id/queue
// Returns the courier's active queue: assigned jobs plus the recruitable
// pool, non-terminal only, in manual order.
func (h *JobHandler) GetQueue(c *gin.Context) {
	courierID := c.Param("courier_id")
	if !h.authorize(c, courierID) {
		return
	}

	jobs, err := h.store.ActiveQueue(c.Request.Context(), courierID)
	if err != nil {
		h.logger.Error("Failed to fetch queue", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch queue",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"courier_id": courierID,
		"jobs":       jobs,
	})
}

// Transition handles POST /api/v1/jobs/:job_id/transition
// Applies one courier-actor status change. Pickup confirmation batches across
// the courier's same-merchant ready jobs; delivery confirmation enforces the
// recipient name and dropoff proximity.
func (h *JobHandler) Transition(c *gin.Context) {
	jobID := c.Param("job_id")
	courierID := CallerID(c)

	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid transition request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	ctx := c.Request.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, dispatch.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Failed to load job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return
	}

	// Accepting binds the job; every other change requires the job to be
	// this courier's already.
	if req.Status != dispatch.StatusAccepted {
		if job.CourierID == nil || *job.CourierID != courierID {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "job does not belong to the caller",
			})
			return
		}
	}

	if err := dispatch.CanTransition(job.Status, req.Status, dispatch.ActorCourier); err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "invalid status transition",
			"from":  job.Status,
			"to":    req.Status,
		})
		return
	}

	ids, err := h.applyTransition(c, job, courierID, req)
	if err != nil {
		return // response already written
	}

	for _, id := range ids {
		if err := h.publisher.JobChanged(ctx, courierID, id, feed.OpUpdate, req.Status); err != nil {
			h.logger.Error("Failed to publish job event",
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	c.JSON(http.StatusOK, dto.TransitionResponse{
		JobIDs: ids,
		Status: req.Status,
	})
}

func (h *JobHandler) applyTransition(c *gin.Context, job *dispatch.Job, courierID string, req dto.TransitionRequest) ([]string, error) {
	ctx := c.Request.Context()

	switch req.Status {
	case dispatch.StatusAccepted:
		if err := h.store.AssignCourier(ctx, job.ID, courierID); err != nil {
			h.logger.Error("Failed to assign courier", slog.String("error", err.Error()))
			c.JSON(http.StatusConflict, gin.H{"error": "job already assigned"})
			return nil, err
		}

	case dispatch.StatusPickedUp:
		ids, err := h.store.BatchPickup(ctx, courierID, job.MerchantID)
		if err != nil {
			h.logger.Error("Failed to batch pickup", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update job"})
			return nil, err
		}
		return ids, nil

	case dispatch.StatusDelivered:
		var pos *geo.Point
		if req.Latitude != nil && req.Longitude != nil {
			pos = &geo.Point{Lat: *req.Latitude, Lng: *req.Longitude}
		}
		if err := dispatch.ValidateDelivery(job, req.RecipientName, pos); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, err
		}
	}

	if err := h.store.UpdateJobStatus(ctx, job.ID, req.Status, req.RecipientName); err != nil {
		h.logger.Error("Failed to update job status", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update job"})
		return nil, err
	}

	return []string{job.ID}, nil
}

// Reorder handles PUT /api/v1/couriers/:courier_id/sequences
// Persists a fresh 1-based sequence for every job in the courier's new
// ordering, one row per entry.
func (h *JobHandler) Reorder(c *gin.Context) {
	courierID := c.Param("courier_id")
	if !h.authorize(c, courierID) {
		return
	}

	var req dto.ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Sequences) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "sequences are required",
		})
		return
	}

	ctx := c.Request.Context()
	for _, entry := range req.Sequences {
		if err := h.store.UpdateSequence(ctx, entry.JobID, entry.Sequence); err != nil {
			h.logger.Error("Failed to persist sequence",
				slog.String("job_id", entry.JobID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":  "Failed to persist ordering",
				"job_id": entry.JobID,
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"updated": len(req.Sequences)})
}

// GetHistory handles GET /api/v1/couriers/:courier_id/history
// Keyset-paginated position history, newest first.
func (h *JobHandler) GetHistory(c *gin.Context) {
	courierID := c.Param("courier_id")
	if !h.authorize(c, courierID) {
		return
	}

	pageSize := defaultHistoryPageSize
	if raw := c.Query("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
			return
		}
		pageSize = parsed
	}

	cursor, err := DecodeHistoryCursor(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
		return
	}

	records, err := h.store.ListHistory(c.Request.Context(), storage.HistoryFilter{
		CourierID: courierID,
		PageSize:  pageSize,
		Cursor:    cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list history"})
		return
	}

	resp := dto.HistoryResponse{}
	if len(records) > pageSize {
		last := records[pageSize-1]
		resp.NextCursor = EncodeHistoryCursor(&storage.HistoryCursor{
			CreatedAt: last.CreatedAt,
			RecordID:  last.ID,
		})
		records = records[:pageSize]
	}

	resp.Records = make([]dto.HistoryRecord, 0, len(records))
	for _, r := range records {
		resp.Records = append(resp.Records, dto.HistoryRecord{
			RecordID:  r.ID,
			JobID:     r.JobID,
			Latitude:  r.Lat,
			Longitude: r.Lng,
			CreatedAt: r.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// GetStats handles GET /api/v1/couriers/:courier_id/stats
// Today's earnings and delivery count.
func (h *JobHandler) GetStats(c *gin.Context) {
	courierID := c.Param("courier_id")
	if !h.authorize(c, courierID) {
		return
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats, err := h.store.DailyStats(c.Request.Context(), courierID, midnight)
	if err != nil {
		h.logger.Error("Failed to compute daily stats", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// SetOnline handles PUT /api/v1/couriers/:courier_id/online
// Toggles the courier's own online flag.
func (h *JobHandler) SetOnline(c *gin.Context) {
	courierID := c.Param("courier_id")
	if !h.authorize(c, courierID) {
		return
	}

	var req dto.OnlineRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Online == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "online flag is required"})
		return
	}

	if err := h.store.SetCourierOnline(c.Request.Context(), courierID, *req.Online); err != nil {
		h.logger.Error("Failed to toggle online flag", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"courier_id": courierID,
		"online":     *req.Online,
	})
}

// authorize rejects callers acting on someone else's courier id.
func (h *JobHandler) authorize(c *gin.Context, courierID string) bool {
	if courierID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "courier_id is required"})
		return false
	}
	if CallerID(c) != courierID {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "credential identity does not match courier_id",
		})
		return false
	}
	return true
}
