package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/curbfleet/dispatch/internal/api/dto"
	"github.com/curbfleet/dispatch/internal/dispatch"
	"github.com/curbfleet/dispatch/internal/geo"
	"github.com/curbfleet/dispatch/internal/storage"
	"github.com/gin-gonic/gin"
)

// NearDestinationMeters is the geofence below which a submitted job is
// flagged as approaching its dropoff.
const NearDestinationMeters = 200.0

// Ingest handles POST /api/v1/tracking
// Accepts one authenticated position report: profile update, history append,
// and the near-destination geofence check when a job id is submitted.
func (h *TrackingHandler) Ingest(c *gin.Context) {
	var req dto.TrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid tracking request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if req.CourierID == "" || req.Latitude == nil || req.Longitude == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "courier_id, latitude and longitude are required",
		})
		return
	}

	// The credential decides who the caller is, not the body.
	if caller := CallerID(c); caller != req.CourierID {
		h.logger.Warn("Tracking identity mismatch",
			slog.String("caller", caller),
			slog.String("submitted", req.CourierID),
		)
		c.JSON(http.StatusForbidden, gin.H{
			"error": "credential identity does not match courier_id",
		})
		return
	}

	ctx := c.Request.Context()
	lat, lng := *req.Latitude, *req.Longitude

	tel := storage.Telemetry{
		BatteryLevel: req.BatteryLevel,
		Charging:     req.IsCharging,
	}
	if err := h.store.UpdateCourierPosition(ctx, req.CourierID, lat, lng, tel); err != nil {
		h.logger.Error("Failed to update courier position", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to record position",
		})
		return
	}

	if err := h.store.AppendHistory(ctx, req.CourierID, req.JobID, lat, lng); err != nil {
		h.logger.Error("Failed to append position history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to record position",
		})
		return
	}

	near := false
	if req.JobID != nil {
		near = h.checkGeofence(c, *req.JobID, geo.Point{Lat: lat, Lng: lng})
	}

	c.JSON(http.StatusOK, dto.TrackingResponse{
		CourierID:       req.CourierID,
		NearDestination: near,
	})
}

// checkGeofence flags the job when the courier is inside the dropoff
// geofence. Failures are logged only; the report itself already succeeded.
func (h *TrackingHandler) checkGeofence(c *gin.Context, jobID string, pos geo.Point) bool {
	ctx := c.Request.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if !errors.Is(err, dispatch.ErrJobNotFound) {
			h.logger.Error("Failed to load job for geofence check",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		return false
	}

	dropoff, ok := job.Dropoff()
	if !ok {
		return false
	}

	if geo.Haversine(pos, dropoff) >= NearDestinationMeters {
		return false
	}

	if !job.NearDestination {
		if err := h.store.MarkNearDestination(ctx, jobID); err != nil {
			h.logger.Error("Failed to flag near destination",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	}

	return true
}
