package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/driving-alerts/internal/logging"
	"github.com/PratikDhanave/driving-alerts/internal/metrics"
	"github.com/PratikDhanave/driving-alerts/internal/models"
	"github.com/PratikDhanave/driving-alerts/internal/store"
)

// EvaluationTrigger starts an evaluation cycle without blocking the caller.
type EvaluationTrigger interface {
	Trigger()
}

// parseRFC3339 parses an RFC3339 timestamp and normalizes it to UTC.
func parseRFC3339(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// eventTime is the precision events are stored at; Postgres keeps microseconds.
func eventTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// RegisterEventRoutes registers the ingestion-path endpoint.
//
// POST /event
//   - Durable: returns success only after the store write completes
//   - Idempotent when Idempotency-Key is sent: a replay returns 200 and is not counted twice
//   - Rule evaluation is triggered after the write and never affects the response
func RegisterEventRoutes(r gin.IRoutes, st store.EventStore, trigger EvaluationTrigger, now func() time.Time) {
	log := logging.WithComponent("http")

	r.POST("/event", func(c *gin.Context) {
		var req models.EventIngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload: locationType and isSafeDriving are required"})
			return
		}

		ts := eventTime(now())
		if req.Timestamp != "" {
			parsed, err := parseRFC3339(req.Timestamp)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
				return
			}
			ts = eventTime(parsed)
		}

		event := models.DrivingEvent{
			ID:            c.GetHeader("Idempotency-Key"),
			Timestamp:     ts,
			IsSafeDriving: *req.IsSafeDriving,
			VehicleID:     req.VehicleID,
			LocationType:  req.LocationType,
		}

		id, err := st.InsertEvent(c.Request.Context(), event)
		if errors.Is(err, store.ErrDuplicateEvent) {
			c.JSON(http.StatusOK, models.EventIngestResponse{
				Message: "Driving event already recorded",
				EventID: id,
			})
			return
		}
		if errors.Is(err, store.ErrTimestampOutOfRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be between 1678 and 2262"})
			return
		}
		if err != nil {
			log.Error().Err(err).Str("location_type", event.LocationType).Msg("error adding driving event")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}

		metrics.EventsIngestedTotal.WithLabelValues(strconv.FormatBool(event.IsSafeDriving)).Inc()

		c.JSON(http.StatusCreated, models.EventIngestResponse{
			Message: "Driving event added successfully",
			EventID: id,
		})

		// The insert has been acknowledged; evaluation runs detached.
		trigger.Trigger()
	})
}
