package models

import "time"

// DrivingEvent is a single vehicle observation at a location.
// Events are immutable once stored.
type DrivingEvent struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	IsSafeDriving bool      `json:"isSafeDriving"`
	VehicleID     string    `json:"vehicleID"`
	LocationType  string    `json:"locationType"`
}

// EventIngestRequest is the POST /event payload.
// timestamp is optional; the server time is used when it is omitted.
type EventIngestRequest struct {
	Timestamp     string `json:"timestamp,omitempty"`
	IsSafeDriving *bool  `json:"isSafeDriving" binding:"required"`
	VehicleID     string `json:"vehicleID"`
	LocationType  string `json:"locationType" binding:"required"`
}

// EventIngestResponse is returned by POST /event.
type EventIngestResponse struct {
	Message string `json:"message"`
	EventID string `json:"eventId"`
}
