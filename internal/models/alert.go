package models

import "time"

// Alert records that a location category crossed its unsafe-event threshold.
// Timestamp is the evaluation time of the cycle that raised it.
type Alert struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	LocationType string    `json:"locationType"`
}
