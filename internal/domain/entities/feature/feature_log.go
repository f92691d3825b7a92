// Package feature defines out-of-band feature batches sent by the device.
package feature

import "time"

// StatusAccepted is reported for every stored batch
const StatusAccepted = "accepted"

// Log is one persisted feature batch
type Log struct {
	ID              string             `json:"id"`
	SessionID       *string            `json:"session_id"`
	ReceivedAt      time.Time          `json:"received_at"`
	ClientTimestamp *time.Time         `json:"client_timestamp,omitempty"`
	Facial          map[string]float64 `json:"facial,omitempty"`
	Gaze            map[string]float64 `json:"gaze,omitempty"`
	Voice           map[string]float64 `json:"voice,omitempty"`
	Extras          map[string]any     `json:"extras,omitempty"`
}
