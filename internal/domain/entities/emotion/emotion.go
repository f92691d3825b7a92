// Package emotion defines derived emotion values produced from score maps.
package emotion

// Scores maps an emotion label to a score in [0, 1]
type Scores map[string]float64

// Intensity buckets the primary score
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// Known labels
const (
	Happy     = "happy"
	Sad       = "sad"
	Angry     = "angry"
	Surprised = "surprised"
	Confused  = "confused"
	Neutral   = "neutral"
	Fearful   = "fearful"
	Disgusted = "disgusted"
)

// Interpretation is the human-readable reading of a score map
type Interpretation struct {
	PrimaryEmotion string    `json:"primary_emotion"`
	Intensity      Intensity `json:"intensity"`
	Description    string    `json:"description"`
	Suggestion     *string   `json:"suggestion"`
}

// Change describes a shift of the primary emotion between two snapshots
type Change struct {
	FromEmotion string `json:"from_emotion"`
	ToEmotion   string `json:"to_emotion"`
	Description string `json:"description"`
}
