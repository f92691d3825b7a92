// Package conversation defines utterances recorded in a session's memory.
package conversation

import "time"

// Speaker attributes an utterance to the device wearer or the person they talk to
type Speaker string

const (
	SpeakerSelf    Speaker = "self"
	SpeakerPartner Speaker = "partner"
)

// Valid reports whether s is a known speaker
func (s Speaker) Valid() bool {
	return s == SpeakerSelf || s == SpeakerPartner
}

// EmotionContext is the emotion observed when the utterance was recorded
type EmotionContext struct {
	PrimaryEmotion string             `json:"primary_emotion"`
	EmotionScores  map[string]float64 `json:"emotion_scores"`
}

// Utterance is one recorded turn. It is never mutated after being appended.
type Utterance struct {
	ID             string          `json:"id"`
	Speaker        Speaker         `json:"speaker"`
	Text           string          `json:"text"`
	Timestamp      time.Time       `json:"timestamp"`
	EmotionContext *EmotionContext `json:"emotion_context,omitempty"`
}
