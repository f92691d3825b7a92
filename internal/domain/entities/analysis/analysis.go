// Package analysis defines the values flowing through the analysis pipeline:
// transcription output, generated suggestions and the assembled reply.
package analysis

import (
	"time"

	"github.com/commxr/commxr-go/internal/domain/entities/emotion"
)

// ReplyType is the realtime message type of an analysis reply
const ReplyType = "ANALYSIS_RESPONSE"

// AudioFormat enumerates accepted audio encodings
type AudioFormat string

const (
	AudioWAV  AudioFormat = "wav"
	AudioOpus AudioFormat = "opus"
	AudioPCM  AudioFormat = "pcm"
)

// ParseAudioFormat returns the format for s, defaulting to wav when empty
func ParseAudioFormat(s string) (AudioFormat, bool) {
	switch AudioFormat(s) {
	case "":
		return AudioWAV, true
	case AudioWAV, AudioOpus, AudioPCM:
		return AudioFormat(s), true
	default:
		return "", false
	}
}

// Transcription is the output of a speech-to-text backend
type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	DurationMs int64   `json:"duration_ms"`
}

// Suggestion is one candidate response for the wearer
type Suggestion struct {
	Text   string `json:"text"`
	Intent string `json:"intent"`
}

// GenerativeResult is a validated generator answer: two suggestions with distinct intents
type GenerativeResult struct {
	SituationAnalysis string        `json:"situation_analysis"`
	Responses         [2]Suggestion `json:"responses"`
}

// Reply is the ANALYSIS_RESPONSE pushed back over the realtime channel
type Reply struct {
	Type              string                 `json:"type"`
	Timestamp         time.Time              `json:"timestamp"`
	Emotion           emotion.Interpretation `json:"emotion"`
	EmotionChange     *emotion.Change        `json:"emotion_change"`
	Transcription     *Transcription         `json:"transcription"`
	Suggestions       []Suggestion           `json:"suggestions"`
	SituationAnalysis string                 `json:"situation_analysis"`
	ProcessingTimeMs  int64                  `json:"processing_time_ms"`
}
