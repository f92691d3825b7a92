package services

import (
	"errors"
	"fmt"
	"math"

	"github.com/commxr/commxr-go/internal/domain/entities/emotion"
)

// DefaultChangeThreshold is the minimum score swing reported as an emotion change
const DefaultChangeThreshold = 0.3

// ErrEmptyScores is returned when a score map has no labels
var ErrEmptyScores = errors.New("emotion scores are empty")

var emotionDescriptions = map[string]map[emotion.Intensity]string{
	emotion.Happy: {
		emotion.IntensityLow:    "partner seems a little happy",
		emotion.IntensityMedium: "partner looks happy",
		emotion.IntensityHigh:   "partner is delighted",
	},
	emotion.Sad: {
		emotion.IntensityLow:    "partner seems a little lonely",
		emotion.IntensityMedium: "partner seems sad",
		emotion.IntensityHigh:   "partner is very sad",
	},
	emotion.Angry: {
		emotion.IntensityLow:    "partner seems slightly dissatisfied",
		emotion.IntensityMedium: "partner seems angry",
		emotion.IntensityHigh:   "partner is very angry",
	},
	emotion.Surprised: {
		emotion.IntensityLow:    "partner is a little surprised",
		emotion.IntensityMedium: "partner seems surprised",
		emotion.IntensityHigh:   "partner is very surprised",
	},
	emotion.Confused: {
		emotion.IntensityLow:    "partner is slightly confused",
		emotion.IntensityMedium: "partner seems confused",
		emotion.IntensityHigh:   "partner is very confused",
	},
	emotion.Neutral: {
		emotion.IntensityLow:    "partner is calm",
		emotion.IntensityMedium: "partner is composed",
		emotion.IntensityHigh:   "partner is expressionless",
	},
	emotion.Fearful: {
		emotion.IntensityLow:    "partner seems a little anxious",
		emotion.IntensityMedium: "partner seems afraid",
		emotion.IntensityHigh:   "partner is very afraid",
	},
	emotion.Disgusted: {
		emotion.IntensityLow:    "partner seems slightly uncomfortable",
		emotion.IntensityMedium: "partner is showing disgust",
		emotion.IntensityHigh:   "partner is showing strong disgust",
	},
}

// neutral has no entry: there is nothing to suggest
var emotionSuggestions = map[string]string{
	emotion.Happy:     "keep the conversation going this way",
	emotion.Sad:       "showing empathy may help",
	emotion.Angry:     "pause, summarise, and ask for their view",
	emotion.Surprised: "a little more explanation may help",
	emotion.Confused:  "try clarifying what you just said",
	emotion.Fearful:   "offer some reassurance",
	emotion.Disgusted: "consider changing the topic",
}

var emotionChangeDescriptions = map[string]map[string]string{
	emotion.Happy: {
		emotion.Sad:       "partner's expression clouded over",
		emotion.Angry:     "partner's mood turned sour",
		emotion.Confused:  "partner started to look confused",
		emotion.Fearful:   "partner started to look anxious",
		emotion.Disgusted: "partner started to show discomfort",
		emotion.Neutral:   "partner calmed down",
		emotion.Surprised: "partner looks surprised",
	},
	emotion.Sad: {
		emotion.Happy:     "partner's expression brightened",
		emotion.Angry:     "partner seems to be getting angry",
		emotion.Confused:  "partner started to look confused",
		emotion.Fearful:   "partner looks even more anxious",
		emotion.Disgusted: "partner started to show discomfort",
		emotion.Neutral:   "partner calmed down",
		emotion.Surprised: "partner looks surprised",
	},
	emotion.Angry: {
		emotion.Happy:     "partner's mood improved",
		emotion.Sad:       "partner started to look sad",
		emotion.Confused:  "partner started to look confused",
		emotion.Fearful:   "partner started to look afraid",
		emotion.Disgusted: "partner started to show disgust",
		emotion.Neutral:   "partner calmed down",
		emotion.Surprised: "partner looks surprised",
	},
	emotion.Confused: {
		emotion.Happy:     "partner understood and looks pleased",
		emotion.Sad:       "partner started to look sad",
		emotion.Angry:     "partner seems to be getting angry",
		emotion.Fearful:   "partner started to look anxious",
		emotion.Disgusted: "partner started to show discomfort",
		emotion.Neutral:   "partner calmed down",
		emotion.Surprised: "partner looks surprised",
	},
	emotion.Neutral: {
		emotion.Happy:     "partner's expression brightened",
		emotion.Sad:       "partner's expression clouded over",
		emotion.Angry:     "partner seems to be getting angry",
		emotion.Confused:  "partner started to look confused",
		emotion.Fearful:   "partner started to look anxious",
		emotion.Disgusted: "partner started to show discomfort",
		emotion.Surprised: "partner looks surprised",
	},
	emotion.Fearful: {
		emotion.Happy:     "partner is relieved and looks pleased",
		emotion.Sad:       "partner started to look sad",
		emotion.Angry:     "partner seems to be getting angry",
		emotion.Confused:  "partner started to look confused",
		emotion.Disgusted: "partner started to show discomfort",
		emotion.Neutral:   "partner calmed down",
		emotion.Surprised: "partner looks surprised",
	},
	emotion.Disgusted: {
		emotion.Happy:     "partner's expression brightened",
		emotion.Sad:       "partner started to look sad",
		emotion.Angry:     "partner seems to be getting angry",
		emotion.Confused:  "partner started to look confused",
		emotion.Fearful:   "partner started to look anxious",
		emotion.Neutral:   "partner calmed down",
		emotion.Surprised: "partner looks surprised",
	},
	emotion.Surprised: {
		emotion.Happy:     "partner started to look happy",
		emotion.Sad:       "partner started to look sad",
		emotion.Angry:     "partner seems to be getting angry",
		emotion.Confused:  "partner started to look confused",
		emotion.Fearful:   "partner started to look anxious",
		emotion.Disgusted: "partner started to show discomfort",
		emotion.Neutral:   "partner calmed down",
	},
}

// EmotionInterpreter turns raw score maps into readable interpretations. It holds no state.
type EmotionInterpreter struct{}

// NewEmotionInterpreter creates an interpreter
func NewEmotionInterpreter() *EmotionInterpreter {
	return &EmotionInterpreter{}
}

// PrimaryEmotion returns the highest scoring label. Equal scores resolve to the
// lexicographically smallest label so the result does not depend on map order.
func PrimaryEmotion(scores emotion.Scores) (string, error) {
	if len(scores) == 0 {
		return "", ErrEmptyScores
	}

	best := ""
	bestScore := math.Inf(-1)
	for label, score := range scores {
		if score > bestScore || (score == bestScore && label < best) {
			best, bestScore = label, score
		}
	}
	return best, nil
}

// IntensityFor buckets a score: <0.4 low, <0.7 medium, otherwise high
func IntensityFor(score float64) emotion.Intensity {
	switch {
	case score < 0.4:
		return emotion.IntensityLow
	case score < 0.7:
		return emotion.IntensityMedium
	default:
		return emotion.IntensityHigh
	}
}

// Interpret derives label, intensity, description and suggestion from scores
func (e *EmotionInterpreter) Interpret(scores emotion.Scores) (emotion.Interpretation, error) {
	primary, err := PrimaryEmotion(scores)
	if err != nil {
		return emotion.Interpretation{}, err
	}

	intensity := IntensityFor(scores[primary])
	out := emotion.Interpretation{
		PrimaryEmotion: primary,
		Intensity:      intensity,
		Description:    describeEmotion(primary, intensity),
	}
	if s, ok := emotionSuggestions[primary]; ok {
		suggestion := s
		out.Suggestion = &suggestion
	}
	return out, nil
}

// DetectChange reports a shift of primary emotion between two snapshots. Shifts
// where neither the new nor the old primary moved by threshold are treated as noise.
func (e *EmotionInterpreter) DetectChange(previous, current emotion.Scores, threshold float64) *emotion.Change {
	prevPrimary, err := PrimaryEmotion(previous)
	if err != nil {
		return nil
	}
	currPrimary, err := PrimaryEmotion(current)
	if err != nil {
		return nil
	}
	if prevPrimary == currPrimary {
		return nil
	}

	prevScore := previous[prevPrimary]
	currScore := current[currPrimary]
	if math.Abs(currScore-prevScore) < threshold && math.Abs(prevScore-current[prevPrimary]) < threshold {
		return nil
	}

	return &emotion.Change{
		FromEmotion: prevPrimary,
		ToEmotion:   currPrimary,
		Description: describeChange(prevPrimary, currPrimary),
	}
}

func describeEmotion(label string, intensity emotion.Intensity) string {
	if byIntensity, ok := emotionDescriptions[label]; ok {
		if d, ok := byIntensity[intensity]; ok {
			return d
		}
	}
	return fmt.Sprintf("partner is in a %s state", label)
}

func describeChange(from, to string) string {
	if byTarget, ok := emotionChangeDescriptions[from]; ok {
		if d, ok := byTarget[to]; ok {
			return d
		}
	}
	return fmt.Sprintf("partner's emotion changed from %s to %s", from, to)
}
