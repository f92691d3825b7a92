package services

import (
	"testing"

	"github.com/commxr/commxr-go/internal/domain/entities/emotion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpretConfusedHigh(t *testing.T) {
	got, err := NewEmotionInterpreter().Interpret(emotion.Scores{"confused": 0.8, "neutral": 0.1, "happy": 0.1})
	require.NoError(t, err)

	assert.Equal(t, "confused", got.PrimaryEmotion)
	assert.Equal(t, emotion.IntensityHigh, got.Intensity)
	assert.Contains(t, got.Description, "confused")
	require.NotNil(t, got.Suggestion)
	assert.NotEmpty(t, *got.Suggestion)
}

func TestInterpretNeutralHasNoSuggestion(t *testing.T) {
	got, err := NewEmotionInterpreter().Interpret(emotion.Scores{"neutral": 0.8, "happy": 0.1, "sad": 0.1})
	require.NoError(t, err)
	assert.Equal(t, "neutral", got.PrimaryEmotion)
	assert.Nil(t, got.Suggestion)
}

func TestInterpretIntensityBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  emotion.Intensity
	}{
		{0.0, emotion.IntensityLow},
		{0.39, emotion.IntensityLow},
		{0.4, emotion.IntensityMedium},
		{0.69, emotion.IntensityMedium},
		{0.7, emotion.IntensityHigh},
		{1.0, emotion.IntensityHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IntensityFor(tt.score), "score %v", tt.score)
	}
}

func TestInterpretUnknownLabel(t *testing.T) {
	got, err := NewEmotionInterpreter().Interpret(emotion.Scores{"bored": 0.5})
	require.NoError(t, err)
	assert.Equal(t, "partner is in a bored state", got.Description)
	assert.Nil(t, got.Suggestion)
}

func TestInterpretEmptyScores(t *testing.T) {
	_, err := NewEmotionInterpreter().Interpret(emotion.Scores{})
	assert.ErrorIs(t, err, ErrEmptyScores)
}

func TestPrimaryEmotionTieBreakIsDeterministic(t *testing.T) {
	for i := 0; i < 50; i++ {
		got, err := PrimaryEmotion(emotion.Scores{"sad": 0.5, "angry": 0.5, "happy": 0.2})
		require.NoError(t, err)
		assert.Equal(t, "angry", got)
	}
}

func TestDetectChange(t *testing.T) {
	interp := NewEmotionInterpreter()

	change := interp.DetectChange(
		emotion.Scores{"happy": 0.7, "neutral": 0.3},
		emotion.Scores{"happy": 0.2, "confused": 0.7, "neutral": 0.1},
		DefaultChangeThreshold,
	)
	require.NotNil(t, change)
	assert.Equal(t, "happy", change.FromEmotion)
	assert.Equal(t, "confused", change.ToEmotion)
	assert.NotEmpty(t, change.Description)
}

func TestDetectChangeSamePrimary(t *testing.T) {
	interp := NewEmotionInterpreter()
	assert.Nil(t, interp.DetectChange(
		emotion.Scores{"happy": 0.95, "sad": 0.05},
		emotion.Scores{"happy": 0.35, "sad": 0.3, "neutral": 0.3},
		DefaultChangeThreshold,
	))
}

func TestDetectChangeSuppressesNoise(t *testing.T) {
	interp := NewEmotionInterpreter()
	assert.Nil(t, interp.DetectChange(
		emotion.Scores{"happy": 0.45, "neutral": 0.4},
		emotion.Scores{"happy": 0.4, "neutral": 0.45},
		DefaultChangeThreshold,
	))
}

func TestDetectChangeGenericTemplate(t *testing.T) {
	change := NewEmotionInterpreter().DetectChange(
		emotion.Scores{"bored": 0.9},
		emotion.Scores{"bored": 0.1, "happy": 0.9},
		DefaultChangeThreshold,
	)
	require.NotNil(t, change)
	assert.Equal(t, "partner's emotion changed from bored to happy", change.Description)
}

func TestDetectChangeEmptySnapshot(t *testing.T) {
	assert.Nil(t, NewEmotionInterpreter().DetectChange(emotion.Scores{}, emotion.Scores{"happy": 1}, DefaultChangeThreshold))
}
