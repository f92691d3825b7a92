package speech

import (
	"context"
	"testing"

	"github.com/commxr/commxr-go/internal/domain/entities/analysis"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssemblyAITranscriberRequiresKey(t *testing.T) {
	_, err := NewAssemblyAITranscriber("", "ja", logging.NewNopLogger(), performance.NewTracker(nil))
	assert.Error(t, err)
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	tr, err := NewAssemblyAITranscriber("key", "", logging.NewNopLogger(), performance.NewTracker(nil))
	require.NoError(t, err)
	assert.Equal(t, "ja", tr.language)

	_, err = tr.Transcribe(context.Background(), nil, analysis.AudioWAV)
	assert.Error(t, err)
}

func TestSecondsToMs(t *testing.T) {
	whole := int64(3)
	frac := 1.25
	assert.Equal(t, int64(3000), secondsToMs(&whole))
	assert.Equal(t, int64(1250), secondsToMs(&frac))
	assert.Equal(t, int64(0), secondsToMs[int64](nil))
}
