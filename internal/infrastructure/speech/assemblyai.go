// Package speech adapts speech-to-text backends to the Transcriber port.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/commxr/commxr-go/internal/domain/entities/analysis"
	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
)

// AssemblyAITranscriber uploads a clip and waits for its transcript
type AssemblyAITranscriber struct {
	client      *assemblyai.Client
	language    string
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

var _ providers.Transcriber = (*AssemblyAITranscriber)(nil)

// NewAssemblyAITranscriber creates a transcriber. language is an AssemblyAI
// language code such as "ja" or "en".
func NewAssemblyAITranscriber(apiKey, language string, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) (*AssemblyAITranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ASSEMBLYAI_API_KEY is required for transcription")
	}
	if language == "" {
		language = "ja"
	}
	return &AssemblyAITranscriber{
		client:      assemblyai.NewClient(apiKey),
		language:    language,
		logger:      logger,
		perfTracker: perfTracker,
	}, nil
}

// Transcribe sends audio to AssemblyAI and blocks until the transcript is
// ready or ctx expires
func (t *AssemblyAITranscriber) Transcribe(ctx context.Context, audio []byte, format analysis.AudioFormat) (*analysis.Transcription, error) {
	marker := t.perfTracker.StartOperation("speech:transcribe", "")
	defer marker.Complete()
	marker.AddMetadata("bytes", len(audio))

	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio clip")
	}

	params := &assemblyai.TranscriptOptionalParams{
		LanguageCode: assemblyai.TranscriptLanguageCode(t.language),
	}

	t.logger.Speech().Debug("Submitting audio for transcription", "bytes", len(audio), "format", string(format), "language", t.language)
	transcript, err := t.client.Transcripts.TranscribeFromReader(ctx, bytes.NewReader(audio), params)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("assemblyai transcription failed: %w", err)
	}
	if transcript.Status == assemblyai.TranscriptStatusError {
		reason := "unknown error"
		if transcript.Error != nil {
			reason = *transcript.Error
		}
		err := fmt.Errorf("assemblyai transcription failed: %s", reason)
		marker.SetError(err)
		return nil, err
	}

	result := &analysis.Transcription{
		Text:       strings.TrimSpace(assemblyai.ToString(transcript.Text)),
		Confidence: assemblyai.ToFloat64(transcript.Confidence),
		Language:   t.language,
		DurationMs: secondsToMs(transcript.AudioDuration),
	}
	marker.SetSuccess(true)
	t.logger.Speech().Info("Transcription completed",
		"chars", len(result.Text), "confidence", result.Confidence, "duration", marker.Elapsed())
	return result, nil
}

func secondsToMs[T int64 | float64](seconds *T) int64 {
	if seconds == nil {
		return 0
	}
	return int64(float64(*seconds) * 1000)
}
