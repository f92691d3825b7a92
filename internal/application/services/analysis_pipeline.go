package services

import (
	"context"
	"fmt"
	"time"

	"github.com/commxr/commxr-go/internal/domain/entities/analysis"
	"github.com/commxr/commxr-go/internal/domain/entities/conversation"
	"github.com/commxr/commxr-go/internal/domain/entities/emotion"
	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
)

const fallbackDescription = "emotion could not be interpreted"

// Responder produces the two suggestions for a moment of the conversation
type Responder interface {
	Generate(ctx context.Context, history []conversation.Utterance, interp emotion.Interpretation, partnerLast string) (*analysis.GenerativeResult, error)
}

// PipelineConfig tunes the analysis pipeline
type PipelineConfig struct {
	ContextTurns         int
	TranscriptionTimeout time.Duration
	ChangeThreshold      float64
}

// AnalysisPipeline turns one analysis request into one reply. Transcription,
// memory and interpretation degrade on failure; only generation errors propagate.
type AnalysisPipeline struct {
	transcriber providers.Transcriber
	memory      *ConversationService
	interpreter *EmotionInterpreter
	responder   Responder
	config      PipelineConfig
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	now         Clock
}

// NewAnalysisPipeline wires the pipeline stages. transcriber may be nil.
func NewAnalysisPipeline(transcriber providers.Transcriber, memory *ConversationService, interpreter *EmotionInterpreter, responder Responder, config PipelineConfig, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AnalysisPipeline {
	if config.ContextTurns <= 0 {
		config.ContextTurns = 10
	}
	if config.ChangeThreshold <= 0 {
		config.ChangeThreshold = DefaultChangeThreshold
	}
	return &AnalysisPipeline{
		transcriber: transcriber,
		memory:      memory,
		interpreter: interpreter,
		responder:   responder,
		config:      config,
		logger:      logger,
		perfTracker: perfTracker,
		now:         time.Now,
	}
}

// Process runs transcription, memory update, interpretation, change detection
// and generation for one request.
func (p *AnalysisPipeline) Process(ctx context.Context, sessionID string, scores emotion.Scores, audio []byte, format analysis.AudioFormat) (*analysis.Reply, error) {
	start := p.now()
	marker := p.perfTracker.StartOperation("pipeline:process", sessionID)
	defer marker.Complete()
	log := p.logger.WithSession(logging.ChannelPipeline, sessionID)

	transcription := p.transcribe(ctx, sessionID, audio, format)

	previous, hadPrevious := p.memory.LastBy(sessionID, speakerPtr(conversation.SpeakerPartner))
	partnerLast := ""
	if transcription != nil && transcription.Text != "" {
		partnerLast = transcription.Text
		p.remember(sessionID, transcription.Text, scores)
	}

	interp := p.interpret(sessionID, scores)

	var change *emotion.Change
	if hadPrevious && previous.EmotionContext != nil && len(previous.EmotionContext.EmotionScores) > 0 && len(scores) > 0 {
		change = p.interpreter.DetectChange(previous.EmotionContext.EmotionScores, scores, p.config.ChangeThreshold)
	}

	history := p.memory.Recent(sessionID, p.config.ContextTurns)

	genMarker := p.perfTracker.StartOperation("pipeline:generate", sessionID)
	result, err := p.responder.Generate(ctx, history, interp, partnerLast)
	if err != nil {
		genMarker.SetError(err)
		genMarker.Complete()
		marker.SetError(err)
		log.Error("Generation failed", "error", err, "historyTurns", len(history))
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	genMarker.Complete()

	finished := p.now()
	reply := &analysis.Reply{
		Type:              analysis.ReplyType,
		Timestamp:         finished.UTC(),
		Emotion:           interp,
		EmotionChange:     change,
		Transcription:     transcription,
		Suggestions:       result.Responses[:],
		SituationAnalysis: result.SituationAnalysis,
		ProcessingTimeMs:  finished.Sub(start).Milliseconds(),
	}

	log.Info("Analysis completed",
		"primaryEmotion", interp.PrimaryEmotion,
		"transcribed", transcription != nil,
		"emotionChanged", change != nil,
		"processingMs", reply.ProcessingTimeMs)
	return reply, nil
}

func (p *AnalysisPipeline) transcribe(ctx context.Context, sessionID string, audio []byte, format analysis.AudioFormat) *analysis.Transcription {
	if len(audio) == 0 || p.transcriber == nil {
		return nil
	}

	marker := p.perfTracker.StartOperation("pipeline:transcribe", sessionID)
	defer marker.Complete()
	marker.AddMetadata("bytes", len(audio))
	marker.AddMetadata("format", string(format))

	if p.config.TranscriptionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TranscriptionTimeout)
		defer cancel()
	}

	result, err := p.transcriber.Transcribe(ctx, audio, format)
	if err != nil {
		marker.SetError(err)
		p.logger.WithSession(logging.ChannelSpeech, sessionID).Warn("Transcription failed, continuing without transcript", "error", err)
		return nil
	}
	return result
}

// remember appends the partner's utterance. Failures, including panics, are
// logged and never abort the request.
func (p *AnalysisPipeline) remember(sessionID, text string, scores emotion.Scores) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithSession(logging.ChannelPipeline, sessionID).Error("Failed to record utterance", "panic", r)
		}
	}()

	primary := emotion.Neutral
	if label, err := PrimaryEmotion(scores); err == nil {
		primary = label
	}
	p.memory.Append(sessionID, conversation.SpeakerPartner, text, &conversation.EmotionContext{
		PrimaryEmotion: primary,
		EmotionScores:  scores,
	}, time.Time{})
}

func (p *AnalysisPipeline) interpret(sessionID string, scores emotion.Scores) emotion.Interpretation {
	interp, err := p.interpreter.Interpret(scores)
	if err != nil {
		p.logger.WithSession(logging.ChannelPipeline, sessionID).Warn("Emotion interpretation failed, using neutral", "error", err)
		return emotion.Interpretation{
			PrimaryEmotion: emotion.Neutral,
			Intensity:      emotion.IntensityMedium,
			Description:    fallbackDescription,
		}
	}
	return interp
}

func speakerPtr(s conversation.Speaker) *conversation.Speaker { return &s }
