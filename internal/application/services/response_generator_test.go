package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/commxr/commxr-go/internal/domain/apperrors"
	"github.com/commxr/commxr-go/internal/domain/entities/conversation"
	"github.com/commxr/commxr-go/internal/domain/entities/emotion"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAnswer = `{"situation_analysis":"partner is unsure about the plan","responses":[{"text":"Shall I go over it again?","intent":"clarify"},{"text":"What part feels unclear?","intent":"ask"}]}`

// scriptedBackend returns the queued errors first, then answer
type scriptedBackend struct {
	mu      sync.Mutex
	errs    []error
	answer  string
	calls   int
	prompts []string
}

func (b *scriptedBackend) Generate(_ context.Context, system, prompt string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.prompts = append(b.prompts, prompt)
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		return "", err
	}
	return b.answer, nil
}

func (b *scriptedBackend) Name() string { return "scripted" }

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestGenerator(backend *scriptedBackend, sleeper *recordingSleeper) *ResponseGenerator {
	g := NewResponseGenerator(backend, ResponseGeneratorConfig{CallTimeout: time.Second}, logging.NewNopLogger(), performance.NewTracker(nil))
	return g.WithSleeper(sleeper.Sleep)
}

func neutralInterpretation() emotion.Interpretation {
	return emotion.Interpretation{PrimaryEmotion: "neutral", Intensity: emotion.IntensityMedium, Description: "partner is composed"}
}

func TestGenerateRetriesThrottlingThenSucceeds(t *testing.T) {
	backend := &scriptedBackend{
		errs:   []error{errors.New("429 Too Many Requests"), errors.New("Resource exhausted: quota")},
		answer: validAnswer,
	}
	sleeper := &recordingSleeper{}

	result, err := newTestGenerator(backend, sleeper).Generate(context.Background(), nil, neutralInterpretation(), "hello")
	require.NoError(t, err)

	assert.Equal(t, 3, backend.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
	assert.Equal(t, "partner is unsure about the plan", result.SituationAnalysis)
	assert.Equal(t, "clarify", result.Responses[0].Intent)
	assert.Equal(t, "ask", result.Responses[1].Intent)
}

func TestGenerateRetriesExhausted(t *testing.T) {
	throttled := errors.New("Rate limit reached")
	backend := &scriptedBackend{errs: []error{throttled, throttled, throttled, throttled}}
	sleeper := &recordingSleeper{}

	_, err := newTestGenerator(backend, sleeper).Generate(context.Background(), nil, neutralInterpretation(), "")
	require.Error(t, err)

	assert.Equal(t, 3, backend.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.True(t, apperrors.Is(err, apperrors.KindUpstreamTransient))
}

func TestRetryDelayIsCapped(t *testing.T) {
	throttled := errors.New("429")
	backend := &scriptedBackend{errs: []error{throttled, throttled, throttled, throttled, throttled, throttled}}
	sleeper := &recordingSleeper{}

	g := newTestGenerator(backend, sleeper)
	g.config.Retry.MaxAttempts = 6

	_, err := g.Generate(context.Background(), nil, neutralInterpretation(), "")
	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}, sleeper.delays)
}

func TestGenerateFatalErrorIsNotRetried(t *testing.T) {
	backend := &scriptedBackend{errs: []error{errors.New("invalid api key")}}
	sleeper := &recordingSleeper{}

	_, err := newTestGenerator(backend, sleeper).Generate(context.Background(), nil, neutralInterpretation(), "")
	require.Error(t, err)
	assert.Equal(t, 1, backend.calls)
	assert.Empty(t, sleeper.delays)
	assert.True(t, apperrors.Is(err, apperrors.KindUpstreamFatal))
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
}

func TestGenerateRejectsIdenticalIntents(t *testing.T) {
	backend := &scriptedBackend{answer: `{"situation_analysis":"x","responses":[{"text":"a","intent":"empathy"},{"text":"b","intent":"empathy"}]}`}

	result, err := newTestGenerator(backend, &recordingSleeper{}).Generate(context.Background(), nil, neutralInterpretation(), "")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrDuplicateIntent)
	assert.True(t, apperrors.Is(err, apperrors.KindUpstreamFatal))
}

func TestGenerateHonoursCancellationDuringBackoff(t *testing.T) {
	backend := &scriptedBackend{errs: []error{errors.New("429"), errors.New("429"), errors.New("429")}}
	g := NewResponseGenerator(backend, ResponseGeneratorConfig{}, logging.NewNopLogger(), performance.NewTracker(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, nil, neutralInterpretation(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, backend.calls)
}

func TestParseGenerativeResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"plain", validAnswer, false},
		{"json fence", "```json\n" + validAnswer + "\n```", false},
		{"bare fence", "```\n" + validAnswer + "```", false},
		{"not json", "Sure! Here are two replies.", true},
		{"missing analysis", `{"responses":[{"text":"a","intent":"x"},{"text":"b","intent":"y"}]}`, true},
		{"missing responses", `{"situation_analysis":"x"}`, true},
		{"one response", `{"situation_analysis":"x","responses":[{"text":"a","intent":"x"}]}`, true},
		{"three responses", `{"situation_analysis":"x","responses":[{"text":"a","intent":"x"},{"text":"b","intent":"y"},{"text":"c","intent":"z"}]}`, true},
		{"mistyped text", `{"situation_analysis":"x","responses":[{"text":1,"intent":"x"},{"text":"b","intent":"y"}]}`, true},
		{"missing intent", `{"situation_analysis":"x","responses":[{"text":"a"},{"text":"b","intent":"y"}]}`, true},
		{"mistyped analysis", `{"situation_analysis":["x"],"responses":[{"text":"a","intent":"x"},{"text":"b","intent":"y"}]}`, true},
		{"unexpected field", `{"situation_analysis":"x","mood":"ok","responses":[{"text":"a","intent":"x"},{"text":"b","intent":"y"}]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseGenerativeResult(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, result)
				assert.ErrorIs(t, err, ErrMalformedResponse)
				assert.True(t, apperrors.Is(err, apperrors.KindUpstreamFatal))
				return
			}
			require.NoError(t, err)
			assert.Len(t, result.Responses, 2)
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	suggestion := "try clarifying what you just said"
	history := []conversation.Utterance{
		{Speaker: conversation.SpeakerPartner, Text: "I don't get it"},
		{Speaker: conversation.SpeakerSelf, Text: "Let me explain"},
	}
	interp := emotion.Interpretation{PrimaryEmotion: "confused", Intensity: emotion.IntensityHigh, Description: "partner is very confused", Suggestion: &suggestion}

	prompt := BuildUserPrompt(history, interp, "")
	assert.Contains(t, prompt, "- partner: I don't get it\n- self: Let me explain")
	assert.Contains(t, prompt, "Primary emotion: confused")
	assert.Contains(t, prompt, "Suggestion: "+suggestion)
	assert.Contains(t, prompt, NoUtterancePlaceholder)
	assert.Less(t, strings.Index(prompt, "## Conversation history"), strings.Index(prompt, "## Partner's last utterance"))
}

func TestIsThrottlingError(t *testing.T) {
	assert.True(t, IsThrottlingError(errors.New("HTTP 429")))
	assert.True(t, IsThrottlingError(errors.New("RATE LIMITED")))
	assert.True(t, IsThrottlingError(errors.New("Quota exceeded")))
	assert.False(t, IsThrottlingError(errors.New("bad request")))
	assert.False(t, IsThrottlingError(nil))
}

func TestGenerateSingleAttemptPolicyNeverWaits(t *testing.T) {
	backend := &scriptedBackend{errs: []error{errors.New("429")}}
	sleeper := &recordingSleeper{}

	g := newTestGenerator(backend, sleeper)
	g.config.Retry.MaxAttempts = 1

	_, err := g.Generate(context.Background(), nil, neutralInterpretation(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, backend.calls)
	assert.Empty(t, sleeper.delays)
}

func TestGenerateStopsWhenDeadlineCannotFitNextWait(t *testing.T) {
	backend := &scriptedBackend{errs: []error{errors.New("429"), errors.New("429"), errors.New("429")}}
	sleeper := &recordingSleeper{}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := newTestGenerator(backend, sleeper).Generate(ctx, nil, neutralInterpretation(), "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindUpstreamTransient))
	assert.Equal(t, 1, backend.calls)
	assert.Empty(t, sleeper.delays)
}

func TestTruncateKeepsWholeRunes(t *testing.T) {
	jp := strings.Repeat("会話", 150)

	out := truncate(jp, 200)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, 200, utf8.RuneCountInString(strings.TrimSuffix(out, "...")))
	assert.True(t, strings.HasSuffix(out, "..."))

	assert.Equal(t, "短い", truncate("短い", 200))
}
