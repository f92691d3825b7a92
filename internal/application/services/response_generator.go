package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff"
	"github.com/commxr/commxr-go/internal/domain/apperrors"
	"github.com/commxr/commxr-go/internal/domain/entities/analysis"
	"github.com/commxr/commxr-go/internal/domain/entities/conversation"
	"github.com/commxr/commxr-go/internal/domain/entities/emotion"
	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
)

// NoUtterancePlaceholder stands in for the partner's last utterance when nothing was heard
const NoUtterancePlaceholder = "(no utterance)"

var (
	// ErrRetriesExhausted is returned after every attempt failed with a throttling error
	ErrRetriesExhausted = errors.New("rate limit retries exhausted")
	// ErrMalformedResponse is returned when the backend answer does not match the expected shape
	ErrMalformedResponse = errors.New("malformed generator response")
	// ErrDuplicateIntent is returned when both suggestions carry the same intent
	ErrDuplicateIntent = errors.New("suggestions must have distinct intents")
)

const systemPromptTemplate = `You are an assistant that supports face-to-face communication.
Help the user (the wearer of an XR device) communicate smoothly with the person they are talking to
by proposing suitable replies.

## Input
- Conversation history
- The partner's current emotional state
- The partner's last utterance

## Output format
Answer with JSON in exactly this shape:

{
    "situation_analysis": "one short sentence describing the current situation",
    "responses": [
        {"text": "reply 1", "intent": "the intent of this reply"},
        {"text": "reply 2", "intent": "the intent of this reply"}
    ]
}

## Rules
- Always propose exactly two replies
- The two replies must have different intents and approaches
- Take the partner's emotional state into account
- Write the situation analysis and replies in %s
- Output nothing except the JSON object`

// RetryPolicy bounds retries of throttled backend calls
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy is 3 attempts with 1s, 2s, 4s... delays capped at 10s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
	}
}

// newBackOff returns the wait schedule for one call: MaxAttempts-1 waits
// without jitter, stopped when ctx is done.
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOffContext {
	if p.MaxAttempts <= 1 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialDelay
	exp.Multiplier = p.Multiplier
	exp.MaxInterval = p.MaxDelay
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	schedule := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
	schedule.Reset()
	return schedule
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ResponseGeneratorConfig configures the responder
type ResponseGeneratorConfig struct {
	Language    string
	CallTimeout time.Duration
	Retry       RetryPolicy
}

// ResponseGenerator builds the prompt, calls the generative backend with bounded
// retry and validates the structured answer.
type ResponseGenerator struct {
	backend      providers.TextGenerator
	config       ResponseGeneratorConfig
	systemPrompt string
	sleep        Sleeper
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
}

// NewResponseGenerator creates a responder over the given backend
func NewResponseGenerator(backend providers.TextGenerator, config ResponseGeneratorConfig, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *ResponseGenerator {
	if config.Language == "" {
		config.Language = "Japanese"
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = DefaultRetryPolicy()
	}
	if config.Retry.Multiplier < 1 {
		config.Retry.Multiplier = DefaultRetryPolicy().Multiplier
	}
	return &ResponseGenerator{
		backend:      backend,
		config:       config,
		systemPrompt: fmt.Sprintf(systemPromptTemplate, config.Language),
		sleep:        contextSleep,
		logger:       logger,
		perfTracker:  perfTracker,
	}
}

// WithSleeper replaces the backoff sleeper. Intended for tests.
func (g *ResponseGenerator) WithSleeper(s Sleeper) *ResponseGenerator {
	g.sleep = s
	return g
}

// Generate returns two suggestions for the current moment of the conversation
func (g *ResponseGenerator) Generate(ctx context.Context, history []conversation.Utterance, interp emotion.Interpretation, partnerLast string) (*analysis.GenerativeResult, error) {
	prompt := BuildUserPrompt(history, interp, partnerLast)

	raw, err := g.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result, err := ParseGenerativeResult(raw)
	if err != nil {
		g.logger.LLM().Error("Generator answer rejected", "error", err, "response", truncate(raw, 200))
		return nil, err
	}
	return result, nil
}

// Ping sends a minimal prompt to check that the backend answers within timeout
func (g *ResponseGenerator) Ping(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := g.backend.Generate(ctx, "Reply with the single word: pong", "ping")
	if err != nil {
		g.logger.LLM().Warn("Model reachability check failed", "backend", g.backend.Name(), "error", err)
		return false
	}
	return strings.TrimSpace(out) != ""
}

// Backend returns the configured backend name
func (g *ResponseGenerator) Backend() string {
	return g.backend.Name()
}

// callWithRetry retries throttled calls on the policy's backoff schedule. Any
// other error is returned at once. The schedule stops early when ctx is done
// or its deadline leaves no room for the next wait.
func (g *ResponseGenerator) callWithRetry(ctx context.Context, prompt string) (string, error) {
	const op = "generator.call"
	policy := g.config.Retry
	schedule := policy.newBackOff(ctx)
	var lastErr error

	for attempt := 1; ; attempt++ {
		marker := g.perfTracker.StartOperation("llm:attempt", "")
		marker.AddMetadata("attempt", attempt)
		marker.AddMetadata("backend", g.backend.Name())

		raw, err := g.callOnce(ctx, prompt)
		if err == nil {
			marker.Complete()
			g.logger.LLM().Debug("Generator call succeeded", "attempt", attempt, "duration", marker.Duration)
			return raw, nil
		}
		marker.SetError(err)
		marker.Complete()
		lastErr = err

		if !IsThrottlingError(err) {
			g.logger.LLM().Error("Generator call failed", "attempt", attempt, "error", err)
			return "", apperrors.Wrap(apperrors.KindUpstreamFatal, op, err)
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", apperrors.Wrap(apperrors.KindUpstreamTransient, op, ctxErr)
			}
			break
		}

		g.logger.LLM().Warn("Generator throttled, backing off",
			"attempt", attempt, "maxAttempts", policy.MaxAttempts, "delay", delay.String())
		if err := g.sleep(ctx, delay); err != nil {
			return "", apperrors.Wrap(apperrors.KindUpstreamTransient, op, err)
		}
	}

	return "", apperrors.Wrap(apperrors.KindUpstreamTransient, op, fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr))
}

func (g *ResponseGenerator) callOnce(ctx context.Context, prompt string) (string, error) {
	if g.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.CallTimeout)
		defer cancel()
	}
	return g.backend.Generate(ctx, g.systemPrompt, prompt)
}

// IsThrottlingError matches backend errors that signal rate limiting or exhausted quota
func IsThrottlingError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate") || strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

// BuildUserPrompt renders history, emotion and the last utterance into the user prompt
func BuildUserPrompt(history []conversation.Utterance, interp emotion.Interpretation, partnerLast string) string {
	if strings.TrimSpace(partnerLast) == "" {
		partnerLast = NoUtterancePlaceholder
	}

	var b strings.Builder
	b.WriteString("## Conversation history\n")
	for _, u := range history {
		fmt.Fprintf(&b, "- %s: %s\n", u.Speaker, u.Text)
	}

	b.WriteString("\n## Partner's emotional state\n")
	fmt.Fprintf(&b, "Primary emotion: %s\n", interp.PrimaryEmotion)
	fmt.Fprintf(&b, "Intensity: %s\n", interp.Intensity)
	fmt.Fprintf(&b, "Description: %s\n", interp.Description)
	if interp.Suggestion != nil {
		fmt.Fprintf(&b, "Suggestion: %s\n", *interp.Suggestion)
	}

	b.WriteString("\n## Partner's last utterance\n")
	b.WriteString(partnerLast)
	b.WriteString("\n\nBased on the above, propose two replies the user could say to the partner.")
	return b.String()
}

type rawSuggestion struct {
	Text   *string `json:"text"`
	Intent *string `json:"intent"`
}

type rawResult struct {
	SituationAnalysis *string          `json:"situation_analysis"`
	Responses         *[]rawSuggestion `json:"responses"`
}

// ParseGenerativeResult strips code fences, decodes the answer and validates it.
// Missing or mistyped fields and a response count other than two are rejected;
// nothing is padded or truncated.
func ParseGenerativeResult(raw string) (*analysis.GenerativeResult, error) {
	const op = "generator.parse"
	malformed := func(detail string, cause error) error {
		err := fmt.Errorf("%w: %s", ErrMalformedResponse, detail)
		if cause != nil {
			err = fmt.Errorf("%w: %s: %w", ErrMalformedResponse, detail, cause)
		}
		return apperrors.Wrap(apperrors.KindUpstreamFatal, op, err)
	}

	cleaned := stripCodeFence(raw)

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.DisallowUnknownFields()
	var parsed rawResult
	if err := dec.Decode(&parsed); err != nil {
		return nil, malformed("invalid JSON", err)
	}
	if dec.More() {
		return nil, malformed("trailing data after JSON object", nil)
	}

	if parsed.SituationAnalysis == nil {
		return nil, malformed("missing situation_analysis", nil)
	}
	if parsed.Responses == nil {
		return nil, malformed("missing responses", nil)
	}
	if n := len(*parsed.Responses); n != 2 {
		return nil, malformed(fmt.Sprintf("expected 2 responses, got %d", n), nil)
	}

	result := &analysis.GenerativeResult{SituationAnalysis: *parsed.SituationAnalysis}
	for i, r := range *parsed.Responses {
		if r.Text == nil || r.Intent == nil {
			return nil, malformed(fmt.Sprintf("response %d is missing text or intent", i+1), nil)
		}
		result.Responses[i] = analysis.Suggestion{Text: *r.Text, Intent: *r.Intent}
	}

	if result.Responses[0].Intent == result.Responses[1].Intent {
		return nil, apperrors.Wrap(apperrors.KindUpstreamFatal, op,
			fmt.Errorf("%w: both are %q", ErrDuplicateIntent, result.Responses[0].Intent))
	}
	return result, nil
}

func stripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// truncate keeps at most n runes of s
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
