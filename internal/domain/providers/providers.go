// Package providers defines the ports to external backends: credential
// verification, speech-to-text and generative text.
package providers

import (
	"context"

	"github.com/commxr/commxr-go/internal/domain/entities/analysis"
)

// Identity is the authenticated caller behind a token
type Identity struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
}

// TokenVerifier turns a bearer token into an identity or fails
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Transcriber converts raw audio into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format analysis.AudioFormat) (*analysis.Transcription, error)
}

// TextGenerator sends a system and user prompt to a generative backend and
// returns its raw text answer
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// SessionReporter delivers an end-of-session summary to the owner
type SessionReporter interface {
	SendSessionReport(ctx context.Context, to, sessionID, transcript string) error
}
