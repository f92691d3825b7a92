package generation

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by Unconfigured for every call
var ErrNotConfigured = errors.New("no text backend configured")

// Unconfigured stands in when no generative provider is set up. Every call
// fails permanently so requests surface a clear error instead of hanging.
type Unconfigured struct{}

// Name identifies the backend in logs and health output
func (Unconfigured) Name() string { return "none" }

// Generate always fails with ErrNotConfigured
func (Unconfigured) Generate(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}
