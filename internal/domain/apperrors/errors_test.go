package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedError(t *testing.T) {
	base := New(KindNotFound, "sessions.get", "session not found")
	wrapped := fmt.Errorf("handler: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindAuthorization))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindUnknown))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("429 too many requests")
	err := Wrap(KindUpstreamTransient, "generate", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "generate: 429 too many requests", err.Error())
	assert.Nil(t, Wrap(KindUpstreamFatal, "generate", nil))
}

func TestErrorMessageComposition(t *testing.T) {
	err := &Error{Kind: KindUpstreamFatal, Op: "parse", Message: "invalid response", Err: errors.New("unexpected EOF")}
	assert.Equal(t, "parse: invalid response: unexpected EOF", err.Error())
	assert.Equal(t, "upstream_fatal", KindUpstreamFatal.String())
}
