package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGeneratorReturnsContent(t *testing.T) {
	var seen map[string]any
	srv := newChatServer(t, http.StatusOK,
		`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`,
		&seen)

	g, err := NewOpenAIGenerator("test-key", srv.URL+"/v1/", "test-model", logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "openai", g.Name())

	out, err := g.Generate(context.Background(), "system text", "user text")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	assert.Equal(t, "test-model", seen["model"])
	messages, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user text", messages[1].(map[string]any)["content"])
}

func TestOpenAIGeneratorThrottleErrorMentionsStatus(t *testing.T) {
	srv := newChatServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"Too many requests","type":"requests","code":"rate_limit_exceeded"}}`, nil)

	g, err := NewOpenAIGenerator("test-key", srv.URL+"/v1", "", logging.NewNopLogger())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "s", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIGeneratorEmptyChoices(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, `{"id":"c1","choices":[]}`, nil)
	g, err := NewOpenAIGenerator("test-key", srv.URL+"/v1", "", logging.NewNopLogger())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "s", "p")
	assert.ErrorContains(t, err, "no content")
}

func TestConstructorsRequireKeys(t *testing.T) {
	_, err := NewOpenAIGenerator("", "", "", logging.NewNopLogger())
	assert.Error(t, err)
	_, err = NewLeMURGenerator("", "", logging.NewNopLogger())
	assert.Error(t, err)

	g, err := NewLeMURGenerator("key", "", logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, defaultLeMURModel, g.model)
	assert.Equal(t, "lemur", g.Name())
}

func TestUnconfiguredFailsWithoutThrottleWording(t *testing.T) {
	_, err := Unconfigured{}.Generate(context.Background(), "s", "p")
	assert.ErrorIs(t, err, ErrNotConfigured)
	msg := strings.ToLower(err.Error())
	assert.NotContains(t, msg, "rate")
	assert.NotContains(t, msg, "429")
	assert.NotContains(t, msg, "quota")
}
