package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/commxr/commxr-go/internal/domain/apperrors"
	"github.com/commxr/commxr-go/internal/domain/entities/analysis"
	"github.com/commxr/commxr-go/internal/domain/entities/emotion"
	"github.com/commxr/commxr-go/internal/domain/entities/session"
	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/infrastructure/messaging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]string

func (v stubVerifier) Verify(_ context.Context, token string) (*providers.Identity, error) {
	if uid, ok := v[token]; ok {
		return &providers.Identity{UserID: uid}, nil
	}
	return nil, apperrors.Unauthenticated("test", "Invalid or expired token")
}

type stubSessions map[string]*session.Session

func (s stubSessions) Get(_ context.Context, id string) (*session.Session, error) {
	return s[id], nil
}

type stubAnalyzer struct {
	mu     sync.Mutex
	err    error
	audio  [][]byte
	format []analysis.AudioFormat
}

func (a *stubAnalyzer) Process(_ context.Context, sessionID string, scores emotion.Scores, audio []byte, format analysis.AudioFormat) (*analysis.Reply, error) {
	a.mu.Lock()
	a.audio = append(a.audio, audio)
	a.format = append(a.format, format)
	a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return &analysis.Reply{
		Type:      analysis.ReplyType,
		Timestamp: time.Now().UTC(),
		Emotion:   emotion.Interpretation{PrimaryEmotion: emotion.Happy, Intensity: emotion.IntensityHigh, Description: "d"},
		Suggestions: []analysis.Suggestion{
			{Text: "a", Intent: "x"},
			{Text: "b", Intent: "y"},
		},
		SituationAnalysis: "s",
	}, nil
}

type testEnv struct {
	server   *httptest.Server
	registry *messaging.ConnectionRegistry
	analyzer *stubAnalyzer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.NewNopLogger()
	registry := messaging.NewConnectionRegistry(logger)
	analyzer := &stubAnalyzer{}
	now := time.Now()
	sessions := stubSessions{
		"s-1": session.NewSession("s-1", "alice", now),
		"s-2": session.NewSession("s-2", "bob", now),
	}
	h := NewHandler(stubVerifier{"tok-alice": "alice"}, sessions, registry, analyzer,
		Config{ReadLimit: 1 << 20, PongWait: 5 * time.Second, WriteWait: time.Second}, logger, performance.NewTracker(nil))

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(r.Context(), ws, r.URL.Query().Get("session_id"), r.URL.Query().Get("token"))
	}))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, registry: registry, analyzer: analyzer}
}

func (e *testEnv) dial(t *testing.T, sessionID, token string) *websocket.Conn {
	t.Helper()
	q := url.Values{"session_id": {sessionID}, "token": {token}}
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/realtime?" + q.Encode()
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg map[string]any
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func expectClose(t *testing.T, ws *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := ws.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "expected close frame, got %v", err)
	assert.Equal(t, code, closeErr.Code)
}

func TestHandshakeRejections(t *testing.T) {
	env := newTestEnv(t)

	expectClose(t, env.dial(t, "s-1", "bad-token"), CloseUnauthorized)
	expectClose(t, env.dial(t, "missing", "tok-alice"), CloseSessionNotFound)
	expectClose(t, env.dial(t, "s-2", "tok-alice"), CloseForbidden)
	assert.Equal(t, 0, env.registry.ConnectionCount())
}

func TestControlMessages(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t, "s-1", "tok-alice")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"PING"}`)))
	msg := readMessage(t, ws)
	assert.Equal(t, TypePong, msg["type"])
	_, err := time.Parse(time.RFC3339Nano, msg["timestamp"].(string))
	assert.NoError(t, err)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"RESET"}`)))
	assert.Equal(t, TypeResetAck, readMessage(t, ws)["type"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ERROR_REPORT","message":"camera lost"}`)))
	assert.Equal(t, TypeErrorAck, readMessage(t, ws)["type"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	msg = readMessage(t, ws)
	assert.Equal(t, TypeError, msg["type"])
	assert.Equal(t, MsgInvalidJSON, msg["message"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"DANCE"}`)))
	msg = readMessage(t, ws)
	assert.Equal(t, MsgUnsupportedType, msg["message"])
	assert.Equal(t, "DANCE", msg["detail"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`[1,2]`)))
	msg = readMessage(t, ws)
	assert.Equal(t, MsgUnsupportedType, msg["message"])
	_, hasDetail := msg["detail"]
	assert.False(t, hasDetail)
}

func TestAnalysisRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t, "s-1", "tok-alice")

	tests := []struct {
		name    string
		payload string
		message string
	}{
		{"both missing", `{"type":"ANALYSIS_REQUEST"}`, "Missing required fields: session_id, emotion_scores"},
		{"empty scores", `{"type":"ANALYSIS_REQUEST","session_id":"s-1","emotion_scores":{}}`, "Missing required fields: emotion_scores"},
		{"empty session", `{"type":"ANALYSIS_REQUEST","session_id":"","emotion_scores":{"happy":0.5}}`, "Missing required fields: session_id"},
		{"other session", `{"type":"ANALYSIS_REQUEST","session_id":"s-2","emotion_scores":{"happy":0.5}}`, MsgSessionMismatch},
		{"mistyped scores", `{"type":"ANALYSIS_REQUEST","session_id":"s-1","emotion_scores":{"happy":"very"}}`, MsgInvalidScores},
		{"scores not an object", `{"type":"ANALYSIS_REQUEST","session_id":"s-1","emotion_scores":[0.5]}`, MsgInvalidScores},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(tt.payload)))
			msg := readMessage(t, ws)
			assert.Equal(t, TypeError, msg["type"])
			assert.Equal(t, tt.message, msg["message"])
		})
	}
	assert.Empty(t, env.analyzer.audio)
}

func TestAnalysisRequestRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t, "s-1", "tok-alice")

	// "UklGRg==" is base64 for "RIFF"
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"ANALYSIS_REQUEST","session_id":"s-1","emotion_scores":{"happy":0.9},"audio_data":"UklGRg==","audio_format":"opus"}`)))
	msg := readMessage(t, ws)
	assert.Equal(t, analysis.ReplyType, msg["type"])
	assert.Len(t, msg["suggestions"], 2)
	assert.Contains(t, msg, "transcription")
	assert.Nil(t, msg["transcription"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"ANALYSIS_REQUEST","session_id":"s-1","emotion_scores":{"happy":0.9},"audio_data":"%%%not-base64"}`)))
	assert.Equal(t, analysis.ReplyType, readMessage(t, ws)["type"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"ANALYSIS_REQUEST","session_id":"s-1","emotion_scores":{"happy":0.9},"audio_data":"UklGRg==","audio_format":"mp3"}`)))
	assert.Equal(t, analysis.ReplyType, readMessage(t, ws)["type"])

	env.analyzer.mu.Lock()
	defer env.analyzer.mu.Unlock()
	require.Len(t, env.analyzer.audio, 3)
	assert.Equal(t, []byte("RIFF"), env.analyzer.audio[0])
	assert.Equal(t, analysis.AudioOpus, env.analyzer.format[0])
	assert.Nil(t, env.analyzer.audio[1])
	assert.Nil(t, env.analyzer.audio[2])
}

func TestAnalysisFailureKeepsSocketOpen(t *testing.T) {
	env := newTestEnv(t)
	env.analyzer.err = apperrors.Wrap(apperrors.KindUpstreamFatal, "generator.call", errors.New("invalid api key"))
	ws := env.dial(t, "s-1", "tok-alice")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"ANALYSIS_REQUEST","session_id":"s-1","emotion_scores":{"sad":0.4}}`)))
	msg := readMessage(t, ws)
	assert.Equal(t, TypeError, msg["type"])
	assert.True(t, strings.HasPrefix(msg["message"].(string), MsgAnalysisFailed))
	assert.Equal(t, "upstream_fatal", msg["detail"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"PING"}`)))
	assert.Equal(t, TypePong, readMessage(t, ws)["type"])
}

func TestRegistryDeliversAndUnregistersOnDisconnect(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t, "s-1", "tok-alice")

	// a round trip guarantees registration happened
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"PING"}`)))
	readMessage(t, ws)
	assert.Equal(t, 1, env.registry.SessionConnectionCount("s-1"))

	assert.Equal(t, 1, env.registry.SendToSession("s-1", NewEnvelope(TypeSessionEnded, time.Now())))
	assert.Equal(t, TypeSessionEnded, readMessage(t, ws)["type"])

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool {
		return env.registry.SessionConnectionCount("s-1") == 0
	}, 3*time.Second, 10*time.Millisecond)
}
