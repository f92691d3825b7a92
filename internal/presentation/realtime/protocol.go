package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
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
)

// SessionLookup reads a session; nil, nil when absent
type SessionLookup interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// Analyzer runs one analysis request
type Analyzer interface {
	Process(ctx context.Context, sessionID string, scores emotion.Scores, audio []byte, format analysis.AudioFormat) (*analysis.Reply, error)
}

// Config tunes the socket
type Config struct {
	ReadLimit    int64
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
}

// Handler drives one connection through authentication, authorization and
// the message loop. Messages of one connection are processed in order by the
// reading goroutine.
type Handler struct {
	verifier    providers.TokenVerifier
	sessions    SessionLookup
	registry    messaging.Registry
	analyzer    Analyzer
	config      Config
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	now         func() time.Time
}

// NewHandler creates a protocol handler
func NewHandler(verifier providers.TokenVerifier, sessions SessionLookup, registry messaging.Registry, analyzer Analyzer, config Config, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *Handler {
	if config.PongWait <= 0 {
		config.PongWait = 75 * time.Second
	}
	if config.PingInterval <= 0 || config.PingInterval >= config.PongWait {
		config.PingInterval = config.PongWait * 2 / 5
	}
	if config.WriteWait <= 0 {
		config.WriteWait = 10 * time.Second
	}
	return &Handler{
		verifier:    verifier,
		sessions:    sessions,
		registry:    registry,
		analyzer:    analyzer,
		config:      config,
		logger:      logger,
		perfTracker: perfTracker,
		now:         time.Now,
	}
}

// Serve owns ws until the client disconnects or ctx is cancelled
func (h *Handler) Serve(ctx context.Context, ws *websocket.Conn, sessionID, token string) {
	conn := NewWSConnection(ws, h.config.WriteWait)
	defer conn.Close()

	identity, err := h.verifier.Verify(ctx, token)
	if err != nil {
		reason := "Invalid or expired token"
		var appErr *apperrors.Error
		if errors.As(err, &appErr) && appErr.Message != "" {
			reason = appErr.Message
		}
		h.logger.Realtime().Warn("Realtime handshake rejected", "reason", reason)
		_ = conn.CloseWithCode(CloseUnauthorized, reason)
		return
	}

	sess, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		h.logger.WithSession(logging.ChannelRealtime, sessionID).Error("Session lookup failed", "error", err)
		_ = conn.CloseWithCode(websocket.CloseInternalServerErr, "session lookup failed")
		return
	}
	if sess == nil {
		_ = conn.CloseWithCode(CloseSessionNotFound, "Session not found")
		return
	}
	if sess.OwnerID != identity.UserID {
		h.logger.WithSession(logging.ChannelRealtime, sessionID).Warn("Realtime ownership check failed",
			"user", logging.MaskUserID(identity.UserID))
		_ = conn.CloseWithCode(CloseForbidden, "You don't have permission to access this session")
		return
	}

	h.registry.Register(conn, sessionID)
	defer h.registry.Unregister(conn)

	log := h.logger.WithSession(logging.ChannelRealtime, sessionID)
	log.Info("Realtime connection opened", "connectionId", conn.ID())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.keepAlive(ctx, conn)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	if h.config.ReadLimit > 0 {
		ws.SetReadLimit(h.config.ReadLimit)
	}
	_ = ws.SetReadDeadline(h.now().Add(h.config.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(h.now().Add(h.config.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn("Realtime connection lost", "connectionId", conn.ID(), "error", err)
			} else {
				log.Info("Realtime connection closed", "connectionId", conn.ID())
			}
			return
		}
		if err := h.dispatch(ctx, conn, sessionID, data); err != nil {
			log.Warn("Realtime send failed, closing", "connectionId", conn.ID(), "error", err)
			return
		}
	}
}

func (h *Handler) keepAlive(ctx context.Context, conn *WSConnection) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				return
			}
		}
	}
}

// dispatch handles one inbound frame. The returned error is a send failure.
func (h *Handler) dispatch(ctx context.Context, conn *WSConnection, sessionID string, data []byte) error {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return conn.SendJSON(NewError(MsgInvalidJSON, nil, h.now()))
	}

	msg, _ := payload.(map[string]any)
	msgType := msg["type"]
	typeName, _ := msgType.(string)

	switch typeName {
	case TypePing:
		return conn.SendJSON(NewEnvelope(TypePong, h.now()))
	case TypeReset:
		return conn.SendJSON(NewEnvelope(TypeResetAck, h.now()))
	case TypeErrorReport:
		h.logger.WithSession(logging.ChannelRealtime, sessionID).Warn("Client error report", "payload", string(data))
		return conn.SendJSON(NewEnvelope(TypeErrorAck, h.now()))
	case TypeAnalysisRequest:
		return conn.SendJSON(h.analyze(ctx, sessionID, msg))
	default:
		return conn.SendJSON(NewError(MsgUnsupportedType, msgType, h.now()))
	}
}

// analyze validates an ANALYSIS_REQUEST and runs the pipeline. It returns the
// reply or an ERROR envelope.
func (h *Handler) analyze(ctx context.Context, connSessionID string, msg map[string]any) any {
	marker := h.perfTracker.StartOperation("realtime:analysis_request", connSessionID)
	defer marker.Complete()
	log := h.logger.WithSession(logging.ChannelRealtime, connSessionID)

	requestSessionID, _ := msg["session_id"].(string)
	rawScores := msg["emotion_scores"]

	var missing []string
	if requestSessionID == "" {
		missing = append(missing, "session_id")
	}
	if isEmpty(rawScores) {
		missing = append(missing, "emotion_scores")
	}
	if len(missing) > 0 {
		return NewError(MsgMissingFieldsTitle+strings.Join(missing, ", "), nil, h.now())
	}

	if requestSessionID != connSessionID {
		return NewError(MsgSessionMismatch, nil, h.now())
	}

	scores, ok := toScores(rawScores)
	if !ok {
		return NewError(MsgInvalidScores, nil, h.now())
	}

	audio, format, present := decodeAudio(msg)
	if present && audio == nil {
		log.Warn("Failed to decode audio data, continuing without audio")
	}

	reply, err := h.analyzer.Process(ctx, connSessionID, scores, audio, format)
	if err != nil {
		marker.SetError(err)
		log.Error("Analysis request failed", "error", err)
		return NewError(MsgAnalysisFailed+err.Error(), apperrors.KindOf(err).String(), h.now())
	}
	marker.SetSuccess(true)
	return reply
}

// isEmpty treats absent, null, empty strings and empty containers as missing
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case bool:
		return !t
	case float64:
		return t == 0
	default:
		return false
	}
}

func toScores(v any) (emotion.Scores, bool) {
	in, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	scores := make(emotion.Scores, len(in))
	for label, raw := range in {
		f, ok := raw.(float64)
		if !ok {
			return nil, false
		}
		scores[label] = f
	}
	return scores, true
}

// decodeAudio returns the clip and its format. present reports whether the
// message carried audio at all; audio is nil when it could not be used.
func decodeAudio(msg map[string]any) (audio []byte, format analysis.AudioFormat, present bool) {
	if isEmpty(msg["audio_data"]) {
		return nil, "", false
	}
	encoded, ok := msg["audio_data"].(string)
	if !ok {
		return nil, "", true
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(decoded) == 0 {
		return nil, "", true
	}

	formatName := ""
	if raw, exists := msg["audio_format"]; exists && raw != nil {
		if formatName, ok = raw.(string); !ok {
			return nil, "", true
		}
	}
	format, ok = analysis.ParseAudioFormat(formatName)
	if !ok {
		return nil, "", true
	}
	return decoded, format, true
}
