package realtime

import "time"

// Inbound message types
const (
	TypePing            = "PING"
	TypeReset           = "RESET"
	TypeErrorReport     = "ERROR_REPORT"
	TypeAnalysisRequest = "ANALYSIS_REQUEST"
)

// Outbound message types
const (
	TypePong           = "PONG"
	TypeResetAck       = "RESET_ACK"
	TypeErrorAck       = "ERROR_ACK"
	TypeError          = "ERROR"
	TypeSessionEnded   = "SESSION_ENDED"
	TypeServerShutdown = "SERVER_SHUTDOWN"
)

// Close codes sent when the handshake is refused
const (
	CloseUnauthorized    = 4001
	CloseForbidden       = 4003
	CloseSessionNotFound = 4004
)

// Error messages sent in ERROR payloads
const (
	MsgInvalidJSON        = "Invalid JSON"
	MsgUnsupportedType    = "Unsupported message type"
	MsgSessionMismatch    = "session_id does not match this connection"
	MsgInvalidScores      = "Invalid emotion_scores"
	MsgMissingFieldsTitle = "Missing required fields: "
	MsgAnalysisFailed     = "Analysis failed: "
)

// Envelope is the shape of every outbound control message
type Envelope struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Detail    any    `json:"detail,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Timestamp formats t the way every outbound message carries it
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NewEnvelope builds a control message stamped with now
func NewEnvelope(msgType string, now time.Time) Envelope {
	return Envelope{Type: msgType, Timestamp: Timestamp(now)}
}

// NewError builds an ERROR message. detail is omitted when nil or empty.
func NewError(message string, detail any, now time.Time) Envelope {
	e := NewEnvelope(TypeError, now)
	e.Message = message
	if s, ok := detail.(string); !ok || s != "" {
		e.Detail = detail
	}
	return e
}
