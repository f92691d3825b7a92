package handlers

import (
	"net/http"

	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/presentation/realtime"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// RealtimeHandlers upgrades clients onto the realtime protocol
type RealtimeHandlers struct {
	protocol *realtime.Handler
	upgrader websocket.Upgrader
	logger   *logging.ChanneledLogger
}

// NewRealtimeHandlers creates realtime handlers. Origins are not restricted
// here; the handshake authenticates with the query token.
func NewRealtimeHandlers(protocol *realtime.Handler, logger *logging.ChanneledLogger) *RealtimeHandlers {
	return &RealtimeHandlers{
		protocol: protocol,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Connect handles GET /api/realtime?session_id=...&token=...
func (h *RealtimeHandlers) Connect(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Realtime().Warn("Websocket upgrade failed", "error", err, "remote", c.ClientIP())
		return
	}
	h.protocol.Serve(c.Request.Context(), ws, c.Query("session_id"), c.Query("token"))
}
