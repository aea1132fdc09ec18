package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/codehaven/backend/internal/infrastructure/logging"
	"github.com/codehaven/backend/internal/infrastructure/monitoring"
	"github.com/codehaven/backend/internal/workspace"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Handler streams workspace filesystem change events to connected
// clients over WebSocket.
type Handler struct {
	workspaces *workspace.Manager
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	upgrader   websocket.Upgrader
}

// NewHandler creates a WebSocket handler.
func NewHandler(workspaces *workspace.Manager, logger *logging.Logger) *Handler {
	return &Handler{
		workspaces: workspaces,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// WithMetrics attaches a metrics collector.
func (h *Handler) WithMetrics(m *monitoring.Metrics) *Handler {
	h.metrics = m
	return h
}

// Stream upgrades the connection and forwards change events for one
// workspace until the client disconnects.
func (h *Handler) Stream(c *gin.Context) {
	workspaceID := c.Param("id")
	if _, err := h.workspaces.Open(c.Request.Context(), workspaceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	events, cancel := h.workspaces.Bus().Subscribe(workspaceID)
	defer cancel()

	h.logger.Info("change stream opened",
		zap.String("workspace_id", workspaceID),
		zap.String("remote", conn.RemoteAddr().String()),
	)

	// Reader goroutine drains client frames so close and pong frames are
	// processed; its exit signals disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Info("change stream closed",
					zap.String("workspace_id", workspaceID),
					zap.Error(err),
				)
				return
			}
			if h.metrics != nil {
				h.metrics.IncWSEvents()
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
