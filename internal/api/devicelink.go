package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/phaselink-core/internal/link"
)

// upgrader configures the device WebSocket upgrader. Devices are not
// browsers, so there is no origin to check.
var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// handleDeviceLink upgrades a device connection and hands it to the link
// manager for the rest of its life. The device identifies itself with a
// connect message as its first frame.
func (s *Server) handleDeviceLink(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		s.logger.Warn("device websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	// The hijacked socket still carries the HTTP server's read deadline.
	// A link lives until the device leaves, however quiet it is.
	if err := ws.SetReadDeadline(time.Time{}); err != nil {
		s.logger.Warn("clearing device read deadline failed", "remote_addr", r.RemoteAddr, "error", err)
		_ = ws.Close() //nolint:errcheck // already failing
		return
	}

	conn := link.NewWSConn(ws, link.WSOptions{
		MaxMessageSize: int64(s.linkCfg.MaxMessageSize),
		PingInterval:   time.Duration(s.linkCfg.PingInterval) * time.Second,
		WriteTimeout:   time.Duration(s.linkCfg.WriteTimeout) * time.Second,
	})

	err = s.manager.Serve(s.ctx, conn)
	switch {
	case err == nil:
	case errors.Is(err, link.ErrProtocolViolation), errors.Is(err, link.ErrMalformedFrame):
		s.logger.Warn("device link closed by protocol error", "remote_addr", r.RemoteAddr, "error", err)
	default:
		s.logger.Debug("device link ended", "remote_addr", r.RemoteAddr, "error", err)
	}
}
