// Package gateway exposes the chat service over WebSocket. Each accepted
// socket is adapted to net.Conn and handed to the same connection manager
// that keeps plain TCP sessions, so protocol, registry and broadcast
// semantics are identical across both transports.
package gateway

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Keeper - the connection manager surface the gateway feeds into.
type Keeper interface {
	KeepConnection(net.Conn) error
}

// Handler - upgrades HTTP requests to WebSocket chat sessions.
type Handler struct {
	keeper   Keeper
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// NewHandler - builds the gateway handler around a connection keeper.
func NewHandler(keeper Keeper, log logrus.FieldLogger) *Handler {
	return &Handler{
		keeper: keeper,
		log:    log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	if err := h.keeper.KeepConnection(newWSConn(ws)); err != nil {
		h.log.WithError(err).Warn("rejecting websocket connection")
		ws.Close()
	}
}
