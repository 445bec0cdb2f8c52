package server

// hub.go fans the simulation event stream out to websocket clients.
// The hub subscribes to the engine as an observer and broadcasts each
// call event and metrics sample as a JSON frame

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/teleng/callsim"
)

type wsFrame struct {
	Type       string             `json:"type"`
	Event      *callsim.CallEvent `json:"event,omitempty"`
	SnapshotID string             `json:"snapshotid,omitempty"`
	Metrics    *callsim.Metrics   `json:"metrics,omitempty"`
}

// Hub tracks the connected websocket clients and the broadcast channel
// feeding them
type Hub struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	register  chan *websocket.Conn
	remove    chan *websocket.Conn
	broadcast chan []byte
	logger    zerolog.Logger
}

// NewHub starts a hub's distribution loop and returns it
func NewHub(logger zerolog.Logger) *Hub {
	hub := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]bool),
		register:  make(chan *websocket.Conn),
		remove:    make(chan *websocket.Conn),
		broadcast: make(chan []byte, 64),
		logger:    logger,
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.clients[conn] = true
		case conn := <-h.remove:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
		case msg := <-h.broadcast:
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.logger.Warn().Err(err).Msg("dropping websocket client after failed write")
					delete(h.clients, conn)
					conn.Close()
				}
			}
		}
	}
}

// Handle upgrades an HTTP request to a websocket connection and keeps
// it registered until the peer goes away
func (h *Hub) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	h.register <- conn

	// drain the connection; clients are listen-only, and the read loop
	// is what notices the peer closing
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove <- conn
				return
			}
		}
	}()
	return nil
}

// send marshals and broadcasts one frame, dropping it when the
// broadcast queue is full rather than stalling the simulation
func (h *Hub) send(frame wsFrame) {
	msg, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal websocket frame")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
	}
}

// OnCallEvent implements callsim.Observer
func (h *Hub) OnCallEvent(evt callsim.CallEvent) {
	h.send(wsFrame{Type: "event", Event: &evt})
}

// OnMetrics implements callsim.Observer
func (h *Hub) OnMetrics(snapshotID string, m callsim.Metrics) {
	h.send(wsFrame{Type: "metrics", SnapshotID: snapshotID, Metrics: &m})
}
