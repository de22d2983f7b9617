package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sealed-ballot/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleEvents streams the election's accepted events as JSON frames. Slow
// clients miss events rather than stall the bus.
func (s *Server) handleEvents(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	if s.events == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Code: "Closed", Error: "event stream disabled"})
		return
	}

	// Subscribe first so no event is lost between the handshake and the pump.
	events, cancel := s.events.Subscribe(election.ID())
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		return
	}
	done := make(chan struct{})

	s.logger.Info("event stream opened",
		"event", "stream_opened",
		"module", module,
		"layer", "transport",
		"election_id", election.ID(),
		"client_ip", c.ClientIP(),
	)

	go s.streamReadPump(conn, done)
	s.streamWritePump(conn, events, done)

	cancel()
	conn.Close()
	s.logger.Info("event stream closed",
		"event", "stream_closed",
		"module", module,
		"layer", "transport",
		"election_id", election.ID(),
	)
}

// streamReadPump discards client frames and closes done once the peer goes away.
func (s *Server) streamReadPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) streamWritePump(conn *websocket.Conn, events <-chan models.Event, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
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
