package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ac-schroeder/DJApp/internal/logger"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// positions pushes {deck: fraction} on every poll tick until the client goes
// away. The feed only reads playhead atomics.
func (s *Server) positions(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("position feed upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are seen.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	msg := make(map[string]float64, len(s.order))
	for {
		for _, name := range s.order {
			msg[name] = s.decks[name].Deck().PositionRelative()
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}

		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
