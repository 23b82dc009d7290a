package webserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mmarchetti/votemon/internal/snapshot"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// viewer is one connected display. Snapshots flow through its buffered
// channel to a dedicated writer goroutine, so a slow connection never stalls
// a publish.
type viewer struct {
	id   string
	conn *websocket.Conn
	send chan snapshot.Snapshot
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	v := &viewer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan snapshot.Snapshot, 8),
	}
	s.register(v)
	s.logger.Debug("webserver: viewer connected", "viewer", v.id, "remote", conn.RemoteAddr().String())

	go s.writeLoop(v)

	// Viewers only keep the connection alive; inbound content is ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.unregister(v)
	s.logger.Debug("webserver: viewer disconnected", "viewer", v.id)
}

func (s *Server) writeLoop(v *viewer) {
	for snap := range v.send {
		if err := v.conn.WriteJSON(snap); err != nil {
			s.unregister(v)
			return
		}
	}
}
