package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The board UI is served from arbitrary origins at venues.
	CheckOrigin: func(*http.Request) bool { return true },
}

// live upgrades to a websocket and forwards the event's price and transaction
// notes as JSON until the client goes away.
func (h *handler) live(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["eventID"]
	if _, err := h.app.Events.Get(r.Context(), eventID); err != nil {
		writeServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	notes, cancel := h.app.Broker.Subscribe(eventID)
	defer cancel()
	defer conn.Close()

	// drain client frames so pongs and close messages are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case note, ok := <-notes:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(note); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
