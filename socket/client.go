package socket

import (
	"errors"
	"net/http"
	"time"

	"draftroom/internal/identity"
	"draftroom/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The editor frontend runs on a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	RoomID string
	Who    identity.Identity
	Send   chan []byte
}

// ServeWs authenticates the connection through the engine's hook, then
// upgrades it and joins the client to its room. Browsers cannot set headers
// on WebSocket requests, so the token rides in the query string.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	who, err := hub.engine.Authenticate(token)
	if err != nil {
		status := http.StatusForbidden
		if errors.Is(err, identity.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		logger.Sugar.Warnf("Connection rejected: %v", err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	roomID := r.URL.Query().Get("roomId")
	if err := uuid.Validate(roomID); err != nil {
		logger.Sugar.Warnf("Connection rejected: malformed room id %q", roomID)
		http.Error(w, "Invalid roomId parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:    hub,
		Conn:   conn,
		RoomID: roomID,
		Who:    who,
		Send:   make(chan []byte, 256),
	}
	client.Hub.Register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, state, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		// An empty frame carries no merged state; dropping it here keeps
		// zero-length blobs out of the cache and the version log.
		if len(state) == 0 {
			continue
		}

		c.Hub.Broadcast <- StateUpdate{RoomID: c.RoomID, Who: c.Who, State: state}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case state, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.Conn.WriteMessage(websocket.BinaryMessage, state)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // connection is dead
			}
		}
	}
}
