package socket

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"draftroom/internal/document/repository"
	"draftroom/internal/identity"
	"draftroom/pkg/logger"
)

// Engine is the persistence boundary the hub drives: the authenticate,
// fetch and store hooks of the sync adapter. The hub never looks inside a
// state blob; it caches and relays bytes verbatim.
type Engine interface {
	Authenticate(token string) (identity.Identity, error)
	Fetch(ctx context.Context, roomID string, who identity.Identity) ([]byte, error)
	Store(ctx context.Context, roomID string, who identity.Identity, state []byte) error
}

// StateUpdate carries one merged state blob from a client to its room.
type StateUpdate struct {
	RoomID string
	Who    identity.Identity
	State  []byte
}

type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan StateUpdate
	Register   chan *Client
	Unregister chan *Client

	engine Engine

	mu         sync.Mutex
	StateCache map[string][]byte
	// dirty tracks rooms with unpersisted state, keyed to the last writer
	// so the flushed version is attributed correctly.
	dirty map[string]identity.Identity
}

func NewHub(engine Engine) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan StateUpdate),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		engine:     engine,
		StateCache: make(map[string][]byte),
		dirty:      make(map[string]identity.Identity),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.RoomID] == nil {
				h.Rooms[client.RoomID] = make(map[*Client]bool)

				// First joiner seeds the room from durable state.
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				state, err := h.engine.Fetch(ctx, client.RoomID, client.Who)
				cancel()
				if err != nil && !errors.Is(err, repository.ErrNotFound) {
					logger.Sugar.Errorf("Failed to seed room %s: %v", client.RoomID, err)
				}
				h.StateCache[client.RoomID] = state
			}
			h.Rooms[client.RoomID][client] = true
			current := h.StateCache[client.RoomID]
			h.mu.Unlock()

			// A fresh room has no state yet; the joiner starts blank.
			if len(current) > 0 {
				client.Send <- current
			}

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.Rooms[client.RoomID][client]; ok {
				delete(h.Rooms[client.RoomID], client)
				close(client.Send)

				if len(h.Rooms[client.RoomID]) == 0 {
					if who, isDirty := h.dirty[client.RoomID]; isDirty {
						h.flush(client.RoomID, who, h.StateCache[client.RoomID])
					}
					delete(h.Rooms, client.RoomID)
					delete(h.StateCache, client.RoomID)
					delete(h.dirty, client.RoomID)
					logger.Sugar.Infof("Closed and cleaned up empty room: %s", client.RoomID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.Broadcast:
			h.mu.Lock()
			h.StateCache[msg.RoomID] = msg.State
			h.dirty[msg.RoomID] = msg.Who

			// Collect recipients first so the lock is not held during I/O.
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.RoomID]))
			for client := range h.Rooms[msg.RoomID] {
				if client.Who.UserID != msg.Who.UserID {
					clientsToSend = append(clientsToSend, client)
				}
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- msg.State:
				default:
					// A full send buffer means the client is lagging;
					// drop it so the hub never blocks. The send happens
					// off this goroutine because Run is the consumer.
					logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.Who.UserID)
					go func(c *Client) { h.Unregister <- c }(client)
				}
			}
		}
	}
}

// FlushWorker periodically persists dirty rooms through the engine's store
// hook, mirroring the engine's debounced flush cadence.
func (h *Hub) FlushWorker(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		type flushJob struct {
			who   identity.Identity
			state []byte
		}
		jobs := make(map[string]flushJob)

		h.mu.Lock()
		for roomID, who := range h.dirty {
			state := make([]byte, len(h.StateCache[roomID]))
			copy(state, h.StateCache[roomID])
			jobs[roomID] = flushJob{who: who, state: state}
		}
		h.mu.Unlock()

		for roomID, job := range jobs {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			err := h.engine.Store(ctx, roomID, job.who, job.state)
			cancel()
			if err != nil {
				// Leave the room dirty; the next tick retries.
				logger.Sugar.Errorf("Failed to flush room %s: %v", roomID, err)
				continue
			}

			h.mu.Lock()
			// Only mark clean if no newer state arrived during the save.
			if bytes.Equal(h.StateCache[roomID], job.state) {
				delete(h.dirty, roomID)
			}
			h.mu.Unlock()

			logger.Sugar.Infof("Flushed room %s (%d bytes)", roomID, len(job.state))
		}
	}
}

// RemoveRoom drops a room's in-memory state and disconnects its clients.
// Called when the document behind the room is deleted via the API, so the
// flush worker cannot resurrect it.
func (h *Hub) RemoveRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.StateCache, roomID)
	delete(h.dirty, roomID)

	if clients, ok := h.Rooms[roomID]; ok {
		for client := range clients {
			client.Conn.Close() // readPump exits and unregisters safely
		}
		delete(h.Rooms, roomID)
	}
}

// flush is called with h.mu held, on last leave only.
func (h *Hub) flush(roomID string, who identity.Identity, state []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := h.engine.Store(ctx, roomID, who, state); err != nil {
		logger.Sugar.Errorf("Failed to flush room %s on close: %v", roomID, err)
	}
}
