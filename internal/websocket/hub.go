package websocket

import (
	"log"
	"sync"

	"github.com/dom/anime-music-garden/internal/metrics"
	"github.com/google/uuid"
)

// Hub tracks connected clients and the garden channel each one watches.
// Membership changes are serialised on the Run goroutine; broadcasts only
// take the read lock.
type Hub struct {
	gardens    map[uuid.UUID]map[*Client]bool
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	join       chan *joinRequest
	leave      chan *Client
	stop       chan struct{}
	done       chan struct{} // closed when Run() exits
	stopped    bool
	mu         sync.RWMutex
}

type joinRequest struct {
	client   *Client
	gardenID string
}

func NewHub() *Hub {
	return &Hub{
		gardens:    make(map[uuid.UUID]map[*Client]bool),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan *joinRequest),
		leave:      make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			h.stopped = true
			for client := range h.clients {
				client.Close()
				metrics.WebSocketConnections.Dec()
			}
			h.clients = make(map[*Client]bool)
			h.gardens = make(map[uuid.UUID]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.removeFromGarden(client)
				delete(h.clients, client)
				client.Close()
				metrics.WebSocketConnections.Dec()
			}
			h.mu.Unlock()

		case req := <-h.join:
			h.handleJoin(req)

		case client := <-h.leave:
			h.mu.Lock()
			h.removeFromGarden(client)
			h.mu.Unlock()
		}
	}
}

// Stop closes every client and blocks until Run has exited.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	close(h.stop)
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Join subscribes the client to a garden channel. Only the owner may watch
// a garden; any other request is dropped without a reply.
func (h *Hub) Join(client *Client, gardenID string) {
	select {
	case h.join <- &joinRequest{client: client, gardenID: gardenID}:
	case <-h.done:
	}
}

func (h *Hub) Leave(client *Client) {
	select {
	case h.leave <- client:
	case <-h.done:
	}
}

func (h *Hub) handleJoin(req *joinRequest) {
	gardenID, err := uuid.Parse(req.gardenID)
	if err != nil || gardenID != req.client.userID {
		log.Printf("Hub: ignoring join-garden from user=%s for garden=%q", req.client.userID, req.gardenID)
		return
	}

	h.mu.Lock()
	if _, ok := h.clients[req.client]; !ok {
		h.mu.Unlock()
		return
	}
	h.removeFromGarden(req.client)
	members, ok := h.gardens[gardenID]
	if !ok {
		members = make(map[*Client]bool)
		h.gardens[gardenID] = members
	}
	members[req.client] = true
	req.client.garden = &gardenID
	h.mu.Unlock()

	msg, err := NewMessage(MessageTypeGardenJoined, GardenJoinedPayload{UserID: gardenID.String()})
	if err != nil {
		return
	}
	req.client.Send(msg)
}

// removeFromGarden must be called with h.mu held.
func (h *Hub) removeFromGarden(client *Client) {
	if client.garden == nil {
		return
	}
	gardenID := *client.garden
	if members, ok := h.gardens[gardenID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.gardens, gardenID)
		}
	}
	client.garden = nil
}

// SubscriberCount returns how many sockets currently watch the user's garden.
func (h *Hub) SubscriberCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.gardens[userID])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
