package websocket

import (
	"encoding/json"
	"log"

	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/metrics"
	"github.com/google/uuid"
)

// NewFlower announces a created check-in to its owner's garden channel.
func (h *Hub) NewFlower(userID uuid.UUID, checkIn *domain.CheckIn) {
	h.emit(userID, MessageTypeNewFlower, FlowerPayload{CheckIn: checkIn})
}

// FlowerUpdated sends the full updated record.
func (h *Hub) FlowerUpdated(userID uuid.UUID, checkIn *domain.CheckIn) {
	h.emit(userID, MessageTypeFlowerUpdated, FlowerPayload{CheckIn: checkIn})
}

func (h *Hub) FlowerRemoved(userID uuid.UUID, checkInID uuid.UUID) {
	h.emit(userID, MessageTypeFlowerRemoved, FlowerRemovedPayload{CheckInID: checkInID.String()})
}

// emit delivers to every subscriber of one garden channel. It never blocks:
// a client whose buffer is full misses the event.
func (h *Hub) emit(gardenID uuid.UUID, msgType MessageType, payload interface{}) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		log.Printf("ERROR [websocket.emit] failed to build %s: %v", msgType, err)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ERROR [websocket.emit] failed to marshal %s: %v", msgType, err)
		return
	}

	metrics.WebSocketEventsTotal.WithLabelValues(string(msgType)).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.gardens[gardenID] {
		if !trySend(client, data) {
			metrics.WebSocketDroppedTotal.Inc()
			log.Printf("Hub: dropped %s for user=%s (send buffer full)", msgType, client.userID)
		}
	}
}

// trySend attempts to send to a client, safely handling closed channels.
func trySend(client *Client, data []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			// Channel closed, client is disconnecting
			sent = false
		}
	}()

	select {
	case client.send <- data:
		return true
	default:
		return false
	}
}
