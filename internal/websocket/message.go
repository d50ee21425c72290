package websocket

import (
	"encoding/json"
	"time"

	"github.com/dom/anime-music-garden/internal/domain"
)

type MessageType string

const (
	// Client to Server
	MessageTypeJoinGarden  MessageType = "join-garden"
	MessageTypeLeaveGarden MessageType = "leave-garden"

	// Server to Client
	MessageTypeGardenJoined  MessageType = "garden-joined"
	MessageTypeNewFlower     MessageType = "new-flower"
	MessageTypeFlowerUpdated MessageType = "flower-updated"
	MessageTypeFlowerRemoved MessageType = "flower-removed"
	MessageTypeError         MessageType = "error"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Client to Server payloads

type JoinGardenPayload struct {
	UserID string `json:"userId"`
}

// Server to Client payloads

type GardenJoinedPayload struct {
	UserID string `json:"userId"`
}

type FlowerPayload struct {
	CheckIn *domain.CheckIn `json:"checkIn"`
}

type FlowerRemovedPayload struct {
	CheckInID string `json:"checkInId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
