package handlers

import (
	"log"
	"net/http"

	"github.com/dom/anime-music-garden/internal/api/middleware"
	"github.com/dom/anime-music-garden/internal/service"
	"github.com/dom/anime-music-garden/internal/websocket"
	ws "github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub         *websocket.Hub
	authService *service.AuthService
	upgrader    ws.Upgrader
}

func NewWebSocketHandler(hub *websocket.Hub, authService *service.AuthService, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		authService: authService,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     middleware.OriginAllowed(allowedOrigins),
		},
	}
}

// Handle authenticates the handshake before upgrading. Browsers cannot set
// headers on WebSocket requests, so the token may also come in ?token=.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.BearerToken(r)
	}
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "No token provided, authorization denied")
		return
	}

	user, err := h.authService.Authenticate(r.Context(), token)
	if err != nil {
		status, message := middleware.AuthFailure(err)
		if status == http.StatusInternalServerError {
			log.Printf("ERROR [handlers.WebSocket] authentication failed: %v", err)
		}
		writeMessage(w, status, message)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, user.ID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
