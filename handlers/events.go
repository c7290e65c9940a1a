package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/scheduler/services"
)

// Publisher receives change events after a mutation has been committed.
type Publisher interface {
	Publish(event services.Event)
}

func publish(p Publisher, eventType string, data any, user *string) {
	if p == nil {
		return
	}
	event := services.Event{Type: eventType, Data: data}
	if user != nil {
		event.User = *user
	}
	p.Publish(event)
}

// EventHandler streams change events over websockets.
type EventHandler struct {
	hub *services.Hub
}

func NewEventHandler(hub *services.Hub) *EventHandler {
	return &EventHandler{hub: hub}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// HandleWebSocket upgrades the HTTP connection to a WebSocket connection.
// Authenticated clients are subscribed to their own user; otherwise the user
// query parameter selects one, and an empty value subscribes to every user.
func (h *EventHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		userID = r.URL.Query().Get("user")
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	client := &services.Client{
		Hub:    h.hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: userID,
	}

	h.hub.Register(client)
	log.Printf("WebSocket client registered: %q", userID)

	go client.WritePump()
	go client.ReadPump()
}
