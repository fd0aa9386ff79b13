package notify

import (
	"context"
	"log"

	"github.com/gorilla/websocket"
)

// Client is one open websocket of an account. Admin clients also receive
// admin messages.
type Client struct {
	AccountID uint
	Admin     bool
	Conn      *websocket.Conn
}

// Hub pushes messages to connected websocket clients
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 100),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("[Hub] Client registered: account %d", client.AccountID)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Conn.Close()
				log.Printf("[Hub] Client unregistered: account %d", client.AccountID)
			}

		case msg := <-h.broadcast:
			h.send(msg)

		case <-h.done:
			for client := range h.clients {
				client.Conn.Close()
			}
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Conn.Close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) send(msg Message) {
	for client := range h.clients {
		if !wants(client, msg) {
			continue
		}
		if err := client.Conn.WriteJSON(msg); err != nil {
			log.Printf("[Hub] Write to account %d failed: %v", client.AccountID, err)
			delete(h.clients, client)
			client.Conn.Close()
		}
	}
}

func wants(client *Client, msg Message) bool {
	switch msg.Audience {
	case AudienceAll:
		return true
	case AudienceAdmin:
		return client.Admin
	default:
		return client.AccountID == msg.AccountID
	}
}

func (h *Hub) Name() string {
	return "websocket"
}

func (h *Hub) Deliver(ctx context.Context, msg Message) error {
	select {
	case h.broadcast <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
