package server

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/google/uuid"

	"vahub-messaging/internal/services"
	"vahub-messaging/pkg/metrics"
)

// Hub owns the websocket fan-out: it serializes register/unregister
// bookkeeping and event delivery through one loop, and implements
// services.Broadcaster for the service layer. Delivery is always
// per-user or to the admin room; there is no conversation-wide
// broadcast, which is what keeps intercepted traffic contained.
type Hub struct {
	registry        *Registry
	register        chan *Client
	unregister      chan *Client
	broadcast       chan *outboundEvent
	presenceService *services.PresenceService
	conversationSvc *services.ConversationService
	messageService  *services.MessageService
	logger          *WebSocketLogger
	stopChan        chan struct{}
	isRunning       int32
}

// outboundEvent is one delivery instruction for the hub loop.
type outboundEvent struct {
	userIDs []uuid.UUID
	admins  bool
	event   services.Event
}

var _ services.Broadcaster = (*Hub)(nil)

func NewHub(
	presenceService *services.PresenceService,
	conversationSvc *services.ConversationService,
	messageService *services.MessageService,
) *Hub {
	return &Hub{
		registry:        NewRegistry(),
		register:        make(chan *Client, 256),
		unregister:      make(chan *Client, 256),
		broadcast:       make(chan *outboundEvent, 1024),
		presenceService: presenceService,
		conversationSvc: conversationSvc,
		messageService:  messageService,
		logger:          NewWebSocketLogger(),
		stopChan:        make(chan struct{}),
	}
}

// Run starts the hub loop.
func (h *Hub) Run() {
	atomic.StoreInt32(&h.isRunning, 1)
	defer atomic.StoreInt32(&h.isRunning, 0)

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case out := <-h.broadcast:
			h.handleBroadcast(out)

		case <-h.stopChan:
			return
		}
	}
}

// ToUser delivers an event to every socket of one user.
func (h *Hub) ToUser(userID uuid.UUID, event services.Event) {
	h.enqueue(&outboundEvent{userIDs: []uuid.UUID{userID}, event: event})
}

// ToUsers delivers an event to every socket of a set of users.
func (h *Hub) ToUsers(userIDs []uuid.UUID, event services.Event) {
	if len(userIDs) == 0 {
		return
	}
	h.enqueue(&outboundEvent{userIDs: userIDs, event: event})
}

// ToAdmins delivers an event to every connected admin.
func (h *Hub) ToAdmins(event services.Event) {
	h.enqueue(&outboundEvent{admins: true, event: event})
}

// IsOnline reports whether the user has a live socket on this node.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	return h.registry.IsOnline(userID)
}

func (h *Hub) enqueue(out *outboundEvent) {
	select {
	case h.broadcast <- out:
	default:
		metrics.WebSocketBroadcastDropsTotal.Inc()
		h.logger.Warn("broadcast queue full, event dropped", uuid.Nil, "")
	}
}

func (h *Hub) handleRegister(client *Client) {
	first := h.registry.Add(client)
	_, sockets := h.registry.Totals()
	metrics.WebSocketConnections.Set(float64(sockets))

	if first && h.presenceService != nil {
		if _, err := h.presenceService.Connect(context.Background(), client.userID, client.clientID); err != nil {
			h.logger.Error("presence connect failed", client.userID, client.clientID, err)
		}
	}

	h.logger.Info("client connected", client.userID, client.clientID)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleUnregister(client *Client) {
	last, ok := h.registry.Remove(client)
	if !ok {
		return
	}
	h.closeClient(client)

	_, sockets := h.registry.Totals()
	metrics.WebSocketConnections.Set(float64(sockets))

	if last && h.presenceService != nil {
		if err := h.presenceService.Disconnect(context.Background(), client.userID); err != nil {
			h.logger.Error("presence disconnect failed", client.userID, client.clientID, err)
		}
	}

	h.logger.Info("client disconnected", client.userID, client.clientID)
}

func (h *Hub) closeClient(client *Client) {
	client.closeOnce.Do(func() {
		close(client.send)
		client.conn.Close()
	})
}

func (h *Hub) handleBroadcast(out *outboundEvent) {
	data, err := json.Marshal(out.event)
	if err != nil {
		h.logger.Error("event marshal failed", uuid.Nil, "", err)
		return
	}

	if out.admins {
		for _, client := range h.registry.AdminSockets() {
			h.deliver(client, data)
		}
		return
	}
	for _, userID := range out.userIDs {
		for _, client := range h.registry.SocketsFor(userID) {
			h.deliver(client, data)
		}
	}
}

func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		metrics.WebSocketBroadcastDropsTotal.Inc()
		h.logger.Warn("client send buffer full", client.userID, client.clientID)
	}
}

// Stop gracefully shuts down the hub and closes every socket.
func (h *Hub) Stop() {
	close(h.stopChan)

	for _, client := range h.registry.All() {
		h.registry.Remove(client)
		h.closeClient(client)
	}
	metrics.WebSocketConnections.Set(0)
}
