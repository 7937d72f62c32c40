package server

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vahub-messaging/internal/domain"
	domainpresence "vahub-messaging/internal/domain/presence"
	"vahub-messaging/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Per-minute socket message budgets.
type RateLimits struct {
	MaxTypingEvents    int
	MaxReadReceipts    int
	MaxPresenceUpdates int
	MaxMessages        int
	MaxPingMessages    int
}

var DefaultRateLimits = RateLimits{
	MaxTypingEvents:    60,
	MaxReadReceipts:    120,
	MaxPresenceUpdates: 30,
	MaxMessages:        60,
	MaxPingMessages:    60,
}

// ClientRateLimiter tracks per-socket budgets, refilled each minute.
type ClientRateLimiter struct {
	typingTokens      int
	readReceiptTokens int
	presenceTokens    int
	messageTokens     int
	pingTokens        int
	lastRefill        time.Time
	mu                sync.Mutex
}

func NewClientRateLimiter() *ClientRateLimiter {
	return &ClientRateLimiter{
		typingTokens:      DefaultRateLimits.MaxTypingEvents,
		readReceiptTokens: DefaultRateLimits.MaxReadReceipts,
		presenceTokens:    DefaultRateLimits.MaxPresenceUpdates,
		messageTokens:     DefaultRateLimits.MaxMessages,
		pingTokens:        DefaultRateLimits.MaxPingMessages,
		lastRefill:        time.Now(),
	}
}

func (rl *ClientRateLimiter) Allow(msgType string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.refillTokens()
		rl.lastRefill = now
	}

	switch msgType {
	case "typing_start", "typing_stop":
		if rl.typingTokens > 0 {
			rl.typingTokens--
			return true
		}
	case "mark_read":
		if rl.readReceiptTokens > 0 {
			rl.readReceiptTokens--
			return true
		}
	case "update_status", "heartbeat":
		if rl.presenceTokens > 0 {
			rl.presenceTokens--
			return true
		}
	case "send_message", "react", "unreact":
		if rl.messageTokens > 0 {
			rl.messageTokens--
			return true
		}
	case "ping", "join_conversations":
		if rl.pingTokens > 0 {
			rl.pingTokens--
			return true
		}
	}
	return false
}

func (rl *ClientRateLimiter) refillTokens() {
	rl.typingTokens = DefaultRateLimits.MaxTypingEvents
	rl.readReceiptTokens = DefaultRateLimits.MaxReadReceipts
	rl.presenceTokens = DefaultRateLimits.MaxPresenceUpdates
	rl.messageTokens = DefaultRateLimits.MaxMessages
	rl.pingTokens = DefaultRateLimits.MaxPingMessages
}

// Client represents a single websocket connection.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	userID       uuid.UUID
	role         domain.Role
	clientID     string
	rateLimiter  *ClientRateLimiter
	closeOnce    sync.Once
	connectedAt  time.Time
	lastActivity time.Time
	logger       WebSocketLogger
}

// ClientMessage is the inbound socket frame.
type ClientMessage struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
	MessageID      uuid.UUID `json:"message_id,omitempty"`
	TempID         string    `json:"temp_id,omitempty"`
	Body           string    `json:"body,omitempty"`
	Status         string    `json:"status,omitempty"`
	Emoji          string    `json:"emoji,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, role domain.Role, clientID string, logger WebSocketLogger) *Client {
	now := time.Now()
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		userID:       userID,
		role:         role,
		clientID:     clientID,
		rateLimiter:  NewClientRateLimiter(),
		connectedAt:  now,
		lastActivity: now,
		logger:       logger,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity = time.Now()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.userID, c.clientID, err)
			}
			break
		}

		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		c.lastActivity = time.Now()

		if err := c.handleMessage(message); err != nil {
			c.logger.Error("websocket handle message failed", c.userID, c.clientID, err)
			c.sendEvent(services.NewEvent(services.EventError, map[string]interface{}{
				"error": err.Error(),
			}))
		}
	}
}

func (c *Client) handleMessage(message []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return err
	}

	if !c.rateLimiter.Allow(msg.Type) {
		c.logger.Warn("rate limit exceeded", c.userID, c.clientID, zap.String("msg_type", msg.Type))
		return nil
	}

	ctx := context.Background()

	switch msg.Type {
	case "send_message":
		return c.handleSendMessage(ctx, msg)
	case "typing_start":
		return c.hub.presenceService.StartTyping(ctx, msg.ConversationID, c.userID)
	case "typing_stop":
		return c.hub.presenceService.StopTyping(ctx, msg.ConversationID, c.userID)
	case "mark_read":
		_, err := c.hub.messageService.MarkRead(ctx, msg.ConversationID, c.userID, c.role)
		return err
	case "heartbeat":
		return c.hub.presenceService.Heartbeat(ctx, c.userID)
	case "update_status":
		return c.handleUpdateStatus(ctx, msg)
	case "react":
		return c.hub.messageService.React(ctx, msg.MessageID, c.userID, msg.Emoji)
	case "unreact":
		return c.hub.messageService.Unreact(ctx, msg.MessageID, c.userID)
	case "join_conversations":
		return c.handleJoinConversations(ctx)
	case "ping":
		c.sendRaw([]byte(`{"type":"pong"}`))
		return nil
	default:
		c.logger.Warn("unknown message type", c.userID, c.clientID, zap.String("msg_type", msg.Type))
		return nil
	}
}

func (c *Client) handleSendMessage(ctx context.Context, msg ClientMessage) error {
	_, err := c.hub.messageService.Send(ctx, services.SendInput{
		ConversationID: msg.ConversationID,
		SenderID:       c.userID,
		SenderRole:     c.role,
		TempID:         msg.TempID,
		Body:           msg.Body,
	})
	return err
}

func (c *Client) handleUpdateStatus(ctx context.Context, msg ClientMessage) error {
	return c.hub.presenceService.SetStatus(ctx, c.userID, domainpresence.Status(msg.Status), nil)
}

// handleJoinConversations answers with the caller's conversation ids so
// the client can seed its local state after (re)connecting.
func (c *Client) handleJoinConversations(ctx context.Context) error {
	views, _, err := c.hub.conversationSvc.List(ctx, c.userID, c.role, 1, 100)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.Conversation.ID)
	}
	c.sendEvent(services.NewEvent(services.EventJoinedConversations, map[string]interface{}{
		"conversation_ids": ids,
	}))
	return nil
}

func (c *Client) sendEvent(event services.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) {
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full", c.userID, c.clientID)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			if time.Since(c.lastActivity) > pongWait*2 {
				c.logger.Info("client idle timeout", c.userID, c.clientID)
				return
			}
		}
	}
}
