package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/middleware"
	"vahub-messaging/internal/redis"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler authenticates and upgrades socket connections.
type WebSocketHandler struct {
	hub         *Hub
	jwtSecret   string
	rateLimiter *redis.RateLimiter
	logger      *WebSocketLogger
}

func NewWebSocketHandler(hub *Hub, jwtSecret string, rateLimiter *redis.RateLimiter) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		jwtSecret:   jwtSecret,
		rateLimiter: rateLimiter,
		logger:      NewWebSocketLogger(),
	}
}

// Handle upgrades HTTP to WebSocket
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := middleware.ExtractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := middleware.ParseToken(h.jwtSecret, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid role"})
		return
	}

	if h.rateLimiter != nil {
		result, err := h.rateLimiter.AllowConnect(c.Request.Context(), userID.String())
		if err == nil && !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "connection rate limit exceeded"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", userID, "", err)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(h.hub, conn, userID, role, clientID, *h.logger)

	h.hub.register <- client
}
