package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vahub-messaging/internal/domain/presence"
	"vahub-messaging/internal/middleware"
	"vahub-messaging/internal/services"
	"vahub-messaging/internal/transport/httpdto"
)

// PresenceHandler handles presence HTTP endpoints.
type PresenceHandler struct {
	service *services.PresenceService
}

func NewPresenceHandler(service *services.PresenceService) *PresenceHandler {
	return &PresenceHandler{service: service}
}

// Get returns one user's presence.
func (h *PresenceHandler) Get(c *gin.Context) {
	userID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}
	rec, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(rec))
}

// GetBatch returns presence for a set of users in one call.
func (h *PresenceHandler) GetBatch(c *gin.Context) {
	var req httpdto.PresenceBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	ids := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
			return
		}
		ids = append(ids, id)
	}

	recs, err := h.service.GetMany(c.Request.Context(), ids)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(recs))
}

// UpdateStatus applies a manual status change for the caller.
func (h *PresenceHandler) UpdateStatus(c *gin.Context) {
	var req httpdto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	userID, _ := middleware.UserIDFrom(c)

	var custom *services.CustomStatus
	if req.Custom != nil {
		custom = &services.CustomStatus{
			Emoji:     req.Custom.Emoji,
			Text:      req.Custom.Text,
			ExpiresAt: req.Custom.ExpiresAt,
		}
	}

	if err := h.service.SetStatus(c.Request.Context(), userID, presence.Status(req.Status), custom); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": req.Status}))
}

// Heartbeat refreshes the caller's lastSeen over HTTP; socket clients
// use the heartbeat frame instead.
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)
	if err := h.service.Heartbeat(c.Request.Context(), userID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"ok": true}))
}
