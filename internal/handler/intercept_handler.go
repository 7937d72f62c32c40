package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vahub-messaging/internal/domain/conversation"
	"vahub-messaging/internal/middleware"
	"vahub-messaging/internal/services"
	"vahub-messaging/internal/transport/httpdto"
)

// InterceptHandler handles the admin review-desk endpoints. Routes
// using it sit behind middleware.AdminOnly; the service re-checks the
// role anyway.
type InterceptHandler struct {
	service *services.InterceptService
}

func NewInterceptHandler(service *services.InterceptService) *InterceptHandler {
	return &InterceptHandler{service: service}
}

// List pages the intercepted queue.
func (h *InterceptHandler) List(c *gin.Context) {
	role, _ := middleware.RoleFrom(c)
	page, limit := pageParams(c)
	status := conversation.AdminStatus(c.Query("status"))

	convs, total, err := h.service.List(c.Request.Context(), role, status, page, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewPaginated(convs, total, page, limit)))
}

// Stats returns the dashboard summary.
func (h *InterceptHandler) Stats(c *gin.Context) {
	role, _ := middleware.RoleFrom(c)

	stats, err := h.service.Stats(c.Request.Context(), role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(stats))
}

// MarkRead clears the admin counter for one queue item.
func (h *InterceptHandler) MarkRead(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	adminID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)

	if err := h.service.MarkRead(c.Request.Context(), adminID, role, conversationID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"marked_read": true}))
}

// Forward releases an intercepted thread to the VA.
func (h *InterceptHandler) Forward(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.ForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	adminID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)

	conv, err := h.service.Forward(c.Request.Context(), adminID, role, conversationID, req.Note, req.IncludeTranscript)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

// ReplyAsVA posts into the intercepted conversation attributed to the
// VA.
func (h *InterceptHandler) ReplyAsVA(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.ReplyAsVARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	adminID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)

	if err := h.service.ReplyAsVA(c.Request.Context(), adminID, role, conversationID, req.Body); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"replied": true}))
}

// UpdateNotes replaces the admin scratchpad.
func (h *InterceptHandler) UpdateNotes(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	adminID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)

	if err := h.service.UpdateNotes(c.Request.Context(), adminID, role, conversationID, req.Notes); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"updated": true}))
}

// UpdateStatus moves a queue item through the workflow.
func (h *InterceptHandler) UpdateStatus(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.UpdateAdminStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	adminID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)

	if err := h.service.UpdateStatus(c.Request.Context(), adminID, role, conversationID, conversation.AdminStatus(req.Status), req.Force); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": req.Status}))
}

// Batch applies one action across many queue items.
func (h *InterceptHandler) Batch(c *gin.Context) {
	var req httpdto.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	ids := make([]uuid.UUID, 0, len(req.ConversationIDs))
	for _, raw := range req.ConversationIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
			return
		}
		ids = append(ids, id)
	}
	adminID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)

	result, err := h.service.Batch(c.Request.Context(), adminID, role, req.Action, ids)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}
