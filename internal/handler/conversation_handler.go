// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vahub-messaging/internal/middleware"
	"vahub-messaging/internal/services"
	"vahub-messaging/internal/transport/httpdto"
)

// ConversationHandler handles conversation HTTP endpoints.
type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// Start opens or returns the conversation for a VA/business pair.
func (h *ConversationHandler) Start(c *gin.Context) {
	var req httpdto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	vaID, err := uuid.Parse(req.VAID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid va id", "INVALID_REQUEST"))
		return
	}
	businessID, err := uuid.Parse(req.BusinessID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid business id", "INVALID_REQUEST"))
		return
	}

	userID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)

	conv, err := h.service.Start(c.Request.Context(), userID, role, vaID, businessID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

// List returns the caller's conversations with role-scoped unreads.
func (h *ConversationHandler) List(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)
	page, limit := pageParams(c)

	views, total, err := h.service.List(c.Request.Context(), userID, role, page, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewPaginated(views, total, page, limit)))
}

// Get returns one conversation.
func (h *ConversationHandler) Get(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)

	view, err := h.service.Get(c.Request.Context(), conversationID, userID, role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

// Archive toggles the caller's archive flag.
func (h *ConversationHandler) Archive(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.ArchiveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	userID, _ := middleware.UserIDFrom(c)

	if err := h.service.Archive(c.Request.Context(), conversationID, userID, req.Archived); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"archived": req.Archived}))
}

// Pin toggles the caller's pin.
func (h *ConversationHandler) Pin(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.PinConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	userID, _ := middleware.UserIDFrom(c)

	if err := h.service.Pin(c.Request.Context(), conversationID, userID, req.Pinned); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"pinned": req.Pinned}))
}

// Mute silences the caller's notifications until the given time.
func (h *ConversationHandler) Mute(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.MuteConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	userID, _ := middleware.UserIDFrom(c)

	if err := h.service.Mute(c.Request.Context(), conversationID, userID, req.Until); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"muted_until": req.Until}))
}

// Block stops message flow from the caller's side.
func (h *ConversationHandler) Block(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.BlockConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	userID, _ := middleware.UserIDFrom(c)

	if err := h.service.Block(c.Request.Context(), conversationID, userID, req.Blocked); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"blocked": req.Blocked}))
}

// pathUUID parses a UUID path parameter, writing the error response on
// failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid "+name, "INVALID_REQUEST"))
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}
