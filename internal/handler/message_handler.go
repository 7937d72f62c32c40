package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vahub-messaging/internal/domain/message"
	"vahub-messaging/internal/middleware"
	"vahub-messaging/internal/services"
	"vahub-messaging/internal/transport/httpdto"
)

// MessageHandler handles message HTTP endpoints.
type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// Send posts a message into a conversation.
func (h *MessageHandler) Send(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	userID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)

	in := services.SendInput{
		ConversationID: conversationID,
		SenderID:       userID,
		SenderRole:     role,
		TempID:         req.TempID,
		Body:           req.Body,
	}
	if req.ReplyToID != "" {
		replyTo, err := uuid.Parse(req.ReplyToID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid reply_to_id", "INVALID_REQUEST"))
			return
		}
		in.ReplyToID = uuid.NullUUID{UUID: replyTo, Valid: true}
	}
	for _, a := range req.Attachments {
		in.Attachments = append(in.Attachments, message.Attachment{
			URL:      a.URL,
			Name:     a.Name,
			Size:     a.Size,
			MimeType: a.MimeType,
		})
	}

	msg, err := h.service.Send(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

// List pages a conversation's messages newest-first using an opaque
// cursor.
func (h *MessageHandler) List(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	msgs, next, err := h.service.GetMessages(c.Request.Context(), conversationID, userID, role, c.Query("cursor"), limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"messages":    msgs,
		"next_cursor": next,
	}))
}

// MarkRead acknowledges all unread messages in a conversation.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)

	affected, err := h.service.MarkRead(c.Request.Context(), conversationID, userID, role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"marked_read": affected}))
}

// Edit replaces the body of the caller's own message.
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}
	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	userID, _ := middleware.UserIDFrom(c)

	msg, err := h.service.Edit(c.Request.Context(), messageID, userID, req.Body)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

// Delete tombstones a message.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}
	var req httpdto.DeleteMessageRequest
	_ = c.ShouldBindJSON(&req)

	userID, _ := middleware.UserIDFrom(c)
	role, _ := middleware.RoleFrom(c)

	if err := h.service.Delete(c.Request.Context(), messageID, userID, role, req.ForEveryone); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deleted": true}))
}

// React sets the caller's emoji reaction on a message.
func (h *MessageHandler) React(c *gin.Context) {
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}
	var req httpdto.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	userID, _ := middleware.UserIDFrom(c)

	if err := h.service.React(c.Request.Context(), messageID, userID, req.Emoji); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"emoji": req.Emoji}))
}

// Unreact removes the caller's reaction.
func (h *MessageHandler) Unreact(c *gin.Context) {
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFrom(c)

	if err := h.service.Unreact(c.Request.Context(), messageID, userID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"removed": true}))
}
