package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vahub-messaging/internal/middleware"
	"vahub-messaging/internal/services"
	"vahub-messaging/internal/transport/httpdto"
)

// NotificationHandler handles the durable inbox endpoints.
type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List pages the caller's inbox.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)
	page, limit := pageParams(c)

	items, total, err := h.service.List(c.Request.Context(), userID, page, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewPaginated(items, total, page, limit)))
}

// MarkRead acknowledges one inbox record.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFrom(c)

	if err := h.service.MarkRead(c.Request.Context(), id, userID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"read": true}))
}
