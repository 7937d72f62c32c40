package httpdto

import "time"

type UpdateStatusRequest struct {
	Status string               `json:"status" binding:"required"`
	Custom *CustomStatusRequest `json:"custom_status"`
}

type CustomStatusRequest struct {
	Emoji     string     `json:"emoji"`
	Text      string     `json:"text"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type PresenceBatchRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
}
