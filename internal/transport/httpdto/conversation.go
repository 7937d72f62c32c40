package httpdto

import "time"

type StartConversationRequest struct {
	VAID       string `json:"va_id" binding:"required"`
	BusinessID string `json:"business_id" binding:"required"`
}

type MuteConversationRequest struct {
	Until *time.Time `json:"until"`
}

type ArchiveConversationRequest struct {
	Archived bool `json:"archived"`
}

type PinConversationRequest struct {
	Pinned bool `json:"pinned"`
}

type BlockConversationRequest struct {
	Blocked bool `json:"blocked"`
}
