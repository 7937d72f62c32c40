package httpdto

type ForwardRequest struct {
	Note              string `json:"note"`
	IncludeTranscript bool   `json:"include_transcript"`
}

type ReplyAsVARequest struct {
	Body string `json:"body" binding:"required"`
}

type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

type UpdateAdminStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Force  bool   `json:"force"`
}

type BatchRequest struct {
	Action          string   `json:"action" binding:"required"`
	ConversationIDs []string `json:"conversation_ids" binding:"required"`
}
