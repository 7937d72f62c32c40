package httpdto

type SendMessageRequest struct {
	Body        string              `json:"body"`
	TempID      string              `json:"temp_id"`
	ReplyToID   string              `json:"reply_to_id"`
	Attachments []AttachmentRequest `json:"attachments"`
}

type AttachmentRequest struct {
	URL      string `json:"url" binding:"required"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type EditMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

type DeleteMessageRequest struct {
	ForEveryone bool `json:"for_everyone"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}
