package protocol

// SubmitRequest is the body of POST /api/messages.
type SubmitRequest struct {
	ConversationID   string      `json:"conversationId"`
	SenderID         string      `json:"senderId"`
	SenderName       string      `json:"senderName,omitempty"`
	Body             string      `json:"body"`
	Kind             MessageKind `json:"kind"`
	AttachmentRef    string      `json:"attachmentRef,omitempty"`
	CorrelationToken string      `json:"correlationToken,omitempty"`
}

// SubmitResponse returns the server-confirmed message.
type SubmitResponse struct {
	Message Message `json:"message"`
}

// HistoryResponse is the body of GET /api/conversations/{id}/messages,
// ordered oldest first.
type HistoryResponse struct {
	Messages []Message `json:"messages"`
}

// ErrorResponse carries a failure reason for a rejected API call.
type ErrorResponse struct {
	Error string `json:"error"`
}
