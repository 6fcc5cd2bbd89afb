package dto

type AssistantMessageRequest struct {
	Message string `json:"message" validate:"required,max=500"`
}

// AssistantReplyResponse carries the answer text. Widget is set when the
// client should render an inline component, e.g. "booking".
type AssistantReplyResponse struct {
	Topic  string `json:"topic"`
	Text   string `json:"text"`
	Widget string `json:"widget,omitempty"`
}
