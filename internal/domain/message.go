package domain

import "strings"

// InboundPayload is the webhook body delivered by the messaging gateway.
// Only phone and text.message are required; everything else is optional.
type InboundPayload struct {
	Phone      string       `json:"phone"`
	Text       *TextContent `json:"text,omitempty"`
	FromMe     bool         `json:"fromMe,omitempty"`
	MessageID  string       `json:"messageId,omitempty"`
	SenderName string       `json:"senderName,omitempty"`
}

// TextContent carries the textual part of an inbound message. A nil Message
// means the gateway delivered a non-text message (audio, image, sticker...).
type TextContent struct {
	Message *string `json:"message,omitempty"`
}

// HasText reports whether the payload carries a text.message field at all.
func (p InboundPayload) HasText() bool {
	return p.Text != nil && p.Text.Message != nil
}

// Event converts the payload into an InboundEvent. The second return value
// is false when the user id or message text cannot be extracted.
func (p InboundPayload) Event() (InboundEvent, bool) {
	phone := strings.TrimSpace(p.Phone)
	if phone == "" || !p.HasText() {
		return InboundEvent{}, false
	}
	text := strings.TrimSpace(*p.Text.Message)
	if text == "" {
		return InboundEvent{}, false
	}
	return InboundEvent{UserID: phone, RawText: text}, true
}

// InboundEvent is one user message, immutable for the lifetime of a dispatch.
type InboundEvent struct {
	UserID  string
	RawText string
}
