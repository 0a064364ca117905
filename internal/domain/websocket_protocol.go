package domain

import (
	"github.com/coder/websocket"
)

// Message types of the admin badge websocket.
const (
	MessageTypeReady        = "ready"
	MessageTypeUnreadCounts = "unread_counts"
	MessageTypeError        = "error"
	MessageTypeNavigate     = "navigate"

	StatusGoingAway websocket.StatusCode = 1001 // Standard code for server going away
)

// BaseMessage is the envelope for every frame on the badge websocket.
type BaseMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// NavigatePayload is sent by the admin console when the active route changes.
type NavigatePayload struct {
	Path string `json:"path"`
}

// NewReadyMessage creates the first frame sent after the upgrade.
func NewReadyMessage(counts UnreadCounts) BaseMessage {
	return BaseMessage{Type: MessageTypeReady, Payload: counts}
}

// NewUnreadCountsMessage wraps a counter snapshot.
func NewUnreadCountsMessage(counts UnreadCounts) BaseMessage {
	return BaseMessage{Type: MessageTypeUnreadCounts, Payload: counts}
}

// NewErrorMessage wraps an ErrorResponse.
func NewErrorMessage(errResp ErrorResponse) BaseMessage {
	return BaseMessage{Type: MessageTypeError, Payload: errResp}
}
