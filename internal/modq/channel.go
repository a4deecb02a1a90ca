package modq

import "context"

// Button is one inline button. Action is the tag delivered back on press.
type Button struct {
	Text   string
	Action string
}

// Keyboard is a grid of inline buttons, one slice per row.
type Keyboard [][]Button

// OutboundMessage is a text message with an optional inline keyboard.
type OutboundMessage struct {
	Text     string
	Keyboard Keyboard
}

// Channel is the messaging capability consumed by the core.
// Implementations deliver best-effort; callers treat every error as a delivery failure.
type Channel interface {
	// SendText sends a message to the recipient's private chat.
	SendText(ctx context.Context, recipient int64, msg OutboundMessage) error

	// ForwardRaw forwards an existing message (e.g. an uploaded document) to the recipient.
	ForwardRaw(ctx context.Context, recipient int64, source MessageRef) error

	// AnswerInteraction acknowledges a button press, optionally with a short ephemeral text.
	AnswerInteraction(ctx context.Context, interactionID string, text string) error
}

// MessageDeleter is implemented by channels that can remove an inbound message,
// e.g. to hide the secret trigger from the chat history.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, ref MessageRef) error
}
