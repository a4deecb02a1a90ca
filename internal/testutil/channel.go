package testutil

import (
	"context"
	"strings"
	"sync"

	"modq/internal/modq"
)

var (
	_ modq.Channel        = (*RecordingChannel)(nil)
	_ modq.MessageDeleter = (*RecordingChannel)(nil)
)

// Sent is a recorded SendText call.
type Sent struct {
	Recipient int64
	Message   modq.OutboundMessage
}

// Forwarded is a recorded ForwardRaw call.
type Forwarded struct {
	Recipient int64
	Source    modq.MessageRef
}

// Answered is a recorded AnswerInteraction call.
type Answered struct {
	InteractionID string
	Text          string
}

// RecordingChannel records every outbound call. Safe for concurrent use.
// Set FailFor to make deliveries to a recipient fail.
type RecordingChannel struct {
	mu        sync.Mutex
	sent      []Sent
	forwarded []Forwarded
	answered  []Answered
	deleted   []modq.MessageRef
	failFor   map[int64]error
}

func NewRecordingChannel() *RecordingChannel {
	return &RecordingChannel{failFor: make(map[int64]error)}
}

// FailFor makes every SendText and ForwardRaw to recipient return err.
func (c *RecordingChannel) FailFor(recipient int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failFor[recipient] = err
}

func (c *RecordingChannel) SendText(_ context.Context, recipient int64, msg modq.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failFor[recipient]; err != nil {
		return err
	}
	c.sent = append(c.sent, Sent{Recipient: recipient, Message: msg})
	return nil
}

func (c *RecordingChannel) ForwardRaw(_ context.Context, recipient int64, source modq.MessageRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failFor[recipient]; err != nil {
		return err
	}
	c.forwarded = append(c.forwarded, Forwarded{Recipient: recipient, Source: source})
	return nil
}

func (c *RecordingChannel) AnswerInteraction(_ context.Context, interactionID string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answered = append(c.answered, Answered{InteractionID: interactionID, Text: text})
	return nil
}

// SentTo returns the messages delivered to recipient, in order.
func (c *RecordingChannel) SentTo(recipient int64) []modq.OutboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []modq.OutboundMessage
	for _, s := range c.sent {
		if s.Recipient == recipient {
			out = append(out, s.Message)
		}
	}
	return out
}

// LastTo returns the most recent message to recipient, or a zero message.
func (c *RecordingChannel) LastTo(recipient int64) modq.OutboundMessage {
	msgs := c.SentTo(recipient)
	if len(msgs) == 0 {
		return modq.OutboundMessage{}
	}
	return msgs[len(msgs)-1]
}

// AnyTo reports whether some message to recipient contains substr.
func (c *RecordingChannel) AnyTo(recipient int64, substr string) bool {
	for _, m := range c.SentTo(recipient) {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}

func (c *RecordingChannel) Forwarded() []Forwarded {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Forwarded(nil), c.forwarded...)
}

func (c *RecordingChannel) Answered() []Answered {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Answered(nil), c.answered...)
}

func (c *RecordingChannel) DeleteMessage(_ context.Context, ref modq.MessageRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, ref)
	return nil
}

func (c *RecordingChannel) Deleted() []modq.MessageRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]modq.MessageRef(nil), c.deleted...)
}

// Reset forgets every recorded call.
func (c *RecordingChannel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
	c.forwarded = nil
	c.answered = nil
	c.deleted = nil
}
