package channel

import (
	"context"
	"strings"

	"modq/internal/modq"
)

// LogChannel writes outbound traffic to the logger instead of a chat network.
// It is meant for dry runs and local development.
type LogChannel struct {
	logger modq.Logger
}

var (
	_ modq.Channel        = (*LogChannel)(nil)
	_ modq.MessageDeleter = (*LogChannel)(nil)
)

func NewLogChannel(logger modq.Logger) *LogChannel {
	if logger == nil {
		logger = modq.NewNopLogger()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) SendText(_ context.Context, recipient int64, msg modq.OutboundMessage) error {
	c.logger.Info("send", "recipient", recipient, "text", msg.Text, "buttons", buttonActions(msg.Keyboard))
	return nil
}

func (c *LogChannel) ForwardRaw(_ context.Context, recipient int64, source modq.MessageRef) error {
	c.logger.Info("forward", "recipient", recipient, "chat_id", source.ChatID, "message_id", source.MessageID)
	return nil
}

func (c *LogChannel) AnswerInteraction(_ context.Context, interactionID, text string) error {
	c.logger.Info("answer", "interaction_id", interactionID, "text", text)
	return nil
}

func (c *LogChannel) DeleteMessage(_ context.Context, ref modq.MessageRef) error {
	c.logger.Info("delete", "chat_id", ref.ChatID, "message_id", ref.MessageID)
	return nil
}

func buttonActions(kb modq.Keyboard) string {
	var actions []string
	for _, row := range kb {
		for _, b := range row {
			actions = append(actions, b.Action)
		}
	}
	return strings.Join(actions, ",")
}
