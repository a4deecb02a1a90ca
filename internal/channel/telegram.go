// Package channel adapts chat transports to modq.Channel.
package channel

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"modq/internal/modq"
)

// botAPI is the subset of *tgbotapi.BotAPI used here.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ botAPI = (*tgbotapi.BotAPI)(nil)

// TelegramChannel delivers messages through the Telegram Bot API. Text is
// sent with HTML parse mode; render escapes user-supplied values.
type TelegramChannel struct {
	api botAPI
}

var (
	_ modq.Channel        = (*TelegramChannel)(nil)
	_ modq.MessageDeleter = (*TelegramChannel)(nil)
)

// NewTelegramChannel authenticates with token.
func NewTelegramChannel(token string, debug bool) (*TelegramChannel, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	api.Debug = debug
	return &TelegramChannel{api: api}, nil
}

// NewPoller returns a Poller reading updates from the same bot client.
func (c *TelegramChannel) NewPoller(handler Handler, timeout int, logger modq.Logger) *Poller {
	return NewPoller(c.api, handler, timeout, logger)
}

func newTelegramChannelFromAPI(api botAPI) *TelegramChannel {
	return &TelegramChannel{api: api}
}

func (c *TelegramChannel) SendText(_ context.Context, recipient int64, msg modq.OutboundMessage) error {
	out := tgbotapi.NewMessage(recipient, msg.Text)
	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true
	if len(msg.Keyboard) > 0 {
		out.ReplyMarkup = inlineKeyboard(msg.Keyboard)
	}
	if _, err := c.api.Send(out); err != nil {
		return fmt.Errorf("sending to %d: %w", recipient, err)
	}
	return nil
}

func (c *TelegramChannel) ForwardRaw(_ context.Context, recipient int64, source modq.MessageRef) error {
	fwd := tgbotapi.NewForward(recipient, source.ChatID, source.MessageID)
	if _, err := c.api.Send(fwd); err != nil {
		return fmt.Errorf("forwarding message %d to %d: %w", source.MessageID, recipient, err)
	}
	return nil
}

func (c *TelegramChannel) AnswerInteraction(_ context.Context, interactionID, text string) error {
	if _, err := c.api.Request(tgbotapi.NewCallback(interactionID, text)); err != nil {
		return fmt.Errorf("answering callback %s: %w", interactionID, err)
	}
	return nil
}

// DeleteMessage removes a message. Telegram refuses for messages older than 48 hours.
func (c *TelegramChannel) DeleteMessage(_ context.Context, ref modq.MessageRef) error {
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)); err != nil {
		return fmt.Errorf("deleting message %d in %d: %w", ref.MessageID, ref.ChatID, err)
	}
	return nil
}

func inlineKeyboard(kb modq.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Action))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
