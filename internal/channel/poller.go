package channel

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"modq/internal/bot"
	"modq/internal/modq"
)

// DefaultPollTimeout is the long-poll timeout in seconds.
const DefaultPollTimeout = 30

// Handler receives decoded inbound events. *bot.Service implements it.
type Handler interface {
	HandleCommand(ctx context.Context, actor modq.Actor, name, args string)
	HandleDocument(ctx context.Context, actor modq.Actor, doc bot.Document)
	HandleButton(ctx context.Context, actor modq.Actor, interactionID, tag string)
}

var _ Handler = (*bot.Service)(nil)

// Poller long-polls Telegram for updates and hands each one to a Handler.
// Updates are processed one at a time in arrival order.
type Poller struct {
	api     botAPI
	handler Handler
	logger  modq.Logger
	timeout int
}

func NewPoller(api botAPI, handler Handler, timeout int, logger modq.Logger) *Poller {
	if logger == nil {
		logger = modq.NewNopLogger()
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{api: api, handler: handler, logger: logger, timeout: timeout}
}

// Run processes updates until ctx is cancelled or the update stream closes.
func (p *Poller) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	cfg.AllowedUpdates = []string{"message", "callback_query"}
	updates := p.api.GetUpdatesChan(cfg)

	p.logger.Info("polling for updates", "timeout", p.timeout)
	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			p.logger.Info("polling stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				p.logger.Warn("update stream closed")
				return
			}
			p.dispatch(ctx, upd)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("update handler panicked", "update_id", upd.UpdateID, "panic", r)
		}
	}()

	switch {
	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		if cq.From == nil {
			return
		}
		actor := actorFrom(cq.From)
		if cq.Message != nil && cq.Message.Chat != nil {
			actor.ChatID = cq.Message.Chat.ID
		}
		p.handler.HandleButton(ctx, actor, cq.ID, cq.Data)

	case upd.Message != nil:
		msg := upd.Message
		if msg.From == nil || msg.Chat == nil {
			return
		}
		actor := actorFrom(msg.From)
		actor.ChatID = msg.Chat.ID
		actor.Message = modq.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}

		switch {
		case msg.IsCommand():
			p.handler.HandleCommand(ctx, actor, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		case msg.Document != nil:
			p.handler.HandleDocument(ctx, actor, documentFrom(msg))
		default:
			p.handler.HandleCommand(ctx, actor, bot.CmdHelp, "")
		}
	}
}

func actorFrom(u *tgbotapi.User) modq.Actor {
	return modq.Actor{
		ID:       u.ID,
		Username: u.UserName,
		FullName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		ChatID:   u.ID,
	}
}

func documentFrom(msg *tgbotapi.Message) bot.Document {
	doc := bot.Document{
		FileName: msg.Document.FileName,
		Source:   modq.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID},
	}
	// Telegram omits file_size when unknown.
	if msg.Document.FileSize > 0 {
		size := int64(msg.Document.FileSize)
		doc.Size = &size
	}
	return doc
}
