package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"modq/internal/bot"
	"modq/internal/modq"
	"modq/internal/testutil"
)

type call struct {
	kind  string
	actor modq.Actor
	name  string
	args  string
	doc   bot.Document
}

type recordingHandler struct {
	mu    sync.Mutex
	calls []call
	panic bool
}

func (h *recordingHandler) record(c call) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, c)
}

func (h *recordingHandler) HandleCommand(_ context.Context, actor modq.Actor, name, args string) {
	if h.panic {
		panic("boom")
	}
	h.record(call{kind: "command", actor: actor, name: name, args: args})
}

func (h *recordingHandler) HandleDocument(_ context.Context, actor modq.Actor, doc bot.Document) {
	h.record(call{kind: "document", actor: actor, doc: doc})
}

func (h *recordingHandler) HandleButton(_ context.Context, actor modq.Actor, id, tag string) {
	h.record(call{kind: "button", actor: actor, name: id, args: tag})
}

func (h *recordingHandler) snapshot() []call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]call(nil), h.calls...)
}

func commandMessage(from *tgbotapi.User, text string) *tgbotapi.Message {
	cmd := len(text)
	for i, r := range text {
		if r == ' ' {
			cmd = i
			break
		}
	}
	return &tgbotapi.Message{
		MessageID: 11,
		From:      from,
		Chat:      &tgbotapi.Chat{ID: from.ID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmd}},
	}
}

func TestPoller_Dispatch(t *testing.T) {
	alice := &tgbotapi.User{ID: 42, UserName: "alice", FirstName: "Alice", LastName: "Smith"}

	tests := []struct {
		name    string
		upd     tgbotapi.Update
		want    call
		wantMsg modq.MessageRef
	}{
		{
			name:    "command with arguments",
			upd:     tgbotapi.Update{Message: commandMessage(alice, "/reject 42_1700000000 bad format")},
			want:    call{kind: "command", name: "reject", args: "42_1700000000 bad format"},
			wantMsg: modq.MessageRef{ChatID: 42, MessageID: 11},
		},
		{
			name: "document with size",
			upd: tgbotapi.Update{Message: &tgbotapi.Message{
				MessageID: 11,
				From:      alice,
				Chat:      &tgbotapi.Chat{ID: 42},
				Document:  &tgbotapi.Document{FileName: "report.csv", FileSize: 2048},
			}},
			want:    call{kind: "document", doc: bot.Document{FileName: "report.csv"}},
			wantMsg: modq.MessageRef{ChatID: 42, MessageID: 11},
		},
		{
			name: "plain text falls back to help",
			upd: tgbotapi.Update{Message: &tgbotapi.Message{
				From: alice, Chat: &tgbotapi.Chat{ID: 42}, Text: "hello?",
			}},
			want:    call{kind: "command", name: bot.CmdHelp},
			wantMsg: modq.MessageRef{ChatID: 42},
		},
		{
			name: "callback query",
			upd: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID:      "cb-9",
				From:    alice,
				Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}},
				Data:    "my_pending",
			}},
			want: call{kind: "button", name: "cb-9", args: "my_pending"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{}
			p := NewPoller(newFakeAPI(), h, 0, nil)
			p.dispatch(context.Background(), tt.upd)

			calls := h.snapshot()
			if len(calls) != 1 {
				t.Fatalf("got %d handler calls, want 1", len(calls))
			}
			got := calls[0]
			if got.kind != tt.want.kind || got.name != tt.want.name || got.args != tt.want.args {
				t.Errorf("call = {%s %q %q}, want {%s %q %q}", got.kind, got.name, got.args, tt.want.kind, tt.want.name, tt.want.args)
			}
			wantActor := modq.Actor{ID: 42, Username: "alice", FullName: "Alice Smith", ChatID: 42, Message: tt.wantMsg}
			if got.actor != wantActor {
				t.Errorf("actor = %+v, want %+v", got.actor, wantActor)
			}
			if tt.want.kind == "document" {
				if got.doc.FileName != "report.csv" || got.doc.Size == nil || *got.doc.Size != 2048 {
					t.Errorf("document = %+v", got.doc)
				}
				if got.doc.Source != (modq.MessageRef{ChatID: 42, MessageID: 11}) {
					t.Errorf("source = %+v", got.doc.Source)
				}
			}
		})
	}
}

func TestPoller_DocumentWithoutSize(t *testing.T) {
	h := &recordingHandler{}
	p := NewPoller(newFakeAPI(), h, 0, nil)
	p.dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 1},
		Chat:     &tgbotapi.Chat{ID: 1},
		Document: &tgbotapi.Document{FileName: "a.json"},
	}})

	calls := h.snapshot()
	if len(calls) != 1 || calls[0].doc.Size != nil {
		t.Errorf("calls = %+v, want one document with nil size", calls)
	}
}

func TestPoller_IgnoresAnonymousUpdates(t *testing.T) {
	h := &recordingHandler{}
	p := NewPoller(newFakeAPI(), h, 0, nil)

	p.dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "x"}})
	p.dispatch(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "x"}})
	p.dispatch(context.Background(), tgbotapi.Update{})

	if calls := h.snapshot(); len(calls) != 0 {
		t.Errorf("got %d handler calls, want 0", len(calls))
	}
}

func TestPoller_RecoversFromPanic(t *testing.T) {
	h := &recordingHandler{panic: true}
	p := NewPoller(newFakeAPI(), h, 0, nil)

	from := &tgbotapi.User{ID: 1}
	p.dispatch(context.Background(), tgbotapi.Update{Message: commandMessage(from, "/start")})
}

func TestPoller_Run(t *testing.T) {
	api := newFakeAPI()
	h := &recordingHandler{}
	p := NewPoller(api, h, 15, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	api.updates <- tgbotapi.Update{Message: commandMessage(&tgbotapi.User{ID: 3}, "/start")}

	deadline := time.Now().Add(2 * time.Second)
	for len(h.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("update was never dispatched")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if !api.stopped {
		t.Error("StopReceivingUpdates() not called")
	}
	if api.config.Timeout != 15 {
		t.Errorf("poll timeout = %d, want 15", api.config.Timeout)
	}
}

func TestPoller_DrivesService(t *testing.T) {
	env := testutil.NewTestService(testutil.TestReviewerID)
	p := NewPoller(newFakeAPI(), env.Service, 0, nil)

	p.dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 5,
		From:      &tgbotapi.User{ID: 7, UserName: "carol"},
		Chat:      &tgbotapi.Chat{ID: 7},
		Document:  &tgbotapi.Document{FileName: "data.json", FileSize: 100},
	}})

	if got := env.Queue.Counts().Pending; got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
	fwd := env.Channel.Forwarded()
	if len(fwd) != 1 || fwd[0].Source != (modq.MessageRef{ChatID: 7, MessageID: 5}) {
		t.Errorf("forwarded = %+v", fwd)
	}
}
