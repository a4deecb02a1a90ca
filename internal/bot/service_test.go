package bot_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"modq/internal/bot"
	"modq/internal/modq"
	"modq/internal/render"
	"modq/internal/testutil"
)

const reviewerID = testutil.TestReviewerID

func upload(t *testing.T, env *testutil.TestEnv, actor modq.Actor, name string) modq.Submission {
	t.Helper()
	env.Service.HandleDocument(context.Background(), actor, bot.Document{
		FileName: name,
		Source:   modq.MessageRef{ChatID: actor.ChatID, MessageID: 1},
	})
	pending := env.Queue.ListPending(modq.OwnedBy(actor.ID))
	if len(pending) == 0 {
		t.Fatalf("upload of %q was not queued", name)
	}
	return pending[len(pending)-1]
}

func lastAnswer(env *testutil.TestEnv) testutil.Answered {
	answers := env.Channel.Answered()
	if len(answers) == 0 {
		return testutil.Answered{}
	}
	return answers[len(answers)-1]
}

func TestService_HandleDocument(t *testing.T) {
	t.Run("accepted upload is queued and forwarded", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		alice := testutil.User(1, "alice")

		sub := upload(t, env, alice, "history.json")

		if !env.Channel.AnyTo(1, "File accepted") {
			t.Error("submitter did not get an acknowledgement")
		}
		if len(env.Channel.Forwarded()) != 1 {
			t.Errorf("forwarded = %d, want 1", len(env.Channel.Forwarded()))
		}
		if !env.Channel.AnyTo(reviewerID, sub.ID) {
			t.Error("reviewer prompt missing submission id")
		}
		u, _ := env.Registry.Get(1)
		if u.FilesCount != 1 || u.LastUpload == nil {
			t.Errorf("user counters = %+v", u)
		}
	})

	t.Run("invalid format is reported and nothing is queued", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		alice := testutil.User(1, "alice")

		env.Service.HandleDocument(context.Background(), alice, bot.Document{FileName: "photo.png"})

		if !env.Channel.AnyTo(1, "Unsupported file format") {
			t.Error("missing format rejection")
		}
		if env.Queue.Counts().Pending != 0 {
			t.Error("invalid upload was queued")
		}
		if len(env.Channel.SentTo(reviewerID)) != 0 {
			t.Error("reviewer notified of invalid upload")
		}
		u, _ := env.Registry.Get(1)
		if u.FilesCount != 0 {
			t.Errorf("FilesCount = %d, want 0", u.FilesCount)
		}
	})

	t.Run("too large is reported", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		size := modq.MaxFileSize + 1

		env.Service.HandleDocument(context.Background(), testutil.User(1, "a"), bot.Document{FileName: "a.json", Size: &size})

		if !env.Channel.AnyTo(1, "File too large") {
			t.Error("missing size rejection")
		}
	})

	t.Run("grant holder gets panel hint", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		alice := testutil.User(1, "alice")
		env.Ledger.Discover(1, "alice", "alice")

		upload(t, env, alice, "a.txt")

		if !env.Channel.AnyTo(1, "/"+bot.DefaultTrigger) {
			t.Error("grant holder hint missing")
		}
	})
}

func TestService_Decisions(t *testing.T) {
	t.Run("approve button decides and notifies submitter", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		alice := testutil.User(1, "alice")
		reviewer := testutil.User(reviewerID, "mod")
		sub := upload(t, env, alice, "a.json")

		env.Service.HandleButton(context.Background(), reviewer, "cb1", render.PrefixApprove+sub.ID)

		if got := lastAnswer(env); got.InteractionID != "cb1" || got.Text != render.Approved {
			t.Errorf("answer = %+v", got)
		}
		if !env.Channel.AnyTo(1, "approved") {
			t.Error("submitter not notified of approval")
		}
		if !env.Channel.AnyTo(reviewerID, "FILE APPROVED") {
			t.Error("reviewer confirmation missing")
		}
		u, _ := env.Registry.Get(1)
		if u.ApprovedCount != 1 || u.RejectedCount != 0 {
			t.Errorf("user counters = %+v", u)
		}
		if c := env.Queue.Counts(); c.Pending != 0 || c.Approved != 1 {
			t.Errorf("Counts() = %+v", c)
		}
	})

	t.Run("non reviewer cannot decide", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		alice := testutil.User(1, "alice")
		sub := upload(t, env, alice, "a.json")
		env.Channel.Reset()

		env.Service.HandleButton(context.Background(), alice, "cb", render.PrefixReject+sub.ID)

		if got := lastAnswer(env); got.Text != render.NoAccess {
			t.Errorf("answer = %+v, want no access", got)
		}
		if env.Queue.Counts().Pending != 1 {
			t.Error("unauthorized press mutated the queue")
		}
		if len(env.Channel.SentTo(1)) != 0 {
			t.Error("submitter notified after unauthorized press")
		}
	})

	t.Run("second decision reports not found", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		reviewer := testutil.User(reviewerID, "mod")
		sub := upload(t, env, testutil.User(1, "alice"), "a.json")

		env.Service.HandleButton(context.Background(), reviewer, "cb1", render.PrefixApprove+sub.ID)
		env.Service.HandleButton(context.Background(), reviewer, "cb2", render.PrefixReject+sub.ID)

		if got := lastAnswer(env); got.InteractionID != "cb2" || got.Text != render.NotFound {
			t.Errorf("answer = %+v, want not found", got)
		}
		u, _ := env.Registry.Get(1)
		if u.ApprovedCount != 1 || u.RejectedCount != 0 {
			t.Errorf("user counters = %+v", u)
		}
	})

	t.Run("reject command stores reason", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		reviewer := testutil.User(reviewerID, "mod")
		sub := upload(t, env, testutil.User(1, "alice"), "a.json")

		env.Service.HandleCommand(context.Background(), reviewer, "reject", sub.ID+" file is empty")

		rejected := env.Queue.ListDecided(modq.OutcomeReject, modq.All())
		if len(rejected) != 1 || rejected[0].AdminComment != "file is empty" {
			t.Fatalf("rejected = %+v", rejected)
		}
		if !env.Channel.AnyTo(1, "file is empty") {
			t.Error("submitter did not receive the reason")
		}
		u, _ := env.Registry.Get(1)
		if u.RejectedCount != 1 {
			t.Errorf("RejectedCount = %d, want 1", u.RejectedCount)
		}
	})

	t.Run("comment command annotates rejected submission", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		reviewer := testutil.User(reviewerID, "mod")
		sub := upload(t, env, testutil.User(1, "alice"), "a.json")
		env.Service.HandleButton(context.Background(), reviewer, "cb", render.PrefixReject+sub.ID)

		env.Service.HandleCommand(context.Background(), reviewer, "comment", sub.ID+" wrong export")

		rejected := env.Queue.ListDecided(modq.OutcomeReject, modq.All())
		if rejected[0].AdminComment != "wrong export" {
			t.Errorf("AdminComment = %q", rejected[0].AdminComment)
		}
		if !env.Channel.AnyTo(reviewerID, "Comment saved") {
			t.Error("reviewer confirmation missing")
		}
	})

	t.Run("reviewer commands require the reviewer", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		alice := testutil.User(1, "alice")
		sub := upload(t, env, alice, "a.json")

		env.Service.HandleCommand(context.Background(), alice, "reject", sub.ID)

		if env.Queue.Counts().Pending != 1 {
			t.Error("non reviewer rejected via command")
		}
		if !env.Channel.AnyTo(1, "administrator rights") {
			t.Error("missing access denied reply")
		}
	})
}

func TestService_SecretPanel(t *testing.T) {
	t.Run("discovery opens panel and notifies reviewer", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		bob := testutil.User(2, "bob")

		env.Service.HandleCommand(context.Background(), bob, bot.DefaultTrigger, "")

		if !env.Ledger.HasGrant(2) {
			t.Fatal("grant not recorded")
		}
		panel := env.Channel.LastTo(2)
		if !strings.Contains(panel.Text, "SECRET PANEL") || len(panel.Keyboard) == 0 {
			t.Errorf("panel = %+v", panel)
		}
		if !env.Channel.AnyTo(reviewerID, "SECRET PANEL OPENED") {
			t.Error("reviewer not told about the discovery")
		}
		u, _ := env.Registry.Get(2)
		if !u.IsSecretAdmin {
			t.Error("registry flag not refreshed")
		}
	})

	t.Run("trigger message is deleted", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		bob := testutil.User(2, "bob")
		bob.Message = modq.MessageRef{ChatID: 2, MessageID: 55}

		env.Service.HandleCommand(context.Background(), bob, bot.DefaultTrigger, "")
		env.Service.HandleCommand(context.Background(), bob, bot.CmdHelp, "")

		deleted := env.Channel.Deleted()
		if len(deleted) != 1 || deleted[0] != bob.Message {
			t.Errorf("deleted = %+v, want only the trigger %+v", deleted, bob.Message)
		}
	})

	t.Run("button press deletes nothing", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		bob := testutil.User(2, "bob")

		env.Service.HandleButton(context.Background(), bob, "cb", render.ActShowPanel)

		if got := env.Channel.Deleted(); len(got) != 0 {
			t.Errorf("deleted = %+v, want none", got)
		}
	})

	t.Run("repeat visits count accesses", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		bob := testutil.User(2, "bob")

		env.Service.HandleCommand(context.Background(), bob, bot.DefaultTrigger, "")
		env.Clock.Advance(time.Hour)
		env.Service.HandleButton(context.Background(), bob, "cb", render.ActShowPanel)

		g, _ := env.Ledger.Get(2)
		if g.AccessCount != 2 {
			t.Errorf("AccessCount = %d, want 2", g.AccessCount)
		}
	})

	t.Run("reviewer gets full panel and digest", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		reviewer := testutil.User(reviewerID, "mod")
		upload(t, env, testutil.User(1, "alice"), "a.json")
		env.Clock.Advance(15 * time.Minute)
		env.Channel.Reset()

		env.Service.HandleCommand(context.Background(), reviewer, bot.DefaultTrigger, "")

		msgs := env.Channel.SentTo(reviewerID)
		if len(msgs) != 2 {
			t.Fatalf("reviewer got %d messages, want panel and digest", len(msgs))
		}
		if !strings.Contains(msgs[0].Text, "REVIEWER") {
			t.Errorf("panel = %q", msgs[0].Text)
		}
		if !strings.Contains(msgs[1].Text, "15 min ago") {
			t.Errorf("digest = %q", msgs[1].Text)
		}
	})

	t.Run("self scoped views require a grant", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		carol := testutil.User(3, "carol")

		env.Service.HandleButton(context.Background(), carol, "cb", render.ActMyPending)

		if got := lastAnswer(env); got.Text != render.NoPanelAccess {
			t.Errorf("answer = %+v", got)
		}
		if len(env.Channel.SentTo(3)) != 0 {
			t.Error("view rendered without a grant")
		}
	})

	t.Run("self scoped views show only own files", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		bob := testutil.User(2, "bob")
		upload(t, env, bob, "mine.json")
		upload(t, env, testutil.User(4, "dave"), "theirs.json")
		env.Service.HandleCommand(context.Background(), bob, bot.DefaultTrigger, "")

		env.Service.HandleButton(context.Background(), bob, "cb", render.ActMyPending)

		view := env.Channel.LastTo(2).Text
		if !strings.Contains(view, "mine.json") || strings.Contains(view, "theirs.json") {
			t.Errorf("pending view = %q", view)
		}
	})
}

func TestService_ReviewerViews(t *testing.T) {
	env := testutil.NewTestService(reviewerID)
	reviewer := testutil.User(reviewerID, "mod")
	alice := testutil.User(1, "alice")
	sub := upload(t, env, alice, "a.json")

	tests := []struct {
		name string
		tag  string
		want string
	}{
		{"all pending", render.ActAllPending, "ALL PENDING FILES"},
		{"all users", render.ActAllUsers, "ALL USERS"},
		{"full stats", render.ActFullStats, "Files today: 1"},
		{"notifications", render.ActNotifications, "Waiting for an answer: 1"},
		{"view", render.PrefixView + sub.ID, "FILE DETAILS"},
		{"back", render.ActReviewerPanel, "Reviewer panel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.Service.HandleButton(context.Background(), reviewer, "cb", tt.tag)
			if got := env.Channel.LastTo(reviewerID).Text; !strings.Contains(got, tt.want) {
				t.Errorf("reply = %q, want it to contain %q", got, tt.want)
			}
		})
	}

	t.Run("denied to others", func(t *testing.T) {
		env.Service.HandleButton(context.Background(), alice, "cb-x", render.ActAllUsers)
		if got := lastAnswer(env); got.Text != render.NoAccess {
			t.Errorf("answer = %+v", got)
		}
	})

	t.Run("unknown tag", func(t *testing.T) {
		env.Service.HandleButton(context.Background(), alice, "cb-y", "instruction")
		if got := lastAnswer(env); got.Text != render.UnknownAction {
			t.Errorf("answer = %+v", got)
		}
	})
}

func TestService_Commands(t *testing.T) {
	t.Run("start registers user", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		env.Service.HandleCommand(context.Background(), testutil.User(9, "zed"), "start", "")

		if env.Registry.Count() != 1 {
			t.Errorf("Count() = %d, want 1", env.Registry.Count())
		}
		if len(env.Channel.SentTo(9)) != 1 {
			t.Errorf("messages = %d, want only the welcome", len(env.Channel.SentTo(9)))
		}
	})

	t.Run("start hints grant holders", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		env.Ledger.Discover(9, "zed", "zed")
		env.Service.HandleCommand(context.Background(), testutil.User(9, "zed"), "/start", "")

		if !env.Channel.AnyTo(9, "access to the secret panel") {
			t.Error("grant hint missing")
		}
	})

	t.Run("admin is reviewer only", func(t *testing.T) {
		env := testutil.NewTestService(reviewerID)
		env.Service.HandleCommand(context.Background(), testutil.User(9, "zed"), "admin", "")
		env.Service.HandleCommand(context.Background(), testutil.User(reviewerID, "mod"), "admin", "")

		if !env.Channel.AnyTo(9, "administrator rights") {
			t.Error("non reviewer not denied")
		}
		if !env.Channel.AnyTo(reviewerID, "Reviewer panel") {
			t.Error("reviewer panel missing")
		}
	})

	t.Run("no reviewer configured", func(t *testing.T) {
		env := testutil.NewTestService(0)
		sub := upload(t, env, testutil.User(1, "alice"), "a.json")
		env.Service.HandleCommand(context.Background(), testutil.User(0, ""), "reject", sub.ID)

		if env.Queue.Counts().Pending != 1 {
			t.Error("submission decided without a reviewer")
		}
		if len(env.Channel.Forwarded()) != 0 {
			t.Error("upload forwarded without a reviewer")
		}
	})
}
