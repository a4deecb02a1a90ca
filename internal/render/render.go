// Package render projects queue, registry and ledger state into chat messages.
// Every function is pure: no locks are taken and nothing is mutated.
package render

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"modq/internal/modq"
)

// decidedListLimit is how many decided submissions the self-scoped views show.
const decidedListLimit = 5

// Short interaction answers.
const (
	NoAccess      = "⛔️ No access"
	NoPanelAccess = "❌ You do not have access to the secret panel"
	NotFound      = "❌ Submission not found"
	UnknownAction = "🤷 Unknown action"
	Approved      = "✅ Approved"
	Rejected      = "❌ Rejected"
)

func text(s string) modq.OutboundMessage { return modq.OutboundMessage{Text: s} }

// Welcome greets a user on /start.
func Welcome() modq.OutboundMessage {
	return text("👋 <b>Welcome!</b>\n\n" +
		"Send a file and a moderator will review it.\n\n" +
		"📁 <b>How it works:</b>\n" +
		"1. You send a file\n" +
		"2. The moderator reviews it\n" +
		"3. You receive the result\n\n" +
		"Accepted formats: " + strings.Join(modq.AllowedExtensions, " ") +
		fmt.Sprintf(" (up to %d MB)", modq.MaxFileSize>>20))
}

// GrantHint is sent after the welcome to users who hold a grant.
func GrantHint() modq.OutboundMessage {
	return modq.OutboundMessage{
		Text:     "🔐 <i>You have access to the secret panel</i>\n\nUse it to track your files.",
		Keyboard: showPanelKeyboard(),
	}
}

// Help lists the public commands. Reviewer commands are listed for the reviewer only.
func Help(isReviewer bool) modq.OutboundMessage {
	var b strings.Builder
	b.WriteString("ℹ️ <b>Commands</b>\n\n")
	b.WriteString("/start - welcome message\n")
	b.WriteString("/help - this help\n")
	b.WriteString("Send a document to submit it for review.\n")
	if isReviewer {
		b.WriteString("\n<b>Reviewer:</b>\n")
		b.WriteString("/admin - reviewer panel\n")
		b.WriteString("/reject &lt;id&gt; [reason] - reject with a reason\n")
		b.WriteString("/comment &lt;id&gt; &lt;text&gt; - annotate a rejected submission\n")
	}
	return text(b.String())
}

// AccessDenied answers /admin from anyone but the reviewer.
func AccessDenied() modq.OutboundMessage {
	return text("⛔️ You do not have administrator rights")
}

// ReviewerPanelHeader is the short panel shown on /admin.
func ReviewerPanelHeader() modq.OutboundMessage {
	return modq.OutboundMessage{Text: "👑 <b>Reviewer panel</b>", Keyboard: ReviewerKeyboard()}
}

// ReviewerPanel is the full panel the reviewer sees through the hidden trigger.
func ReviewerPanel(users int, grants int, counts modq.QueueCounts) modq.OutboundMessage {
	var b strings.Builder
	b.WriteString("🔐 <b>SECRET PANEL (REVIEWER)</b>\n\n")
	b.WriteString("📊 <b>Overview:</b>\n")
	fmt.Fprintf(&b, "• Users: %d\n", users)
	fmt.Fprintf(&b, "• Secret admins: %d\n", grants)
	fmt.Fprintf(&b, "• Pending: %d\n", counts.Pending)
	fmt.Fprintf(&b, "• Approved: %d\n", counts.Approved)
	fmt.Fprintf(&b, "• Rejected: %d\n", counts.Rejected)
	return modq.OutboundMessage{Text: b.String(), Keyboard: ReviewerKeyboard()}
}

// ReviewerDigest summarizes the three most recent pending submissions.
// ok is false when nothing is pending.
func ReviewerDigest(pending []modq.Submission, now time.Time) (modq.OutboundMessage, bool) {
	if len(pending) == 0 {
		return modq.OutboundMessage{}, false
	}
	var b strings.Builder
	b.WriteString("🔔 <b>REVIEWER DIGEST</b>\n\n")
	fmt.Fprintf(&b, "📁 <b>Pending:</b> %d\n\n<b>Latest:</b>\n", len(pending))

	recent := pending
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	for i, s := range recent {
		fmt.Fprintf(&b, "\n%d. <code>%s</code>\n", i+1, esc(ShortID(s.ID)))
		fmt.Fprintf(&b, "   👤 %s\n", handle(s.Username))
		fmt.Fprintf(&b, "   ⏰ %d min ago", int(s.Age(now)/time.Minute))
	}
	return text(b.String()), true
}

// SecretPanel is the self-scoped panel shown to a grant holder.
func SecretPanel(actor modq.Actor, counts modq.QueueCounts, g modq.Grant) modq.OutboundMessage {
	var b strings.Builder
	b.WriteString("🔐 <b>SECRET PANEL</b>\n\n")
	fmt.Fprintf(&b, "👤 <b>Welcome, %s!</b>\n", handle(actor.Username))
	fmt.Fprintf(&b, "🆔 <b>Your ID:</b> <code>%d</code>\n\n", actor.ID)
	b.WriteString("📊 <b>Your files:</b>\n")
	fmt.Fprintf(&b, "• Pending: %d\n", counts.Pending)
	fmt.Fprintf(&b, "• Approved: %d\n", counts.Approved)
	fmt.Fprintf(&b, "• Rejected: %d\n", counts.Rejected)
	fmt.Fprintf(&b, "• Total sent: %d\n\n", counts.Total())
	b.WriteString("⏰ <b>Access:</b>\n")
	fmt.Fprintf(&b, "• First access: %s\n", g.DiscoveredAt.Format(TimeLayout))
	fmt.Fprintf(&b, "• Last access: %s\n", g.LastAccess.Format(TimeLayout))
	fmt.Fprintf(&b, "• Visits: %d", g.AccessCount)
	return modq.OutboundMessage{Text: b.String(), Keyboard: SecretPanelKeyboard()}
}

// SecretDiscovery notifies the reviewer that a user opened the hidden panel.
func SecretDiscovery(g modq.Grant, counts modq.QueueCounts, holders int) modq.OutboundMessage {
	var b strings.Builder
	b.WriteString("🔍 <b>SECRET PANEL OPENED</b>\n\n")
	fmt.Fprintf(&b, "👤 <b>User:</b> %s\n", handle(g.Username))
	fmt.Fprintf(&b, "🆔 <b>ID:</b> <code>%d</code>\n", g.UserID)
	fmt.Fprintf(&b, "📛 <b>Name:</b> %s\n\n", esc(g.FullName))
	fmt.Fprintf(&b, "• Discovered: %s\n", g.DiscoveredAt.Format(TimeLayout))
	fmt.Fprintf(&b, "• Visits: %d\n", g.AccessCount)
	fmt.Fprintf(&b, "• Files sent: %d (pending %d, approved %d, rejected %d)\n\n",
		counts.Total(), counts.Pending, counts.Approved, counts.Rejected)
	fmt.Fprintf(&b, "<b>Secret admins in total:</b> %d", holders)
	return text(b.String())
}

// PanelHidden replaces the panel after hide_admin_panel.
func PanelHidden(trigger string) modq.OutboundMessage {
	return modq.OutboundMessage{
		Text:     fmt.Sprintf("🔒 <b>Panel hidden</b>\n\nUse /%s to open it again.", esc(trigger)),
		Keyboard: modq.Keyboard{row(btn("🔐 Show again", ActShowPanel))},
	}
}

// UploadAccepted acknowledges a queued submission.
func UploadAccepted(s modq.Submission) modq.OutboundMessage {
	return text(fmt.Sprintf("📤 <b>File accepted!</b>\n\n📁 <code>%s</code>\n📦 %s\n\n"+
		"⏳ <b>The file was sent to the moderator.</b>\nYou will be notified of the result.",
		esc(s.Filename), KB(s.FileSize)))
}

// UploadHintForGrantHolder points grant holders at their panel after an upload.
func UploadHintForGrantHolder(trigger string) modq.OutboundMessage {
	return modq.OutboundMessage{
		Text: fmt.Sprintf("📁 <b>File added!</b>\n\n✅ Track its status in the secret panel\n"+
			"🔐 Command: <code>/%s</code>", esc(trigger)),
		Keyboard: showPanelKeyboard(),
	}
}

// UploadRejected explains a validation failure. ok is false for other errors.
func UploadRejected(err error) (modq.OutboundMessage, bool) {
	switch {
	case errors.Is(err, modq.ErrInvalidFormat):
		return text("❌ <b>Unsupported file format!</b>\n\nSupported: " +
			strings.Join(modq.AllowedExtensions, " ")), true
	case errors.Is(err, modq.ErrTooLarge):
		return text(fmt.Sprintf("❌ <b>File too large!</b>\n\nMaximum size: %d MB", modq.MaxFileSize>>20)), true
	}
	return modq.OutboundMessage{}, false
}

// ReviewPrompt asks the reviewer to decide a new submission.
func ReviewPrompt(s modq.Submission, grantHolder bool) modq.OutboundMessage {
	var b strings.Builder
	b.WriteString("📤 <b>NEW FILE FOR REVIEW</b>\n\n")
	writeSubmissionDetails(&b, s, grantHolder)
	return modq.OutboundMessage{Text: b.String(), Keyboard: ModerationKeyboard(s.ID)}
}

// SubmissionDetails is the reviewer's view of one pending submission.
func SubmissionDetails(s modq.Submission, grantHolder bool) modq.OutboundMessage {
	var b strings.Builder
	b.WriteString("📄 <b>FILE DETAILS</b>\n\n")
	writeSubmissionDetails(&b, s, grantHolder)
	return modq.OutboundMessage{Text: b.String(), Keyboard: ModerationKeyboard(s.ID)}
}

func writeSubmissionDetails(b *strings.Builder, s modq.Submission, grantHolder bool) {
	fmt.Fprintf(b, "🆔 <b>ID:</b> <code>%s</code>\n", esc(s.ID))
	fmt.Fprintf(b, "👤 <b>User:</b> %s\n", handle(s.Username))
	fmt.Fprintf(b, "📛 <b>Name:</b> %s\n", esc(s.FullName))
	fmt.Fprintf(b, "🆔 <b>User ID:</b> <code>%d</code>\n\n", s.UserID)
	fmt.Fprintf(b, "📁 <b>File:</b> <code>%s</code>\n", esc(s.Filename))
	fmt.Fprintf(b, "📦 <b>Size:</b> %s\n", KB(s.FileSize))
	fmt.Fprintf(b, "⏰ <b>Uploaded:</b> %s\n\n", s.CreatedAt.Format(TimeLayout))
	fmt.Fprintf(b, "🔐 <b>Secret panel:</b> %s", yesNo(grantHolder))
}

// DecisionForSubmitter tells the submitter the outcome of their submission.
func DecisionForSubmitter(s modq.Submission) modq.OutboundMessage {
	var b strings.Builder
	if s.Status == modq.StatusApproved {
		b.WriteString("✅ <b>Your file was approved!</b>\n\n")
	} else {
		b.WriteString("❌ <b>Your file was rejected</b>\n\n")
	}
	fmt.Fprintf(&b, "📁 <b>File:</b> <code>%s</code>\n", esc(s.Filename))
	fmt.Fprintf(&b, "🆔 <b>Review ID:</b> <code>%s</code>\n", esc(ShortID(s.ID)))
	fmt.Fprintf(&b, "⏰ <b>Time:</b> %s", decisionTime(s))
	if s.Status == modq.StatusRejected {
		reason := s.AdminComment
		if reason == "" {
			reason = "not specified"
		}
		fmt.Fprintf(&b, "\n\n📝 <b>Reason:</b> %s", esc(reason))
	}
	return text(b.String())
}

// DecisionForReviewer confirms a decision to the reviewer.
func DecisionForReviewer(s modq.Submission) modq.OutboundMessage {
	var b strings.Builder
	if s.Status == modq.StatusApproved {
		b.WriteString("✅ <b>FILE APPROVED</b>\n\n")
	} else {
		b.WriteString("❌ <b>FILE REJECTED</b>\n\n")
	}
	fmt.Fprintf(&b, "🆔 <b>ID:</b> <code>%s</code>\n", esc(s.ID))
	fmt.Fprintf(&b, "👤 <b>User:</b> %s\n", handle(s.Username))
	fmt.Fprintf(&b, "📁 <b>File:</b> %s\n", esc(s.Filename))
	fmt.Fprintf(&b, "⏰ <b>Decided:</b> %s", decisionTime(s))
	if s.AdminComment != "" {
		fmt.Fprintf(&b, "\n💬 <b>Comment:</b> %s", esc(s.AdminComment))
	}
	return modq.OutboundMessage{Text: b.String(), Keyboard: backToQueueKeyboard()}
}

// Annotated confirms a comment added to a rejected submission.
func Annotated(id string) modq.OutboundMessage {
	return text(fmt.Sprintf("💬 Comment saved for <code>%s</code>", esc(id)))
}

// Usage reports a malformed reviewer command.
func Usage(usage string) modq.OutboundMessage {
	return text("Usage: " + esc(usage))
}

// MyPending lists the actor's pending submissions.
func MyPending(subs []modq.Submission, now time.Time) modq.OutboundMessage {
	if len(subs) == 0 {
		return modq.OutboundMessage{
			Text:     "⏳ <b>No pending files</b>\n\nNothing is waiting for review.",
			Keyboard: SecretPanelKeyboard(),
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⏳ <b>YOUR PENDING FILES</b>\n\nTotal: %d\n", len(subs))
	for i, s := range subs {
		fmt.Fprintf(&b, "\n%d. <code>%s</code>\n", i+1, esc(truncate(s.Filename, 30)))
		fmt.Fprintf(&b, "   ⏰ Sent %s ago\n", Ago(s.Age(now)))
		fmt.Fprintf(&b, "   📦 Size: %s\n", KB(s.FileSize))
	}
	return modq.OutboundMessage{Text: b.String(), Keyboard: SecretPanelKeyboard()}
}

// MyDecided lists the last few decided submissions with the given outcome.
func MyDecided(outcome modq.Outcome, subs []modq.Submission) modq.OutboundMessage {
	if len(subs) == 0 {
		msg := "✅ <b>No approved files</b>\n\nYou have no approved files yet."
		if outcome == modq.OutcomeReject {
			msg = "❌ <b>No rejected files</b>\n\nYou have no rejected files."
		}
		return modq.OutboundMessage{Text: msg, Keyboard: SecretPanelKeyboard()}
	}

	var b strings.Builder
	if outcome == modq.OutcomeApprove {
		fmt.Fprintf(&b, "✅ <b>YOUR APPROVED FILES</b>\n\nTotal: %d\n", len(subs))
	} else {
		fmt.Fprintf(&b, "❌ <b>YOUR REJECTED FILES</b>\n\nTotal: %d\n", len(subs))
	}

	shown := subs
	if len(shown) > decidedListLimit {
		shown = shown[len(shown)-decidedListLimit:]
	}
	for i, s := range shown {
		fmt.Fprintf(&b, "\n%d. <code>%s</code>\n", i+1, esc(truncate(s.Filename, 30)))
		fmt.Fprintf(&b, "   ⏰ Decided: %s\n", decisionTime(s))
		if outcome == modq.OutcomeReject {
			reason := s.AdminComment
			if reason == "" {
				reason = "not specified"
			}
			fmt.Fprintf(&b, "   💬 Reason: %s\n", esc(reason))
		}
	}
	if more := len(subs) - len(shown); more > 0 {
		fmt.Fprintf(&b, "\n... and %d more\n", more)
	}
	return modq.OutboundMessage{Text: b.String(), Keyboard: SecretPanelKeyboard()}
}

// MyStats is the actor's own statistics. g is nil when the actor holds no grant.
func MyStats(u modq.User, counts modq.QueueCounts, g *modq.Grant) modq.OutboundMessage {
	var b strings.Builder
	b.WriteString("📊 <b>YOUR STATISTICS</b>\n\n")
	b.WriteString("👤 <b>Profile:</b>\n")
	fmt.Fprintf(&b, "• Username: %s\n", handle(u.Username))
	fmt.Fprintf(&b, "• Name: %s\n", esc(u.FullName))
	fmt.Fprintf(&b, "• ID: <code>%d</code>\n\n", u.ID)
	b.WriteString("📈 <b>Files:</b>\n")
	fmt.Fprintf(&b, "• Total sent: %d\n", counts.Total())
	fmt.Fprintf(&b, "• Pending: %d\n", counts.Pending)
	fmt.Fprintf(&b, "• Approved: %d\n", counts.Approved)
	fmt.Fprintf(&b, "• Rejected: %d\n", counts.Rejected)
	fmt.Fprintf(&b, "• Success rate: %d/%d\n\n", counts.Approved, counts.Processed())
	b.WriteString("🔐 <b>Secret panel:</b>\n")
	if g != nil {
		fmt.Fprintf(&b, "• Access since: %s\n", g.DiscoveredAt.Format(TimeLayout))
		fmt.Fprintf(&b, "• Last visit: %s\n", g.LastAccess.Format(TimeLayout))
		fmt.Fprintf(&b, "• Visits: %d\n\n", g.AccessCount)
	} else {
		b.WriteString("• Access since: none\n\n")
	}
	b.WriteString("⏰ <b>Activity:</b>\n")
	fmt.Fprintf(&b, "• Joined: %s\n", u.JoinDate.Format(TimeLayout))
	fmt.Fprintf(&b, "• Last upload: %s", stamp(u.LastUpload, "never"))
	return modq.OutboundMessage{Text: b.String(), Keyboard: SecretPanelKeyboard()}
}

// AllPending lists the oldest pending submissions as buttons for the reviewer.
func AllPending(subs []modq.Submission) modq.OutboundMessage {
	if len(subs) == 0 {
		return modq.OutboundMessage{
			Text:     "✅ <b>No pending files</b>\n\nEverything has been reviewed!",
			Keyboard: ReviewerKeyboard(),
		}
	}
	kb := modq.Keyboard{}
	for i, s := range subs {
		if i == AllPendingLimit {
			break
		}
		label := fmt.Sprintf("📁 %s - %s (%s)", ShortID(s.ID), handle(s.Username), s.CreatedAt.Format("15:04:05"))
		kb = append(kb, row(btn(label, PrefixView+s.ID)))
	}
	kb = append(kb, row(btn("🔙 Back", ActReviewerPanel), btn("🔄 Refresh", ActAllPending)))
	header := fmt.Sprintf("📋 <b>ALL PENDING FILES</b>\n\n📊 Total: %d\n\n👇 <b>Pick a file:</b>", len(subs))
	return modq.OutboundMessage{Text: header, Keyboard: kb}
}

// AllUsers shows the user total and the most active submitters.
func AllUsers(total int, top []modq.User, holders int) modq.OutboundMessage {
	if total == 0 {
		return modq.OutboundMessage{Text: "👥 <b>No users yet</b>", Keyboard: ReviewerKeyboard()}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👥 <b>ALL USERS</b>\n\nTotal: %d\n", total)
	for i, u := range top {
		mark := ""
		if u.IsSecretAdmin {
			mark = " 🔐"
		}
		fmt.Fprintf(&b, "\n%d. %s%s\n", i+1, handle(u.Username), mark)
		fmt.Fprintf(&b, "   ID: <code>%d</code>\n", u.ID)
		fmt.Fprintf(&b, "   Files: %d\n", u.FilesCount)
		fmt.Fprintf(&b, "   Joined: %s\n", u.JoinDate.Format("01-02 15:04"))
	}
	if more := total - len(top); more > 0 {
		fmt.Fprintf(&b, "\n... and %d more users\n", more)
	}
	fmt.Fprintf(&b, "\n🔐 <b>Secret admins:</b> %d", holders)
	return modq.OutboundMessage{Text: b.String(), Keyboard: refreshKeyboard(ActAllUsers)}
}

// SystemStats is the input to FullStats.
type SystemStats struct {
	Users          int
	NewUsersToday  int
	ActiveToday    int
	SubmittedToday int
	Queue          modq.QueueCounts
	Grants         modq.LedgerSummary
	Now            time.Time
}

// FullStats is the reviewer's system-wide statistics view.
func FullStats(s SystemStats) modq.OutboundMessage {
	var b strings.Builder
	b.WriteString("📊 <b>FULL STATISTICS</b>\n\n")
	b.WriteString("👥 <b>Users:</b>\n")
	fmt.Fprintf(&b, "• Total: %d\n", s.Users)
	fmt.Fprintf(&b, "• Secret admins: %d\n", s.Grants.Count)
	fmt.Fprintf(&b, "• New today: %d\n\n", s.NewUsersToday)
	b.WriteString("📁 <b>Files:</b>\n")
	fmt.Fprintf(&b, "• Pending: %d\n", s.Queue.Pending)
	fmt.Fprintf(&b, "• Approved: %d\n", s.Queue.Approved)
	fmt.Fprintf(&b, "• Rejected: %d\n", s.Queue.Rejected)
	fmt.Fprintf(&b, "• Processed: %d\n\n", s.Queue.Processed())
	b.WriteString("📈 <b>Activity:</b>\n")
	fmt.Fprintf(&b, "• Files today: %d\n", s.SubmittedToday)
	fmt.Fprintf(&b, "• Active users today: %d\n\n", s.ActiveToday)
	b.WriteString("🔐 <b>Secret panel:</b>\n")
	fmt.Fprintf(&b, "• First discovery: %s\n", stamp(s.Grants.EarliestDiscovery, "none"))
	fmt.Fprintf(&b, "• Latest access: %s\n\n", stamp(s.Grants.LatestAccess, "none"))
	fmt.Fprintf(&b, "🕒 <b>Now:</b> %s", s.Now.Format(TimeLayout))
	return modq.OutboundMessage{Text: b.String(), Keyboard: refreshKeyboard(ActFullStats)}
}

// Notifications is the reviewer digest of what needs attention.
func Notifications(pending []modq.Submission, holders int, now time.Time) modq.OutboundMessage {
	var stale []modq.Submission
	waiting := make(map[int64]struct{})
	for _, s := range pending {
		waiting[s.UserID] = struct{}{}
		if s.IsStale(now) {
			stale = append(stale, s)
		}
	}

	var b strings.Builder
	b.WriteString("🔔 <b>NOTIFICATIONS</b>\n\n")
	b.WriteString("📋 <b>Queue:</b>\n")
	fmt.Fprintf(&b, "• Pending: %d\n", len(pending))
	fmt.Fprintf(&b, "• Waiting over %s: %d\n\n", Ago(modq.StaleAfter), len(stale))
	b.WriteString("👥 <b>Users:</b>\n")
	fmt.Fprintf(&b, "• Waiting for an answer: %d\n", len(waiting))
	fmt.Fprintf(&b, "• Secret admins: %d\n\n", holders)
	b.WriteString("🚨 <b>Needs attention:</b>")
	if len(stale) == 0 {
		b.WriteString("\n• Nothing urgent")
	}
	for i, s := range stale {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "\n  %d. %s - %d h", i+1, handle(s.Username), int(s.Age(now)/time.Hour))
	}

	kb := modq.Keyboard{
		row(btn("📋 Review files", ActAllPending)),
		row(btn("👥 Review users", ActAllUsers)),
		row(btn("🔙 Back", ActReviewerPanel)),
	}
	return modq.OutboundMessage{Text: b.String(), Keyboard: kb}
}
