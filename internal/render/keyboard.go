package render

import "modq/internal/modq"

// Button action tags. Tags carrying a submission id append it to the prefix.
const (
	ActMyPending     = "my_pending"
	ActMyApproved    = "my_approved"
	ActMyRejected    = "my_rejected"
	ActMyStats       = "my_stats"
	ActShowPanel     = "show_secret_panel"
	ActHidePanel     = "hide_admin_panel"
	ActAllPending    = "admin_all_pending"
	ActAllUsers      = "admin_all_users"
	ActFullStats     = "admin_full_stats"
	ActNotifications = "admin_notifications"
	ActReviewerPanel = "back_to_real_admin"

	PrefixApprove = "admin_approve_"
	PrefixReject  = "admin_reject_"
	PrefixView    = "admin_view_"
)

// MaxActionLen is the largest button payload the chat transport accepts, in bytes.
const MaxActionLen = 64

// AllPendingLimit is the number of submissions listed as buttons in the reviewer queue view.
const AllPendingLimit = 10

func btn(text, action string) modq.Button { return modq.Button{Text: text, Action: action} }

func row(buttons ...modq.Button) []modq.Button { return buttons }

// SecretPanelKeyboard is the self-scoped panel shown to grant holders.
func SecretPanelKeyboard() modq.Keyboard {
	return modq.Keyboard{
		row(btn("📋 My pending files", ActMyPending)),
		row(btn("✅ My approved files", ActMyApproved)),
		row(btn("❌ My rejected files", ActMyRejected)),
		row(btn("📊 My statistics", ActMyStats)),
		row(btn("🔙 Hide panel", ActHidePanel)),
	}
}

// ReviewerKeyboard is the reviewer's main panel.
func ReviewerKeyboard() modq.Keyboard {
	return modq.Keyboard{
		row(btn("📋 All pending files", ActAllPending)),
		row(btn("👥 All users", ActAllUsers)),
		row(btn("📊 Full statistics", ActFullStats)),
		row(btn("🔔 Notifications", ActNotifications)),
		row(btn("🔙 Hide panel", ActHidePanel)),
	}
}

// ModerationKeyboard offers the decision actions for one pending submission.
func ModerationKeyboard(id string) modq.Keyboard {
	return modq.Keyboard{
		row(btn("✅ Approve", PrefixApprove+id), btn("❌ Reject", PrefixReject+id)),
		row(btn("📄 Details", PrefixView+id)),
		row(btn("📋 Back to queue", ActAllPending)),
	}
}

func backToQueueKeyboard() modq.Keyboard {
	return modq.Keyboard{row(btn("📋 Back to queue", ActAllPending))}
}

func showPanelKeyboard() modq.Keyboard {
	return modq.Keyboard{row(btn("🔐 Secret panel", ActShowPanel))}
}

func refreshKeyboard(refresh string) modq.Keyboard {
	return modq.Keyboard{
		row(btn("🔄 Refresh", refresh)),
		row(btn("🔙 Back", ActReviewerPanel)),
	}
}
