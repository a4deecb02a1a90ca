package bot

import (
	"strings"

	"modq/internal/render"
)

// ActionKind identifies a button press.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionMyPending
	ActionMyApproved
	ActionMyRejected
	ActionMyStats
	ActionShowPanel
	ActionHidePanel
	ActionApprove
	ActionReject
	ActionView
	ActionAllPending
	ActionAllUsers
	ActionFullStats
	ActionNotifications
	ActionReviewerPanel
)

// Action is a parsed button tag. ID is set for per-submission actions.
type Action struct {
	Kind ActionKind
	ID   string
}

// ReviewerOnly reports whether the action is restricted to the reviewer.
func (a Action) ReviewerOnly() bool {
	switch a.Kind {
	case ActionApprove, ActionReject, ActionView, ActionAllPending, ActionAllUsers,
		ActionFullStats, ActionNotifications, ActionReviewerPanel:
		return true
	}
	return false
}

// SelfScoped reports whether the action is a grant holder's view of their own files.
func (a Action) SelfScoped() bool {
	switch a.Kind {
	case ActionMyPending, ActionMyApproved, ActionMyRejected, ActionMyStats:
		return true
	}
	return false
}

var fixedActions = map[string]ActionKind{
	render.ActMyPending:     ActionMyPending,
	render.ActMyApproved:    ActionMyApproved,
	render.ActMyRejected:    ActionMyRejected,
	render.ActMyStats:       ActionMyStats,
	render.ActShowPanel:     ActionShowPanel,
	render.ActHidePanel:     ActionHidePanel,
	render.ActAllPending:    ActionAllPending,
	render.ActAllUsers:      ActionAllUsers,
	render.ActFullStats:     ActionFullStats,
	render.ActNotifications: ActionNotifications,
	render.ActReviewerPanel: ActionReviewerPanel,
}

var prefixActions = []struct {
	prefix string
	kind   ActionKind
}{
	{render.PrefixApprove, ActionApprove},
	{render.PrefixReject, ActionReject},
	{render.PrefixView, ActionView},
}

// ParseAction decodes a button tag. Unrecognized tags and id-carrying
// prefixes without an id parse as ActionUnknown.
func ParseAction(tag string) Action {
	if kind, ok := fixedActions[tag]; ok {
		return Action{Kind: kind}
	}
	for _, p := range prefixActions {
		if id, ok := strings.CutPrefix(tag, p.prefix); ok {
			if id == "" {
				return Action{Kind: ActionUnknown}
			}
			return Action{Kind: p.kind, ID: id}
		}
	}
	return Action{Kind: ActionUnknown}
}
