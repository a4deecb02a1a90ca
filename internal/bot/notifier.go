package bot

import (
	"context"

	"modq/internal/modq"
	"modq/internal/render"
)

// Notifier fans committed state changes out to the affected parties.
// Delivery is best-effort: failures are logged and counted, never returned.
type Notifier struct {
	channel  modq.Channel
	reviewer int64
	logger   modq.Logger
	recorder modq.Recorder
}

// NewNotifier creates a Notifier. reviewerID 0 disables reviewer notifications.
func NewNotifier(channel modq.Channel, reviewerID int64, logger modq.Logger, recorder modq.Recorder) *Notifier {
	if logger == nil {
		logger = modq.NewNopLogger()
	}
	if recorder == nil {
		recorder = modq.NopRecorder{}
	}
	return &Notifier{
		channel:  channel,
		reviewer: reviewerID,
		logger:   logger,
		recorder: recorder,
	}
}

// Notify delivers ev. Each recipient is attempted independently.
func (n *Notifier) Notify(ctx context.Context, ev modq.Event) {
	switch ev.Kind {
	case modq.EventSubmitted:
		if ev.Submission == nil || n.reviewer == 0 {
			return
		}
		sub := *ev.Submission
		if err := n.channel.ForwardRaw(ctx, n.reviewer, sub.Source); err != nil {
			n.failed(ev.Kind, n.reviewer, err)
		}
		n.send(ctx, ev.Kind, n.reviewer, render.ReviewPrompt(sub, ev.GrantHolder))

	case modq.EventApproved, modq.EventRejected:
		if ev.Submission == nil {
			return
		}
		n.send(ctx, ev.Kind, ev.Submission.UserID, render.DecisionForSubmitter(*ev.Submission))

	case modq.EventSecretDiscovery:
		if ev.Grant == nil || n.reviewer == 0 {
			return
		}
		n.send(ctx, ev.Kind, n.reviewer, render.SecretDiscovery(*ev.Grant, ev.Counts, ev.Holders))

	default:
		n.logger.Warn("unknown event kind", "kind", string(ev.Kind))
	}
}

func (n *Notifier) send(ctx context.Context, kind modq.EventKind, recipient int64, msg modq.OutboundMessage) {
	if err := n.channel.SendText(ctx, recipient, msg); err != nil {
		n.failed(kind, recipient, err)
		return
	}
	n.recorder.Notification(kind, true)
	n.logger.Debug("notification sent", "kind", string(kind), "recipient", recipient)
}

func (n *Notifier) failed(kind modq.EventKind, recipient int64, err error) {
	derr := &modq.DeliveryError{Recipient: recipient, Kind: kind, Err: err}
	n.recorder.Notification(kind, false)
	n.logger.Error("notification failed", "error", derr)
}
