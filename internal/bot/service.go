// Package bot turns inbound chat events into queue, registry and ledger
// operations and replies to the actor.
package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"modq/internal/modq"
	"modq/internal/render"
)

// DefaultTrigger is the undocumented command that opens the secret panel.
const DefaultTrigger = "backstage"

// topUsersLimit is the number of users shown in the reviewer's all-users view.
const topUsersLimit = 10

// Command names handled by the service.
const (
	CmdStart   = "start"
	CmdHelp    = "help"
	CmdAdmin   = "admin"
	CmdReject  = "reject"
	CmdComment = "comment"
)

// Document is an uploaded file as reported by the channel.
type Document struct {
	FileName string
	Size     *int64
	Source   modq.MessageRef
}

// Options configures a Service.
type Options struct {
	// ReviewerID is the single privileged reviewer. 0 means none.
	ReviewerID int64

	// Trigger is the hidden command name, without the leading slash.
	Trigger string
}

// Service is the orchestration layer between the chat channel and the
// moderation components. Validation and authorization failures are reported
// to the actor; delivery failures are logged.
type Service struct {
	registry modq.IdentityRegistry
	ledger   modq.GrantLedger
	queue    modq.SubmissionQueue
	notifier *Notifier
	channel  modq.Channel
	clock    modq.Clock
	logger   modq.Logger
	reviewer int64
	trigger  string
}

// NewService creates a Service with the provided dependencies.
func NewService(registry modq.IdentityRegistry, ledger modq.GrantLedger, queue modq.SubmissionQueue, notifier *Notifier, channel modq.Channel, clock modq.Clock, logger modq.Logger, opts Options) *Service {
	if logger == nil {
		logger = modq.NewNopLogger()
	}
	trigger := strings.TrimPrefix(opts.Trigger, "/")
	if trigger == "" {
		trigger = DefaultTrigger
	}
	return &Service{
		registry: registry,
		ledger:   ledger,
		queue:    queue,
		notifier: notifier,
		channel:  channel,
		clock:    clock,
		logger:   logger,
		reviewer: opts.ReviewerID,
		trigger:  trigger,
	}
}

// Trigger returns the hidden command name.
func (s *Service) Trigger() string { return s.trigger }

func (s *Service) isReviewer(id int64) bool {
	return s.reviewer != 0 && id == s.reviewer
}

func (s *Service) ensure(actor modq.Actor) modq.User {
	return s.registry.Ensure(actor.ID, actor.Username, actor.FullName)
}

func (s *Service) reply(ctx context.Context, actor modq.Actor, msg modq.OutboundMessage) {
	chat := actor.ChatID
	if chat == 0 {
		chat = actor.ID
	}
	if err := s.channel.SendText(ctx, chat, msg); err != nil {
		s.logger.Error("reply failed", "user", actor.ID, "error", err)
	}
}

func (s *Service) answer(ctx context.Context, interactionID, text string) {
	if interactionID == "" {
		return
	}
	if err := s.channel.AnswerInteraction(ctx, interactionID, text); err != nil {
		s.logger.Error("answering interaction failed", "interaction", interactionID, "error", err)
	}
}

// HandleCommand dispatches a slash command. name has no leading slash; args is
// the rest of the message text.
func (s *Service) HandleCommand(ctx context.Context, actor modq.Actor, name, args string) {
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	s.ensure(actor)

	switch name {
	case CmdStart:
		s.reply(ctx, actor, render.Welcome())
		if s.ledger.HasGrant(actor.ID) {
			s.reply(ctx, actor, render.GrantHint())
		}

	case CmdHelp:
		s.reply(ctx, actor, render.Help(s.isReviewer(actor.ID)))

	case CmdAdmin:
		if !s.isReviewer(actor.ID) {
			s.reply(ctx, actor, render.AccessDenied())
			return
		}
		s.reply(ctx, actor, render.ReviewerPanelHeader())

	case s.trigger:
		s.openSecretPanel(ctx, actor)

	case CmdReject:
		s.rejectCommand(ctx, actor, args)

	case CmdComment:
		s.commentCommand(ctx, actor, args)

	default:
		s.logger.Debug("unknown command", "command", name, "user", actor.ID)
		s.reply(ctx, actor, render.Help(s.isReviewer(actor.ID)))
	}
}

// openSecretPanel records the discovery and shows the matching panel.
// The reviewer gets the full panel and a digest; everyone else gets the
// self-scoped panel and the reviewer is told about the visit.
func (s *Service) openSecretPanel(ctx context.Context, actor modq.Actor) {
	grant := s.ledger.Discover(actor.ID, actor.Username, actor.FullName)
	s.ensure(actor)
	s.hideTrigger(ctx, actor)

	if s.isReviewer(actor.ID) {
		s.logger.Info("reviewer opened secret panel", "user", actor.ID)
		s.reply(ctx, actor, render.ReviewerPanel(s.registry.Count(), s.ledger.Count(), s.queue.Counts()))
		if digest, ok := render.ReviewerDigest(s.queue.ListPending(modq.All()), s.clock.Now()); ok {
			s.reply(ctx, actor, digest)
		}
		return
	}

	counts := s.queue.CountsFor(actor.ID)
	s.logger.Info("secret panel opened", "user", actor.ID, "username", actor.Username, "access_count", grant.AccessCount)
	s.reply(ctx, actor, render.SecretPanel(actor, counts, grant))

	s.notifier.Notify(ctx, modq.Event{
		Kind:    modq.EventSecretDiscovery,
		Grant:   &grant,
		Actor:   actor,
		Counts:  counts,
		Holders: s.ledger.Count(),
	})
}

// hideTrigger removes the message that carried the secret command, when the
// channel supports it. Failure only costs discretion.
func (s *Service) hideTrigger(ctx context.Context, actor modq.Actor) {
	d, ok := s.channel.(modq.MessageDeleter)
	if !ok || actor.Message.MessageID == 0 {
		return
	}
	if err := d.DeleteMessage(ctx, actor.Message); err != nil {
		s.logger.Warn("could not delete trigger message", "user", actor.ID, "error", err)
	}
}

func (s *Service) rejectCommand(ctx context.Context, actor modq.Actor, args string) {
	if !s.isReviewer(actor.ID) {
		s.reply(ctx, actor, render.AccessDenied())
		return
	}
	id, reason, _ := strings.Cut(strings.TrimSpace(args), " ")
	if id == "" {
		s.reply(ctx, actor, render.Usage("/reject <id> [reason]"))
		return
	}
	s.decide(ctx, actor, "", id, modq.OutcomeReject, strings.TrimSpace(reason))
}

func (s *Service) commentCommand(ctx context.Context, actor modq.Actor, args string) {
	if !s.isReviewer(actor.ID) {
		s.reply(ctx, actor, render.AccessDenied())
		return
	}
	id, comment, _ := strings.Cut(strings.TrimSpace(args), " ")
	comment = strings.TrimSpace(comment)
	if id == "" || comment == "" {
		s.reply(ctx, actor, render.Usage("/comment <id> <text>"))
		return
	}
	if !s.queue.Annotate(id, comment) {
		s.reply(ctx, actor, modq.OutboundMessage{Text: render.NotFound})
		return
	}
	s.logger.Info("submission annotated", "id", id)
	s.reply(ctx, actor, render.Annotated(id))
}

// HandleDocument validates and enqueues an uploaded file.
func (s *Service) HandleDocument(ctx context.Context, actor modq.Actor, doc Document) {
	user := s.ensure(actor)

	sub, err := s.queue.Submit(user, doc.FileName, doc.Size, doc.Source)
	if err != nil {
		if msg, ok := render.UploadRejected(err); ok {
			s.logger.Info("upload rejected", "user", actor.ID, "file", doc.FileName, "reason", err)
			s.reply(ctx, actor, msg)
			return
		}
		s.logger.Error("submitting upload", "user", actor.ID, "error", err)
		return
	}
	s.registry.RecordSubmission(actor.ID)
	s.logger.Info("submission queued", "id", sub.ID, "user", actor.ID, "file", sub.Filename)

	holder := s.ledger.HasGrant(actor.ID)
	s.reply(ctx, actor, render.UploadAccepted(sub))
	if holder {
		s.reply(ctx, actor, render.UploadHintForGrantHolder(s.trigger))
	}

	s.notifier.Notify(ctx, modq.Event{
		Kind:        modq.EventSubmitted,
		Submission:  &sub,
		Actor:       actor,
		GrantHolder: holder,
	})
}

// HandleButton dispatches an inline button press. Every press is answered exactly once.
func (s *Service) HandleButton(ctx context.Context, actor modq.Actor, interactionID, tag string) {
	s.ensure(actor)
	action := ParseAction(tag)

	if action.SelfScoped() && !s.ledger.HasGrant(actor.ID) {
		s.answer(ctx, interactionID, render.NoPanelAccess)
		return
	}
	// Decisions are authorized by the queue itself.
	if action.ReviewerOnly() && action.Kind != ActionApprove && action.Kind != ActionReject && !s.isReviewer(actor.ID) {
		s.answer(ctx, interactionID, render.NoAccess)
		return
	}

	now := s.clock.Now()
	switch action.Kind {
	case ActionMyPending:
		s.reply(ctx, actor, render.MyPending(s.queue.ListPending(modq.OwnedBy(actor.ID)), now))
	case ActionMyApproved:
		s.reply(ctx, actor, render.MyDecided(modq.OutcomeApprove, s.queue.ListDecided(modq.OutcomeApprove, modq.OwnedBy(actor.ID))))
	case ActionMyRejected:
		s.reply(ctx, actor, render.MyDecided(modq.OutcomeReject, s.queue.ListDecided(modq.OutcomeReject, modq.OwnedBy(actor.ID))))
	case ActionMyStats:
		s.myStats(ctx, actor)

	case ActionShowPanel:
		if !s.ledger.HasGrant(actor.ID) {
			s.answer(ctx, interactionID, render.NoPanelAccess)
			return
		}
		s.openSecretPanel(ctx, actor)
	case ActionHidePanel:
		s.reply(ctx, actor, render.PanelHidden(s.trigger))

	case ActionApprove:
		s.decide(ctx, actor, interactionID, action.ID, modq.OutcomeApprove, "")
		return
	case ActionReject:
		s.decide(ctx, actor, interactionID, action.ID, modq.OutcomeReject, "")
		return
	case ActionView:
		sub, ok := s.queue.Get(action.ID)
		if !ok {
			s.answer(ctx, interactionID, render.NotFound)
			return
		}
		s.reply(ctx, actor, render.SubmissionDetails(sub, s.ledger.HasGrant(sub.UserID)))
	case ActionAllPending:
		s.reply(ctx, actor, render.AllPending(s.queue.ListPending(modq.All())))
	case ActionAllUsers:
		s.reply(ctx, actor, render.AllUsers(s.registry.Count(), s.registry.Top(topUsersLimit), s.ledger.Count()))
	case ActionFullStats:
		s.reply(ctx, actor, render.FullStats(s.SystemStats(now)))
	case ActionNotifications:
		s.reply(ctx, actor, render.Notifications(s.queue.ListPending(modq.All()), s.ledger.Count(), now))
	case ActionReviewerPanel:
		s.reply(ctx, actor, render.ReviewerPanelHeader())

	default:
		s.logger.Debug("unknown button", "tag", tag, "user", actor.ID)
		s.answer(ctx, interactionID, render.UnknownAction)
		return
	}
	s.answer(ctx, interactionID, "")
}

// decide runs a reviewer decision and reports the result. interactionID is
// empty when the decision came from a command.
func (s *Service) decide(ctx context.Context, actor modq.Actor, interactionID, id string, outcome modq.Outcome, comment string) {
	sub, err := s.queue.Decide(id, outcome, actor.ID, comment)
	if err != nil {
		text := render.NotFound
		if errors.Is(err, modq.ErrUnauthorized) {
			text = render.NoAccess
		} else if !errors.Is(err, modq.ErrNotFound) {
			s.logger.Error("deciding submission", "id", id, "error", err)
		}
		if interactionID != "" {
			s.answer(ctx, interactionID, text)
		} else {
			s.reply(ctx, actor, modq.OutboundMessage{Text: text})
		}
		return
	}

	s.registry.RecordDecision(sub.UserID, outcome)
	s.logger.Info("submission decided", "id", sub.ID, "outcome", string(outcome), "user", sub.UserID)

	ack := render.Approved
	if outcome == modq.OutcomeReject {
		ack = render.Rejected
	}
	s.answer(ctx, interactionID, ack)
	s.reply(ctx, actor, render.DecisionForReviewer(sub))

	s.notifier.Notify(ctx, modq.Event{
		Kind:       modq.DecisionEvent(outcome),
		Submission: &sub,
		Actor:      actor,
	})
}

func (s *Service) myStats(ctx context.Context, actor modq.Actor) {
	user, _ := s.registry.Get(actor.ID)
	var grant *modq.Grant
	if g, ok := s.ledger.Get(actor.ID); ok {
		grant = &g
	}
	s.reply(ctx, actor, render.MyStats(user, s.queue.CountsFor(actor.ID), grant))
}

// SystemStats aggregates registry, queue and ledger counts. "Today" starts at
// midnight in now's location.
func (s *Service) SystemStats(now time.Time) render.SystemStats {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	stats := render.SystemStats{
		Users:          s.registry.Count(),
		SubmittedToday: s.queue.CreatedSince(today),
		Queue:          s.queue.Counts(),
		Grants:         s.ledger.Summary(),
		Now:            now,
	}
	for _, u := range s.registry.List() {
		if !u.JoinDate.Before(today) {
			stats.NewUsersToday++
		}
		if u.LastUpload != nil && !u.LastUpload.Before(today) {
			stats.ActiveToday++
		}
	}
	return stats
}
