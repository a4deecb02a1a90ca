// Package app wires configuration, storage, the moderation core and the chat
// transport into a runnable bot, and backs the offline inspection commands.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"modq/internal/bot"
	"modq/internal/channel"
	"modq/internal/config"
	"modq/internal/database"
	"modq/internal/encryption"
	"modq/internal/metrics"
	"modq/internal/modq"
	"modq/internal/render"
	"modq/internal/server"
	"modq/internal/store"
)

// Options adjust how NewApp wires the components.
type Options struct {
	// Command names the invocation in the log, e.g. "serve" or "queue".
	Command string

	// Passphrase unlocks encrypted snapshots. Empty leaves them sealed, which
	// only works while the store is still empty.
	Passphrase string

	// Offline skips the chat transport and the HTTP endpoint. Outbound
	// messages go to the log.
	Offline bool

	// Channel replaces the configured transport. No poller is started.
	Channel modq.Channel

	// Stderr receives a copy of the log. nil disables it.
	Stderr io.Writer

	Clock modq.Clock
}

// App owns the lifecycle of the store and the log file. Construct with NewApp
// and always Close.
type App struct {
	cfg     *config.Config
	clock   modq.Clock
	run     *Run
	logger  modq.Logger
	logFile *os.File

	rawStore     modq.Store
	store        modq.Store
	registry     *modq.Registry
	ledger       *modq.Ledger
	queue        *modq.Queue
	checkpointer *modq.Checkpointer
	metrics      *metrics.Metrics

	channel  modq.Channel
	telegram *channel.TelegramChannel
	poller   *channel.Poller
	service  *bot.Service
	server   *server.Server
}

// NewApp builds every component from cfg and restores the working set.
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	interval, err := cfg.Interval()
	if err != nil {
		return nil, err
	}

	clock := opts.Clock
	if clock == nil {
		clock = modq.RealClock{}
	}
	command := opts.Command
	if command == "" {
		command = "serve"
	}
	run := NewRun(command, clock.Now())

	slogger, logFile, err := newLogger(cfg.LogDir, parseLevel(cfg.LogLevel), run.ID, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &App{cfg: cfg, clock: clock, run: run, logger: logger, logFile: logFile}

	if err := a.openStore(ctx, opts.Passphrase); err != nil {
		logFile.Close()
		return nil, err
	}

	a.metrics = metrics.New()
	a.ledger = modq.NewLedger(clock, a.metrics)
	a.registry = modq.NewRegistry(clock, a.ledger)
	a.queue = modq.NewQueue(cfg.ReviewerID, clock, modq.UUIDGenerator{}, a.metrics)
	a.checkpointer = modq.NewCheckpointer(a.store, []modq.Table{a.registry, a.ledger, a.queue}, interval, logger, a.metrics)

	if err := a.checkpointer.Load(ctx); err != nil {
		a.closeResources()
		return nil, fmt.Errorf("restoring working set: %w", err)
	}

	if err := a.openChannel(opts); err != nil {
		a.closeResources()
		return nil, err
	}

	notifier := bot.NewNotifier(a.channel, cfg.ReviewerID, logger, a.metrics)
	a.service = bot.NewService(a.registry, a.ledger, a.queue, notifier, a.channel, clock, logger, bot.Options{
		ReviewerID: cfg.ReviewerID,
		Trigger:    cfg.SecretTrigger,
	})
	if a.telegram != nil {
		a.poller = a.telegram.NewPoller(a.service, cfg.Channel.PollTimeout, logger)
	}

	if !opts.Offline && cfg.HTTP.Addr != "" {
		a.server = server.New(cfg.HTTP.Addr, server.Deps{
			Queue:       a.queue,
			Registry:    a.registry,
			Ledger:      a.ledger,
			Checkpoints: a.checkpointer,
			Clock:       clock,
			Logger:      logger,
			Metrics:     a.metrics.Handler(),
			Middlewares: []func(http.Handler) http.Handler{a.metrics.Middleware},
		})
	}

	if cfg.ReviewerID == 0 {
		logger.Warn("no reviewer configured, submissions will queue without review", "env", config.EnvReviewerID)
	}
	counts := a.queue.Counts()
	logger.Info("working set restored",
		"command", command,
		"store", cfg.Store.Type,
		"users", a.registry.Count(),
		"grants", a.ledger.Count(),
		"pending", counts.Pending,
		"approved", counts.Approved,
		"rejected", counts.Rejected,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, passphrase string) error {
	raw, err := store.NewStoreFromConfig(ctx, a.cfg.Store, a.clock)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", a.cfg.Store.Type, err)
	}
	if v, ok := raw.(interface{ ValidateSetup() error }); ok {
		if err := v.ValidateSetup(); err != nil {
			raw.Close()
			return fmt.Errorf("validating %s store: %w", a.cfg.Store.Type, err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		raw.Close()
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil && !enc.IsConfigured() {
		raw.Close()
		return fmt.Errorf("encryption keys not found; run `modq keys init` first")
	}

	var dec modq.DecryptionContext
	if enc != nil && passphrase != "" {
		if dec, err = enc.Unlock(passphrase); err != nil {
			raw.Close()
			return fmt.Errorf("unlocking encryption key: %w", err)
		}
	}

	a.rawStore = raw
	a.store = store.WithEncryption(raw, enc, dec)
	return nil
}

func (a *App) openChannel(opts Options) error {
	switch {
	case opts.Channel != nil:
		a.channel = opts.Channel
	case opts.Offline || a.cfg.Channel.Type == "log":
		a.channel = channel.NewLogChannel(a.logger)
	case a.cfg.Channel.Type == "telegram":
		tg, err := channel.NewTelegramChannel(a.cfg.Channel.Token, a.cfg.Channel.Debug)
		if err != nil {
			return err
		}
		a.channel = tg
		a.telegram = tg
	default:
		return fmt.Errorf("unknown channel type: %q", a.cfg.Channel.Type)
	}
	return nil
}

// Serve runs the poller, the checkpointer and the HTTP endpoint until ctx is
// cancelled or one of them fails. The checkpointer flushes once more on the
// way out.
func (a *App) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.checkpointer.Run(gctx)
		return nil
	})
	if a.poller != nil {
		g.Go(func() error {
			a.poller.Run(gctx)
			return nil
		})
	}
	if a.server != nil {
		g.Go(func() error {
			return a.server.Run(gctx)
		})
	}

	a.logger.Info("serving", "reviewer", a.cfg.ReviewerID, "trigger", a.service.Trigger(), "http", a.cfg.HTTP.Addr)
	err := g.Wait()
	if st := a.checkpointer.Status(); st.Err != nil {
		err = errors.Join(err, st.Err)
	}
	a.run.Finish(a.clock.Now(), err)
	return err
}

// Service returns the orchestration layer, e.g. to drive it from a custom transport.
func (a *App) Service() *bot.Service { return a.service }

// Flush writes the working set to the store immediately.
func (a *App) Flush(ctx context.Context) error {
	return a.checkpointer.Flush(ctx)
}

// Pending lists pending submissions in arrival order.
func (a *App) Pending() []modq.Submission {
	return a.queue.ListPending(modq.All())
}

// Decided lists decided submissions for outcome, oldest decision first.
func (a *App) Decided(outcome modq.Outcome) []modq.Submission {
	return a.queue.ListDecided(outcome, modq.All())
}

// Users lists the registry ordered by join date.
func (a *App) Users() []modq.User {
	return a.registry.List()
}

// Holders lists grant holders ordered by discovery.
func (a *App) Holders() []modq.Grant {
	return a.ledger.Holders()
}

// Stats returns the reviewer statistics as of now.
func (a *App) Stats() render.SystemStats {
	return a.service.SystemStats(a.clock.Now())
}

// Export is the document written by App.Export.
type Export struct {
	ExportedAt   time.Time         `json:"exported_at"`
	Users        []modq.User       `json:"users"`
	SecretAdmins []modq.Grant      `json:"secret_admins"`
	Pending      []modq.Submission `json:"pending"`
	Approved     []modq.Submission `json:"approved"`
	Rejected     []modq.Submission `json:"rejected"`
}

// Export writes the whole working set to w as indented JSON.
func (a *App) Export(w io.Writer) error {
	doc := Export{
		ExportedAt:   a.clock.Now().UTC(),
		Users:        a.Users(),
		SecretAdmins: a.Holders(),
		Pending:      a.Pending(),
		Approved:     a.Decided(modq.OutcomeApprove),
		Rejected:     a.Decided(modq.OutcomeReject),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return nil
}

// FlushHistory lists recent flushes. Only the sqlite store records them.
func (a *App) FlushHistory(ctx context.Context, limit int) ([]database.Flush, error) {
	db, ok := a.rawStore.(*database.SQLiteStore)
	if !ok {
		return nil, fmt.Errorf("flush history requires the sqlite store (configured: %s)", a.cfg.Store.Type)
	}
	return db.History(ctx, "", limit)
}

// Backup copies the sqlite database to destPath.
func (a *App) Backup(destPath string) error {
	db, ok := a.rawStore.(*database.SQLiteStore)
	if !ok {
		return fmt.Errorf("backup requires the sqlite store (configured: %s)", a.cfg.Store.Type)
	}
	return db.BackupTo(destPath)
}

// Fail marks the run as failed; Close logs it.
func (a *App) Fail(err error) {
	a.run.Finish(a.clock.Now(), err)
}

// Close logs the run outcome and releases the store and the log file.
// It does not flush; Serve does that on the way out.
func (a *App) Close() error {
	var d time.Duration
	if a.run.Done() {
		d = a.clock.Now().Sub(a.run.StartedAt)
	} else {
		d = a.run.Finish(a.clock.Now(), nil)
	}
	if a.run.Err != nil {
		a.logger.Error("run finished", "command", a.run.Command, "status", a.run.Status, "duration", d.String(), "error", a.run.Err)
	} else {
		a.logger.Info("run finished", "command", a.run.Command, "status", a.run.Status, "duration", d.String())
	}
	return a.closeResources()
}

func (a *App) closeResources() error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing store: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// InitKeys generates the encryption key pair named in cfg.
func InitKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return err
	}
	if enc == nil {
		return fmt.Errorf("encryption is disabled; set [encryption] type = \"age\" first")
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	return nil
}
