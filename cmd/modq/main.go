package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"modq/internal/app"
	"modq/internal/config"
	"modq/internal/modq"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// envPassphrase unlocks encrypted snapshots without a prompt.
const envPassphrase = "MODQ_PASSPHRASE"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it does not
// exist, then applies .env and environment overrides.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cwd, _ := os.Getwd()
	config.LoadDotEnv(cwd, defaults["base_dir"])

	cfg, err := config.ReadFromFile(defaults["config_path"])
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.NewConfig(0, defaults["base_dir"])
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp loads the config and creates an App. The caller must defer a.Close().
// command identifies the CLI command being run (e.g. "serve", "queue").
func newApp(ctx context.Context, command string, offline bool) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// Inspection commands never talk to the chat service.
	if offline && cfg.Channel.Token == "" {
		cfg.Channel.Type = "log"
	}

	passphrase, err := readPassphrase(cfg, false)
	if err != nil {
		return nil, err
	}

	opts := app.Options{
		Command:    command,
		Passphrase: passphrase,
		Offline:    offline,
	}
	if command == "serve" {
		opts.Stderr = os.Stderr
	}

	a, err := app.NewApp(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase returns the passphrase from the environment, or prompts for it
// when encryption is on and stdin is a terminal. confirm asks twice.
func readPassphrase(cfg *config.Config, confirm bool) (string, error) {
	if p := os.Getenv(envPassphrase); p != "" {
		return p, nil
	}
	if cfg.Encryption.Type != "age" {
		return "", nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	p, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if !confirm {
		return string(p), nil
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	again, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if string(p) != string(again) {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(p), nil
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

var rootCmd = &cobra.Command{
	Use:          "modq",
	Short:        "File moderation queue bot",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		reviewerID, _ := cmd.Flags().GetInt64("reviewer")
		if reviewerID == 0 {
			if raw := os.Getenv(config.EnvReviewerID); raw != "" {
				if reviewerID, err = strconv.ParseInt(raw, 10, 64); err != nil {
					return fmt.Errorf("parsing %s: %w", config.EnvReviewerID, err)
				}
			}
		}

		cfg := config.NewConfig(reviewerID, defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Reviewer: %d\n", reviewerID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		token := "(unset)"
		if cfg.Channel.Token != "" {
			token = "(set)"
		}
		fmt.Printf("Reviewer:   %d\n", cfg.ReviewerID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Flush:      %s\n", cfg.FlushInterval)
		fmt.Printf("Channel:    %s  token %s\n", cfg.Channel.Type, token)
		fmt.Printf("Store:      %s\n", cfg.Store.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("HTTP:       %s\n", cfg.HTTP.Addr)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the snapshot encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		passphrase, err := readPassphrase(cfg, true)
		if err != nil {
			return err
		}
		if passphrase == "" {
			return fmt.Errorf("a passphrase is required (set %s or run from a terminal)", envPassphrase)
		}
		if err := app.InitKeys(cfg, passphrase); err != nil {
			return err
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "serve", false)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(ctx)
	},
}

// queue command
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		approved, _ := cmd.Flags().GetBool("approved")
		rejected, _ := cmd.Flags().GetBool("rejected")

		a, err := newApp(cmd.Context(), "queue", true)
		if err != nil {
			return err
		}
		defer a.Close()

		var subs []modq.Submission
		switch {
		case approved:
			subs = a.Decided(modq.OutcomeApprove)
		case rejected:
			subs = a.Decided(modq.OutcomeReject)
		default:
			subs = a.Pending()
		}

		if len(subs) == 0 {
			fmt.Println("No submissions.")
			return nil
		}

		for _, s := range subs {
			stale := ""
			if s.IsStale(time.Now()) {
				stale = "  [stale]"
			}
			fmt.Printf("%s  %-10s  %-20s  %-12d  %s%s\n",
				formatTime(s.CreatedAt),
				s.Status,
				s.Username,
				s.UserID,
				s.Filename,
				stale,
			)
		}
		return nil
	},
}

// users command
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "users", true)
		if err != nil {
			return err
		}
		defer a.Close()

		users := a.Users()
		if len(users) == 0 {
			fmt.Println("No users.")
			return nil
		}

		for _, u := range users {
			grant := ""
			if u.IsSecretAdmin {
				grant = "  [panel]"
			}
			fmt.Printf("%-12d  %-20s  %s  files:%d approved:%d rejected:%d%s\n",
				u.ID,
				u.Username,
				formatTime(u.JoinDate),
				u.FilesCount,
				u.ApprovedCount,
				u.RejectedCount,
				grant,
			)
		}
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue and registry statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "stats", true)
		if err != nil {
			return err
		}
		defer a.Close()

		s := a.Stats()
		fmt.Printf("Users:        %d (new today %d, active today %d)\n", s.Users, s.NewUsersToday, s.ActiveToday)
		fmt.Printf("Submissions:  %d total, %d today\n", s.Queue.Total(), s.SubmittedToday)
		fmt.Printf("  pending:    %d\n", s.Queue.Pending)
		fmt.Printf("  approved:   %d\n", s.Queue.Approved)
		fmt.Printf("  rejected:   %d\n", s.Queue.Rejected)
		fmt.Printf("Panel grants: %d\n", s.Grants.Count)
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the working set as JSON to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "export", true)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Export(os.Stdout)
	},
}

// store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect the sqlite store",
}

var storeHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent table flushes",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "store-history", true)
		if err != nil {
			return err
		}
		defer a.Close()

		flushes, err := a.FlushHistory(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(flushes) == 0 {
			fmt.Println("No flushes recorded.")
			return nil
		}

		for _, f := range flushes {
			fmt.Printf("#%d  %-14s  %s  %d\n", f.ID, f.Table, formatTime(f.FlushedAt), f.Size)
		}
		return nil
	},
}

var storeBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Copy the sqlite database to DEST",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "store-backup", true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Backup(args[0]); err != nil {
			a.Fail(err)
			return err
		}
		fmt.Printf("Backed up to %s\n", args[0])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().Int64("reviewer", 0, "Chat user ID of the reviewer (default $ADMIN_ID)")

	keysCmd.AddCommand(keysInitCmd)

	storeCmd.AddCommand(storeHistoryCmd)
	storeCmd.AddCommand(storeBackupCmd)
	storeHistoryCmd.Flags().IntP("limit", "n", 50, "Maximum number of flushes to show")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queueCmd)
	queueCmd.Flags().Bool("approved", false, "List approved submissions")
	queueCmd.Flags().Bool("rejected", false, "List rejected submissions")
	queueCmd.MarkFlagsMutuallyExclusive("approved", "rejected")
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(storeCmd)
}
