package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nagag08/rbpromotionsync/internal/actuator"
	"github.com/nagag08/rbpromotionsync/internal/config"
	"github.com/nagag08/rbpromotionsync/internal/engine"
	"github.com/nagag08/rbpromotionsync/internal/journal"
	"github.com/nagag08/rbpromotionsync/internal/lifecycle"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions

	ConfigFile  string
	SourceURL   string
	SourceToken string
	TargetURL   string
	TargetToken string

	EnvironmentFilter string
	ProjectFilter     string
	DryRun            bool
	JournalPath       string
	Timeout           time.Duration
	ServerID          string

	// Actuator overrides the promotion actuator (for testing).
	// Nil defaults to the JFrog CLI actuator.
	Actuator engine.Actuator

	// RunIDs overrides the run ID generator (for testing).
	// Nil defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewSyncCommand creates the sync (sweep) command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sweep all bundles on the source and replay missing promotions",
		Long: `Enumerate every release bundle name and version on the source system,
compare promotion histories with the target, and replay whatever completed
promotions are missing there, oldest first.

Server endpoints and tokens come from RBSYNC_SOURCE_* / RBSYNC_TARGET_*
environment variables, an optional --config YAML file, or flags, in that
precedence order.

Exit codes:
  0 - fully synchronized or nothing to do
  1 - at least one fetch or replay failure
  2 - usage or configuration error

Examples:
  rbsync sync --config servers.yaml
  rbsync sync --environment-filter PROD --dry-run
  rbsync sync --project-filter myproj --journal ./rbsync.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "path to YAML server-pair config")
	cmd.Flags().StringVar(&opts.SourceURL, "source-url", "", "source system base URL")
	cmd.Flags().StringVar(&opts.SourceToken, "source-token", "", "source system access token")
	cmd.Flags().StringVar(&opts.TargetURL, "target-url", "", "target system base URL")
	cmd.Flags().StringVar(&opts.TargetToken, "target-token", "", "target system access token")
	cmd.Flags().StringVar(&opts.EnvironmentFilter, "environment-filter", "", "only sync promotions into this environment")
	cmd.Flags().StringVar(&opts.ProjectFilter, "project-filter", "", "only sync bundles with this project key")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "compute the replay plan without promoting")
	cmd.Flags().StringVar(&opts.JournalPath, "journal", "", "path to SQLite run journal (disabled when empty)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", lifecycle.DefaultTimeout, "per-request timeout")
	cmd.Flags().StringVar(&opts.ServerID, "server-id", "", "preconfigured jf server ID for the target")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	cfg, err := config.LoadSync(opts.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.SourceURL != "" {
		cfg.Source.URL = opts.SourceURL
	}
	if opts.SourceToken != "" {
		cfg.Source.Token = opts.SourceToken
	}
	if opts.TargetURL != "" {
		cfg.Target.URL = opts.TargetURL
	}
	if opts.TargetToken != "" {
		cfg.Target.Token = opts.TargetToken
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	runID := runIDs.Generate()

	slog.Info("starting release bundle synchronization",
		"run_id", runID,
		"source", cfg.Source.URL,
		"target", cfg.Target.URL,
		"environment_filter", opts.EnvironmentFilter,
		"project_filter", opts.ProjectFilter,
		"dry_run", opts.DryRun,
	)

	source := lifecycle.NewClient(cfg.Source.URL, cfg.Source.Token, lifecycle.WithTimeout(opts.Timeout))
	target := lifecycle.NewClient(cfg.Target.URL, cfg.Target.Token, lifecycle.WithTimeout(opts.Timeout))

	var jnl engine.Journal
	if opts.JournalPath != "" {
		j, err := journal.Open(opts.JournalPath, runID, "sweep")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
		jnl = j
	}

	act := opts.Actuator
	if act == nil {
		act = actuator.New(opts.ServerID)
	}

	eng := engine.New(
		source,
		target,
		engine.NewReplicator(act, target, jnl),
		engine.WithEnvironmentFilter(opts.EnvironmentFilter),
		engine.WithDryRun(opts.DryRun),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	summary, err := eng.Sweep(ctx, source, opts.ProjectFilter)
	if err != nil {
		return WrapExitError(ExitFailure, "sweep aborted", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		if err := out.Success(sweepReport(runID, opts.DryRun, summary)); err != nil {
			return WrapExitError(ExitCommandError, "failed to encode output", err)
		}
	} else if opts.DryRun {
		renderPlan(cmd.OutOrStdout(), summary)
	} else {
		renderSummary(cmd.OutOrStdout(), runID, summary)
	}

	if summary.Failures > 0 {
		return NewExitError(ExitFailure, "synchronization finished with failures")
	}
	return nil
}
