package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nagag08/rbpromotionsync/internal/actuator"
	"github.com/nagag08/rbpromotionsync/internal/config"
	"github.com/nagag08/rbpromotionsync/internal/engine"
	"github.com/nagag08/rbpromotionsync/internal/journal"
	"github.com/nagag08/rbpromotionsync/internal/lifecycle"
)

// EventOptions holds flags for the event command.
type EventOptions struct {
	*RootOptions

	BundleName    string
	BundleVersion string
	ProjectKey    string
	RepositoryKey string

	Environment   string
	IncludeRepos  []string
	ExcludeRepos  []string
	CreatedMillis int64

	Origin        string
	PrimarySource string

	TargetURL   string
	TargetToken string

	EnvironmentFilter string
	DryRun            bool
	JournalPath       string
	Timeout           time.Duration
	ServerID          string

	// Actuator and RunIDs override collaborators for testing.
	Actuator engine.Actuator
	RunIDs   engine.RunIDGenerator
}

// EventReport is the JSON document emitted for an event run.
type EventReport struct {
	RunID       string `json:"run_id"`
	Bundle      string `json:"bundle"`
	Version     string `json:"version"`
	Disposition string `json:"disposition"`
}

// NewEventCommand creates the event-triggered command.
func NewEventCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "event",
		Short: "Replay a single triggering promotion, guarded by origin",
		Long: `Process exactly one promotion event. The trigger's origin endpoint is
compared against the configured primary source first; a trigger from any
other origin is ignored outright, which is what breaks replication loops
between two systems wired to replicate to each other.

Configuration comes from the trigger's environment variables (SOURCE_URL,
TARGET_URL, SOURCE_ACCESS_TOKEN, TARGET_ACCESS_TOKEN, RELEASE_BUNDLE,
BUNDLE_VERSION, PROJECT_KEY, REPOSITORY_KEY, PROMOTION_ENVIRONMENT,
PROMOTION_INCLUDED_REPOS, PROMOTION_EXCLUDED_REPOS,
PROMOTION_CREATED_MILLIS, TRIGGER_ORIGIN_URL, PRIMARY_SOURCE_URL), with
flags taking precedence.

Exit codes:
  0 - replayed, already present, or ignored
  1 - fetch or replay failure
  2 - usage or configuration error`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvent(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.BundleName, "bundle", "", "release bundle name")
	cmd.Flags().StringVar(&opts.BundleVersion, "version", "", "release bundle version")
	cmd.Flags().StringVar(&opts.ProjectKey, "project", "", "project key")
	cmd.Flags().StringVar(&opts.RepositoryKey, "repository-key", "", "repository key for the audit query")
	cmd.Flags().StringVar(&opts.Environment, "environment", "", "environment the trigger promoted into")
	cmd.Flags().StringSliceVar(&opts.IncludeRepos, "include-repos", nil, "included repository keys of the trigger")
	cmd.Flags().StringSliceVar(&opts.ExcludeRepos, "exclude-repos", nil, "excluded repository keys of the trigger")
	cmd.Flags().Int64Var(&opts.CreatedMillis, "created-millis", 0, "original creation timestamp of the trigger")
	cmd.Flags().StringVar(&opts.Origin, "origin", "", "endpoint the trigger originated at")
	cmd.Flags().StringVar(&opts.PrimarySource, "primary-source", "", "designated primary source endpoint")
	cmd.Flags().StringVar(&opts.TargetURL, "target-url", "", "target system base URL")
	cmd.Flags().StringVar(&opts.TargetToken, "target-token", "", "target system access token")
	cmd.Flags().StringVar(&opts.EnvironmentFilter, "environment-filter", "", "only replay promotions into this environment")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "decide without promoting")
	cmd.Flags().StringVar(&opts.JournalPath, "journal", "", "path to SQLite run journal (disabled when empty)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", lifecycle.DefaultTimeout, "per-request timeout")
	cmd.Flags().StringVar(&opts.ServerID, "server-id", "", "preconfigured jf server ID for the target")

	return cmd
}

func runEvent(opts *EventOptions, cmd *cobra.Command) error {
	cfg, err := config.EventFromEnv()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	applyEventFlags(&cfg, opts)
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	runID := runIDs.Generate()

	trig := engine.Trigger{
		Identity: engine.BundleIdentity{
			Name:          cfg.BundleName,
			Version:       cfg.BundleVersion,
			ProjectKey:    cfg.ProjectKey,
			RepositoryKey: cfg.RepositoryKey,
		},
		Record: engine.PromotionRecord{
			Environment:   cfg.Environment,
			IncludedRepos: cfg.IncludedRepos,
			ExcludedRepos: cfg.ExcludedRepos,
			CreatedMillis: cfg.CreatedMillis,
		},
		Origin: cfg.Origin,
	}

	slog.Info("processing promotion trigger",
		"run_id", runID,
		"bundle", trig.Identity.String(),
		"environment", cfg.Environment,
		"origin", cfg.Origin,
	)

	target := lifecycle.NewClient(cfg.TargetURL, cfg.TargetToken, lifecycle.WithTimeout(opts.Timeout))

	var jnl engine.Journal
	if opts.JournalPath != "" {
		j, err := journal.Open(opts.JournalPath, runID, "event")
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
		target, // source history is never consulted in event mode
		target,
		engine.NewReplicator(act, target, jnl),
		engine.WithEnvironmentFilter(opts.EnvironmentFilter),
		engine.WithDryRun(opts.DryRun),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res := eng.HandleEvent(ctx, trig, cfg.PrimarySource)
	if res.Err != nil {
		return WrapExitError(ExitFailure, "event processing failed", res.Err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		if err := out.Success(EventReport{
			RunID:       runID,
			Bundle:      cfg.BundleName,
			Version:     cfg.BundleVersion,
			Disposition: string(res.Disposition),
		}); err != nil {
			return WrapExitError(ExitCommandError, "failed to encode output", err)
		}
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", cfg.BundleName, cfg.BundleVersion, res.Disposition)
	return nil
}

func applyEventFlags(cfg *config.Event, opts *EventOptions) {
	if opts.BundleName != "" {
		cfg.BundleName = opts.BundleName
	}
	if opts.BundleVersion != "" {
		cfg.BundleVersion = opts.BundleVersion
	}
	if opts.ProjectKey != "" {
		cfg.ProjectKey = opts.ProjectKey
	}
	if opts.RepositoryKey != "" {
		cfg.RepositoryKey = opts.RepositoryKey
	}
	if opts.Environment != "" {
		cfg.Environment = opts.Environment
	}
	if len(opts.IncludeRepos) > 0 {
		cfg.IncludedRepos = opts.IncludeRepos
	}
	if len(opts.ExcludeRepos) > 0 {
		cfg.ExcludedRepos = opts.ExcludeRepos
	}
	if opts.CreatedMillis != 0 {
		cfg.CreatedMillis = opts.CreatedMillis
	}
	if opts.Origin != "" {
		cfg.Origin = opts.Origin
	}
	if opts.PrimarySource != "" {
		cfg.PrimarySource = opts.PrimarySource
	}
	if opts.TargetURL != "" {
		cfg.TargetURL = opts.TargetURL
	}
	if opts.TargetToken != "" {
		cfg.TargetToken = opts.TargetToken
	}
}
