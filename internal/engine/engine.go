package engine

import (
	"context"
	"log/slog"
)

// History supplies the promotion history of one tracking system.
//
// Implementations must return only eligible records (promotion kind,
// non-federated, completed where the status concept applies), in strict
// ascending order by creation time with ties broken by discovery order. An
// empty slice is a valid success distinct from an error: "no history yet"
// must not abort reconciliation, while a transport or parse failure must.
type History interface {
	FetchHistory(ctx context.Context, id BundleIdentity) ([]PromotionRecord, error)
}

// Catalog enumerates bundle names and versions on the source system.
// Consumed only by the sweep driver.
type Catalog interface {
	BundleNames(ctx context.Context) ([]BundleName, error)
	BundleVersions(ctx context.Context, name, projectKey string) ([]string, error)
}

// Engine runs the fetch -> reconcile -> replicate -> align pipeline.
type Engine struct {
	source     History
	target     History
	reconciler Reconciler
	replicator *Replicator
	dryRun     bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithEnvironmentFilter restricts reconciliation to promotions into the
// given environment.
func WithEnvironmentFilter(environment string) Option {
	return func(e *Engine) { e.reconciler.EnvironmentFilter = environment }
}

// WithDryRun computes plans without invoking the actuator.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// New builds an engine over the two histories and a replicator bound to the
// target system.
func New(source, target History, replicator *Replicator, opts ...Option) *Engine {
	e := &Engine{
		source:     source,
		target:     target,
		replicator: replicator,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IdentityResult summarizes one bundle identity's reconciliation.
type IdentityResult struct {
	Identity BundleIdentity
	Planned  []PromotionRecord // records selected for replay
	Applied  int
	Err      error
}

// Summary aggregates a run across all processed identities.
type Summary struct {
	Identities int
	Planned    int
	Applied    int
	Failures   int
	Results    []IdentityResult
}

// Outcome is the engine's overall verdict for a run.
type Outcome string

const (
	OutcomeInSync  Outcome = "nothing to do"
	OutcomeSynced  Outcome = "fully synchronized"
	OutcomePartial Outcome = "partially synchronized"
)

// Outcome classifies the summary. Dry runs with a non-empty plan report
// OutcomeSynced since nothing failed and work was identified.
func (s Summary) Outcome() Outcome {
	switch {
	case s.Failures > 0:
		return OutcomePartial
	case s.Planned == 0:
		return OutcomeInSync
	default:
		return OutcomeSynced
	}
}

func (s *Summary) add(res IdentityResult) {
	s.Identities++
	s.Planned += len(res.Planned)
	s.Applied += res.Applied
	if res.Err != nil {
		s.Failures++
	}
	s.Results = append(s.Results, res)
}

// SyncIdentity reconciles and replicates a single bundle identity. The
// returned result carries a non-nil Err for fetch and actuation failures;
// callers treat those as "continue with the next identity".
func (e *Engine) SyncIdentity(ctx context.Context, id BundleIdentity) IdentityResult {
	res := IdentityResult{Identity: id}

	sourceHistory, err := e.source.FetchHistory(ctx, id)
	if err != nil {
		slog.Error("failed to fetch source promotion history", "bundle", id.String(), "error", err)
		res.Err = newFetchError(id, err)
		return res
	}
	targetHistory, err := e.target.FetchHistory(ctx, id)
	if err != nil {
		slog.Error("failed to fetch target promotion history", "bundle", id.String(), "error", err)
		res.Err = newFetchError(id, err)
		return res
	}

	slog.Debug("histories fetched",
		"bundle", id.String(),
		"source_records", len(sourceHistory),
		"target_records", len(targetHistory),
	)

	plan := e.reconciler.Plan(sourceHistory, targetHistory)
	res.Planned = plan.Records
	if plan.InSync() {
		slog.Info("target already in sync", "bundle", id.String())
		return res
	}

	slog.Info("missing promotions identified",
		"bundle", id.String(),
		"missing", len(plan.Records),
		"signatures", len(plan.Deficits),
	)

	if e.dryRun {
		return res
	}

	res.Applied, res.Err = e.replicator.Apply(ctx, id, plan.Records)
	return res
}

// Sweep enumerates every bundle name and version on the source and runs the
// pipeline for each identity in turn. Malformed enumeration entries are
// skipped with a warning; fetch and actuation failures are recorded in the
// summary and the sweep moves on. An error is returned only when the
// enumeration itself fails or the context ends.
func (e *Engine) Sweep(ctx context.Context, catalog Catalog, projectFilter string) (Summary, error) {
	var summary Summary

	names, err := catalog.BundleNames(ctx)
	if err != nil {
		return summary, newFetchError(BundleIdentity{}, err)
	}
	slog.Info("release bundle names discovered", "count", len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if name.Name == "" {
			slog.Warn("skipping malformed bundle name entry", "project", name.ProjectKey)
			continue
		}
		if projectFilter != "" && name.ProjectKey != projectFilter {
			slog.Debug("project filter excluded bundle", "bundle", name.Name, "project", name.ProjectKey)
			continue
		}

		versions, err := catalog.BundleVersions(ctx, name.Name, name.ProjectKey)
		if err != nil {
			slog.Error("failed to enumerate bundle versions", "bundle", name.Name, "error", err)
			summary.Failures++
			continue
		}

		for _, version := range versions {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			if version == "" {
				slog.Warn("skipping malformed version entry", "bundle", name.Name)
				continue
			}
			id := BundleIdentity{
				Name:          name.Name,
				Version:       version,
				ProjectKey:    name.ProjectKey,
				RepositoryKey: name.RepositoryKey,
			}
			summary.add(e.SyncIdentity(ctx, id))
		}
	}

	return summary, nil
}
