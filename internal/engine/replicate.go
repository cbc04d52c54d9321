package engine

import (
	"context"
	"log/slog"
	"strings"
)

// Actuation is the argument contract handed to the external promotion
// actuator for a single replay.
type Actuation struct {
	Identity    BundleIdentity
	Environment string

	// IncludeRepos and ExcludeRepos carry the normalized repository filters.
	// Empty means the filter is omitted from the actuation entirely.
	IncludeRepos []string
	ExcludeRepos []string
}

// IncludeArg renders the include filter as a comma-joined list, or "" when
// no filter applies. ExcludeArg is the same for exclusions.
func (a Actuation) IncludeArg() string { return strings.Join(a.IncludeRepos, ",") }
func (a Actuation) ExcludeArg() string { return strings.Join(a.ExcludeRepos, ",") }

// Actuator performs one promotion on the target system and blocks until it
// completes or fails.
type Actuator interface {
	Promote(ctx context.Context, act Actuation) error
}

// Aligner rewrites the stored creation timestamp of the most recent matching
// promotion record on the target system.
type Aligner interface {
	AlignTimestamp(ctx context.Context, id BundleIdentity, millis int64) error
}

// Journal records per-record replay outcomes for post-hoc inspection. It is
// never read back by the engine; recording failures are logged, not fatal.
type Journal interface {
	RecordReplay(ctx context.Context, id BundleIdentity, rec PromotionRecord, status, detail string) error
}

// Journal statuses.
const (
	ReplayStatusReplayed = "replayed"
	ReplayStatusSkipped  = "skipped"
	ReplayStatusFailed   = "failed"
)

// Replicator applies planned records to the target, one at a time, strictly
// in reconciler order. The target endpoint and credentials are bound at
// construction through the actuator and aligner; nothing relies on ambient
// tool configuration.
type Replicator struct {
	actuator Actuator
	aligner  Aligner
	journal  Journal // optional
}

// NewReplicator builds a replicator. aligner may be nil when the target
// system does not support timestamp rewrites; journal may be nil to disable
// journaling.
func NewReplicator(actuator Actuator, aligner Aligner, journal Journal) *Replicator {
	return &Replicator{actuator: actuator, aligner: aligner, journal: journal}
}

// Apply replays records in order and returns how many were applied.
//
// A record with no environment is a data-integrity anomaly: it is skipped
// with a warning and does not abort the identity. An actuator failure does
// abort the remaining replays for this identity, because later records may
// depend on earlier ones having been applied; the caller moves on to the
// next identity.
func (r *Replicator) Apply(ctx context.Context, id BundleIdentity, records []PromotionRecord) (int, error) {
	applied := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		if rec.Environment == "" {
			slog.Warn("skipping promotion record with no environment",
				"bundle", id.String(),
				"subject", rec.SubjectRef,
			)
			r.record(ctx, id, rec, ReplayStatusSkipped, "missing environment")
			continue
		}

		act := Actuation{
			Identity:     id,
			Environment:  rec.Environment,
			IncludeRepos: NormalizeRepos(rec.IncludedRepos),
			ExcludeRepos: NormalizeRepos(rec.ExcludedRepos),
		}

		slog.Info("replaying promotion",
			"bundle", id.String(),
			"project", id.ProjectKey,
			"environment", rec.Environment,
			"include_repos", act.IncludeArg(),
			"exclude_repos", act.ExcludeArg(),
		)

		if err := r.actuator.Promote(ctx, act); err != nil {
			slog.Error("promotion actuator failed",
				"bundle", id.String(),
				"environment", rec.Environment,
				"error", err,
			)
			r.record(ctx, id, rec, ReplayStatusFailed, err.Error())
			return applied, newActuationError(id, rec.Environment, err)
		}
		applied++
		r.record(ctx, id, rec, ReplayStatusReplayed, "")

		r.align(ctx, id, rec)
	}
	return applied, nil
}

// align rewrites the replayed record's creation time to sit immediately
// after the original source timestamp. The +1 offset keeps the replayed
// record strictly after its source counterpart in any timestamp-ordered view
// while avoiding an exact collision the target may reject. Alignment is
// best-effort: the promotion itself already succeeded, so a missing
// timestamp or a failed rewrite degrades to a warning.
func (r *Replicator) align(ctx context.Context, id BundleIdentity, rec PromotionRecord) {
	if r.aligner == nil {
		return
	}
	if rec.CreatedMillis <= 0 {
		slog.Warn("skipping timestamp alignment: original timestamp unavailable",
			"bundle", id.String(),
			"environment", rec.Environment,
		)
		return
	}
	if err := r.aligner.AlignTimestamp(ctx, id, rec.CreatedMillis+1); err != nil {
		slog.Warn("timestamp alignment failed",
			"bundle", id.String(),
			"environment", rec.Environment,
			"millis", rec.CreatedMillis+1,
			"error", err,
		)
	}
}

func (r *Replicator) record(ctx context.Context, id BundleIdentity, rec PromotionRecord, status, detail string) {
	if r.journal == nil {
		return
	}
	if err := r.journal.RecordReplay(ctx, id, rec, status, detail); err != nil {
		slog.Warn("journal write failed", "bundle", id.String(), "error", err)
	}
}
