package engine

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
)

// Trigger describes the single promotion event that initiated an
// event-triggered run.
type Trigger struct {
	Identity BundleIdentity
	Record   PromotionRecord

	// Origin is the endpoint of the tracking system the event originated at.
	Origin string
}

// EventDisposition is the outcome of an event-triggered run.
type EventDisposition string

const (
	// EventIgnored means the trigger did not originate at the configured
	// primary source. No fetches are performed; this is the loop breaker
	// for cross-wired deployments.
	EventIgnored EventDisposition = "ignored"

	// EventAlreadyPresent means the target's most recent promotion for the
	// same environment already carries an identical signature.
	EventAlreadyPresent EventDisposition = "already_present"

	// EventReplayed means the triggering promotion was applied to the target.
	EventReplayed EventDisposition = "replayed"
)

// EventResult is the report of one event-triggered run.
type EventResult struct {
	Disposition EventDisposition
	Err         error
}

// OriginMatches reports whether two endpoints refer to the same tracking
// system. Scheme and host compare case-insensitively and trailing slashes
// are insignificant; the path otherwise matters.
func OriginMatches(origin, primary string) bool {
	return canonicalEndpoint(origin) == canonicalEndpoint(primary)
}

func canonicalEndpoint(raw string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return strings.ToLower(trimmed)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.Path
}

// HandleEvent runs the event-triggered, single-record variant of the
// pipeline.
//
// The origin guard runs first: unless the trigger originated at the primary
// source endpoint, the run is a non-error no-op and no fetch is performed.
// Otherwise the target history is consulted once; if its most recent
// eligible record for the trigger's environment already has an identical
// signature the event is dropped without a full deficit computation, since
// event mode processes exactly one new promotion occurrence rather than a
// historical backlog. Anything else is replayed and aligned.
func (e *Engine) HandleEvent(ctx context.Context, trig Trigger, primarySource string) EventResult {
	if !OriginMatches(trig.Origin, primarySource) {
		slog.Info("ignoring trigger from non-primary origin",
			"origin", trig.Origin,
			"primary", primarySource,
		)
		return EventResult{Disposition: EventIgnored}
	}

	if e.reconciler.EnvironmentFilter != "" && trig.Record.Environment != e.reconciler.EnvironmentFilter {
		slog.Info("environment filter excluded trigger",
			"environment", trig.Record.Environment,
			"filter", e.reconciler.EnvironmentFilter,
		)
		return EventResult{Disposition: EventIgnored}
	}

	targetHistory, err := e.target.FetchHistory(ctx, trig.Identity)
	if err != nil {
		slog.Error("failed to fetch target promotion history",
			"bundle", trig.Identity.String(),
			"error", err,
		)
		return EventResult{Err: newFetchError(trig.Identity, err)}
	}

	sig := SignatureOf(trig.Record)
	if latest, ok := latestForEnvironment(targetHistory, trig.Record.Environment); ok {
		if SignatureOf(latest).Equal(sig) {
			slog.Info("target already reflects triggering promotion",
				"bundle", trig.Identity.String(),
				"environment", trig.Record.Environment,
			)
			return EventResult{Disposition: EventAlreadyPresent}
		}
	}

	if e.dryRun {
		slog.Info("dry run: would replay triggering promotion",
			"bundle", trig.Identity.String(),
			"environment", trig.Record.Environment,
		)
		return EventResult{Disposition: EventReplayed}
	}

	if _, err := e.replicator.Apply(ctx, trig.Identity, []PromotionRecord{trig.Record}); err != nil {
		return EventResult{Err: err}
	}
	return EventResult{Disposition: EventReplayed}
}

// latestForEnvironment returns the most recent record promoting into the
// given environment. History is ascending, so the scan runs from the end.
func latestForEnvironment(history []PromotionRecord, environment string) (PromotionRecord, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Environment == environment {
			return history[i], true
		}
	}
	return PromotionRecord{}, false
}
