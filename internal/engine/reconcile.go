package engine

import (
	"log/slog"
	"sort"
)

// Reconciler computes, for one bundle identity, which source records must be
// replayed on the target so that every signature's occurrence count on the
// target is at least its count on the source.
type Reconciler struct {
	// EnvironmentFilter, when non-empty, excludes from consideration any
	// source record whose environment differs, before deficits are counted.
	EnvironmentFilter string
}

// Deficit is the per-signature shortfall of target occurrences versus source
// occurrences, with the concrete source records selected to fill it.
type Deficit struct {
	Signature Signature
	Count     int
	Records   []PromotionRecord
}

// Plan is the ordered replay decision for one bundle identity. An empty plan
// is the common "already in sync" outcome.
type Plan struct {
	// Records to replay, ascending by CreatedMillis across all signatures.
	// Replay order must not be grouped by signature.
	Records []PromotionRecord

	// Deficits holds the per-signature breakdown, in order of each
	// signature's first appearance in the source history.
	Deficits []Deficit
}

// InSync reports the "nothing to replay" outcome.
func (p Plan) InSync() bool {
	return len(p.Records) == 0
}

// Plan compares source and target histories and selects the records to
// replay. Both inputs are expected in ascending creation-time order, as the
// history fetcher contract guarantees.
//
// Multiplicity matters: the same environment/repo-filter combination may
// legitimately be promoted more than once (re-promotion after a rollback),
// so occurrences are counted per signature, not merely matched. When a
// signature's deficit is smaller than its source occurrence count, the most
// recently created matches are selected first; older ones are taken only as
// the deficit requires. The final list is then re-sorted chronologically so
// replays apply in source order.
func (r Reconciler) Plan(source, target []PromotionRecord) Plan {
	considered := source
	if r.EnvironmentFilter != "" {
		considered = make([]PromotionRecord, 0, len(source))
		for _, rec := range source {
			if rec.Environment != r.EnvironmentFilter {
				slog.Debug("environment filter excluded source record",
					"environment", rec.Environment,
					"filter", r.EnvironmentFilter,
					"subject", rec.SubjectRef,
				)
				continue
			}
			considered = append(considered, rec)
		}
	}

	targetCount := make(map[string]int, len(target))
	for _, rec := range target {
		targetCount[SignatureOf(rec).Key()]++
	}

	sourceCount := make(map[string]int, len(considered))
	var sigOrder []string
	sigOf := make(map[string]Signature)
	for _, rec := range considered {
		sig := SignatureOf(rec)
		key := sig.Key()
		if sourceCount[key] == 0 {
			sigOrder = append(sigOrder, key)
			sigOf[key] = sig
		}
		sourceCount[key]++
	}

	var plan Plan
	for _, key := range sigOrder {
		deficit := sourceCount[key] - targetCount[key]
		if deficit <= 0 {
			continue
		}
		d := Deficit{
			Signature: sigOf[key],
			Count:     deficit,
			Records:   selectNewest(considered, key, deficit),
		}
		plan.Deficits = append(plan.Deficits, d)
		plan.Records = append(plan.Records, d.Records...)
	}

	// Chronological replay order across all signatures combined. Stable so
	// records without timestamps keep their source discovery order.
	sort.SliceStable(plan.Records, func(i, j int) bool {
		return plan.Records[i].CreatedMillis < plan.Records[j].CreatedMillis
	})

	return plan
}

// selectNewest picks up to n records matching the signature key, preferring
// the most recently created ones. The source slice is ascending by creation
// time, so scanning from the end yields newest-first; the selection is then
// reversed back to chronological order.
func selectNewest(source []PromotionRecord, key string, n int) []PromotionRecord {
	picked := make([]PromotionRecord, 0, n)
	for i := len(source) - 1; i >= 0 && len(picked) < n; i-- {
		if SignatureOf(source[i]).Key() == key {
			picked = append(picked, source[i])
		}
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}
