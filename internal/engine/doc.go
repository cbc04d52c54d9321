// Package engine implements the promotion reconciliation and replication core.
//
// The engine compares the promotion history of one release bundle version
// between a source and a target tracking system, computes the per-signature
// deficit (how many more times each distinct promotion shape occurred on the
// source than on the target), and replays the missing records on the target
// through an external promotion actuator, in chronological order, aligning
// each replayed record's stored creation timestamp afterwards.
//
// PIPELINE:
//
//	fetch source history -> fetch target history -> reconcile -> replicate -> align
//
// Execution is strictly sequential. Replay order within one bundle identity
// is load-bearing: timestamps and relative audit ordering on the target must
// mirror the source, so records are applied one at a time, oldest first.
// Different identities are independent; nothing is shared between them and no
// state survives a run. The target system's own audit log is the durable
// record of what has already been synced.
//
// Replication is one-directional per run (source to target). Loop safety for
// cross-wired deployments comes from the origin guard in event-triggered
// mode, which drops any trigger that did not originate at the configured
// primary source.
package engine
