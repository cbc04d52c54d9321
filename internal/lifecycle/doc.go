// Package lifecycle is the HTTP client for a release-lifecycle tracking
// system. It covers the three surfaces the engine consumes: the audit
// history of one bundle version, the bundle/version enumeration used by the
// sweep driver, and the promotion-record timestamp rewrite.
//
// The client absorbs wire-format drift at this boundary. Raw audit events
// are normalized into engine.PromotionRecord here, including the
// creation-timestamp field-name variance between systems, so the reconciler
// never sees source-format differences.
package lifecycle
