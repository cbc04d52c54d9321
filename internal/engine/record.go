package engine

// PromotionRecord is one completed promotion action as recorded by a
// tracking system's audit log. Records are read-only inputs, fetched fresh
// per run.
type PromotionRecord struct {
	// Environment is the destination stage of the promotion. A record
	// without an environment is not actionable; the replicator skips it.
	Environment string

	// IncludedRepos and ExcludedRepos are the repository filters the
	// promotion was executed with. Elements may themselves be comma-joined
	// sub-lists; signature construction flattens them.
	IncludedRepos []string
	ExcludedRepos []string

	// CreatedMillis is the record's creation time in epoch milliseconds.
	// Zero means the source did not report a usable timestamp; ordering
	// falls back to discovery order and timestamp alignment is skipped.
	CreatedMillis int64

	// SubjectRef is the raw audit subject reference, kept for diagnostics.
	SubjectRef string
}

// BundleIdentity is the unit of reconciliation. All fetches and replays are
// scoped to exactly one identity at a time.
type BundleIdentity struct {
	Name       string
	Version    string
	ProjectKey string

	// RepositoryKey narrows the audit query on systems that require it.
	// Optional; not part of the identity's equality.
	RepositoryKey string
}

func (id BundleIdentity) String() string {
	return id.Name + "/" + id.Version
}

// BundleName is one entry from the source system's bundle enumeration.
type BundleName struct {
	Name          string
	ProjectKey    string
	RepositoryKey string
}
