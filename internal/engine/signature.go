package engine

import (
	"sort"
	"strings"
)

// NormalizeRepos flattens a raw repository-filter field into a sorted set of
// trimmed, non-empty repository keys. Each input element may itself be a
// comma-joined sub-list, so ["a,b"] and ["a","b"] normalize identically.
// Duplicates collapse; malformed input degrades to best effort, never errors.
func NormalizeRepos(repos []string) []string {
	if len(repos) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	for _, item := range repos {
		for _, part := range strings.Split(item, ",") {
			key := strings.TrimSpace(part)
			if key == "" {
				continue
			}
			seen[key] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Signature is the order-independent, format-independent comparison key for
// a promotion record. Two records are equivalent iff their signatures are
// equal; multiplicity of equivalent records is what the reconciler counts.
type Signature struct {
	Environment string
	Included    []string // normalized: sorted, deduplicated, trimmed
	Excluded    []string
}

// SignatureOf derives the signature of a record. Construction is idempotent:
// deriving a signature from an already-normalized record yields the same key.
func SignatureOf(rec PromotionRecord) Signature {
	return Signature{
		Environment: rec.Environment,
		Included:    NormalizeRepos(rec.IncludedRepos),
		Excluded:    NormalizeRepos(rec.ExcludedRepos),
	}
}

// Key renders the signature as a canonical string suitable for use as a
// counting-map key. The separators are control characters that cannot occur
// in repository keys or environment names.
func (s Signature) Key() string {
	var b strings.Builder
	b.WriteString(s.Environment)
	b.WriteByte(0x1d)
	b.WriteString(strings.Join(s.Included, "\x1e"))
	b.WriteByte(0x1d)
	b.WriteString(strings.Join(s.Excluded, "\x1e"))
	return b.String()
}

// Equal reports whether two signatures are the same comparison key.
func (s Signature) Equal(o Signature) bool {
	return s.Key() == o.Key()
}
