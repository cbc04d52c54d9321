package cli

import (
	"fmt"
	"io"

	"github.com/nagag08/rbpromotionsync/internal/engine"
)

// SweepReport is the JSON document emitted for a sweep run.
type SweepReport struct {
	RunID      string         `json:"run_id"`
	Outcome    string         `json:"outcome"`
	DryRun     bool           `json:"dry_run,omitempty"`
	Identities int            `json:"identities"`
	Planned    int            `json:"planned"`
	Applied    int            `json:"applied"`
	Failures   int            `json:"failures"`
	Bundles    []BundleReport `json:"bundles,omitempty"`
}

// BundleReport is one identity's slice of a SweepReport.
type BundleReport struct {
	Bundle  string `json:"bundle"`
	Version string `json:"version"`
	Project string `json:"project"`
	Planned int    `json:"planned"`
	Applied int    `json:"applied"`
	Error   string `json:"error,omitempty"`
}

func sweepReport(runID string, dryRun bool, s engine.Summary) SweepReport {
	report := SweepReport{
		RunID:      runID,
		Outcome:    string(s.Outcome()),
		DryRun:     dryRun,
		Identities: s.Identities,
		Planned:    s.Planned,
		Applied:    s.Applied,
		Failures:   s.Failures,
	}
	for _, res := range s.Results {
		b := BundleReport{
			Bundle:  res.Identity.Name,
			Version: res.Identity.Version,
			Project: res.Identity.ProjectKey,
			Planned: len(res.Planned),
			Applied: res.Applied,
		}
		if res.Err != nil {
			b.Error = res.Err.Error()
		}
		report.Bundles = append(report.Bundles, b)
	}
	return report
}

// renderSummary prints the human-readable sweep result.
func renderSummary(w io.Writer, runID string, s engine.Summary) {
	fmt.Fprintf(w, "Run %s\n", runID)
	fmt.Fprintf(w, "Outcome: %s\n", s.Outcome())
	fmt.Fprintf(w, "  bundle versions processed: %d\n", s.Identities)
	fmt.Fprintf(w, "  promotions planned:        %d\n", s.Planned)
	fmt.Fprintf(w, "  promotions applied:        %d\n", s.Applied)
	fmt.Fprintf(w, "  failures:                  %d\n", s.Failures)
}

// renderPlan prints the dry-run replay plan. Output is deterministic for a
// given summary: identities in sweep order, records in replay order.
func renderPlan(w io.Writer, s engine.Summary) {
	fmt.Fprintln(w, "Replay plan (dry run):")
	for _, res := range s.Results {
		fmt.Fprintf(w, "\n%s (project: %s)\n", res.Identity.String(), res.Identity.ProjectKey)
		if res.Err != nil {
			fmt.Fprintf(w, "  error: %v\n", res.Err)
			continue
		}
		if len(res.Planned) == 0 {
			fmt.Fprintln(w, "  already in sync")
			continue
		}
		for i, rec := range res.Planned {
			fmt.Fprintf(w, "  %d. %s%s (created %d)\n",
				i+1, rec.Environment, planFilters(rec), rec.CreatedMillis)
		}
	}
	fmt.Fprintf(w, "\n%d promotion(s) would be replayed across %d bundle version(s).\n",
		s.Planned, s.Identities)
}

func planFilters(rec engine.PromotionRecord) string {
	out := ""
	if include := engine.NormalizeRepos(rec.IncludedRepos); len(include) > 0 {
		out += fmt.Sprintf(" include=%v", include)
	}
	if exclude := engine.NormalizeRepos(rec.ExcludedRepos); len(exclude) > 0 {
		out += fmt.Sprintf(" exclude=%v", exclude)
	}
	return out
}
