package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/nagag08/rbpromotionsync/internal/engine"
)

func planSummary() engine.Summary {
	return engine.Summary{
		Identities: 3,
		Planned:    2,
		Failures:   1,
		Results: []engine.IdentityResult{
			{
				Identity: engine.BundleIdentity{Name: "app", Version: "1.0.0", ProjectKey: "payments"},
				Planned: []engine.PromotionRecord{
					{Environment: "DEV", IncludedRepos: []string{"repo-a,repo-b"}, CreatedMillis: 100},
					{Environment: "PROD", CreatedMillis: 200},
				},
			},
			{
				Identity: engine.BundleIdentity{Name: "lib", Version: "2.0.0", ProjectKey: "default"},
			},
			{
				Identity: engine.BundleIdentity{Name: "svc", Version: "3.1.4", ProjectKey: "default"},
				Err:      errors.New("fetch source history: connection refused"),
			},
		},
	}
}

func TestRenderPlan_Golden(t *testing.T) {
	var buf bytes.Buffer
	renderPlan(&buf, planSummary())

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "replay_plan", buf.Bytes())
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, "run-42", engine.Summary{
		Identities: 3,
		Planned:    2,
		Applied:    2,
	})

	out := buf.String()
	assert.Contains(t, out, "Run run-42")
	assert.Contains(t, out, "Outcome: fully synchronized")
	assert.Contains(t, out, "promotions applied:        2")
}

func TestSweepReport(t *testing.T) {
	report := sweepReport("run-42", true, planSummary())

	assert.Equal(t, "run-42", report.RunID)
	assert.True(t, report.DryRun)
	assert.Equal(t, "partially synchronized", report.Outcome)
	assert.Equal(t, 3, report.Identities)
	assert.Equal(t, 2, report.Planned)
	assert.Equal(t, 1, report.Failures)

	assert.Len(t, report.Bundles, 3)
	assert.Equal(t, "app", report.Bundles[0].Bundle)
	assert.Equal(t, 2, report.Bundles[0].Planned)
	assert.Empty(t, report.Bundles[0].Error)
	assert.Contains(t, report.Bundles[2].Error, "connection refused")
}
