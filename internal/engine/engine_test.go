package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHistory serves canned histories per bundle identity and counts fetches.
type fakeHistory struct {
	records map[string][]PromotionRecord
	err     error
	fetches int
}

func (f *fakeHistory) FetchHistory(_ context.Context, id BundleIdentity) ([]PromotionRecord, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[id.String()], nil
}

// fakeCatalog serves a fixed enumeration.
type fakeCatalog struct {
	names    []BundleName
	versions map[string][]string
	err      error
}

func (f *fakeCatalog) BundleNames(context.Context) ([]BundleName, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.names, nil
}

func (f *fakeCatalog) BundleVersions(_ context.Context, name, _ string) ([]string, error) {
	return f.versions[name], nil
}

func newTestEngine(source, target *fakeHistory, act *fakeActuator, opts ...Option) *Engine {
	return New(source, target, NewReplicator(act, &fakeAligner{}, nil), opts...)
}

func TestSyncIdentity_ReplaysMissingPromotions(t *testing.T) {
	id := BundleIdentity{Name: "app", Version: "1.0.0", ProjectKey: "default"}
	source := &fakeHistory{records: map[string][]PromotionRecord{
		"app/1.0.0": {promo("DEV", 100), promo("STAGING", 200)},
	}}
	target := &fakeHistory{}
	act := &fakeActuator{}

	res := newTestEngine(source, target, act).SyncIdentity(context.Background(), id)

	require.NoError(t, res.Err)
	assert.Len(t, res.Planned, 2)
	assert.Equal(t, 2, res.Applied)
	require.Len(t, act.calls, 2)
	assert.Equal(t, "DEV", act.calls[0].Environment)
	assert.Equal(t, "STAGING", act.calls[1].Environment)
}

func TestSyncIdentity_AlreadyInSync(t *testing.T) {
	id := BundleIdentity{Name: "app", Version: "1.0.0"}
	history := map[string][]PromotionRecord{"app/1.0.0": {promo("PROD", 100)}}
	act := &fakeActuator{}

	res := newTestEngine(&fakeHistory{records: history}, &fakeHistory{records: history}, act).
		SyncIdentity(context.Background(), id)

	require.NoError(t, res.Err)
	assert.Empty(t, res.Planned)
	assert.Empty(t, act.calls)
}

func TestSyncIdentity_SourceFetchFailure(t *testing.T) {
	id := BundleIdentity{Name: "app", Version: "1.0.0"}
	source := &fakeHistory{err: errors.New("boom")}
	target := &fakeHistory{}

	res := newTestEngine(source, target, &fakeActuator{}).SyncIdentity(context.Background(), id)

	require.Error(t, res.Err)
	assert.True(t, IsFetchFailure(res.Err))
	assert.Zero(t, target.fetches, "target is not consulted after a source fetch failure")
}

func TestSyncIdentity_DryRunPlansWithoutActuating(t *testing.T) {
	id := BundleIdentity{Name: "app", Version: "1.0.0"}
	source := &fakeHistory{records: map[string][]PromotionRecord{
		"app/1.0.0": {promo("DEV", 100)},
	}}
	act := &fakeActuator{}

	res := newTestEngine(source, &fakeHistory{}, act, WithDryRun(true)).
		SyncIdentity(context.Background(), id)

	require.NoError(t, res.Err)
	assert.Len(t, res.Planned, 1)
	assert.Zero(t, res.Applied)
	assert.Empty(t, act.calls)
}

func TestSweep_ProcessesAllIdentitiesAndContinuesPastFailures(t *testing.T) {
	catalog := &fakeCatalog{
		names: []BundleName{
			{Name: "app", ProjectKey: "default"},
			{Name: "lib", ProjectKey: "default"},
		},
		versions: map[string][]string{
			"app": {"1.0.0", "2.0.0"},
			"lib": {"1.0.0"},
		},
	}
	source := &fakeHistory{records: map[string][]PromotionRecord{
		"app/1.0.0": {promo("DEV", 100)},
		"app/2.0.0": {promo("DEV", 100), promo("PROD", 200)},
		"lib/1.0.0": {promo("DEV", 100)},
	}}
	target := &fakeHistory{records: map[string][]PromotionRecord{
		"lib/1.0.0": {promo("DEV", 900)},
	}}
	// app/2.0.0's PROD replay fails; the sweep still reaches lib/1.0.0.
	act := &fakeActuator{failOn: map[string]error{"PROD": errors.New("rejected")}}

	summary, err := newTestEngine(source, target, act).Sweep(context.Background(), catalog, "")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Identities)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, OutcomePartial, summary.Outcome())

	// lib/1.0.0 was in sync, app/1.0.0 applied 1, app/2.0.0 applied DEV only.
	assert.Equal(t, 2, summary.Applied)
}

func TestSweep_ProjectFilter(t *testing.T) {
	catalog := &fakeCatalog{
		names: []BundleName{
			{Name: "app", ProjectKey: "alpha"},
			{Name: "lib", ProjectKey: "beta"},
		},
		versions: map[string][]string{"app": {"1.0.0"}, "lib": {"1.0.0"}},
	}
	source := &fakeHistory{}
	target := &fakeHistory{}

	summary, err := newTestEngine(source, target, &fakeActuator{}).
		Sweep(context.Background(), catalog, "alpha")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Identities)
}

func TestSweep_SkipsMalformedEntries(t *testing.T) {
	catalog := &fakeCatalog{
		names: []BundleName{
			{Name: "", ProjectKey: "default"}, // malformed: no name
			{Name: "app", ProjectKey: "default"},
		},
		versions: map[string][]string{"app": {"", "1.0.0"}}, // one malformed version
	}

	summary, err := newTestEngine(&fakeHistory{}, &fakeHistory{}, &fakeActuator{}).
		Sweep(context.Background(), catalog, "")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Identities)
	assert.Zero(t, summary.Failures)
}

func TestSweep_EnumerationFailure(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("names unavailable")}

	_, err := newTestEngine(&fakeHistory{}, &fakeHistory{}, &fakeActuator{}).
		Sweep(context.Background(), catalog, "")

	require.Error(t, err)
	assert.True(t, IsFetchFailure(err))
}

func TestSummary_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		want    Outcome
	}{
		{"nothing to do", Summary{Identities: 3}, OutcomeInSync},
		{"fully synchronized", Summary{Identities: 2, Planned: 2, Applied: 2}, OutcomeSynced},
		{"partial", Summary{Identities: 2, Planned: 2, Applied: 1, Failures: 1}, OutcomePartial},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.summary.Outcome())
		})
	}
}
