package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagag08/rbpromotionsync/internal/engine"
)

// recordingActuator stands in for the jf CLI in command tests.
type recordingActuator struct {
	mu    sync.Mutex
	calls []engine.Actuation
	err   error
}

func (a *recordingActuator) Promote(ctx context.Context, act engine.Actuation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, act)
	return a.err
}

func newTestCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetContext(context.Background())
	return cmd, &buf
}

// syncServers spins up a source with one bundle version holding DEV and
// PROD promotions, and a target that has seen only DEV.
func syncServers(t *testing.T) (source, target *httptest.Server) {
	t.Helper()
	source = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lifecycle/api/v2/release_bundle/names":
			w.Write([]byte(`{"release_bundles": [
				{"release_bundle_name": "app", "project_key": "payments"}
			]}`))
		case "/lifecycle/api/v2/release_bundle/records/app":
			w.Write([]byte(`{"release_bundles": [
				{"release_bundle_version": "1.0.0"}
			]}`))
		case "/lifecycle/api/v2/audit/app/1.0.0":
			w.Write([]byte(`{"audits": [
				{"subject_type": "PROMOTION", "event_status": "COMPLETED",
				 "created_millis": 100, "context": {"environment": "DEV"}},
				{"subject_type": "PROMOTION", "event_status": "COMPLETED",
				 "created_millis": 200, "context": {"environment": "PROD"}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(source.Close)

	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lifecycle/api/v2/audit/app/1.0.0":
			w.Write([]byte(`{"audits": [
				{"subject_type": "PROMOTION", "event_status": "COMPLETED",
				 "created_millis": 100, "context": {"environment": "DEV"}}
			]}`))
		case "/lifecycle/api/v2/promotion/records/app/1.0.0":
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(target.Close)
	return source, target
}

func syncOptions(source, target string, act engine.Actuator, format string) *SyncOptions {
	return &SyncOptions{
		RootOptions: &RootOptions{Format: format},
		SourceURL:   source,
		SourceToken: "src-tok",
		TargetURL:   target,
		TargetToken: "tgt-tok",
		Actuator:    act,
		RunIDs:      engine.NewFixedGenerator("run-test-1"),
	}
}

func TestRunSync_ReplaysMissingPromotion(t *testing.T) {
	source, target := syncServers(t)
	act := &recordingActuator{}
	cmd, buf := newTestCommand(t)

	err := runSync(syncOptions(source.URL, target.URL, act, "text"), cmd)
	require.NoError(t, err)

	require.Len(t, act.calls, 1)
	assert.Equal(t, "PROD", act.calls[0].Environment)
	assert.Equal(t, "app", act.calls[0].Identity.Name)
	assert.Equal(t, "payments", act.calls[0].Identity.ProjectKey)

	out := buf.String()
	assert.Contains(t, out, "Run run-test-1")
	assert.Contains(t, out, "Outcome: fully synchronized")
	assert.Contains(t, out, "promotions applied:        1")
}

func TestRunSync_DryRunPlansWithoutActuating(t *testing.T) {
	source, target := syncServers(t)
	act := &recordingActuator{}
	cmd, buf := newTestCommand(t)

	opts := syncOptions(source.URL, target.URL, act, "text")
	opts.DryRun = true
	err := runSync(opts, cmd)
	require.NoError(t, err)

	assert.Empty(t, act.calls)
	assert.Contains(t, buf.String(), "Replay plan (dry run):")
	assert.Contains(t, buf.String(), "1 promotion(s) would be replayed")
}

func TestRunSync_JSONOutput(t *testing.T) {
	source, target := syncServers(t)
	act := &recordingActuator{}
	cmd, buf := newTestCommand(t)

	err := runSync(syncOptions(source.URL, target.URL, act, "json"), cmd)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   SweepReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-test-1", resp.Data.RunID)
	assert.Equal(t, "fully synchronized", resp.Data.Outcome)
	assert.Equal(t, 1, resp.Data.Applied)
	require.Len(t, resp.Data.Bundles, 1)
	assert.Equal(t, "app", resp.Data.Bundles[0].Bundle)
}

func TestRunSync_FailuresDegradeExitStatus(t *testing.T) {
	source, target := syncServers(t)
	act := &recordingActuator{err: assert.AnError}
	cmd, _ := newTestCommand(t)

	err := runSync(syncOptions(source.URL, target.URL, act, "text"), cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRunSync_IncompleteConfiguration(t *testing.T) {
	for _, key := range []string{
		"RBSYNC_SOURCE_URL", "RBSYNC_SOURCE_TOKEN",
		"RBSYNC_TARGET_URL", "RBSYNC_TARGET_TOKEN",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	cmd, _ := newTestCommand(t)
	opts := &SyncOptions{
		RootOptions: &RootOptions{Format: "text"},
		SourceURL:   "https://only-source.example.com",
	}

	err := runSync(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
