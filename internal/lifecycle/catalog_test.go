package lifecycle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagag08/rbpromotionsync/internal/engine"
)

func TestBundleNames(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"release_bundles": [
			{"release_bundle_name": "app", "project_key": "payments", "repository_key": "release-bundles-v2"},
			{"release_bundle_name": "lib"}
		]}`))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "secret")

	names, err := client.BundleNames(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/lifecycle/api/v2/release_bundle/names", gotPath)
	require.Len(t, names, 2)
	assert.Equal(t, engine.BundleName{
		Name:          "app",
		ProjectKey:    "payments",
		RepositoryKey: "release-bundles-v2",
	}, names[0])
	assert.Equal(t, "default", names[1].ProjectKey, "missing project defaults")
}

func TestBundleVersions(t *testing.T) {
	var gotPath, gotProject string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotProject = r.URL.Query().Get("project")
		w.Write([]byte(`{"release_bundles": [
			{"release_bundle_version": "1.0.0"},
			{"release_bundle_version": "1.1.0"}
		]}`))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "secret")

	versions, err := client.BundleVersions(context.Background(), "app", "payments")
	require.NoError(t, err)

	assert.Equal(t, "/lifecycle/api/v2/release_bundle/records/app", gotPath)
	assert.Equal(t, "payments", gotProject)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, versions)
}

func TestAlignTimestamp(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "secret")

	err := client.AlignTimestamp(context.Background(), engine.BundleIdentity{
		Name:       "app",
		Version:    "1.0.0",
		ProjectKey: "payments",
	}, 1700000000001)
	require.NoError(t, err)

	assert.Equal(t, "/lifecycle/api/v2/promotion/records/app/1.0.0", gotPath)
	assert.Equal(t, []string{"payments"}, gotQuery["project"])
	assert.Equal(t, []string{"copy"}, gotQuery["operation"])
	assert.Equal(t, []string{"1700000000001"}, gotQuery["promotion_created_millis"])
}

func TestAlignTimestamp_ErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conflict", http.StatusConflict)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "secret")

	err := client.AlignTimestamp(context.Background(), engine.BundleIdentity{
		Name: "app", Version: "1.0.0", ProjectKey: "default",
	}, 42)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}
