package lifecycle

import (
	"context"
	"net/url"

	"github.com/nagag08/rbpromotionsync/internal/engine"
)

type bundleNamesResponse struct {
	ReleaseBundles []bundleNameEntry `json:"release_bundles"`
}

type bundleNameEntry struct {
	ReleaseBundleName string `json:"release_bundle_name"`
	ProjectKey        string `json:"project_key"`
	RepositoryKey     string `json:"repository_key"`
}

type bundleRecordsResponse struct {
	ReleaseBundles []bundleVersionEntry `json:"release_bundles"`
}

type bundleVersionEntry struct {
	ReleaseBundleVersion string `json:"release_bundle_version"`
}

// BundleNames enumerates release bundle names with their project and
// repository keys. Entries without a project key default to "default".
func (c *Client) BundleNames(ctx context.Context) ([]engine.BundleName, error) {
	var resp bundleNamesResponse
	if err := c.get(ctx, "/lifecycle/api/v2/release_bundle/names", nil, &resp); err != nil {
		return nil, err
	}

	names := make([]engine.BundleName, 0, len(resp.ReleaseBundles))
	for _, entry := range resp.ReleaseBundles {
		project := entry.ProjectKey
		if project == "" {
			project = "default"
		}
		names = append(names, engine.BundleName{
			Name:          entry.ReleaseBundleName,
			ProjectKey:    project,
			RepositoryKey: entry.RepositoryKey,
		})
	}
	return names, nil
}

// BundleVersions lists the versions recorded for one bundle name.
func (c *Client) BundleVersions(ctx context.Context, name, projectKey string) ([]string, error) {
	query := url.Values{"project": {projectKey}}
	path := "/lifecycle/api/v2/release_bundle/records/" + url.PathEscape(name)

	var resp bundleRecordsResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, err
	}

	versions := make([]string, 0, len(resp.ReleaseBundles))
	for _, entry := range resp.ReleaseBundles {
		versions = append(versions, entry.ReleaseBundleVersion)
	}
	return versions, nil
}
