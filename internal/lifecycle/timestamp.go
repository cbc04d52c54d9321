package lifecycle

import (
	"context"
	"net/url"
	"strconv"

	"github.com/nagag08/rbpromotionsync/internal/engine"
)

// AlignTimestamp asks the system to relabel the most recent matching
// promotion record's creation time to millis. The engine calls this after a
// successful replay with the original source timestamp plus one, so the
// replayed record sorts strictly after its source counterpart.
//
// The endpoint performs the rewrite as a copy operation keyed by the new
// timestamp; the request method mirrors the system's API even though the
// call mutates state.
func (c *Client) AlignTimestamp(ctx context.Context, id engine.BundleIdentity, millis int64) error {
	query := url.Values{
		"project":                  {id.ProjectKey},
		"operation":                {"copy"},
		"promotion_created_millis": {strconv.FormatInt(millis, 10)},
	}
	path := "/lifecycle/api/v2/promotion/records/" + url.PathEscape(id.Name) + "/" + url.PathEscape(id.Version)
	return c.get(ctx, path, query, nil)
}
