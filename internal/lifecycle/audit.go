package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/nagag08/rbpromotionsync/internal/engine"
)

// federatedRefPrefix tags audit events that are federated mirrors of a
// promotion rather than the promotion itself. They are never replayed.
const federatedRefPrefix = "FED-"

const (
	subjectTypePromotion = "PROMOTION"
	eventStatusCompleted = "COMPLETED"
)

// auditResponse is the wire shape of the audit query.
type auditResponse struct {
	Audits []auditEvent `json:"audits"`
}

type auditEvent struct {
	SubjectType      string       `json:"subject_type"`
	EventStatus      string       `json:"event_status"`
	SubjectReference string       `json:"subject_reference"`
	CreatedMillis    flexMillis   `json:"created_millis"`
	Context          auditContext `json:"context"`
}

type auditContext struct {
	Environment            string     `json:"environment"`
	IncludedRepositoryKeys []string   `json:"included_repository_keys"`
	ExcludedRepositoryKeys []string   `json:"excluded_repository_keys"`
	PromotionCreatedMillis flexMillis `json:"promotion_created_millis"`
}

// flexMillis decodes an epoch-millisecond field that systems serialize
// either as a JSON number or as a string, occasionally a non-numeric
// placeholder. Non-numeric values degrade to zero ("absent") rather than
// failing the whole fetch.
type flexMillis int64

func (m *flexMillis) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = 0
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s = strings.TrimSpace(str)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*m = 0
		return nil
	}
	*m = flexMillis(v)
	return nil
}

// FetchHistory returns the eligible promotion records for one bundle
// identity, ascending by creation time with ties kept in discovery order.
//
// HTTP 404 means the version has no audit trail yet and yields an empty
// success. Only events of subject type PROMOTION whose status is COMPLETED
// (or absent, on systems without the status concept) and whose subject
// reference is not federated are returned.
func (c *Client) FetchHistory(ctx context.Context, id engine.BundleIdentity) ([]engine.PromotionRecord, error) {
	query := url.Values{"project": {id.ProjectKey}}
	if id.RepositoryKey != "" {
		query.Set("repository_key", id.RepositoryKey)
	}
	path := "/lifecycle/api/v2/audit/" + url.PathEscape(id.Name) + "/" + url.PathEscape(id.Version)

	var resp auditResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var records []engine.PromotionRecord
	for _, ev := range resp.Audits {
		if !eligible(ev) {
			continue
		}
		records = append(records, engine.PromotionRecord{
			Environment:   ev.Context.Environment,
			IncludedRepos: ev.Context.IncludedRepositoryKeys,
			ExcludedRepos: ev.Context.ExcludedRepositoryKeys,
			CreatedMillis: ev.createdMillis(),
			SubjectRef:    ev.SubjectReference,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedMillis < records[j].CreatedMillis
	})
	return records, nil
}

func eligible(ev auditEvent) bool {
	if ev.SubjectType != subjectTypePromotion {
		return false
	}
	if strings.HasPrefix(ev.SubjectReference, federatedRefPrefix) {
		return false
	}
	// Some systems omit event_status entirely; only an explicit non-completed
	// status disqualifies the event.
	return ev.EventStatus == "" || ev.EventStatus == eventStatusCompleted
}

// createdMillis resolves the timestamp field-name variance: the event-level
// created_millis wins, falling back to the context-level
// promotion_created_millis.
func (ev auditEvent) createdMillis() int64 {
	if ev.CreatedMillis != 0 {
		return int64(ev.CreatedMillis)
	}
	return int64(ev.Context.PromotionCreatedMillis)
}
