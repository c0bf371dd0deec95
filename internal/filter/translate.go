package filter

import (
	"strings"
	"time"

	"github.com/roeyazroel/linear-sync/internal/linearapi"
)

// TerminalStateTypes are excluded unless IncludeCompleted is set.
var TerminalStateTypes = []string{linearapi.StateTypeCompleted, linearapi.StateTypeCanceled}

// TranslateOptions controls which predicates are sent to the server.
type TranslateOptions struct {
	// ServerQuery sends the free-text query as title/description/identifier
	// predicates. Local matching over the search index stays authoritative.
	ServerQuery bool
}

// ToRemoteFilter converts criteria into a Linear IssueFilter. Fields are
// ANDed together; set fields become "in" predicates. It has no side effects
// and equal criteria always produce equal filters.
func ToRemoteFilter(c Criteria, opts TranslateOptions) linearapi.IssueFilter {
	c = c.Normalize()
	filter := make(linearapi.IssueFilter)

	if c.TeamID != "" {
		filter["team"] = map[string]interface{}{"id": map[string]interface{}{"eq": c.TeamID}}
	}

	state := make(map[string]interface{})
	if !c.IncludeCompleted {
		state["type"] = map[string]interface{}{"nin": append([]string(nil), TerminalStateTypes...)}
	}
	if len(c.StateIDs) > 0 {
		state["id"] = map[string]interface{}{"in": c.StateIDs}
	}
	if len(state) > 0 {
		filter["state"] = state
	}

	if len(c.Priorities) > 0 {
		filter["priority"] = map[string]interface{}{"in": c.Priorities}
	}
	if len(c.ProjectIDs) > 0 {
		filter["project"] = map[string]interface{}{"id": map[string]interface{}{"in": c.ProjectIDs}}
	}
	if len(c.LabelIDs) > 0 {
		filter["labels"] = map[string]interface{}{
			"some": map[string]interface{}{"id": map[string]interface{}{"in": c.LabelIDs}},
		}
	}

	switch c.Assignee {
	case "":
	case AssigneeMe:
		filter["assignee"] = map[string]interface{}{"isMe": map[string]interface{}{"eq": true}}
	case AssigneeNone:
		filter["assignee"] = map[string]interface{}{"null": true}
	default:
		filter["assignee"] = map[string]interface{}{"id": map[string]interface{}{"eq": c.Assignee}}
	}

	updated := make(map[string]interface{})
	if c.UpdatedAfter != nil {
		updated["gt"] = c.UpdatedAfter.Format(time.RFC3339Nano)
	}
	if c.UpdatedBefore != nil {
		updated["lt"] = c.UpdatedBefore.Format(time.RFC3339Nano)
	}
	if len(updated) > 0 {
		filter["updatedAt"] = updated
	}

	if opts.ServerQuery && c.Query != "" {
		addSearchFilter(filter, c.Query)
	}
	return filter
}

// addSearchFilter requires every term to match at least one field.
func addSearchFilter(filter linearapi.IssueFilter, query string) {
	terms := strings.Fields(query)
	if len(terms) == 1 {
		filter["or"] = searchOrFilters(terms[0])
		return
	}
	andFilters := make([]map[string]interface{}, 0, len(terms))
	for _, term := range terms {
		andFilters = append(andFilters, map[string]interface{}{
			"or": searchOrFilters(term),
		})
	}
	filter["and"] = andFilters
}

func searchOrFilters(term string) []map[string]interface{} {
	return []map[string]interface{}{
		{"title": map[string]interface{}{"containsIgnoreCase": term}},
		{"description": map[string]interface{}{"containsIgnoreCase": term}},
		{"identifier": map[string]interface{}{"containsIgnoreCase": term}},
	}
}
