package filter

import (
	"slices"
	"strings"
)

// MatchOptions supplies context that criteria cannot carry themselves.
type MatchOptions struct {
	// CurrentUserID resolves AssigneeMe. When empty, AssigneeMe matches no issue.
	CurrentUserID string
}

func isTerminal(stateType string) bool {
	return slices.Contains(TerminalStateTypes, stateType)
}

// Match reports whether issue satisfies every predicate in c.
func Match(issue IndexedIssue, c Criteria, opts MatchOptions) bool {
	return matchNormalized(issue, c.Normalize(), opts)
}

func matchNormalized(issue IndexedIssue, c Criteria, opts MatchOptions) bool {
	if c.TeamID != "" && issue.TeamID != c.TeamID {
		return false
	}
	if !c.IncludeCompleted && isTerminal(issue.StateType) {
		return false
	}
	if len(c.StateIDs) > 0 && !slices.Contains(c.StateIDs, issue.StateID) {
		return false
	}
	if len(c.Priorities) > 0 && !slices.Contains(c.Priorities, issue.Priority) {
		return false
	}
	if len(c.ProjectIDs) > 0 && !slices.Contains(c.ProjectIDs, issue.ProjectID) {
		return false
	}
	if len(c.LabelIDs) > 0 && !hasAnyLabel(issue, c.LabelIDs) {
		return false
	}
	switch c.Assignee {
	case "":
	case AssigneeMe:
		if opts.CurrentUserID == "" || issue.AssigneeID != opts.CurrentUserID {
			return false
		}
	case AssigneeNone:
		if issue.AssigneeID != "" {
			return false
		}
	default:
		if issue.AssigneeID != c.Assignee {
			return false
		}
	}
	if c.UpdatedAfter != nil && !issue.UpdatedAt.After(*c.UpdatedAfter) {
		return false
	}
	if c.UpdatedBefore != nil && !issue.UpdatedAt.Before(*c.UpdatedBefore) {
		return false
	}
	return MatchQuery(issue, c.Query)
}

// MatchQuery reports whether every whitespace-separated term of query occurs
// in the issue's search text, ignoring case. An empty query matches.
func MatchQuery(issue IndexedIssue, query string) bool {
	text := issue.SearchText
	if text == "" {
		text = SearchText(issue.Issue)
	}
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

func hasAnyLabel(issue IndexedIssue, ids []string) bool {
	for _, lbl := range issue.Labels {
		if slices.Contains(ids, lbl.ID) {
			return true
		}
	}
	return false
}

// ApplyQuery returns the issues matching query, preserving order.
func ApplyQuery(issues []IndexedIssue, query string) []IndexedIssue {
	if strings.TrimSpace(query) == "" {
		return issues
	}
	out := make([]IndexedIssue, 0, len(issues))
	for _, issue := range issues {
		if MatchQuery(issue, query) {
			out = append(out, issue)
		}
	}
	return out
}
