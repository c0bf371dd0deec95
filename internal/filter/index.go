package filter

import (
	"strings"

	"github.com/roeyazroel/linear-sync/internal/linearapi"
)

// IndexedIssue is an issue with its derived search text. SearchText is
// always rebuilt from the embedded issue by Index and never edited directly.
type IndexedIssue struct {
	linearapi.Issue
	SearchText string `json:"searchText"`
}

// Index builds the IndexedIssue for issue.
func Index(issue linearapi.Issue) IndexedIssue {
	return IndexedIssue{Issue: issue, SearchText: SearchText(issue)}
}

// IndexAll indexes every issue, preserving order.
func IndexAll(issues []linearapi.Issue) []IndexedIssue {
	out := make([]IndexedIssue, len(issues))
	for i, issue := range issues {
		out[i] = Index(issue)
	}
	return out
}

// SearchText returns the lower-cased concatenation of the searchable fields:
// title, description, identifier, assignee, team, labels and state.
func SearchText(issue linearapi.Issue) string {
	parts := make([]string, 0, 6+len(issue.Labels))
	parts = append(parts, issue.Title, issue.Description, issue.Identifier, issue.Assignee, issue.TeamName)
	for _, lbl := range issue.Labels {
		parts = append(parts, lbl.Name)
	}
	parts = append(parts, issue.State)

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.ToLower(strings.Join(nonEmpty, " "))
}
