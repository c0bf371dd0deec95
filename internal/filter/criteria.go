// Package filter describes issue queries and evaluates them.
//
// A Criteria is translated into Linear's IssueFilter for server-side
// filtering and can also be evaluated locally against IndexedIssue values,
// which is how free-text search is always performed.
package filter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Special Assignee values.
const (
	// AssigneeMe matches issues assigned to the authenticated user.
	AssigneeMe = "me"
	// AssigneeNone matches unassigned issues.
	AssigneeNone = "none"
)

// Criteria is an issue query. Empty fields do not filter.
// Field order is part of the cache key format; append new fields at the end.
type Criteria struct {
	TeamID     string   `json:"teamId,omitempty"`
	StateIDs   []string `json:"stateIds,omitempty"`
	Priorities []int    `json:"priorities,omitempty"`
	ProjectIDs []string `json:"projectIds,omitempty"`
	LabelIDs   []string `json:"labelIds,omitempty"`
	// Assignee is a user ID, AssigneeMe or AssigneeNone.
	Assignee      string     `json:"assignee,omitempty"`
	Query         string     `json:"query,omitempty"`
	UpdatedAfter  *time.Time `json:"updatedAfter,omitempty"`
	UpdatedBefore *time.Time `json:"updatedBefore,omitempty"`
	// IncludeCompleted keeps issues in completed and canceled states.
	IncludeCompleted bool `json:"includeCompleted"`
}

// Normalize returns an equivalent Criteria with sets sorted and de-duplicated,
// the query trimmed and times in UTC. Equivalent criteria normalize equally.
func (c Criteria) Normalize() Criteria {
	n := Criteria{
		TeamID:           strings.TrimSpace(c.TeamID),
		StateIDs:         normalizeStrings(c.StateIDs),
		Priorities:       normalizeInts(c.Priorities),
		ProjectIDs:       normalizeStrings(c.ProjectIDs),
		LabelIDs:         normalizeStrings(c.LabelIDs),
		Assignee:         strings.TrimSpace(c.Assignee),
		Query:            strings.Join(strings.Fields(c.Query), " "),
		IncludeCompleted: c.IncludeCompleted,
	}
	if c.UpdatedAfter != nil {
		t := c.UpdatedAfter.UTC()
		n.UpdatedAfter = &t
	}
	if c.UpdatedBefore != nil {
		t := c.UpdatedBefore.UTC()
		n.UpdatedBefore = &t
	}
	return n
}

// Key returns the canonical serialization used in cache keys.
func (c Criteria) Key() string {
	b, err := json.Marshal(c.Normalize())
	if err != nil {
		// Criteria holds only strings, ints, bools and times.
		panic(fmt.Sprintf("filter: marshal criteria: %v", err))
	}
	return string(b)
}

// IsDefault reports whether c narrows nothing beyond team scope and the
// completed-state exclusion.
func (c Criteria) IsDefault() bool {
	return len(c.Active()) == 0
}

// Active returns a short description of each filter in effect, in a stable order.
func (c Criteria) Active() []string {
	n := c.Normalize()
	var out []string
	if len(n.StateIDs) > 0 {
		out = append(out, fmt.Sprintf("status: %d", len(n.StateIDs)))
	}
	if len(n.Priorities) > 0 {
		names := make([]string, len(n.Priorities))
		for i, p := range n.Priorities {
			names[i] = PriorityName(p)
		}
		out = append(out, "priority: "+strings.Join(names, ", "))
	}
	if len(n.ProjectIDs) > 0 {
		out = append(out, fmt.Sprintf("project: %d", len(n.ProjectIDs)))
	}
	if len(n.LabelIDs) > 0 {
		out = append(out, fmt.Sprintf("label: %d", len(n.LabelIDs)))
	}
	switch n.Assignee {
	case "":
	case AssigneeMe:
		out = append(out, "assignee: me")
	case AssigneeNone:
		out = append(out, "assignee: none")
	default:
		out = append(out, "assignee: "+n.Assignee)
	}
	if n.Query != "" {
		out = append(out, fmt.Sprintf("query: %q", n.Query))
	}
	if n.UpdatedAfter != nil {
		out = append(out, "updated after "+n.UpdatedAfter.Format(time.DateOnly))
	}
	if n.UpdatedBefore != nil {
		out = append(out, "updated before "+n.UpdatedBefore.Format(time.DateOnly))
	}
	if n.IncludeCompleted {
		out = append(out, "including completed")
	}
	return out
}

// WithUpdatedAfter returns a copy whose lower update bound is the later of
// the existing bound and since.
func (c Criteria) WithUpdatedAfter(since time.Time) Criteria {
	out := c.Normalize()
	if out.UpdatedAfter == nil || since.After(*out.UpdatedAfter) {
		t := since.UTC()
		out.UpdatedAfter = &t
	}
	return out
}

// WithoutQuery returns a copy with the free-text query cleared.
func (c Criteria) WithoutQuery() Criteria {
	out := c.Normalize()
	out.Query = ""
	return out
}

// PriorityName returns Linear's label for a priority value.
func PriorityName(p int) string {
	switch p {
	case 0:
		return "No priority"
	case 1:
		return "Urgent"
	case 2:
		return "High"
	case 3:
		return "Medium"
	case 4:
		return "Low"
	default:
		return fmt.Sprintf("P%d", p)
	}
}

func normalizeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func normalizeInts(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
