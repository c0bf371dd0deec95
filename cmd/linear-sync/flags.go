package main

import (
	"fmt"
	"time"

	"github.com/roeyazroel/linear-sync/internal/filter"
	"github.com/roeyazroel/linear-sync/internal/tree"
	"github.com/spf13/cobra"
)

// criteriaFlags binds the issue-filter flags shared by issues and search.
type criteriaFlags struct {
	team             string
	states           []string
	priorities       []int
	projects         []string
	labels           []string
	assignee         string
	query            string
	updatedAfter     string
	updatedBefore    string
	includeCompleted bool
}

func (f *criteriaFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.team, "team", "", "team ID")
	fl.StringSliceVar(&f.states, "state", nil, "workflow state IDs (repeatable)")
	fl.IntSliceVar(&f.priorities, "priority", nil, "priorities 0-4 (repeatable)")
	fl.StringSliceVar(&f.projects, "project", nil, "project IDs (repeatable)")
	fl.StringSliceVar(&f.labels, "label", nil, "label IDs, matches any (repeatable)")
	fl.StringVar(&f.assignee, "assignee", "", `user ID, "me" or "none"`)
	fl.StringVar(&f.query, "query", "", "free-text search terms")
	fl.StringVar(&f.updatedAfter, "updated-after", "", "only issues updated after this date (YYYY-MM-DD or RFC3339)")
	fl.StringVar(&f.updatedBefore, "updated-before", "", "only issues updated before this date (YYYY-MM-DD or RFC3339)")
	fl.BoolVar(&f.includeCompleted, "include-completed", false, "include completed and canceled issues")
}

func (f *criteriaFlags) criteria() (filter.Criteria, error) {
	c := filter.Criteria{
		TeamID:           f.team,
		StateIDs:         f.states,
		Priorities:       f.priorities,
		ProjectIDs:       f.projects,
		LabelIDs:         f.labels,
		Assignee:         f.assignee,
		Query:            f.query,
		IncludeCompleted: f.includeCompleted,
	}
	for _, p := range f.priorities {
		if p < 0 || p > 4 {
			return filter.Criteria{}, fmt.Errorf("invalid priority %d: want 0-4", p)
		}
	}
	var err error
	if c.UpdatedAfter, err = parseTimeFlag("updated-after", f.updatedAfter); err != nil {
		return filter.Criteria{}, err
	}
	if c.UpdatedBefore, err = parseTimeFlag("updated-before", f.updatedBefore); err != nil {
		return filter.Criteria{}, err
	}
	return c.Normalize(), nil
}

// parseTimeFlag accepts a date or an RFC3339 timestamp; empty yields nil.
func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD or RFC3339", name, value)
}

// viewFlags binds the tree layout flags.
type viewFlags struct {
	group string
	sort  string
	split bool
}

func (f *viewFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.group, "group", string(tree.GroupNone), "group by none|status|priority|project|assignee|label")
	fl.StringVar(&f.sort, "sort", string(tree.SortByUpdatedAt), "sort by updatedAt|createdAt|priority")
	fl.BoolVar(&f.split, "split", true, `separate "My Issues" from "Other Issues"`)
}

func (f *viewFlags) options() (tree.GroupBy, tree.SortBy, error) {
	group := tree.GroupBy(f.group)
	switch group {
	case tree.GroupNone, tree.GroupStatus, tree.GroupPriority, tree.GroupProject, tree.GroupAssignee, tree.GroupLabel:
	default:
		return "", "", fmt.Errorf("invalid --group %q", f.group)
	}
	sortBy := tree.SortBy(f.sort)
	switch sortBy {
	case tree.SortByUpdatedAt, tree.SortByCreatedAt, tree.SortByPriority:
	default:
		return "", "", fmt.Errorf("invalid --sort %q", f.sort)
	}
	return group, sortBy, nil
}
