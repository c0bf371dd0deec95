package tree

import (
	"sort"
	"strings"

	"github.com/roeyazroel/linear-sync/internal/filter"
	"github.com/roeyazroel/linear-sync/internal/linearapi"
)

// GroupBy selects how issues are bucketed.
type GroupBy string

const (
	GroupNone     GroupBy = "none"
	GroupStatus   GroupBy = "status"
	GroupPriority GroupBy = "priority"
	GroupProject  GroupBy = "project"
	GroupAssignee GroupBy = "assignee"
	GroupLabel    GroupBy = "label"
)

// SortBy selects the order of issues within a bucket.
type SortBy string

const (
	SortByUpdatedAt SortBy = "updatedAt"
	SortByCreatedAt SortBy = "createdAt"
	SortByPriority  SortBy = "priority"
)

// EmptyMessage is shown when there are no issues to display.
const EmptyMessage = "No issues found"

// Options controls Build.
type Options struct {
	GroupBy GroupBy
	SortBy  SortBy
	// CurrentUserID splits issues into "My Issues" and "Other Issues" when set.
	CurrentUserID string
	// Criteria adds a filter indicator when it is not the default.
	Criteria filter.Criteria
}

// Build arranges issues into root nodes. The input slice is not modified.
func Build(issues []filter.IndexedIssue, opts Options) []Node {
	var roots []Node
	if !opts.Criteria.IsDefault() {
		roots = append(roots, &FilterIndicatorNode{Active: opts.Criteria.Active()})
	}
	if len(issues) == 0 {
		return append(roots, &MessageNode{Text: EmptyMessage})
	}

	sorted := append([]filter.IndexedIssue(nil), issues...)
	sortIssues(sorted, opts.SortBy)

	if opts.CurrentUserID == "" {
		return append(roots, group(sorted, opts.GroupBy)...)
	}

	mine, others := splitByAssignee(sorted, opts.CurrentUserID)
	if len(mine) > 0 {
		roots = append(roots, section("section:my", "My Issues", mine, opts.GroupBy))
	}
	if len(others) > 0 {
		roots = append(roots, section("section:other", "Other Issues", others, opts.GroupBy))
	}
	return roots
}

func section(key, title string, issues []filter.IndexedIssue, by GroupBy) *GroupNode {
	return &GroupNode{Key: key, Title: title, Items: group(issues, by), Count: len(issues)}
}

// splitByAssignee separates issues assigned to userID from the rest.
func splitByAssignee(issues []filter.IndexedIssue, userID string) (mine, others []filter.IndexedIssue) {
	for _, ix := range issues {
		if ix.AssigneeID == userID {
			mine = append(mine, ix)
		} else {
			others = append(others, ix)
		}
	}
	return mine, others
}

// priorityRank orders Urgent..Low first and no priority last.
func priorityRank(p int) int {
	if p == 0 {
		return 5
	}
	return p
}

func sortIssues(issues []filter.IndexedIssue, by SortBy) {
	switch by {
	case SortByPriority:
		sort.SliceStable(issues, func(i, j int) bool {
			return priorityRank(issues[i].Priority) < priorityRank(issues[j].Priority)
		})
	case SortByCreatedAt:
		sort.SliceStable(issues, func(i, j int) bool {
			return issues[i].CreatedAt.After(issues[j].CreatedAt)
		})
	default:
		sort.SliceStable(issues, func(i, j int) bool {
			return issues[i].UpdatedAt.After(issues[j].UpdatedAt)
		})
	}
}

type bucket struct {
	key    string
	title  string
	rank   int
	issues []filter.IndexedIssue
}

var stateTypeRank = map[string]int{
	linearapi.StateTypeTriage:    0,
	linearapi.StateTypeBacklog:   1,
	linearapi.StateTypeUnstarted: 2,
	linearapi.StateTypeStarted:   3,
	linearapi.StateTypeCompleted: 4,
	linearapi.StateTypeCanceled:  5,
}

// lastRank puts "none" buckets after every named one.
const lastRank = 1 << 30

func bucketsFor(ix filter.IndexedIssue, by GroupBy) []bucket {
	switch by {
	case GroupStatus:
		rank, ok := stateTypeRank[ix.StateType]
		if !ok {
			rank = len(stateTypeRank)
		}
		return []bucket{{key: "status:" + ix.StateID, title: orDefault(ix.State, "Unknown"), rank: rank}}
	case GroupPriority:
		return []bucket{{key: "priority:" + filter.PriorityName(ix.Priority), title: filter.PriorityName(ix.Priority), rank: priorityRank(ix.Priority)}}
	case GroupProject:
		if ix.ProjectID == "" {
			return []bucket{{key: "project:", title: "No Project", rank: lastRank}}
		}
		return []bucket{{key: "project:" + ix.ProjectID, title: orDefault(ix.ProjectName, ix.ProjectID)}}
	case GroupAssignee:
		if ix.AssigneeID == "" {
			return []bucket{{key: "assignee:", title: "Unassigned", rank: lastRank}}
		}
		return []bucket{{key: "assignee:" + ix.AssigneeID, title: orDefault(ix.Assignee, ix.AssigneeID)}}
	case GroupLabel:
		if len(ix.Labels) == 0 {
			return []bucket{{key: "label:", title: "No Label", rank: lastRank}}
		}
		out := make([]bucket, len(ix.Labels))
		for i, lbl := range ix.Labels {
			out[i] = bucket{key: "label:" + lbl.ID, title: orDefault(lbl.Name, lbl.ID)}
		}
		return out
	default:
		return nil
	}
}

// group buckets sorted issues. Buckets are ordered by rank then title;
// issues keep their sorted order inside each bucket.
func group(issues []filter.IndexedIssue, by GroupBy) []Node {
	if by == "" || by == GroupNone {
		return issueNodes(nest(issues))
	}

	byKey := make(map[string]*bucket)
	var order []*bucket
	for _, ix := range issues {
		for _, b := range bucketsFor(ix, by) {
			existing, ok := byKey[b.key]
			if !ok {
				nb := b
				existing = &nb
				byKey[b.key] = existing
				order = append(order, existing)
			}
			existing.issues = append(existing.issues, ix)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].rank != order[j].rank {
			return order[i].rank < order[j].rank
		}
		return strings.ToLower(order[i].title) < strings.ToLower(order[j].title)
	})

	nodes := make([]Node, 0, len(order))
	for _, b := range order {
		nodes = append(nodes, &GroupNode{
			Key:   b.key,
			Title: b.title,
			Items: issueNodes(nest(b.issues)),
			Count: len(b.issues),
		})
	}
	return nodes
}

// nest places each issue under its parent when the parent is in the same
// slice. Orphans and top-level issues become roots.
func nest(issues []filter.IndexedIssue) []*IssueNode {
	nodes := make(map[string]*IssueNode, len(issues))
	for _, ix := range issues {
		if _, dup := nodes[ix.ID]; dup {
			continue
		}
		nodes[ix.ID] = &IssueNode{Issue: ix}
	}

	var roots []*IssueNode
	placed := make(map[string]bool, len(issues))
	for _, ix := range issues {
		if placed[ix.ID] {
			continue
		}
		placed[ix.ID] = true
		n := nodes[ix.ID]
		if ix.Parent != nil && ix.Parent.ID != ix.ID {
			if parent, ok := nodes[ix.Parent.ID]; ok && !isAncestor(n, parent, nodes) {
				parent.Subissues = append(parent.Subissues, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// isAncestor reports whether n is an ancestor of candidate, which would make
// nesting candidate's child under it a cycle.
func isAncestor(n, candidate *IssueNode, nodes map[string]*IssueNode) bool {
	seen := make(map[string]bool)
	for cur := candidate; cur != nil; {
		if cur == n {
			return true
		}
		if seen[cur.Issue.ID] || cur.Issue.Parent == nil {
			return false
		}
		seen[cur.Issue.ID] = true
		cur = nodes[cur.Issue.Parent.ID]
	}
	return false
}

func issueNodes(in []*IssueNode) []Node {
	out := make([]Node, len(in))
	for i, n := range in {
		out[i] = n
	}
	return out
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
