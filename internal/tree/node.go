// Package tree arranges issues into the node hierarchy shown by list views.
package tree

import (
	"fmt"
	"strings"

	"github.com/roeyazroel/linear-sync/internal/filter"
)

// Kind identifies a node variant.
type Kind int

const (
	KindIssue Kind = iota
	KindGroup
	KindFilterIndicator
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindIssue:
		return "issue"
	case KindGroup:
		return "group"
	case KindFilterIndicator:
		return "filter"
	case KindMessage:
		return "message"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is one of IssueNode, GroupNode, FilterIndicatorNode or MessageNode.
// Switch on the concrete type or on Kind.
type Node interface {
	Kind() Kind
	Label() string
	Children() []Node
	sealed()
}

// IssueNode is an issue with the sub-issues nested under it.
type IssueNode struct {
	Issue     filter.IndexedIssue
	Subissues []*IssueNode
}

func (*IssueNode) Kind() Kind { return KindIssue }

func (n *IssueNode) Label() string {
	return fmt.Sprintf("%s %s", n.Issue.Identifier, n.Issue.Title)
}

func (n *IssueNode) Children() []Node {
	out := make([]Node, len(n.Subissues))
	for i, c := range n.Subissues {
		out[i] = c
	}
	return out
}

func (*IssueNode) sealed() {}

// GroupNode is a titled bucket of nodes.
type GroupNode struct {
	// Key identifies the bucket, e.g. "status:started" or "section:my".
	Key   string
	Title string
	Items []Node
	// Count is the number of issues in the bucket, sub-issues included.
	Count int
}

func (*GroupNode) Kind() Kind { return KindGroup }

func (n *GroupNode) Label() string { return fmt.Sprintf("%s (%d)", n.Title, n.Count) }

func (n *GroupNode) Children() []Node { return n.Items }

func (*GroupNode) sealed() {}

// FilterIndicatorNode tells the user the list is filtered.
type FilterIndicatorNode struct {
	Active []string
}

func (*FilterIndicatorNode) Kind() Kind { return KindFilterIndicator }

func (n *FilterIndicatorNode) Label() string {
	return "Filtered: " + strings.Join(n.Active, "; ")
}

func (*FilterIndicatorNode) Children() []Node { return nil }

func (*FilterIndicatorNode) sealed() {}

// MessageNode carries a system message such as an empty-state notice.
type MessageNode struct {
	Text string
}

func (*MessageNode) Kind() Kind { return KindMessage }

func (n *MessageNode) Label() string { return n.Text }

func (*MessageNode) Children() []Node { return nil }

func (*MessageNode) sealed() {}

// Walk visits nodes depth-first, passing each node's depth.
func Walk(nodes []Node, fn func(n Node, depth int)) {
	walk(nodes, 0, fn)
}

func walk(nodes []Node, depth int, fn func(Node, int)) {
	for _, n := range nodes {
		fn(n, depth)
		walk(n.Children(), depth+1, fn)
	}
}
