package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/roeyazroel/linear-sync/internal/filter"
	"github.com/roeyazroel/linear-sync/internal/linearapi"
	"github.com/roeyazroel/linear-sync/internal/tree"
)

const (
	timeLayout   = "2006-01-02 15:04"
	markdownWrap = 100
)

// printTree writes nodes as an indented outline.
func printTree(w io.Writer, nodes []tree.Node) {
	tree.Walk(nodes, func(n tree.Node, depth int) {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), formatNode(n))
	})
}

func formatNode(n tree.Node) string {
	switch n := n.(type) {
	case *tree.IssueNode:
		return formatIssueLine(n.Issue)
	case *tree.GroupNode:
		return "# " + n.Label()
	case *tree.FilterIndicatorNode:
		return n.Label()
	default:
		return n.Label()
	}
}

func formatIssueLine(ix filter.IndexedIssue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s [%s] %-11s %s", ix.Identifier, ix.State, filter.PriorityName(ix.Priority), ix.Title)
	if ix.Assignee != "" {
		fmt.Fprintf(&b, " @%s", ix.Assignee)
	}
	return b.String()
}

// issueMarkdown renders an issue and its comments as a markdown document.
func issueMarkdown(issue linearapi.Issue, comments []linearapi.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", issue.Identifier, issue.Title)

	fmt.Fprintf(&b, "- **State:** %s\n", issue.State)
	fmt.Fprintf(&b, "- **Priority:** %s\n", filter.PriorityName(issue.Priority))
	fmt.Fprintf(&b, "- **Assignee:** %s\n", orDash(issue.Assignee))
	fmt.Fprintf(&b, "- **Team:** %s\n", orDash(issue.TeamName))
	if issue.ProjectName != "" {
		fmt.Fprintf(&b, "- **Project:** %s\n", issue.ProjectName)
	}
	if len(issue.Labels) > 0 {
		names := make([]string, len(issue.Labels))
		for i, l := range issue.Labels {
			names[i] = l.Name
		}
		fmt.Fprintf(&b, "- **Labels:** %s\n", strings.Join(names, ", "))
	}
	if issue.Parent != nil {
		fmt.Fprintf(&b, "- **Parent:** %s %s\n", issue.Parent.Identifier, issue.Parent.Title)
	}
	if !issue.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Updated:** %s\n", issue.UpdatedAt.Local().Format(timeLayout))
	}
	if issue.URL != "" {
		fmt.Fprintf(&b, "- **URL:** %s\n", issue.URL)
	}

	if desc := strings.TrimSpace(issue.Description); desc != "" {
		fmt.Fprintf(&b, "\n%s\n", desc)
	}

	if len(comments) > 0 {
		fmt.Fprintf(&b, "\n## Comments (%d)\n", len(comments))
		for _, c := range comments {
			fmt.Fprintf(&b, "\n### %s, %s\n\n%s\n", orDash(authorName(c.Author)), c.CreatedAt.Local().Format(timeLayout), strings.TrimSpace(c.Body))
		}
	}
	return b.String()
}

// renderMarkdown formats md for the terminal. style "auto" detects the
// terminal background; any other value names a glamour standard style.
func renderMarkdown(md, style string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(markdownWrap)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

func authorName(u linearapi.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// table writes rows through a tabwriter; the first row is the header.
func table(w io.Writer, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
