package main

import (
	"fmt"
	"strings"

	"github.com/roeyazroel/linear-sync/internal/engine"
	"github.com/roeyazroel/linear-sync/internal/filter"
	"github.com/roeyazroel/linear-sync/internal/linearapi"
	"github.com/roeyazroel/linear-sync/internal/logger"
	"github.com/roeyazroel/linear-sync/internal/tree"
	"github.com/spf13/cobra"
)

func newIssuesCmd(get func() *app) *cobra.Command {
	var cf criteriaFlags
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "List issues matching the given filters",
		Long: `List issues from the cache, fetching from Linear on a miss.

Completed and canceled issues are hidden unless --include-completed is set.
A cached list is refreshed in the background with only the issues changed
since the last sync.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cf.criteria()
			if err != nil {
				return err
			}
			issues, err := get().engine.GetIssues(cmd.Context(), c)
			if err != nil {
				return fmt.Errorf("list issues: %w", err)
			}
			return printIssues(cmd, get().engine, issues, c, vf)
		},
	}
	cf.register(cmd)
	vf.register(cmd)
	return cmd
}

func newSearchCmd(get func() *app) *cobra.Command {
	var cf criteriaFlags
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "search <terms...>",
		Short: "Search issue titles, descriptions, identifiers and labels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cf.query = strings.Join(args, " ")
			c, err := cf.criteria()
			if err != nil {
				return err
			}
			issues, err := get().engine.SearchIssues(cmd.Context(), c)
			if err != nil {
				return fmt.Errorf("search issues: %w", err)
			}
			return printIssues(cmd, get().engine, issues, c, vf)
		},
	}
	cf.register(cmd)
	vf.register(cmd)
	_ = cmd.Flags().MarkHidden("query")
	return cmd
}

func printIssues(cmd *cobra.Command, eng *engine.Engine, issues []filter.IndexedIssue, c filter.Criteria, vf viewFlags) error {
	group, sortBy, err := vf.options()
	if err != nil {
		return err
	}
	opts := tree.Options{GroupBy: group, SortBy: sortBy, Criteria: c}
	if vf.split {
		if me, err := eng.GetCurrentUser(cmd.Context()); err == nil {
			opts.CurrentUserID = me.ID
		} else {
			logger.Warning("linear-sync: current user unavailable, not splitting by assignee error=%v", err)
		}
	}
	printTree(cmd.OutOrStdout(), tree.Build(issues, opts))
	return nil
}

func newShowCmd(get func() *app) *cobra.Command {
	var style string
	var noComments bool
	cmd := &cobra.Command{
		Use:   "show <issue>",
		Short: "Show an issue with its description and comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := get().engine
			issue, err := eng.GetIssueDetails(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("show issue: %w", err)
			}
			var comments []linearapi.Comment
			if !noComments {
				comments, err = eng.GetIssueComments(cmd.Context(), issue.ID)
				if err != nil {
					// The issue itself is still worth showing.
					logger.Warning("linear-sync: comments unavailable issue=%s error=%v", issue.Identifier, err)
				}
			}
			out, err := renderMarkdown(issueMarkdown(issue, comments), style)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&style, "style", "auto", "markdown style: auto|dark|light|notty|ascii")
	cmd.Flags().BoolVar(&noComments, "no-comments", false, "skip comments")
	return cmd
}

func newCommentsCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comments <issue>",
		Short: "List the comments on an issue, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comments, err := get().engine.GetIssueComments(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("list comments: %w", err)
			}
			w := cmd.OutOrStdout()
			if len(comments) == 0 {
				fmt.Fprintln(w, "No comments")
				return nil
			}
			for _, c := range comments {
				fmt.Fprintf(w, "%s  %s\n%s\n\n", c.CreatedAt.Local().Format(timeLayout), orDash(authorName(c.Author)), strings.TrimSpace(c.Body))
			}
			return nil
		},
	}
}

// resolveAssignee maps "me" to the viewer's ID and "none" to empty.
func resolveAssignee(cmd *cobra.Command, eng *engine.Engine, value string) (string, error) {
	switch value {
	case filter.AssigneeMe:
		me, err := eng.GetCurrentUser(cmd.Context())
		if err != nil {
			return "", fmt.Errorf("resolve assignee: %w", err)
		}
		return me.ID, nil
	case filter.AssigneeNone:
		return "", nil
	default:
		return value, nil
	}
}

func newCreateCmd(get func() *app) *cobra.Command {
	var in linearapi.CreateIssueInput
	var assignee string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := get().engine
			if in.Priority < 0 || in.Priority > 4 {
				return fmt.Errorf("invalid priority %d: want 0-4", in.Priority)
			}
			id, err := resolveAssignee(cmd, eng, assignee)
			if err != nil {
				return err
			}
			in.AssigneeID = id
			issue, err := eng.CreateIssue(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s\n%s\n", issue.Identifier, issue.Title, issue.URL)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&in.TeamID, "team", "", "team ID (required)")
	fl.StringVar(&in.Title, "title", "", "issue title (required)")
	fl.StringVar(&in.Description, "description", "", "markdown description")
	fl.StringVar(&in.ProjectID, "project", "", "project ID")
	fl.StringVar(&in.StateID, "state", "", "workflow state ID")
	fl.StringVar(&assignee, "assignee", "", `user ID or "me"`)
	fl.IntVar(&in.Priority, "priority", 0, "priority 0-4")
	fl.StringSliceVar(&in.LabelIDs, "label", nil, "label IDs (repeatable)")
	fl.StringVar(&in.ParentID, "parent", "", "parent issue ID")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newUpdateCmd(get func() *app) *cobra.Command {
	var (
		title, description, state, assignee, project, parent string
		priority                                             int
		labels                                               []string
	)
	cmd := &cobra.Command{
		Use:   "update <issue>",
		Short: "Update fields of an issue",
		Long: `Update fields of an issue. Only flags that are given are sent.

Pass an empty value to --assignee, --project or --parent to clear it, and
--label "" to remove every label.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := get().engine
			fl := cmd.Flags()
			var in linearapi.UpdateIssueInput
			if fl.Changed("title") {
				in.Title = &title
			}
			if fl.Changed("description") {
				in.Description = &description
			}
			if fl.Changed("state") {
				in.StateID = &state
			}
			if fl.Changed("assignee") {
				id, err := resolveAssignee(cmd, eng, assignee)
				if err != nil {
					return err
				}
				in.AssigneeID = &id
			}
			if fl.Changed("priority") {
				if priority < 0 || priority > 4 {
					return fmt.Errorf("invalid priority %d: want 0-4", priority)
				}
				in.Priority = &priority
			}
			if fl.Changed("project") {
				in.ProjectID = &project
			}
			if fl.Changed("label") {
				ids := nonEmpty(labels)
				in.LabelIDs = &ids
			}
			if fl.Changed("parent") {
				in.ParentID = &parent
			}
			if in == (linearapi.UpdateIssueInput{}) {
				return fmt.Errorf("nothing to update")
			}
			issue, err := eng.UpdateIssue(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", formatIssueLine(filter.Index(issue)))
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&title, "title", "", "new title")
	fl.StringVar(&description, "description", "", "new markdown description")
	fl.StringVar(&state, "state", "", "workflow state ID")
	fl.StringVar(&assignee, "assignee", "", `user ID, "me", or empty to unassign`)
	fl.IntVar(&priority, "priority", 0, "priority 0-4")
	fl.StringVar(&project, "project", "", "project ID, empty to remove")
	fl.StringSliceVar(&labels, "label", nil, "replacement label IDs (repeatable)")
	fl.StringVar(&parent, "parent", "", "parent issue ID, empty to clear")
	return cmd
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func newStateCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state <issue> <stateID>",
		Short: "Move an issue to a workflow state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			issue, err := get().engine.UpdateIssueState(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", issue.Identifier, issue.State)
			return nil
		},
	}
}

func newCommentCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <issue> <body...>",
		Short: "Add a comment to an issue",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.TrimSpace(strings.Join(args[1:], " "))
			if body == "" {
				return fmt.Errorf("comment body is empty")
			}
			if err := get().engine.AddComment(cmd.Context(), args[0], body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Commented on %s\n", args[0])
			return nil
		},
	}
}

func newArchiveCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <issue>",
		Short: "Archive an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().engine.ArchiveIssue(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %s\n", args[0])
			return nil
		},
	}
}

func newUnarchiveCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unarchive <issue>",
		Short: "Restore an archived issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().engine.UnarchiveIssue(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unarchived %s\n", args[0])
			return nil
		},
	}
}
