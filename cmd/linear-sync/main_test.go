package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/roeyazroel/linear-sync/internal/filter"
	"github.com/roeyazroel/linear-sync/internal/linearapi"
	"github.com/roeyazroel/linear-sync/internal/tree"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionInfo(t *testing.T) {
	info := VersionInfo()
	assert.True(t, strings.HasPrefix(info, "linear-sync "+Version))
	assert.Contains(t, info, "commit: "+Commit)
}

func TestRootCmd_VersionFlagNeedsNoConfig(t *testing.T) {
	t.Setenv("LINEAR_API_KEY", "")
	s := &session{}
	root := newRootCmd(s)
	var out bytes.Buffer
	root.SetOut(&out)

	require.NoError(t, run(root, s, []string{"--version"}))
	assert.Equal(t, 0, s.closed, "no app is built for --version")
	assert.Equal(t, VersionInfo()+"\n", out.String())
}

func TestRootCmd_VersionSubcommand(t *testing.T) {
	s := &session{}
	root := newRootCmd(s)
	var out bytes.Buffer
	root.SetOut(&out)

	require.NoError(t, run(root, s, []string{"version"}))
	assert.Equal(t, VersionInfo()+"\n", out.String())
}

func TestNeedsApp(t *testing.T) {
	root := newRootCmd(&session{})
	for _, tc := range []struct {
		path []string
		want bool
	}{
		{[]string{"issues"}, true},
		{[]string{"cache", "clear"}, true},
		{[]string{"version"}, false},
	} {
		cmd, _, err := root.Find(tc.path)
		require.NoError(t, err)
		assert.Equal(t, tc.want, needsApp(cmd), strings.Join(tc.path, " "))
	}
	assert.False(t, needsApp(&cobra.Command{Use: "help"}))
}

func TestRun_ClosesAppWhenCommandFails(t *testing.T) {
	t.Setenv("LINEAR_API_KEY", "lin_api_test")
	t.Setenv("LINEAR_SYNC_CACHE_BACKEND", "memory")
	t.Setenv("LINEAR_SYNC_LOG_FILE", "")

	s := &session{}
	root := newRootCmd(s)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := run(root, s, []string{"--env-only", "issues", "--priority", "9"})
	assert.ErrorContains(t, err, "invalid priority 9")
	assert.Equal(t, 1, s.closed)
	assert.Nil(t, s.app)
}

func TestStaleNotice(t *testing.T) {
	var out bytes.Buffer
	staleNotice(&out, `issues:{"includeCompleted":false}`, errors.New("connection refused"))
	assert.Equal(t, "Warning: showing cached data for issues, refresh failed: connection refused\n", out.String())

	staleNotice(nil, "teams", errors.New("ignored"))
}

func TestCacheFamily(t *testing.T) {
	assert.Equal(t, "issues", cacheFamily(`issues:{"includeCompleted":false}`))
	assert.Equal(t, "issue", cacheFamily("issue:ENG-1"))
	assert.Equal(t, "projects", cacheFamily("projects:team-1"))
	assert.Equal(t, "unknown", cacheFamily("unknown"))
}

func TestCriteriaFlags(t *testing.T) {
	var cf criteriaFlags
	cmd := &cobra.Command{Use: "issues"}
	cf.register(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{
		"--team", "team-1",
		"--state", "s2,s1",
		"--priority", "2", "--priority", "1",
		"--label", "bug",
		"--assignee", "me",
		"--query", "  crash   report ",
		"--updated-after", "2026-01-02",
		"--include-completed",
	}))

	c, err := cf.criteria()
	require.NoError(t, err)
	assert.Equal(t, "team-1", c.TeamID)
	assert.Equal(t, []string{"s1", "s2"}, c.StateIDs)
	assert.Equal(t, []int{1, 2}, c.Priorities)
	assert.Equal(t, []string{"bug"}, c.LabelIDs)
	assert.Equal(t, filter.AssigneeMe, c.Assignee)
	assert.Equal(t, "crash report", c.Query)
	assert.True(t, c.IncludeCompleted)
	require.NotNil(t, c.UpdatedAfter)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), *c.UpdatedAfter)
	assert.Nil(t, c.UpdatedBefore)
}

func TestCriteriaFlags_Defaults(t *testing.T) {
	var cf criteriaFlags
	c, err := cf.criteria()
	require.NoError(t, err)
	assert.True(t, c.IsDefault())
}

func TestCriteriaFlags_InvalidPriority(t *testing.T) {
	cf := criteriaFlags{priorities: []int{7}}
	_, err := cf.criteria()
	assert.ErrorContains(t, err, "invalid priority 7")
}

func TestParseTimeFlag(t *testing.T) {
	got, err := parseTimeFlag("updated-after", "2026-03-04T05:06:07+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 3, 6, 7, 0, time.UTC), *got)

	got, err = parseTimeFlag("updated-after", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseTimeFlag("updated-before", "last week")
	assert.ErrorContains(t, err, "--updated-before")
}

func TestViewFlags(t *testing.T) {
	group, sortBy, err := (&viewFlags{group: "status", sort: "priority"}).options()
	require.NoError(t, err)
	assert.Equal(t, tree.GroupStatus, group)
	assert.Equal(t, tree.SortByPriority, sortBy)

	_, _, err = (&viewFlags{group: "color", sort: "priority"}).options()
	assert.ErrorContains(t, err, "--group")
	_, _, err = (&viewFlags{group: "none", sort: "title"}).options()
	assert.ErrorContains(t, err, "--sort")
}

func TestPrintTree(t *testing.T) {
	issues := filter.IndexAll([]linearapi.Issue{
		{ID: "1", Identifier: "ENG-1", Title: "Parent", State: "Todo", StateType: "unstarted", Priority: 2, Assignee: "Ana"},
		{ID: "2", Identifier: "ENG-2", Title: "Child", State: "Todo", StateType: "unstarted", Priority: 0, Parent: &linearapi.IssueRef{ID: "1"}},
	})
	nodes := tree.Build(issues, tree.Options{
		GroupBy:  tree.GroupStatus,
		Criteria: filter.Criteria{Assignee: filter.AssigneeMe},
	})

	var out bytes.Buffer
	printTree(&out, nodes)
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Filtered: assignee: me", lines[0])
	assert.Equal(t, "# Todo (2)", lines[1])
	assert.Equal(t, "  ENG-1      [Todo] High        Parent @Ana", lines[2])
	assert.Equal(t, "    ENG-2      [Todo] No priority Child", lines[3])
}

func TestPrintTree_Empty(t *testing.T) {
	var out bytes.Buffer
	printTree(&out, tree.Build(nil, tree.Options{}))
	assert.Equal(t, tree.EmptyMessage+"\n", out.String())
}

func TestIssueMarkdown(t *testing.T) {
	issue := linearapi.Issue{
		Identifier:  "ENG-9",
		Title:       "Crash on start",
		State:       "In Progress",
		Priority:    1,
		TeamName:    "Engineering",
		Description: "Steps to reproduce.",
		Labels:      []linearapi.IssueLabel{{Name: "bug"}, {Name: "p0"}},
	}
	comments := []linearapi.Comment{{Body: "Seen it too", Author: linearapi.User{Name: "bo", DisplayName: "Bo"}}}

	md := issueMarkdown(issue, comments)
	assert.Contains(t, md, "# ENG-9 Crash on start")
	assert.Contains(t, md, "**Priority:** Urgent")
	assert.Contains(t, md, "**Assignee:** -")
	assert.Contains(t, md, "**Labels:** bug, p0")
	assert.Contains(t, md, "Steps to reproduce.")
	assert.Contains(t, md, "## Comments (1)")
	assert.Contains(t, md, "### Bo,")

	out, err := renderMarkdown(md, "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "Crash on start")
}

func TestCachePrefix(t *testing.T) {
	assert.Equal(t, "issues:", cachePrefix("issues"))
	assert.Equal(t, "teams", cachePrefix("teams"))
	assert.Equal(t, "states:team-1", cachePrefix("states:team-1"))
	assert.Contains(t, cacheFamilies(), "comments")
}

func TestNonEmpty(t *testing.T) {
	assert.Equal(t, []string{}, nonEmpty([]string{""}))
	assert.Equal(t, []string{"a", "b"}, nonEmpty([]string{" a", "", "b "}))
}
