package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// session owns the app built for one invocation.
type session struct {
	app     *app
	envOnly bool
	closed  int
}

func (s *session) close() {
	if s.app == nil {
		return
	}
	s.app.Close()
	s.app = nil
	s.closed++
}

// run executes root with args and releases the app whether or not the
// command succeeded.
func run(root *cobra.Command, s *session, args []string) error {
	defer s.close()
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(s *session) *cobra.Command {
	root := &cobra.Command{
		Use:   "linear-sync",
		Short: "Cached, incrementally synced access to Linear issues",
		Long: `linear-sync reads Linear issues and metadata through a local cache.

Lists are served from the cache when fresh and refreshed in the background
with a delta sync on the next read; expired entries are refetched and fall
back to the last known data when Linear is unreachable.

Set LINEAR_API_KEY (or linear_api_key in the config file) before use.`,
		Version:       VersionInfo(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsApp(cmd) {
				return nil
			}
			a, err := newApp(cmd.Context(), appOptions{
				envOnly: s.envOnly,
				notices: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			s.app = a
			return nil
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().BoolVar(&s.envOnly, "env-only", false,
		"read settings from the environment only, ignoring the config file and .env")

	get := func() *app { return s.app }

	root.AddCommand(
		newIssuesCmd(get),
		newSearchCmd(get),
		newShowCmd(get),
		newCommentsCmd(get),
		newCreateCmd(get),
		newUpdateCmd(get),
		newStateCmd(get),
		newCommentCmd(get),
		newArchiveCmd(get),
		newUnarchiveCmd(get),
		newTeamsCmd(get),
		newProjectsCmd(get),
		newLabelsCmd(get),
		newStatesCmd(get),
		newMembersCmd(get),
		newPreloadCmd(get),
		newCacheCmd(get),
		newVersionCmd(),
	)
	return root
}

// needsApp reports whether cmd talks to Linear or the cache.
func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch {
		case c.Annotations["offline"] == "true":
			return false
		case c.Name() == "help" || c.Name() == "completion":
			return false
		}
	}
	return true
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"offline": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), VersionInfo())
		},
	}
}
