package main

import (
	"fmt"
	"strconv"

	"github.com/roeyazroel/linear-sync/internal/linearapi"
	"github.com/spf13/cobra"
)

func newTeamsCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List teams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			teams, err := get().engine.GetTeams(cmd.Context())
			if err != nil {
				return fmt.Errorf("list teams: %w", err)
			}
			rows := [][]string{{"ID", "KEY", "NAME"}}
			for _, t := range teams {
				rows = append(rows, []string{t.ID, t.Key, t.Name})
			}
			return table(cmd.OutOrStdout(), rows)
		},
	}
}

func newProjectsCmd(get func() *app) *cobra.Command {
	var team string
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects in the workspace or one team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := get().engine
			var (
				projects []linearapi.Project
				err      error
			)
			if team != "" {
				projects, err = eng.GetTeamProjects(cmd.Context(), team)
			} else {
				projects, err = eng.GetProjects(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}
			rows := [][]string{{"ID", "NAME", "STATE"}}
			for _, p := range projects {
				rows = append(rows, []string{p.ID, p.Name, orDash(p.State)})
			}
			return table(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "team ID")
	return cmd
}

func newLabelsCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "labels [teamID]",
		Short: "List labels available to a team, or workspace labels",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var team string
			if len(args) == 1 {
				team = args[0]
			}
			labels, err := get().engine.GetLabels(cmd.Context(), team)
			if err != nil {
				return fmt.Errorf("list labels: %w", err)
			}
			rows := [][]string{{"ID", "NAME", "COLOR"}}
			for _, l := range labels {
				rows = append(rows, []string{l.ID, l.Name, orDash(l.Color)})
			}
			return table(cmd.OutOrStdout(), rows)
		},
	}
}

func newStatesCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "states <teamID>",
		Short: "List a team's workflow states in board order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := get().engine.GetWorkflowStates(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("list workflow states: %w", err)
			}
			rows := [][]string{{"ID", "NAME", "TYPE", "POSITION"}}
			for _, s := range states {
				rows = append(rows, []string{s.ID, s.Name, s.Type, strconv.FormatFloat(s.Position, 'f', -1, 64)})
			}
			return table(cmd.OutOrStdout(), rows)
		},
	}
}

func newMembersCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "members <teamID>",
		Short: "List the members of a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := get().engine.GetTeamMembers(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("list members: %w", err)
			}
			rows := [][]string{{"ID", "NAME", "EMAIL"}}
			for _, u := range users {
				name := authorName(u)
				if u.IsMe {
					name += " (me)"
				}
				rows = append(rows, []string{u.ID, name, orDash(u.Email)})
			}
			return table(cmd.OutOrStdout(), rows)
		},
	}
}

func newPreloadCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preload <teamID>",
		Short: "Warm the cache with a team's states, projects, labels and members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().engine.PreloadTeamMetadata(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("preload team %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Preloaded metadata for team %s\n", args[0])
			return nil
		},
	}
}
