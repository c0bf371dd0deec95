package linearapi

import (
	"context"
	"fmt"
	"sort"

	"github.com/roeyazroel/linear-sync/internal/logger"
	"github.com/shurcooL/graphql"
)

// metadataPageSize is the largest page Linear serves for connections.
const metadataPageSize = 250

type pageInfo struct {
	HasNextPage graphql.Boolean
	EndCursor   graphql.String
}

// paginate calls fetch with a nil cursor, then with each end cursor, until
// the connection reports no further page.
func paginate(fetch func(vars map[string]interface{}) (pageInfo, error), vars map[string]interface{}) (int, error) {
	if vars == nil {
		vars = make(map[string]interface{})
	}
	vars["first"] = graphql.Int(metadataPageSize)
	vars["after"] = (*graphql.String)(nil)

	pages := 0
	for {
		info, err := fetch(vars)
		if err != nil {
			return pages, err
		}
		pages++
		if !bool(info.HasNextPage) || info.EndCursor == "" {
			return pages, nil
		}
		cursor := info.EndCursor
		vars["after"] = &cursor
	}
}

type teamNode struct {
	ID   graphql.String
	Key  graphql.String
	Name graphql.String
}

type projectNode struct {
	ID    graphql.String
	Name  graphql.String
	State graphql.String
}

func (n projectNode) toProject(teamID string) Project {
	return Project{ID: string(n.ID), Name: string(n.Name), State: string(n.State), TeamID: teamID}
}

// ListTeams fetches every team the viewer can access.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	teams := make([]Team, 0)
	pages, err := paginate(func(vars map[string]interface{}) (pageInfo, error) {
		var query struct {
			Teams struct {
				Nodes    []teamNode
				PageInfo pageInfo
			} `graphql:"teams(first: $first, after: $after)"`
		}
		if err := c.client.Query(ctx, &query, vars); err != nil {
			return pageInfo{}, err
		}
		for _, n := range query.Teams.Nodes {
			teams = append(teams, Team{ID: string(n.ID), Key: string(n.Key), Name: string(n.Name)})
		}
		return query.Teams.PageInfo, nil
	}, nil)
	if err != nil {
		logger.ErrorWithErr(err, "API: ListTeams failed")
		return nil, fmt.Errorf("list teams: %w", err)
	}
	logger.Debug("API: ListTeams pages=%d count=%d", pages, len(teams))
	return teams, nil
}

// ListProjects fetches the projects a team belongs to.
func (c *Client) ListProjects(ctx context.Context, teamID string) ([]Project, error) {
	projects := make([]Project, 0)
	_, err := paginate(func(vars map[string]interface{}) (pageInfo, error) {
		var query struct {
			Team struct {
				Projects struct {
					Nodes    []projectNode
					PageInfo pageInfo
				} `graphql:"projects(first: $first, after: $after)"`
			} `graphql:"team(id: $teamId)"`
		}
		if err := c.client.Query(ctx, &query, vars); err != nil {
			return pageInfo{}, err
		}
		for _, n := range query.Team.Projects.Nodes {
			projects = append(projects, n.toProject(teamID))
		}
		return query.Team.Projects.PageInfo, nil
	}, map[string]interface{}{"teamId": graphql.String(teamID)})
	if err != nil {
		logger.ErrorWithErr(err, "API: ListProjects failed for team %s", teamID)
		return nil, fmt.Errorf("list projects for team %s: %w", teamID, err)
	}
	return projects, nil
}

// ListAllProjects fetches every project in the workspace.
func (c *Client) ListAllProjects(ctx context.Context) ([]Project, error) {
	projects := make([]Project, 0)
	_, err := paginate(func(vars map[string]interface{}) (pageInfo, error) {
		var query struct {
			Projects struct {
				Nodes    []projectNode
				PageInfo pageInfo
			} `graphql:"projects(first: $first, after: $after)"`
		}
		if err := c.client.Query(ctx, &query, vars); err != nil {
			return pageInfo{}, err
		}
		for _, n := range query.Projects.Nodes {
			projects = append(projects, n.toProject(""))
		}
		return query.Projects.PageInfo, nil
	}, nil)
	if err != nil {
		logger.ErrorWithErr(err, "API: ListAllProjects failed")
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListUsers fetches the members of a team.
func (c *Client) ListUsers(ctx context.Context, teamID string) ([]User, error) {
	users := make([]User, 0)
	_, err := paginate(func(vars map[string]interface{}) (pageInfo, error) {
		var query struct {
			Team struct {
				Members struct {
					Nodes    []userNode
					PageInfo pageInfo
				} `graphql:"members(first: $first, after: $after)"`
			} `graphql:"team(id: $teamId)"`
		}
		if err := c.client.Query(ctx, &query, vars); err != nil {
			return pageInfo{}, err
		}
		for _, n := range query.Team.Members.Nodes {
			users = append(users, n.toUser())
		}
		return query.Team.Members.PageInfo, nil
	}, map[string]interface{}{"teamId": graphql.String(teamID)})
	if err != nil {
		logger.ErrorWithErr(err, "API: ListUsers failed for team %s", teamID)
		return nil, fmt.Errorf("list users for team %s: %w", teamID, err)
	}
	return users, nil
}

// GetCurrentUser fetches the authenticated user.
func (c *Client) GetCurrentUser(ctx context.Context) (User, error) {
	var query struct {
		Viewer userNode
	}
	if err := c.client.Query(ctx, &query, nil); err != nil {
		logger.ErrorWithErr(err, "API: GetCurrentUser failed")
		return User{}, fmt.Errorf("get current user: %w", err)
	}
	me := query.Viewer.toUser()
	me.IsMe = true
	return me, nil
}

// ListWorkflowStates fetches a team's workflow states in board order.
// Teams carry few states, so a single page is enough.
func (c *Client) ListWorkflowStates(ctx context.Context, teamID string) ([]WorkflowState, error) {
	var query struct {
		Team struct {
			States struct {
				Nodes []struct {
					ID       graphql.String
					Name     graphql.String
					Type     graphql.String
					Position graphql.Float
				}
			}
		} `graphql:"team(id: $teamId)"`
	}

	variables := map[string]interface{}{
		"teamId": graphql.String(teamID),
	}
	if err := c.client.Query(ctx, &query, variables); err != nil {
		logger.ErrorWithErr(err, "API: ListWorkflowStates failed for team %s", teamID)
		return nil, fmt.Errorf("list workflow states for team %s: %w", teamID, err)
	}

	states := make([]WorkflowState, 0, len(query.Team.States.Nodes))
	for _, node := range query.Team.States.Nodes {
		states = append(states, WorkflowState{
			ID:       string(node.ID),
			Name:     string(node.Name),
			Type:     string(node.Type),
			Position: float64(node.Position),
			TeamID:   teamID,
		})
	}
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].Position < states[j].Position
	})
	return states, nil
}

// ListWorkspaceLabels fetches every label visible in the workspace.
func (c *Client) ListWorkspaceLabels(ctx context.Context) ([]IssueLabel, error) {
	labels := make([]IssueLabel, 0)
	_, err := paginate(func(vars map[string]interface{}) (pageInfo, error) {
		var query struct {
			IssueLabels struct {
				Nodes    []labelNode
				PageInfo pageInfo
			} `graphql:"issueLabels(first: $first, after: $after)"`
		}
		if err := c.client.Query(ctx, &query, vars); err != nil {
			return pageInfo{}, err
		}
		for _, n := range query.IssueLabels.Nodes {
			labels = append(labels, n.toLabel())
		}
		return query.IssueLabels.PageInfo, nil
	}, nil)
	if err != nil {
		logger.ErrorWithErr(err, "API: ListWorkspaceLabels failed")
		return nil, fmt.Errorf("list workspace labels: %w", err)
	}
	return labels, nil
}

// ListTeamLabels fetches labels scoped to one team.
func (c *Client) ListTeamLabels(ctx context.Context, teamID string) ([]IssueLabel, error) {
	labels := make([]IssueLabel, 0)
	_, err := paginate(func(vars map[string]interface{}) (pageInfo, error) {
		var query struct {
			Team struct {
				Labels struct {
					Nodes    []labelNode
					PageInfo pageInfo
				} `graphql:"labels(first: $first, after: $after)"`
			} `graphql:"team(id: $teamId)"`
		}
		if err := c.client.Query(ctx, &query, vars); err != nil {
			return pageInfo{}, err
		}
		for _, n := range query.Team.Labels.Nodes {
			labels = append(labels, n.toLabel())
		}
		return query.Team.Labels.PageInfo, nil
	}, map[string]interface{}{"teamId": graphql.String(teamID)})
	if err != nil {
		logger.ErrorWithErr(err, "API: ListTeamLabels failed for team %s", teamID)
		return nil, fmt.Errorf("list team labels for team %s: %w", teamID, err)
	}
	return labels, nil
}

// ListIssueLabels returns the workspace and team labels usable on a team's
// issues, de-duplicated by ID and sorted by name.
func (c *Client) ListIssueLabels(ctx context.Context, teamID string) ([]IssueLabel, error) {
	workspaceLabels, err := c.ListWorkspaceLabels(ctx)
	if err != nil {
		return nil, err
	}
	teamLabels, err := c.ListTeamLabels(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return mergeLabels(workspaceLabels, teamLabels), nil
}

// mergeLabels de-duplicates labels by ID, later sets winning, sorted by name.
func mergeLabels(sets ...[]IssueLabel) []IssueLabel {
	byID := make(map[string]IssueLabel)
	for _, set := range sets {
		for _, lbl := range set {
			byID[lbl.ID] = lbl
		}
	}
	labels := make([]IssueLabel, 0, len(byID))
	for _, lbl := range byID {
		labels = append(labels, lbl)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Name == labels[j].Name {
			return labels[i].ID < labels[j].ID
		}
		return labels[i].Name < labels[j].Name
	})
	return labels
}
