package engine

import (
	"context"
	"fmt"

	"github.com/roeyazroel/linear-sync/internal/linearapi"
	"github.com/roeyazroel/linear-sync/internal/logger"
	"golang.org/x/sync/errgroup"
)

// GetTeams returns every team the user can access.
func (e *Engine) GetTeams(ctx context.Context) ([]linearapi.Team, error) {
	teams, err := getOrRefresh(ctx, e, resource[[]linearapi.Team]{
		key:      teamsKey,
		ttl:      e.cfg.CacheTTL,
		fetchAll: e.api.ListTeams,
	})
	if err != nil {
		return nil, fmt.Errorf("get teams: %w", err)
	}
	return teams, nil
}

// GetProjects returns every project in the workspace.
func (e *Engine) GetProjects(ctx context.Context) ([]linearapi.Project, error) {
	projects, err := getOrRefresh(ctx, e, resource[[]linearapi.Project]{
		key:      ProjectsKey(""),
		ttl:      e.cfg.CacheTTL,
		fetchAll: e.api.ListAllProjects,
	})
	if err != nil {
		return nil, fmt.Errorf("get projects: %w", err)
	}
	return projects, nil
}

// GetTeamProjects returns the projects of one team.
func (e *Engine) GetTeamProjects(ctx context.Context, teamID string) ([]linearapi.Project, error) {
	projects, err := getOrRefresh(ctx, e, resource[[]linearapi.Project]{
		key: ProjectsKey(teamID),
		ttl: e.cfg.CacheTTL,
		fetchAll: func(ctx context.Context) ([]linearapi.Project, error) {
			return e.api.ListProjects(ctx, teamID)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get projects for team %s: %w", teamID, err)
	}
	return projects, nil
}

// GetWorkflowStates returns a team's workflow states ordered by position.
func (e *Engine) GetWorkflowStates(ctx context.Context, teamID string) ([]linearapi.WorkflowState, error) {
	states, err := getOrRefresh(ctx, e, resource[[]linearapi.WorkflowState]{
		key: StatesKey(teamID),
		ttl: e.cfg.CacheTTL,
		fetchAll: func(ctx context.Context) ([]linearapi.WorkflowState, error) {
			return e.api.ListWorkflowStates(ctx, teamID)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get workflow states for team %s: %w", teamID, err)
	}
	return states, nil
}

// GetLabels returns the labels usable in a team: workspace labels plus the
// team's own. An empty teamID returns workspace labels only.
func (e *Engine) GetLabels(ctx context.Context, teamID string) ([]linearapi.IssueLabel, error) {
	labels, err := getOrRefresh(ctx, e, resource[[]linearapi.IssueLabel]{
		key: LabelsKey(teamID),
		ttl: e.cfg.CacheTTL,
		fetchAll: func(ctx context.Context) ([]linearapi.IssueLabel, error) {
			if teamID == "" {
				return e.api.ListWorkspaceLabels(ctx)
			}
			return e.api.ListIssueLabels(ctx, teamID)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get labels for team %s: %w", teamID, err)
	}
	return labels, nil
}

// GetTeamMembers returns a team's members.
func (e *Engine) GetTeamMembers(ctx context.Context, teamID string) ([]linearapi.User, error) {
	users, err := getOrRefresh(ctx, e, resource[[]linearapi.User]{
		key: MembersKey(teamID),
		ttl: e.cfg.CacheTTL,
		fetchAll: func(ctx context.Context) ([]linearapi.User, error) {
			return e.api.ListUsers(ctx, teamID)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get members for team %s: %w", teamID, err)
	}
	return users, nil
}

// GetCurrentUser returns the authenticated user.
func (e *Engine) GetCurrentUser(ctx context.Context) (linearapi.User, error) {
	user, err := getOrRefresh(ctx, e, resource[linearapi.User]{
		key:      viewerKey,
		ttl:      e.cfg.CacheTTL,
		fetchAll: e.api.GetCurrentUser,
	})
	if err != nil {
		return linearapi.User{}, fmt.Errorf("get current user: %w", err)
	}
	return user, nil
}

// PreloadTeamMetadata warms states, members, labels and projects for a team in parallel.
func (e *Engine) PreloadTeamMetadata(ctx context.Context, teamID string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := e.GetWorkflowStates(ctx, teamID)
		return err
	})
	g.Go(func() error {
		_, err := e.GetTeamMembers(ctx, teamID)
		return err
	})
	g.Go(func() error {
		_, err := e.GetLabels(ctx, teamID)
		return err
	})
	g.Go(func() error {
		_, err := e.GetTeamProjects(ctx, teamID)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.ErrorWithErr(err, "engine: preload team metadata failed team_id=%s", teamID)
		return fmt.Errorf("preload team %s: %w", teamID, err)
	}
	logger.Debug("engine: preloaded team metadata team_id=%s", teamID)
	return nil
}

// LabelByID looks up a label among a team's labels. Lookup failures are
// logged and reported as not found.
func (e *Engine) LabelByID(ctx context.Context, teamID, id string) (linearapi.IssueLabel, bool) {
	labels, err := e.GetLabels(ctx, teamID)
	if err != nil {
		logger.Warning("engine: label lookup failed team_id=%s label_id=%s error=%v", teamID, id, err)
		return linearapi.IssueLabel{}, false
	}
	for _, lbl := range labels {
		if lbl.ID == id {
			return lbl, true
		}
	}
	return linearapi.IssueLabel{}, false
}

// ProjectByID looks up a project in the workspace. Lookup failures are
// logged and reported as not found.
func (e *Engine) ProjectByID(ctx context.Context, id string) (linearapi.Project, bool) {
	projects, err := e.GetProjects(ctx)
	if err != nil {
		logger.Warning("engine: project lookup failed project_id=%s error=%v", id, err)
		return linearapi.Project{}, false
	}
	for _, p := range projects {
		if p.ID == id {
			return p, true
		}
	}
	return linearapi.Project{}, false
}
