package linearapi

import (
	"context"
	"fmt"

	"github.com/roeyazroel/linear-sync/internal/logger"
	"github.com/shurcooL/graphql"
)

const (
	defaultPageSize = 50
	commentPageSize = 100
)

// issueNode is the GraphQL selection shared by every issue query and mutation.
type issueNode struct {
	ID          graphql.String
	Identifier  graphql.String
	Title       graphql.String
	Description *graphql.String
	State       struct {
		ID   graphql.String
		Name graphql.String
		Type graphql.String
	}
	Assignee *struct {
		ID   graphql.String
		Name graphql.String
	}
	Priority  graphql.Float
	UpdatedAt graphql.String
	CreatedAt graphql.String
	Team      struct {
		ID   graphql.String
		Name graphql.String
	}
	Project *struct {
		ID   graphql.String
		Name graphql.String
	}
	Labels struct {
		Nodes []labelNode
	}
	URL        graphql.String
	ArchivedAt *graphql.String
	Parent     *struct {
		ID         graphql.String
		Identifier graphql.String
		Title      graphql.String
	}
}

type labelNode struct {
	ID    graphql.String
	Name  graphql.String
	Color graphql.String
}

type userNode struct {
	ID          graphql.String
	Name        graphql.String
	DisplayName graphql.String
	Email       graphql.String
	IsMe        graphql.Boolean
}

type commentNode struct {
	ID        graphql.String
	Body      graphql.String
	CreatedAt graphql.String
	UpdatedAt graphql.String
	User      *userNode
}

func (n labelNode) toLabel() IssueLabel {
	return IssueLabel{ID: string(n.ID), Name: string(n.Name), Color: string(n.Color)}
}

func (n userNode) toUser() User {
	return User{
		ID:          string(n.ID),
		Name:        string(n.Name),
		DisplayName: string(n.DisplayName),
		Email:       string(n.Email),
		IsMe:        bool(n.IsMe),
	}
}

func (n commentNode) toComment(issueID string) Comment {
	var author User
	if n.User != nil {
		author = n.User.toUser()
	}
	return Comment{
		ID:        string(n.ID),
		Body:      string(n.Body),
		CreatedAt: parseTime(string(n.CreatedAt)),
		UpdatedAt: parseTime(string(n.UpdatedAt)),
		Author:    author,
		IssueID:   issueID,
	}
}

func (n issueNode) toIssue() Issue {
	issue := Issue{
		ID:         string(n.ID),
		Identifier: string(n.Identifier),
		Title:      string(n.Title),
		State:      string(n.State.Name),
		StateID:    string(n.State.ID),
		StateType:  string(n.State.Type),
		Priority:   int(n.Priority),
		UpdatedAt:  parseTime(string(n.UpdatedAt)),
		CreatedAt:  parseTime(string(n.CreatedAt)),
		TeamID:     string(n.Team.ID),
		TeamName:   string(n.Team.Name),
		URL:        string(n.URL),
		Archived:   n.ArchivedAt != nil,
	}
	if n.Description != nil {
		issue.Description = string(*n.Description)
	}
	if n.Assignee != nil {
		issue.Assignee = string(n.Assignee.Name)
		issue.AssigneeID = string(n.Assignee.ID)
	}
	if n.Project != nil {
		issue.ProjectID = string(n.Project.ID)
		issue.ProjectName = string(n.Project.Name)
	}
	if len(n.Labels.Nodes) > 0 {
		issue.Labels = make([]IssueLabel, 0, len(n.Labels.Nodes))
		for _, lbl := range n.Labels.Nodes {
			issue.Labels = append(issue.Labels, lbl.toLabel())
		}
	}
	if n.Parent != nil {
		issue.Parent = &IssueRef{
			ID:         string(n.Parent.ID),
			Identifier: string(n.Parent.Identifier),
			Title:      string(n.Parent.Title),
		}
	}
	return issue
}

// FetchIssuesPage fetches a single page of issues starting after cursor (nil for the first page).
func (c *Client) FetchIssuesPage(ctx context.Context, params FetchIssuesParams, after *string) (IssuePage, error) {
	first := params.First
	if first <= 0 {
		first = defaultPageSize
	}
	orderBy := params.OrderBy
	if orderBy == "" {
		orderBy = OrderByUpdatedAt
	}
	filter := params.Filter
	if filter == nil {
		filter = IssueFilter{}
	}

	var query struct {
		Issues struct {
			Nodes    []issueNode
			PageInfo struct {
				HasNextPage graphql.Boolean
				EndCursor   graphql.String
			}
		} `graphql:"issues(first: $first, after: $after, filter: $filter, orderBy: $orderBy)"`
	}

	var cursor *graphql.String
	if after != nil {
		s := graphql.String(*after)
		cursor = &s
	}

	variables := map[string]interface{}{
		"first":   graphql.Int(first),
		"filter":  filter,
		"orderBy": orderBy,
		"after":   cursor,
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		logger.ErrorWithErr(err, "API: FetchIssuesPage failed")
		return IssuePage{}, fmt.Errorf("fetch issues: %w", err)
	}

	issues := make([]Issue, 0, len(query.Issues.Nodes))
	for _, node := range query.Issues.Nodes {
		issues = append(issues, node.toIssue())
	}

	return IssuePage{
		Issues:      issues,
		HasNextPage: bool(query.Issues.PageInfo.HasNextPage),
		EndCursor:   string(query.Issues.PageInfo.EndCursor),
	}, nil
}

// FetchIssues fetches every page of issues matching params.Filter.
func (c *Client) FetchIssues(ctx context.Context, params FetchIssuesParams) ([]Issue, error) {
	var after *string
	page := 0
	issues := make([]Issue, 0)
	for {
		result, err := c.FetchIssuesPage(ctx, params, after)
		if err != nil {
			return nil, err
		}
		issues = append(issues, result.Issues...)

		page++
		if params.OnProgress != nil {
			params.OnProgress(IssueFetchProgress{Page: page, Fetched: len(issues)})
		}

		if !result.HasNextPage {
			break
		}
		cursor := result.EndCursor
		after = &cursor
	}
	logger.Debug("API: FetchIssues pages=%d count=%d", page, len(issues))
	return issues, nil
}

// FetchIssueByID fetches a single issue by its ID or identifier (e.g. "ENG-123").
func (c *Client) FetchIssueByID(ctx context.Context, id string) (Issue, error) {
	var query struct {
		Issue issueNode `graphql:"issue(id: $id)"`
	}

	variables := map[string]interface{}{
		"id": graphql.String(id),
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		logger.ErrorWithErr(err, "API: FetchIssueByID failed for issue %s", id)
		return Issue{}, fmt.Errorf("fetch issue %s: %w", id, err)
	}

	return query.Issue.toIssue(), nil
}

// ListComments fetches all comments on an issue, oldest first.
func (c *Client) ListComments(ctx context.Context, issueID string) ([]Comment, error) {
	var after *graphql.String
	comments := make([]Comment, 0)
	for {
		var query struct {
			Issue struct {
				ID       graphql.String
				Comments struct {
					Nodes    []commentNode
					PageInfo struct {
						HasNextPage graphql.Boolean
						EndCursor   graphql.String
					}
				} `graphql:"comments(first: $first, after: $after, orderBy: createdAt)"`
			} `graphql:"issue(id: $id)"`
		}

		variables := map[string]interface{}{
			"id":    graphql.String(issueID),
			"first": graphql.Int(commentPageSize),
			"after": after,
		}

		if err := c.client.Query(ctx, &query, variables); err != nil {
			logger.ErrorWithErr(err, "API: ListComments failed for issue %s", issueID)
			return nil, fmt.Errorf("list comments for issue %s: %w", issueID, err)
		}

		owner := string(query.Issue.ID)
		if owner == "" {
			owner = issueID
		}
		for _, node := range query.Issue.Comments.Nodes {
			comments = append(comments, node.toComment(owner))
		}

		if !bool(query.Issue.Comments.PageInfo.HasNextPage) {
			break
		}
		cursor := query.Issue.Comments.PageInfo.EndCursor
		after = &cursor
	}
	return comments, nil
}
