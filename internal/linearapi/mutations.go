package linearapi

import (
	"context"
	"fmt"

	"github.com/roeyazroel/linear-sync/internal/logger"
	"github.com/shurcooL/graphql"
)

// buildCreateInput converts CreateIssueInput into Linear's IssueCreateInput.
func buildCreateInput(input CreateIssueInput) IssueCreateInput {
	in := IssueCreateInput{
		"teamId": graphql.ID(input.TeamID),
		"title":  graphql.String(input.Title),
	}
	if input.Description != "" {
		in["description"] = graphql.String(input.Description)
	}
	if input.ProjectID != "" {
		in["projectId"] = graphql.ID(input.ProjectID)
	}
	if input.StateID != "" {
		in["stateId"] = graphql.ID(input.StateID)
	}
	if input.AssigneeID != "" {
		in["assigneeId"] = graphql.ID(input.AssigneeID)
	}
	if input.Priority > 0 {
		in["priority"] = graphql.Int(input.Priority)
	}
	if len(input.LabelIDs) > 0 {
		in["labelIds"] = toIDs(input.LabelIDs)
	}
	if input.ParentID != "" {
		in["parentId"] = graphql.ID(input.ParentID)
	}
	return in
}

// buildUpdateInput converts UpdateIssueInput into Linear's IssueUpdateInput,
// sending only the fields that were set. Empty strings on nullable
// references are sent as null to clear them.
func buildUpdateInput(input UpdateIssueInput) IssueUpdateInput {
	in := make(IssueUpdateInput)
	if input.Title != nil {
		in["title"] = graphql.String(*input.Title)
	}
	if input.Description != nil {
		in["description"] = graphql.String(*input.Description)
	}
	if input.StateID != nil {
		in["stateId"] = graphql.ID(*input.StateID)
	}
	if input.AssigneeID != nil {
		in["assigneeId"] = nullableID(*input.AssigneeID)
	}
	if input.Priority != nil {
		in["priority"] = graphql.Int(*input.Priority)
	}
	if input.ProjectID != nil {
		in["projectId"] = nullableID(*input.ProjectID)
	}
	if input.LabelIDs != nil {
		in["labelIds"] = toIDs(*input.LabelIDs)
	}
	if input.ParentID != nil {
		in["parentId"] = nullableID(*input.ParentID)
	}
	return in
}

func nullableID(id string) interface{} {
	if id == "" {
		return (*graphql.ID)(nil)
	}
	return graphql.ID(id)
}

func toIDs(ids []string) []graphql.ID {
	out := make([]graphql.ID, len(ids))
	for i, id := range ids {
		out[i] = graphql.ID(id)
	}
	return out
}

// CreateIssue creates a new issue.
func (c *Client) CreateIssue(ctx context.Context, input CreateIssueInput) (Issue, error) {
	var mutation struct {
		IssueCreate struct {
			Success graphql.Boolean
			Issue   issueNode
		} `graphql:"issueCreate(input: $input)"`
	}

	variables := map[string]interface{}{
		"input": buildCreateInput(input),
	}

	if err := c.client.Mutate(ctx, &mutation, variables); err != nil {
		logger.ErrorWithErr(err, "API: CreateIssue failed")
		return Issue{}, fmt.Errorf("create issue: %w", err)
	}
	if !bool(mutation.IssueCreate.Success) {
		logger.Error("API: CreateIssue operation failed (success=false)")
		return Issue{}, fmt.Errorf("create issue: %w", ErrOperationFailed)
	}

	return mutation.IssueCreate.Issue.toIssue(), nil
}

// UpdateIssue updates an existing issue identified by ID or identifier.
func (c *Client) UpdateIssue(ctx context.Context, id string, input UpdateIssueInput) (Issue, error) {
	var mutation struct {
		IssueUpdate struct {
			Success graphql.Boolean
			Issue   issueNode
		} `graphql:"issueUpdate(id: $id, input: $input)"`
	}

	variables := map[string]interface{}{
		"id":    graphql.String(id),
		"input": buildUpdateInput(input),
	}

	if err := c.client.Mutate(ctx, &mutation, variables); err != nil {
		logger.ErrorWithErr(err, "API: UpdateIssue failed for issue %s", id)
		return Issue{}, fmt.Errorf("update issue %s: %w", id, err)
	}
	if !bool(mutation.IssueUpdate.Success) {
		logger.Error("API: UpdateIssue operation failed (success=false) for issue %s", id)
		return Issue{}, fmt.Errorf("update issue %s: %w", id, ErrOperationFailed)
	}

	return mutation.IssueUpdate.Issue.toIssue(), nil
}

// CreateComment creates a new comment on an issue.
func (c *Client) CreateComment(ctx context.Context, input CreateCommentInput) (Comment, error) {
	var mutation struct {
		CommentCreate struct {
			Success graphql.Boolean
			Comment commentNode
		} `graphql:"commentCreate(input: $input)"`
	}

	variables := map[string]interface{}{
		"input": CommentCreateInput{
			"issueId": graphql.ID(input.IssueID),
			"body":    graphql.String(input.Body),
		},
	}

	if err := c.client.Mutate(ctx, &mutation, variables); err != nil {
		logger.ErrorWithErr(err, "API: CreateComment failed for issue %s", input.IssueID)
		return Comment{}, fmt.Errorf("create comment: %w", err)
	}
	if !bool(mutation.CommentCreate.Success) {
		logger.Error("API: CreateComment operation failed (success=false) for issue %s", input.IssueID)
		return Comment{}, fmt.Errorf("create comment: %w", ErrOperationFailed)
	}

	return mutation.CommentCreate.Comment.toComment(input.IssueID), nil
}

// ArchiveIssue archives an issue.
func (c *Client) ArchiveIssue(ctx context.Context, issueID string) error {
	var mutation struct {
		IssueArchive struct {
			Success graphql.Boolean
		} `graphql:"issueArchive(id: $id)"`
	}

	variables := map[string]interface{}{
		"id": graphql.String(issueID),
	}

	if err := c.client.Mutate(ctx, &mutation, variables); err != nil {
		logger.ErrorWithErr(err, "API: ArchiveIssue failed for issue %s", issueID)
		return fmt.Errorf("archive issue %s: %w", issueID, err)
	}
	if !bool(mutation.IssueArchive.Success) {
		logger.Error("API: ArchiveIssue operation failed (success=false) for issue %s", issueID)
		return fmt.Errorf("archive issue %s: %w", issueID, ErrOperationFailed)
	}
	return nil
}

// UnarchiveIssue restores an archived issue.
func (c *Client) UnarchiveIssue(ctx context.Context, issueID string) error {
	var mutation struct {
		IssueUnarchive struct {
			Success graphql.Boolean
		} `graphql:"issueUnarchive(id: $id)"`
	}

	variables := map[string]interface{}{
		"id": graphql.String(issueID),
	}

	if err := c.client.Mutate(ctx, &mutation, variables); err != nil {
		logger.ErrorWithErr(err, "API: UnarchiveIssue failed for issue %s", issueID)
		return fmt.Errorf("unarchive issue %s: %w", issueID, err)
	}
	if !bool(mutation.IssueUnarchive.Success) {
		logger.Error("API: UnarchiveIssue operation failed (success=false) for issue %s", issueID)
		return fmt.Errorf("unarchive issue %s: %w", issueID, ErrOperationFailed)
	}
	return nil
}
