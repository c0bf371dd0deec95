package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roeyazroel/linear-sync/internal/filter"
	"github.com/roeyazroel/linear-sync/internal/linearapi"
	"github.com/roeyazroel/linear-sync/internal/logger"
	"github.com/roeyazroel/linear-sync/internal/retry"
)

// deltaScope keeps the team and assignee of c and drops the predicates that
// Match can re-evaluate locally.
func deltaScope(c filter.Criteria) filter.Criteria {
	return filter.Criteria{TeamID: c.TeamID, Assignee: c.Assignee, IncludeCompleted: true}
}

func (e *Engine) translateOptions() filter.TranslateOptions {
	return filter.TranslateOptions{ServerQuery: e.cfg.ServerQuery}
}

func (e *Engine) fetchIndexed(ctx context.Context, c filter.Criteria) ([]filter.IndexedIssue, error) {
	issues, err := e.api.FetchIssues(ctx, linearapi.FetchIssuesParams{
		Filter:  filter.ToRemoteFilter(c, e.translateOptions()),
		OrderBy: linearapi.OrderByUpdatedAt,
		First:   e.cfg.PageSize,
		OnProgress: func(p linearapi.IssueFetchProgress) {
			logger.Debug("engine.issues: fetched page=%d total=%d", p.Page, p.Fetched)
			if e.cfg.OnProgress != nil {
				e.cfg.OnProgress(p)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return filter.IndexAll(issues), nil
}

// GetIssues returns the issues matching c. Server-expressible predicates are
// sent to Linear; the free-text query is always applied to the search index.
//
// Cache hits are refreshed in the background with a delta that is wider
// than c, so issues that stopped matching c (completed, relabelled, moved)
// are removed from the list rather than left behind.
func (e *Engine) GetIssues(ctx context.Context, c filter.Criteria) ([]filter.IndexedIssue, error) {
	c = c.Normalize()
	r := resource[[]filter.IndexedIssue]{
		key: IssuesKey(c),
		ttl: e.cfg.CacheTTL,
		fetchAll: func(ctx context.Context) ([]filter.IndexedIssue, error) {
			issues, err := e.fetchIndexed(ctx, c)
			if err != nil {
				return nil, err
			}
			return filter.ApplyQuery(issues, c.Query), nil
		},
		fetchDelta: func(ctx context.Context, since time.Time) ([]filter.IndexedIssue, error) {
			return e.fetchIndexed(ctx, deltaScope(c).WithUpdatedAfter(since))
		},
		merge: func(base, delta []filter.IndexedIssue) []filter.IndexedIssue {
			// The server already applied the assignee predicate to the delta.
			local := c
			local.Assignee = ""
			return mergeIssues(base, delta, func(ix filter.IndexedIssue) bool {
				return filter.Match(ix, local, filter.MatchOptions{})
			})
		},
	}

	issues, err := getOrRefresh(ctx, e, r)
	if err != nil {
		return nil, fmt.Errorf("get issues: %w", err)
	}
	return issues, nil
}

// SearchIssues filters the cached collection for c without its query,
// so successive searches over the same base reuse one cache entry.
func (e *Engine) SearchIssues(ctx context.Context, c filter.Criteria) ([]filter.IndexedIssue, error) {
	c = c.Normalize()
	base, err := e.GetIssues(ctx, c.WithoutQuery())
	if err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}
	return filter.ApplyQuery(base, c.Query), nil
}

// GetIssueDetails returns a single issue by ID or identifier.
func (e *Engine) GetIssueDetails(ctx context.Context, id string) (linearapi.Issue, error) {
	issue, err := getOrRefresh(ctx, e, resource[linearapi.Issue]{
		key: IssueKey(id),
		ttl: e.cfg.DetailTTL,
		fetchAll: func(ctx context.Context) (linearapi.Issue, error) {
			return e.api.FetchIssueByID(ctx, id)
		},
	})
	if err != nil {
		return linearapi.Issue{}, fmt.Errorf("get issue %s: %w", id, err)
	}
	return issue, nil
}

// GetIssueComments returns an issue's comments, oldest first.
func (e *Engine) GetIssueComments(ctx context.Context, id string) ([]linearapi.Comment, error) {
	comments, err := getOrRefresh(ctx, e, resource[[]linearapi.Comment]{
		key: CommentsKey(id),
		ttl: e.cfg.DetailTTL,
		fetchAll: func(ctx context.Context) ([]linearapi.Comment, error) {
			return e.api.ListComments(ctx, id)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get comments for issue %s: %w", id, err)
	}
	return comments, nil
}

// CreateIssue creates an issue and invalidates every issue list.
func (e *Engine) CreateIssue(ctx context.Context, input linearapi.CreateIssueInput) (linearapi.Issue, error) {
	issue, err := retry.Do(ctx, e.cfg.Retry, func(ctx context.Context) (linearapi.Issue, error) {
		return e.api.CreateIssue(ctx, input)
	})
	if err != nil {
		return linearapi.Issue{}, fmt.Errorf("create issue: %w", err)
	}
	e.InvalidateCache(issuesPrefix)
	logger.Info("engine: created issue identifier=%s", issue.Identifier)
	return issue, nil
}

// UpdateIssue updates an issue and invalidates every issue list and its detail entry.
func (e *Engine) UpdateIssue(ctx context.Context, id string, input linearapi.UpdateIssueInput) (linearapi.Issue, error) {
	issue, err := retry.Do(ctx, e.cfg.Retry, func(ctx context.Context) (linearapi.Issue, error) {
		return e.api.UpdateIssue(ctx, id, input)
	})
	if err != nil {
		return linearapi.Issue{}, fmt.Errorf("update issue %s: %w", id, err)
	}
	e.invalidateIssue(id, issue.ID, issue.Identifier)
	logger.Info("engine: updated issue id=%s", id)
	return issue, nil
}

// UpdateIssueState moves an issue to another workflow state.
func (e *Engine) UpdateIssueState(ctx context.Context, id, stateID string) (linearapi.Issue, error) {
	return e.UpdateIssue(ctx, id, linearapi.UpdateIssueInput{StateID: &stateID})
}

// ArchiveIssue archives an issue and invalidates it like an update.
func (e *Engine) ArchiveIssue(ctx context.Context, id string) error {
	err := e.cfg.Retry.Run(ctx, func(ctx context.Context) error {
		return e.api.ArchiveIssue(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("archive issue %s: %w", id, err)
	}
	e.invalidateIssue(id)
	logger.Info("engine: archived issue id=%s", id)
	return nil
}

// UnarchiveIssue restores an archived issue and invalidates it like an update.
func (e *Engine) UnarchiveIssue(ctx context.Context, id string) error {
	err := e.cfg.Retry.Run(ctx, func(ctx context.Context) error {
		return e.api.UnarchiveIssue(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("unarchive issue %s: %w", id, err)
	}
	e.invalidateIssue(id)
	logger.Info("engine: unarchived issue id=%s", id)
	return nil
}

// AddComment posts a comment and invalidates the issue's comment list.
func (e *Engine) AddComment(ctx context.Context, id, body string) error {
	comment, err := retry.Do(ctx, e.cfg.Retry, func(ctx context.Context) (linearapi.Comment, error) {
		return e.api.CreateComment(ctx, linearapi.CreateCommentInput{IssueID: id, Body: body})
	})
	if err != nil {
		return fmt.Errorf("add comment to issue %s: %w", id, err)
	}
	e.deleteKey(CommentsKey(id))
	if comment.IssueID != "" && comment.IssueID != id {
		e.deleteKey(CommentsKey(comment.IssueID))
	}
	logger.Info("engine: added comment issue=%s", id)
	return nil
}

// invalidateIssue drops every issue list and the detail entries under each given reference.
func (e *Engine) invalidateIssue(refs ...string) {
	e.InvalidateCache(issuesPrefix)
	for _, ref := range refs {
		if ref != "" {
			e.deleteKey(IssueKey(ref))
		}
	}
}
