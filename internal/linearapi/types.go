package linearapi

import (
	"encoding/json"
	"time"
)

// IssueFilter is a custom scalar type for Linear's IssueFilter input.
// It allows passing complex filter objects to the GraphQL API.
type IssueFilter map[string]interface{}

// GetGraphQLType returns the GraphQL type name for the filter.
func (IssueFilter) GetGraphQLType() string {
	return "IssueFilter"
}

// MarshalJSON implements json.Marshaler for IssueFilter.
func (f IssueFilter) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(f))
}

// IssueCreateInput is a custom scalar type for Linear's IssueCreateInput.
// The Go type name must match the GraphQL type name exactly.
type IssueCreateInput map[string]interface{}

// GetGraphQLType returns the GraphQL type name for the input.
func (IssueCreateInput) GetGraphQLType() string {
	return "IssueCreateInput"
}

// IssueUpdateInput is a custom scalar type for Linear's IssueUpdateInput.
type IssueUpdateInput map[string]interface{}

// GetGraphQLType returns the GraphQL type name for the input.
func (IssueUpdateInput) GetGraphQLType() string {
	return "IssueUpdateInput"
}

// CommentCreateInput is a custom scalar type for Linear's CommentCreateInput.
type CommentCreateInput map[string]interface{}

// GetGraphQLType returns the GraphQL type name for the input.
func (CommentCreateInput) GetGraphQLType() string {
	return "CommentCreateInput"
}

// PaginationOrderBy is a custom type for Linear's PaginationOrderBy enum.
// Valid values are "createdAt" and "updatedAt".
type PaginationOrderBy string

// GetGraphQLType returns the GraphQL type name for the enum.
func (PaginationOrderBy) GetGraphQLType() string {
	return "PaginationOrderBy"
}

// Common PaginationOrderBy values.
const (
	OrderByCreatedAt PaginationOrderBy = "createdAt"
	OrderByUpdatedAt PaginationOrderBy = "updatedAt"
)

// Workflow state types reported by Linear.
const (
	StateTypeTriage    = "triage"
	StateTypeBacklog   = "backlog"
	StateTypeUnstarted = "unstarted"
	StateTypeStarted   = "started"
	StateTypeCompleted = "completed"
	StateTypeCanceled  = "canceled"
)

// Team represents a Linear team.
type Team struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Project represents a Linear project.
type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	State  string `json:"state,omitempty"`
	TeamID string `json:"teamId,omitempty"`
}

// User represents a Linear user.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	IsMe        bool   `json:"isMe"`
}

// WorkflowState represents a workflow state in a Linear team.
type WorkflowState struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"` // triage, backlog, unstarted, started, completed, canceled
	Position float64 `json:"position"`
	TeamID   string  `json:"teamId"`
}

// IssueLabel represents a label that can be applied to issues.
type IssueLabel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"` // Hex color code (e.g., "#ff0000")
}

// IssueRef represents a lightweight reference to an issue (for parent relationships).
type IssueRef struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
}

// Comment represents a comment on a Linear issue.
type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    User      `json:"author"`
	IssueID   string    `json:"issueId"`
}

// Issue represents a Linear issue.
type Issue struct {
	ID          string       `json:"id"`
	Identifier  string       `json:"identifier"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	State       string       `json:"state"`
	StateID     string       `json:"stateId"`
	StateType   string       `json:"stateType"`
	Assignee    string       `json:"assignee,omitempty"`
	AssigneeID  string       `json:"assigneeId,omitempty"`
	Priority    int          `json:"priority"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	CreatedAt   time.Time    `json:"createdAt"`
	TeamID      string       `json:"teamId"`
	TeamName    string       `json:"teamName,omitempty"`
	ProjectID   string       `json:"projectId,omitempty"`
	ProjectName string       `json:"projectName,omitempty"`
	URL         string       `json:"url"`
	Archived    bool         `json:"archived,omitempty"`
	Labels      []IssueLabel `json:"labels,omitempty"`
	Parent      *IssueRef    `json:"parent,omitempty"` // nil if top-level
}

// IssueFetchProgress describes progress for a paginated issue fetch.
type IssueFetchProgress struct {
	Page    int
	Fetched int
}

// IssuePage is one page of a paginated issue listing.
type IssuePage struct {
	Issues      []Issue
	HasNextPage bool
	EndCursor   string
}

// FetchIssuesParams contains parameters for fetching issues.
type FetchIssuesParams struct {
	// Filter is the IssueFilter expression sent to Linear; nil means no filter.
	Filter IssueFilter
	// OrderBy specifies the sort order. Valid API values are "updatedAt" and "createdAt".
	OrderBy PaginationOrderBy
	First   int
	// OnProgress is an optional callback invoked after each page is fetched.
	OnProgress func(IssueFetchProgress)
}

// CreateIssueInput contains input for creating a new issue.
type CreateIssueInput struct {
	TeamID      string
	Title       string
	Description string
	ProjectID   string
	StateID     string
	AssigneeID  string
	Priority    int
	LabelIDs    []string
	ParentID    string // empty for top-level issues
}

// UpdateIssueInput contains input for updating an issue.
type UpdateIssueInput struct {
	Title       *string
	Description *string
	StateID     *string
	AssigneeID  *string // empty string unassigns
	Priority    *int
	ProjectID   *string   // empty string removes the project
	LabelIDs    *[]string // nil = no change, empty slice = clear all
	ParentID    *string   // empty string clears the parent
}

// CreateCommentInput contains input for creating a new comment.
type CreateCommentInput struct {
	IssueID string
	Body    string
}
