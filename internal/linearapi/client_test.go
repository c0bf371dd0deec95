package linearapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shurcooL/graphql"
)

// issueNodeJSON returns a JSON object string for an issue node used in tests.
func issueNodeJSON(id, identifier, title string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"identifier": %q,
		"title": %q,
		"description": null,
		"state": {"id": "state-1", "name": "Todo", "type": "unstarted"},
		"assignee": {"id": "user-1", "name": "Ada"},
		"priority": 2,
		"updatedAt": "2025-01-02T10:00:00Z",
		"createdAt": "2025-01-01T00:00:00Z",
		"team": {"id": "team-1", "name": "Engineering"},
		"project": null,
		"labels": {"nodes": [{"id": "lbl-1", "name": "Bug", "color": "#ff0000"}]},
		"url": "https://linear.app/issue/%s",
		"archivedAt": null,
		"parent": null
	}`, id, identifier, title, identifier)
}

// issuesPageResponse builds a GraphQL response with issue nodes and page info.
func issuesPageResponse(nodes []string, hasNextPage bool, endCursor string) string {
	return fmt.Sprintf(`{
		"data": {
			"issues": {
				"nodes": [%s],
				"pageInfo": {
					"hasNextPage": %t,
					"endCursor": %q
				}
			}
		}
	}`, strings.Join(nodes, ","), hasNextPage, endCursor)
}

// newTestServer serves the given responses in order, repeating the last one.
func newTestServer(t *testing.T, responses ...string) (*httptest.Server, *int) {
	t.Helper()
	count := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := count
		if idx >= len(responses) {
			idx = len(responses) - 1
		}
		count++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(responses[idx]))
	}))
	t.Cleanup(server.Close)
	return server, &count
}

func TestNewClient(t *testing.T) {
	token := "test-token-123"
	client := NewClientWithToken(token)

	if client == nil {
		t.Fatal("NewClientWithToken() returned nil")
	}
	if client.token != token {
		t.Errorf("NewClientWithToken() token = %q, want %q", client.token, token)
	}
	if client.endpoint != DefaultEndpoint {
		t.Errorf("NewClientWithToken() endpoint = %q, want %q", client.endpoint, DefaultEndpoint)
	}
	if client.httpClient == nil || client.client == nil {
		t.Error("NewClientWithToken() left a nil http or graphql client")
	}
	if client.httpClient.Timeout != defaultTimeout {
		t.Errorf("http timeout = %s, want %s", client.httpClient.Timeout, defaultTimeout)
	}
}

func TestNewClient_CustomConfig(t *testing.T) {
	customEndpoint := "http://localhost:8080/graphql"
	client := NewClient(ClientConfig{
		Token:    "test-token",
		Endpoint: customEndpoint,
	})

	if client.Endpoint() != customEndpoint {
		t.Errorf("Endpoint() = %q, want %q", client.Endpoint(), customEndpoint)
	}
}

func TestNewClient_CustomHTTPClientSendsAuth(t *testing.T) {
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {"teams": {"nodes": []}}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Token:      "my-token",
		Endpoint:   server.URL,
		HTTPClient: &http.Client{},
	})

	teams, err := client.ListTeams(context.Background())
	if err != nil {
		t.Fatalf("ListTeams() error: %v", err)
	}
	if len(teams) != 0 {
		t.Errorf("ListTeams() = %d teams, want 0", len(teams))
	}
	if authHeader != "my-token" {
		t.Errorf("Authorization header = %q, want %q", authHeader, "my-token")
	}
}

func TestFetchIssues_RequestFormat(t *testing.T) {
	var reqBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(issuesPageResponse(nil, false, "")))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})
	filter := IssueFilter{"team": map[string]interface{}{"id": map[string]interface{}{"eq": "team-1"}}}
	if _, err := client.FetchIssues(context.Background(), FetchIssuesParams{First: 10, Filter: filter}); err != nil {
		t.Fatalf("FetchIssues() error: %v", err)
	}

	query, _ := reqBody["query"].(string)
	if !strings.Contains(query, "$filter:IssueFilter!") {
		t.Errorf("query does not declare the filter variable: %s", query)
	}
	variables, ok := reqBody["variables"].(map[string]interface{})
	if !ok {
		t.Fatalf("request body missing variables")
	}
	if variables["orderBy"] != "updatedAt" {
		t.Errorf("orderBy = %v, want updatedAt", variables["orderBy"])
	}
	wantFilter := map[string]interface{}{"team": map[string]interface{}{"id": map[string]interface{}{"eq": "team-1"}}}
	if !reflect.DeepEqual(variables["filter"], wantFilter) {
		t.Errorf("filter = %#v, want %#v", variables["filter"], wantFilter)
	}
}

// TestFetchIssues_PaginatesAllPages verifies that all pages are fetched and concatenated.
func TestFetchIssues_PaginatesAllPages(t *testing.T) {
	var afterValues []interface{}
	pages := []string{
		issuesPageResponse([]string{issueNodeJSON("issue-1", "ABC-1", "First issue")}, true, "cursor-1"),
		issuesPageResponse([]string{
			issueNodeJSON("issue-2", "ABC-2", "Second issue"),
			issueNodeJSON("issue-3", "ABC-3", "Third issue"),
		}, false, "cursor-2"),
	}

	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		variables, _ := reqBody["variables"].(map[string]interface{})
		afterValues = append(afterValues, variables["after"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pages[requestCount]))
		requestCount++
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})

	issues, err := client.FetchIssues(context.Background(), FetchIssuesParams{First: 2})
	if err != nil {
		t.Fatalf("FetchIssues() error: %v", err)
	}

	if requestCount != 2 {
		t.Fatalf("Expected 2 requests, got %d", requestCount)
	}
	if afterValues[0] != nil {
		t.Errorf("First request after = %#v, want nil", afterValues[0])
	}
	if afterValues[1] != "cursor-1" {
		t.Errorf("Second request after = %#v, want %q", afterValues[1], "cursor-1")
	}
	if len(issues) != 3 {
		t.Fatalf("Fetched issues = %d, want 3", len(issues))
	}
	if issues[0].ID != "issue-1" || issues[1].ID != "issue-2" || issues[2].ID != "issue-3" {
		t.Errorf("Fetched issues order = [%s, %s, %s], want issue-1, issue-2, issue-3",
			issues[0].ID, issues[1].ID, issues[2].ID)
	}
}

// TestFetchIssues_ProgressCallback verifies progress updates per page.
func TestFetchIssues_ProgressCallback(t *testing.T) {
	server, _ := newTestServer(t,
		issuesPageResponse([]string{issueNodeJSON("issue-1", "ABC-1", "First issue")}, true, "cursor-1"),
		issuesPageResponse([]string{
			issueNodeJSON("issue-2", "ABC-2", "Second issue"),
			issueNodeJSON("issue-3", "ABC-3", "Third issue"),
		}, false, "cursor-2"),
	)
	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})

	var progressCalls []IssueFetchProgress
	_, err := client.FetchIssues(context.Background(), FetchIssuesParams{
		First: 2,
		OnProgress: func(progress IssueFetchProgress) {
			progressCalls = append(progressCalls, progress)
		},
	})
	if err != nil {
		t.Fatalf("FetchIssues() error: %v", err)
	}

	if len(progressCalls) != 2 {
		t.Fatalf("Progress calls = %d, want 2", len(progressCalls))
	}
	if progressCalls[0] != (IssueFetchProgress{Page: 1, Fetched: 1}) {
		t.Errorf("First progress = %+v, want Page=1 Fetched=1", progressCalls[0])
	}
	if progressCalls[1] != (IssueFetchProgress{Page: 2, Fetched: 3}) {
		t.Errorf("Second progress = %+v, want Page=2 Fetched=3", progressCalls[1])
	}
}

func TestFetchIssues_MapsFields(t *testing.T) {
	server, _ := newTestServer(t,
		issuesPageResponse([]string{issueNodeJSON("issue-1", "ABC-1", "Login bug")}, false, ""),
	)
	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})

	issues, err := client.FetchIssues(context.Background(), FetchIssuesParams{})
	if err != nil {
		t.Fatalf("FetchIssues() error: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(issues))
	}

	got := issues[0]
	if got.StateType != StateTypeUnstarted || got.State != "Todo" {
		t.Errorf("state = %q/%q, want Todo/unstarted", got.State, got.StateType)
	}
	if got.Assignee != "Ada" || got.AssigneeID != "user-1" {
		t.Errorf("assignee = %q/%q, want Ada/user-1", got.Assignee, got.AssigneeID)
	}
	if got.TeamName != "Engineering" {
		t.Errorf("TeamName = %q, want Engineering", got.TeamName)
	}
	if len(got.Labels) != 1 || got.Labels[0].Name != "Bug" {
		t.Errorf("Labels = %+v, want [Bug]", got.Labels)
	}
	if want := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC); !got.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %s, want %s", got.UpdatedAt, want)
	}
	if got.Parent != nil {
		t.Errorf("Parent = %+v, want nil", got.Parent)
	}
}

func TestFetchIssueByID(t *testing.T) {
	server, _ := newTestServer(t, fmt.Sprintf(`{"data": {"issue": %s}}`, issueNodeJSON("issue-9", "ABC-9", "Nine")))
	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})

	issue, err := client.FetchIssueByID(context.Background(), "ABC-9")
	if err != nil {
		t.Fatalf("FetchIssueByID() error: %v", err)
	}
	if issue.ID != "issue-9" || issue.Identifier != "ABC-9" {
		t.Errorf("issue = %s/%s, want issue-9/ABC-9", issue.ID, issue.Identifier)
	}
}

func TestListComments_Paginates(t *testing.T) {
	page := func(id string, next bool) string {
		return fmt.Sprintf(`{"data": {"issue": {"id": "issue-1", "comments": {
			"nodes": [{"id": %q, "body": "hi", "createdAt": "2025-01-01T00:00:00Z", "updatedAt": "2025-01-01T00:00:00Z",
				"user": {"id": "u1", "name": "Ada", "displayName": "ada", "email": "ada@example.com", "isMe": false}}],
			"pageInfo": {"hasNextPage": %t, "endCursor": "c"}}}}}`, id, next)
	}
	server, count := newTestServer(t, page("c-1", true), page("c-2", false))
	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})

	comments, err := client.ListComments(context.Background(), "ABC-1")
	if err != nil {
		t.Fatalf("ListComments() error: %v", err)
	}
	if *count != 2 {
		t.Errorf("requests = %d, want 2", *count)
	}
	if len(comments) != 2 || comments[0].ID != "c-1" || comments[1].ID != "c-2" {
		t.Fatalf("comments = %+v, want c-1, c-2", comments)
	}
	if comments[0].IssueID != "issue-1" || comments[0].Author.Name != "Ada" {
		t.Errorf("comment[0] = %+v", comments[0])
	}
}

func TestRateLimitTransport_429(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})
	_, err := client.ListTeams(context.Background())
	if err == nil {
		t.Fatal("ListTeams() error = nil, want rate limit error")
	}
	if !IsRateLimited(err) {
		t.Fatalf("IsRateLimited(%v) = false, want true", err)
	}

	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("errors.As(*RateLimitError) failed for %v", err)
	}
	if rlErr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %s, want 7s", rlErr.RetryAfter)
	}
}

func TestRateLimitTransport_400WithCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors": [{"message": "Rate limit exceeded", "extensions": {"code": "RATELIMITED"}}]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})
	_, err := client.GetCurrentUser(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("GetCurrentUser() error = %v, want ErrRateLimited", err)
	}
}

func TestRateLimitTransport_OtherErrorsPassThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors": [{"message": "Entity not found", "extensions": {"code": "INVALID_INPUT"}}]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})
	_, err := client.FetchIssueByID(context.Background(), "missing")
	if err == nil {
		t.Fatal("FetchIssueByID() error = nil, want error")
	}
	if IsRateLimited(err) {
		t.Errorf("IsRateLimited(%v) = true, want false", err)
	}
	if !strings.Contains(err.Error(), "Entity not found") {
		t.Errorf("error = %v, want body to be preserved", err)
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "typed", err: &RateLimitError{StatusCode: 429}, want: true},
		{name: "wrapped", err: fmt.Errorf("list teams: %w", &RateLimitError{StatusCode: 429}), want: true},
		{name: "graphql code in message", err: errors.New("RATELIMITED: too many requests"), want: true},
		{name: "other", err: errors.New("connection refused"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimited(tt.err); got != tt.want {
				t.Errorf("IsRateLimited() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateIssue_SuccessFalse(t *testing.T) {
	server, _ := newTestServer(t, fmt.Sprintf(`{"data": {"issueCreate": {"success": false, "issue": %s}}}`,
		issueNodeJSON("issue-1", "ABC-1", "x")))
	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})

	_, err := client.CreateIssue(context.Background(), CreateIssueInput{TeamID: "team-1", Title: "x"})
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("CreateIssue() error = %v, want ErrOperationFailed", err)
	}
}

func TestUpdateIssue(t *testing.T) {
	var variables map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&reqBody)
		variables, _ = reqBody["variables"].(map[string]interface{})
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"data": {"issueUpdate": {"success": true, "issue": %s}}}`,
			issueNodeJSON("issue-1", "ABC-1", "Renamed"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})
	title := "Renamed"
	issue, err := client.UpdateIssue(context.Background(), "ABC-1", UpdateIssueInput{Title: &title})
	if err != nil {
		t.Fatalf("UpdateIssue() error: %v", err)
	}
	if issue.Title != "Renamed" {
		t.Errorf("Title = %q, want Renamed", issue.Title)
	}
	if variables["id"] != "ABC-1" {
		t.Errorf("id variable = %v, want ABC-1", variables["id"])
	}
	input, _ := variables["input"].(map[string]interface{})
	if !reflect.DeepEqual(input, map[string]interface{}{"title": "Renamed"}) {
		t.Errorf("input = %#v, want only title", input)
	}
}

func TestBuildUpdateInput(t *testing.T) {
	empty := ""
	stateID := "state-2"
	priority := 1
	labels := []string{}

	got := buildUpdateInput(UpdateIssueInput{
		StateID:    &stateID,
		AssigneeID: &empty,
		Priority:   &priority,
		LabelIDs:   &labels,
		ParentID:   &empty,
	})

	if got["stateId"] != graphql.ID("state-2") {
		t.Errorf("stateId = %#v", got["stateId"])
	}
	if v, ok := got["assigneeId"].(*graphql.ID); !ok || v != nil {
		t.Errorf("assigneeId = %#v, want typed nil to unassign", got["assigneeId"])
	}
	if v, ok := got["parentId"].(*graphql.ID); !ok || v != nil {
		t.Errorf("parentId = %#v, want typed nil to clear parent", got["parentId"])
	}
	if ids, ok := got["labelIds"].([]graphql.ID); !ok || len(ids) != 0 {
		t.Errorf("labelIds = %#v, want empty slice", got["labelIds"])
	}
	if _, ok := got["title"]; ok {
		t.Error("title should be omitted when not set")
	}
}

func TestBuildCreateInput_OmitsEmpty(t *testing.T) {
	got := buildCreateInput(CreateIssueInput{TeamID: "team-1", Title: "New", ParentID: "parent-1"})
	want := IssueCreateInput{
		"teamId":   graphql.ID("team-1"),
		"title":    graphql.String("New"),
		"parentId": graphql.ID("parent-1"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildCreateInput() = %#v, want %#v", got, want)
	}
}

func TestMergeLabels(t *testing.T) {
	workspace := []IssueLabel{{ID: "1", Name: "Bug"}, {ID: "2", Name: "Feature"}}
	team := []IssueLabel{{ID: "2", Name: "Enhancement"}, {ID: "3", Name: "Alpha"}}

	got := mergeLabels(workspace, team)
	want := []IssueLabel{{ID: "3", Name: "Alpha"}, {ID: "1", Name: "Bug"}, {ID: "2", Name: "Enhancement"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mergeLabels() = %+v, want %+v", got, want)
	}
}

func TestListWorkflowStates_SortedByPosition(t *testing.T) {
	server, _ := newTestServer(t, `{"data": {"team": {"states": {"nodes": [
		{"id": "s2", "name": "Done", "type": "completed", "position": 3},
		{"id": "s1", "name": "Todo", "type": "unstarted", "position": 1}
	]}}}}`)
	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})

	states, err := client.ListWorkflowStates(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("ListWorkflowStates() error: %v", err)
	}
	if len(states) != 2 || states[0].ID != "s1" || states[1].TeamID != "team-1" {
		t.Errorf("states = %+v", states)
	}
}

func TestListTeams_PaginatesWithCursor(t *testing.T) {
	pages := []string{
		`{"data": {"teams": {"nodes": [{"id": "t1", "key": "ENG", "name": "Engineering"}],
			"pageInfo": {"hasNextPage": true, "endCursor": "cursor-1"}}}}`,
		`{"data": {"teams": {"nodes": [{"id": "t2", "key": "OPS", "name": "Operations"}],
			"pageInfo": {"hasNextPage": false, "endCursor": "cursor-2"}}}}`,
	}
	var afters []interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if !strings.Contains(body.Query, "teams(first: $first, after: $after)") {
			t.Errorf("query = %q, want paginated teams connection", body.Query)
		}
		if first, _ := body.Variables["first"].(float64); first != metadataPageSize {
			t.Errorf("first = %v, want %d", body.Variables["first"], metadataPageSize)
		}
		afters = append(afters, body.Variables["after"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pages[len(afters)-1]))
	}))
	defer server.Close()
	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})

	teams, err := client.ListTeams(context.Background())
	if err != nil {
		t.Fatalf("ListTeams() error: %v", err)
	}
	if len(teams) != 2 || teams[0].Key != "ENG" || teams[1].Key != "OPS" {
		t.Fatalf("teams = %+v, want ENG, OPS", teams)
	}
	if want := []interface{}{nil, "cursor-1"}; !reflect.DeepEqual(afters, want) {
		t.Errorf("after cursors = %v, want %v", afters, want)
	}
}

func TestListTeamLabels_StopsOnEmptyCursor(t *testing.T) {
	server, count := newTestServer(t, `{"data": {"team": {"labels": {
		"nodes": [{"id": "l1", "name": "Bug", "color": "#f00"}],
		"pageInfo": {"hasNextPage": true, "endCursor": ""}}}}}`)
	client := NewClient(ClientConfig{Token: "test-token", Endpoint: server.URL})

	labels, err := client.ListTeamLabels(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("ListTeamLabels() error: %v", err)
	}
	if *count != 1 {
		t.Errorf("requests = %d, want 1", *count)
	}
	if len(labels) != 1 || labels[0].ID != "l1" {
		t.Errorf("labels = %+v", labels)
	}
}
