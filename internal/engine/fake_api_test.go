package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roeyazroel/linear-sync/internal/linearapi"
)

var errRemote = errors.New("remote exploded")

// fakeAPI records calls and serves canned data. Gates, when set, block the
// matching call until closed.
type fakeAPI struct {
	mu sync.Mutex

	issues     []linearapi.Issue
	delta      []linearapi.Issue
	fetchErr   error
	deltaErr   error
	deltaGate  chan struct{}
	fullCalls  []linearapi.FetchIssuesParams
	deltaCalls []linearapi.FetchIssuesParams

	detail      map[string]linearapi.Issue
	detailCalls int

	comments     []linearapi.Comment
	commentCalls int

	teams      []linearapi.Team
	teamsErr   error
	teamsGate  chan struct{}
	teamsCalls int

	states   []linearapi.WorkflowState
	labels   []linearapi.IssueLabel
	labelErr error
	projects []linearapi.Project
	users    []linearapi.User
	viewer   linearapi.User

	metadataCalls map[string]int

	updateErr     error
	updateCalls   []string
	createCalls   int
	commentPosts  []linearapi.CreateCommentInput
	archiveCalls  int
	unarchived    []string
	rateLimitLeft int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		detail:        make(map[string]linearapi.Issue),
		metadataCalls: make(map[string]int),
	}
}

func (f *fakeAPI) note(name string) {
	f.mu.Lock()
	f.metadataCalls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metadataCalls[name]
}

func (f *fakeAPI) counts() (full, delta int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fullCalls), len(f.deltaCalls)
}

func (f *fakeAPI) lastDelta() linearapi.FetchIssuesParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deltaCalls[len(f.deltaCalls)-1]
}

func wait(gate chan struct{}) {
	if gate != nil {
		<-gate
	}
}

func (f *fakeAPI) FetchIssues(_ context.Context, params linearapi.FetchIssuesParams) ([]linearapi.Issue, error) {
	if _, isDelta := params.Filter["updatedAt"]; isDelta {
		f.mu.Lock()
		f.deltaCalls = append(f.deltaCalls, params)
		gate, delta, err := f.deltaGate, f.delta, f.deltaErr
		f.mu.Unlock()
		wait(gate)
		if err != nil {
			return nil, err
		}
		return append([]linearapi.Issue(nil), delta...), nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullCalls = append(f.fullCalls, params)
	if f.rateLimitLeft > 0 {
		f.rateLimitLeft--
		return nil, &linearapi.RateLimitError{StatusCode: 429}
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if params.OnProgress != nil {
		params.OnProgress(linearapi.IssueFetchProgress{Page: 1, Fetched: len(f.issues)})
	}
	return append([]linearapi.Issue(nil), f.issues...), nil
}

func (f *fakeAPI) FetchIssueByID(_ context.Context, id string) (linearapi.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	issue, ok := f.detail[id]
	if !ok {
		return linearapi.Issue{}, errors.New("issue not found")
	}
	return issue, nil
}

func (f *fakeAPI) ListComments(_ context.Context, _ string) ([]linearapi.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentCalls++
	return append([]linearapi.Comment(nil), f.comments...), nil
}

func (f *fakeAPI) ListTeams(context.Context) ([]linearapi.Team, error) {
	f.mu.Lock()
	f.teamsCalls++
	gate, teams, err := f.teamsGate, f.teams, f.teamsErr
	f.mu.Unlock()
	wait(gate)
	return teams, err
}

func (f *fakeAPI) ListProjects(_ context.Context, teamID string) ([]linearapi.Project, error) {
	f.note("projects:" + teamID)
	return f.projects, nil
}

func (f *fakeAPI) ListAllProjects(context.Context) ([]linearapi.Project, error) {
	f.note("projects")
	return f.projects, nil
}

func (f *fakeAPI) ListUsers(_ context.Context, teamID string) ([]linearapi.User, error) {
	f.note("members:" + teamID)
	return f.users, nil
}

func (f *fakeAPI) GetCurrentUser(context.Context) (linearapi.User, error) {
	f.note("viewer")
	return f.viewer, nil
}

func (f *fakeAPI) ListWorkflowStates(_ context.Context, teamID string) ([]linearapi.WorkflowState, error) {
	f.note("states:" + teamID)
	return f.states, nil
}

func (f *fakeAPI) ListIssueLabels(_ context.Context, teamID string) ([]linearapi.IssueLabel, error) {
	f.note("labels:" + teamID)
	return f.labels, f.labelErr
}

func (f *fakeAPI) ListWorkspaceLabels(context.Context) ([]linearapi.IssueLabel, error) {
	f.note("labels:")
	return f.labels, f.labelErr
}

func (f *fakeAPI) CreateIssue(_ context.Context, input linearapi.CreateIssueInput) (linearapi.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return linearapi.Issue{ID: "new-id", Identifier: "ENG-99", Title: input.Title, TeamID: input.TeamID}, nil
}

func (f *fakeAPI) UpdateIssue(_ context.Context, id string, input linearapi.UpdateIssueInput) (linearapi.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, id)
	if f.updateErr != nil {
		return linearapi.Issue{}, f.updateErr
	}
	issue := linearapi.Issue{ID: "uuid-" + id, Identifier: id}
	if input.StateID != nil {
		issue.StateID = *input.StateID
	}
	return issue, nil
}

func (f *fakeAPI) CreateComment(_ context.Context, input linearapi.CreateCommentInput) (linearapi.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentPosts = append(f.commentPosts, input)
	return linearapi.Comment{ID: "c-new", Body: input.Body, IssueID: input.IssueID}, nil
}

func (f *fakeAPI) ArchiveIssue(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archiveCalls++
	return nil
}

func (f *fakeAPI) UnarchiveIssue(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unarchived = append(f.unarchived, id)
	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
