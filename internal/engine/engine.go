// Package engine is the read-through, write-invalidate layer between UI
// consumers and the Linear API.
//
// Reads go through getOrRefresh: a fresh cache hit returns immediately and,
// for collections with a sync marker, schedules one background delta refresh;
// a miss fetches through the retry executor; a failed refetch falls back to
// the expired value when one exists. Mutations call the API and then
// invalidate the affected key families.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/roeyazroel/linear-sync/internal/cache"
	"github.com/roeyazroel/linear-sync/internal/linearapi"
	"github.com/roeyazroel/linear-sync/internal/logger"
	"github.com/roeyazroel/linear-sync/internal/retry"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL  = 5 * time.Minute
	DefaultDetailTTL = time.Minute
	DefaultPageSize  = 50
)

// PersistPrefixes are the key families saved across restarts.
var PersistPrefixes = []string{issuesPrefix, teamsKey, statesPrefix, projectsKey}

// API is the subset of the Linear client the engine calls.
type API interface {
	ListTeams(ctx context.Context) ([]linearapi.Team, error)
	ListProjects(ctx context.Context, teamID string) ([]linearapi.Project, error)
	ListAllProjects(ctx context.Context) ([]linearapi.Project, error)
	ListUsers(ctx context.Context, teamID string) ([]linearapi.User, error)
	GetCurrentUser(ctx context.Context) (linearapi.User, error)
	ListWorkflowStates(ctx context.Context, teamID string) ([]linearapi.WorkflowState, error)
	ListIssueLabels(ctx context.Context, teamID string) ([]linearapi.IssueLabel, error)
	ListWorkspaceLabels(ctx context.Context) ([]linearapi.IssueLabel, error)
	FetchIssues(ctx context.Context, params linearapi.FetchIssuesParams) ([]linearapi.Issue, error)
	FetchIssueByID(ctx context.Context, id string) (linearapi.Issue, error)
	ListComments(ctx context.Context, issueID string) ([]linearapi.Comment, error)
	CreateIssue(ctx context.Context, input linearapi.CreateIssueInput) (linearapi.Issue, error)
	UpdateIssue(ctx context.Context, id string, input linearapi.UpdateIssueInput) (linearapi.Issue, error)
	CreateComment(ctx context.Context, input linearapi.CreateCommentInput) (linearapi.Comment, error)
	ArchiveIssue(ctx context.Context, id string) error
	UnarchiveIssue(ctx context.Context, id string) error
}

// Config tunes an Engine. Zero fields take defaults.
type Config struct {
	// CacheTTL applies to issue lists and team metadata.
	CacheTTL time.Duration
	// DetailTTL applies to single issues and comments.
	DetailTTL time.Duration
	PageSize  int
	// ServerQuery also sends free-text queries to Linear to shrink payloads.
	ServerQuery bool
	Retry       *retry.Executor
	Now         func() time.Time
	// OnStale is called when an expired value is served because its refetch failed.
	OnStale func(key string, err error)
	// OnProgress is called after each page of an issue fetch.
	OnProgress func(linearapi.IssueFetchProgress)
}

// Engine serves cached Linear data. It is safe for concurrent use.
type Engine struct {
	api   API
	store *cache.Store
	cfg   Config
	now   func() time.Time

	flight singleflight.Group

	mu         sync.Mutex
	markers    map[string]time.Time
	refreshing map[string]bool
	background sync.WaitGroup
}

// New creates an Engine over api and store. The store should be created with
// PersistPrefixes and loaded before use.
func New(api API, store *cache.Store, cfg Config) *Engine {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.DetailTTL == 0 {
		cfg.DetailTTL = DefaultDetailTTL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.New(retry.DefaultBaseDelay)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		api:        api,
		store:      store,
		cfg:        cfg,
		now:        now,
		markers:    make(map[string]time.Time),
		refreshing: make(map[string]bool),
	}
}

// Wait blocks until every scheduled background refresh has finished.
func (e *Engine) Wait() {
	e.background.Wait()
}

// Close waits for background work. The store stays usable.
func (e *Engine) Close() error {
	e.Wait()
	return nil
}

// ClearCache drops every cached entry and sync marker.
func (e *Engine) ClearCache() {
	e.store.Clear()
	e.mu.Lock()
	e.markers = make(map[string]time.Time)
	e.mu.Unlock()
	logger.Info("engine: cache cleared")
}

// InvalidateCache removes every key starting with prefix; an empty prefix
// removes everything. It returns the number of removed entries.
func (e *Engine) InvalidateCache(prefix string) int {
	n := e.store.InvalidateByPrefix(prefix)
	e.mu.Lock()
	for key := range e.markers {
		if strings.HasPrefix(key, prefix) {
			delete(e.markers, key)
		}
	}
	e.mu.Unlock()
	logger.Debug("engine: invalidated prefix=%q removed=%d", prefix, n)
	return n
}

// CacheKeys lists the keys currently cached.
func (e *Engine) CacheKeys() []string {
	return e.store.Keys()
}

func (e *Engine) deleteKey(key string) {
	e.store.Delete(key)
	e.mu.Lock()
	delete(e.markers, key)
	e.mu.Unlock()
}

// marker returns the sync marker for key, falling back to the one persisted
// with the cache entry after a restart.
func (e *Engine) marker(key string) (time.Time, bool) {
	e.mu.Lock()
	m, ok := e.markers[key]
	e.mu.Unlock()
	if ok {
		return m, true
	}
	return e.store.LastSyncMarker(key)
}

func (e *Engine) setMarker(key string, m time.Time) {
	e.mu.Lock()
	e.markers[key] = m
	e.mu.Unlock()
}
