package engine

import "github.com/roeyazroel/linear-sync/internal/filter"

const (
	issuesPrefix   = "issues:"
	issuePrefix    = "issue:"
	commentsPrefix = "comments:"
	teamsKey       = "teams"
	statesPrefix   = "states:"
	projectsKey    = "projects"
	labelsPrefix   = "labels:"
	membersPrefix  = "members:"
	viewerKey      = "viewer"
)

// IssuesKey is the cache key of the issue list for c.
func IssuesKey(c filter.Criteria) string { return issuesPrefix + c.Key() }

// IssueKey is the cache key of a single issue.
func IssueKey(id string) string { return issuePrefix + id }

// CommentsKey is the cache key of an issue's comments.
func CommentsKey(issueID string) string { return commentsPrefix + issueID }

// StatesKey is the cache key of a team's workflow states.
func StatesKey(teamID string) string { return statesPrefix + teamID }

// ProjectsKey is the cache key of a team's projects, or of all projects for an empty teamID.
func ProjectsKey(teamID string) string {
	if teamID == "" {
		return projectsKey
	}
	return projectsKey + ":" + teamID
}

// LabelsKey is the cache key of the labels usable in a team.
func LabelsKey(teamID string) string { return labelsPrefix + teamID }

// MembersKey is the cache key of a team's members.
func MembersKey(teamID string) string { return membersPrefix + teamID }

// InvalidationPrefixes maps the public family names accepted by InvalidateCache callers.
var InvalidationPrefixes = map[string]string{
	"issues":   issuesPrefix,
	"issue":    issuePrefix,
	"comments": commentsPrefix,
	"teams":    teamsKey,
	"states":   statesPrefix,
	"projects": projectsKey,
	"labels":   labelsPrefix,
	"members":  membersPrefix,
	"viewer":   viewerKey,
}
