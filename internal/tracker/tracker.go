package tracker

import (
	"context"
	"strings"
	"time"
)

// Issue is the engine's view of an upstream tracker task. Only the parts
// the report pipeline consumes are mapped.
type Issue struct {
	Title       string
	Description string
	Labels      []string
	// Assignees are tracker usernames in assignment order.
	Assignees []string
	Author    string
	WebURL    string
}

// Comment is a human-authored note on an issue. System/service notes are
// filtered out by implementations before they get here.
type Comment struct {
	// AuthorUsername is the tracker login; AuthorName the profile display
	// name, which may be empty on some instances.
	AuthorUsername string
	AuthorName     string
	Body           string
	CreatedAt      time.Time
}

type Member struct {
	Username string
	Name     string
}

// Client reads issue context from the upstream tracker. All methods are
// pure reads; callers decide whether a failure degrades or aborts.
type Client interface {
	GetIssue(ctx context.Context, projectKey string, issueIID int64) (*Issue, error)
	ListComments(ctx context.Context, projectKey string, issueIID int64) ([]Comment, error)
	// ListProjectMembers returns the project's member roster. Callers cache
	// the result for the duration of a generation pass instead of querying
	// per comment.
	ListProjectMembers(ctx context.Context, projectKey string) ([]Member, error)
}

const priorityLabelPrefix = "priority::"

// Priority extracts the scoped priority label value ("priority::high" ->
// "high"). Empty when the issue carries no priority label.
func (i *Issue) Priority() string {
	for _, label := range i.Labels {
		if strings.HasPrefix(label, priorityLabelPrefix) {
			return strings.TrimPrefix(label, priorityLabelPrefix)
		}
	}
	return ""
}
