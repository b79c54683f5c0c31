package tracker

import (
	"context"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

type gitLabClient struct {
	client *gitlab.Client
}

// NewGitLabClient builds a Client over a single GitLab instance. An empty
// baseURL targets gitlab.com.
func NewGitLabClient(baseURL, token string) (Client, error) {
	var (
		client *gitlab.Client
		err    error
	)
	if baseURL == "" {
		client, err = gitlab.NewClient(token)
	} else {
		apiURL := strings.TrimSuffix(baseURL, "/") + "/api/v4"
		client, err = gitlab.NewClient(token, gitlab.WithBaseURL(apiURL))
	}
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &gitLabClient{client: client}, nil
}

func (c *gitLabClient) GetIssue(ctx context.Context, projectKey string, issueIID int64) (*Issue, error) {
	gitlabIssue, _, err := c.client.Issues.GetIssue(
		projectKey,
		issueIID,
		nil,
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching issue from gitlab: %w", err)
	}

	return mapIssue(gitlabIssue), nil
}

func (c *gitLabClient) ListComments(ctx context.Context, projectKey string, issueIID int64) ([]Comment, error) {
	notes, _, err := c.client.Notes.ListIssueNotes(
		projectKey,
		issueIID,
		&gitlab.ListIssueNotesOptions{
			Sort:    gitlab.Ptr("asc"),
			OrderBy: gitlab.Ptr("created_at"),
		},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching issue notes from gitlab: %w", err)
	}

	var comments []Comment
	for _, n := range notes {
		if n == nil || n.System {
			// System notes are assignment/label churn, not conversation.
			continue
		}

		comment := Comment{
			AuthorUsername: n.Author.Username,
			AuthorName:     n.Author.Name,
			Body:           n.Body,
		}
		if n.CreatedAt != nil {
			comment.CreatedAt = *n.CreatedAt
		}

		comments = append(comments, comment)
	}

	return comments, nil
}

func (c *gitLabClient) ListProjectMembers(ctx context.Context, projectKey string) ([]Member, error) {
	gitlabMembers, _, err := c.client.ProjectMembers.ListAllProjectMembers(
		projectKey,
		nil,
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching project members from gitlab: %w", err)
	}

	var members []Member
	for _, m := range gitlabMembers {
		if m == nil {
			continue
		}
		members = append(members, Member{
			Username: m.Username,
			Name:     m.Name,
		})
	}

	return members, nil
}

func mapIssue(gitlabIssue *gitlab.Issue) *Issue {
	var assignees []string
	for _, a := range gitlabIssue.Assignees {
		if a != nil {
			assignees = append(assignees, a.Username)
		}
	}

	var author string
	if gitlabIssue.Author != nil {
		author = gitlabIssue.Author.Username
	}

	var labels []string
	for _, l := range gitlabIssue.Labels {
		labels = append(labels, l)
	}

	return &Issue{
		Title:       gitlabIssue.Title,
		Description: gitlabIssue.Description,
		Labels:      labels,
		Assignees:   assignees,
		Author:      author,
		WebURL:      gitlabIssue.WebURL,
	}
}
