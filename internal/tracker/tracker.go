// Package tracker defines the issue-tracker RPC contract the issue cache is built on.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PageSize is the number of project items requested per page.
const PageSize = 100

var ErrNotFound = errors.New("not found")

// Provider identifies a tracker backend.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGitLab Provider = "gitlab"
)

func (p Provider) IsValid() bool {
	return p == ProviderGitHub || p == ProviderGitLab
}

// Item is a project item as returned by the tracker.
type Item struct {
	ID        string
	Title     string
	Assignees []string
	Repo      string
	Number    int
	Status    string
	UpdatedAt time.Time
}

// Reference returns the repo#number form, or "" for items without issue content.
func (i Item) Reference() string {
	if i.Repo == "" || i.Number == 0 {
		return ""
	}
	return fmt.Sprintf("%s#%d", i.Repo, i.Number)
}

type ItemPage struct {
	Items      []Item
	NextCursor string
}

type StatusOption struct {
	ID   string
	Name string
}

type StatusField struct {
	FieldID string
	Options []StatusOption
}

// ProjectItem links an issue to a project it is attached to.
type ProjectItem struct {
	ProjectID string
	ItemID    string
}

type IssueRef struct {
	ID           string
	ProjectItems []ProjectItem
}

// ItemIDIn returns the item id of the issue within projectID.
func (r IssueRef) ItemIDIn(projectID string) (string, bool) {
	for _, pi := range r.ProjectItems {
		if pi.ProjectID == projectID {
			return pi.ItemID, true
		}
	}
	return "", false
}

// Client is the black-box tracker RPC surface. Implementations return ErrNotFound
// (possibly wrapped) when a lookup has no match.
type Client interface {
	// ListProjectItems returns one page of items. An empty cursor requests the first page
	// and an empty NextCursor marks the last one.
	ListProjectItems(ctx context.Context, projectID, cursor string) (*ItemPage, error)
	GetStatusFieldOptions(ctx context.Context, projectID string) (*StatusField, error)
	FindIssueByReference(ctx context.Context, owner, repo string, number int) (*IssueRef, error)
	AttachIssueToProject(ctx context.Context, projectID, issueID string) (string, error)
	GetItemStatus(ctx context.Context, itemID string) (string, error)
	SetItemFieldValue(ctx context.Context, projectID, itemID, fieldID, optionID string) error
}

// Credentials configure a tracker client and the project the cache follows.
type Credentials struct {
	Provider Provider `json:"provider"`
	Token    string   `json:"token"`
	Owner    string   `json:"owner"`
	// Project is the GitHub project number or the GitLab group path.
	Project string `json:"project"`
	BaseURL string `json:"base_url,omitempty"`
}

func (c Credentials) Complete() bool {
	return c.Provider.IsValid() && c.Token != "" && c.Owner != "" && c.Project != ""
}

// APIError is returned when the tracker answers with a non-success status or an
// error payload.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tracker API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tracker API error: %s", e.Message)
}
