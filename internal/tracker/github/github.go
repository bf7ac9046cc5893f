// Package github implements the tracker contract on GitHub Projects (v2) through the
// GraphQL API.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"basegraph.app/standup/internal/tracker"
)

const DefaultEndpoint = "https://api.github.com/graphql"

// statusFieldName is the single-select field holding an item's board column.
const statusFieldName = "Status"

// notFoundPrefix starts every GitHub error message for an unresolvable node.
const notFoundPrefix = "Could not resolve to"

// Client implements tracker.Client for one GitHub organization.
type Client struct {
	owner string
	gql   *githubv4.Client
}

var _ tracker.Client = (*Client)(nil)

type options struct {
	endpoint string
	base     http.RoundTripper
}

type Option func(*options)

func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		if endpoint != "" {
			o.endpoint = endpoint
		}
	}
}

// WithTransport sets the round tripper requests go through after authentication.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

func New(token, owner string, opts ...Option) *Client {
	o := options{endpoint: DefaultEndpoint, base: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	hc := &http.Client{
		Timeout: 30 * time.Second,
		Transport: statusTransport{base: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   o.base,
		}},
	}
	return &Client{owner: owner, gql: githubv4.NewEnterpriseClient(o.endpoint, hc)}
}

// statusTransport turns non-200 answers into *tracker.APIError so callers keep the
// status code.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return nil, &tracker.APIError{StatusCode: resp.StatusCode, Message: string(body)}
}

// classify maps GraphQL and transport failures onto the tracker error contract.
func classify(err error) error {
	var apiErr *tracker.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case strings.HasPrefix(err.Error(), notFoundPrefix):
		return fmt.Errorf("%s: %w", err, tracker.ErrNotFound)
	default:
		return err
	}
}

// ProjectID looks up the node id of an organization project by its number.
func (c *Client) ProjectID(ctx context.Context, number int) (string, error) {
	var q struct {
		Organization *struct {
			ProjectV2 *struct {
				ID string
			} `graphql:"projectV2(number: $number)"`
		} `graphql:"organization(login: $owner)"`
	}
	vars := map[string]any{
		"owner":  githubv4.String(c.owner),
		"number": githubv4.Int(number),
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return "", fmt.Errorf("get project id: %w", classify(err))
	}
	if q.Organization == nil || q.Organization.ProjectV2 == nil {
		return "", fmt.Errorf("project %d of %s: %w", number, c.owner, tracker.ErrNotFound)
	}
	return q.Organization.ProjectV2.ID, nil
}

type ghItem struct {
	ID      string
	Content struct {
		Issue struct {
			Title     string
			Number    int
			Assignees struct {
				Nodes []struct {
					Login string
				}
			} `graphql:"assignees(first: 10)"`
			Repository struct {
				Name string
			}
		} `graphql:"... on Issue"`
	}
	Status *struct {
		SingleSelect struct {
			Name      string
			UpdatedAt time.Time
		} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
	} `graphql:"status: fieldValueByName(name: $statusField)"`
}

func (c *Client) ListProjectItems(ctx context.Context, projectID, cursor string) (*tracker.ItemPage, error) {
	var q struct {
		Node *struct {
			ProjectV2 struct {
				Items struct {
					PageInfo struct {
						HasNextPage bool
						EndCursor   string
					}
					Nodes []ghItem
				} `graphql:"items(first: $first, after: $cursor)"`
			} `graphql:"... on ProjectV2"`
		} `graphql:"node(id: $projectID)"`
	}
	var after *githubv4.String
	if cursor != "" {
		after = githubv4.NewString(githubv4.String(cursor))
	}
	vars := map[string]any{
		"projectID":   githubv4.ID(projectID),
		"first":       githubv4.Int(tracker.PageSize),
		"cursor":      after,
		"statusField": githubv4.String(statusFieldName),
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("list project items: %w", classify(err))
	}
	if q.Node == nil {
		return nil, fmt.Errorf("project %s: %w", projectID, tracker.ErrNotFound)
	}

	items := q.Node.ProjectV2.Items
	page := &tracker.ItemPage{Items: make([]tracker.Item, 0, len(items.Nodes))}
	for _, n := range items.Nodes {
		// null entries decode as the zero item
		if n.ID == "" {
			continue
		}
		page.Items = append(page.Items, toItem(n))
	}
	if items.PageInfo.HasNextPage {
		page.NextCursor = items.PageInfo.EndCursor
	}
	return page, nil
}

func toItem(n ghItem) tracker.Item {
	issue := n.Content.Issue
	item := tracker.Item{
		ID:     n.ID,
		Title:  issue.Title,
		Number: issue.Number,
		Repo:   issue.Repository.Name,
	}
	for _, a := range issue.Assignees.Nodes {
		item.Assignees = append(item.Assignees, a.Login)
	}
	if n.Status != nil {
		item.Status = n.Status.SingleSelect.Name
		item.UpdatedAt = n.Status.SingleSelect.UpdatedAt
	}
	return item
}

func (c *Client) GetStatusFieldOptions(ctx context.Context, projectID string) (*tracker.StatusField, error) {
	var q struct {
		Node *struct {
			ProjectV2 struct {
				Field struct {
					SingleSelect struct {
						ID      string
						Options []struct {
							ID   string
							Name string
						}
					} `graphql:"... on ProjectV2SingleSelectField"`
				} `graphql:"field(name: $statusField)"`
			} `graphql:"... on ProjectV2"`
		} `graphql:"node(id: $projectID)"`
	}
	vars := map[string]any{
		"projectID":   githubv4.ID(projectID),
		"statusField": githubv4.String(statusFieldName),
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("get status field: %w", classify(err))
	}
	if q.Node == nil || q.Node.ProjectV2.Field.SingleSelect.ID == "" {
		return nil, fmt.Errorf("status field of project %s: %w", projectID, tracker.ErrNotFound)
	}

	sel := q.Node.ProjectV2.Field.SingleSelect
	field := &tracker.StatusField{FieldID: sel.ID}
	for _, o := range sel.Options {
		field.Options = append(field.Options, tracker.StatusOption{ID: o.ID, Name: o.Name})
	}
	return field, nil
}

func (c *Client) FindIssueByReference(ctx context.Context, owner, repo string, number int) (*tracker.IssueRef, error) {
	if owner == "" {
		owner = c.owner
	}
	var q struct {
		Repository *struct {
			Issue *struct {
				ID           string
				ProjectItems struct {
					Nodes []struct {
						ID      string
						Project struct {
							ID string
						}
					}
				} `graphql:"projectItems(first: 20)"`
			} `graphql:"issue(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	vars := map[string]any{
		"owner":  githubv4.String(owner),
		"repo":   githubv4.String(repo),
		"number": githubv4.Int(number),
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("find issue %s/%s#%d: %w", owner, repo, number, classify(err))
	}
	if q.Repository == nil || q.Repository.Issue == nil {
		return nil, fmt.Errorf("issue %s/%s#%d: %w", owner, repo, number, tracker.ErrNotFound)
	}

	issue := q.Repository.Issue
	ref := &tracker.IssueRef{ID: issue.ID}
	for _, n := range issue.ProjectItems.Nodes {
		ref.ProjectItems = append(ref.ProjectItems, tracker.ProjectItem{ProjectID: n.Project.ID, ItemID: n.ID})
	}
	return ref, nil
}

func (c *Client) AttachIssueToProject(ctx context.Context, projectID, issueID string) (string, error) {
	var m struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID string
			}
		} `graphql:"addProjectV2ItemById(input: $input)"`
	}
	input := githubv4.AddProjectV2ItemByIdInput{
		ProjectID: githubv4.ID(projectID),
		ContentID: githubv4.ID(issueID),
	}
	if err := c.gql.Mutate(ctx, &m, input, nil); err != nil {
		return "", fmt.Errorf("attach issue: %w", classify(err))
	}
	if m.AddProjectV2ItemByID.Item.ID == "" {
		return "", &tracker.APIError{Message: "attach returned no item id"}
	}
	return m.AddProjectV2ItemByID.Item.ID, nil
}

func (c *Client) GetItemStatus(ctx context.Context, itemID string) (string, error) {
	var q struct {
		Node *struct {
			Item struct {
				Status *struct {
					SingleSelect struct {
						Name string
					} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
				} `graphql:"status: fieldValueByName(name: $statusField)"`
			} `graphql:"... on ProjectV2Item"`
		} `graphql:"node(id: $itemID)"`
	}
	vars := map[string]any{
		"itemID":      githubv4.ID(itemID),
		"statusField": githubv4.String(statusFieldName),
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return "", fmt.Errorf("get item status: %w", classify(err))
	}
	if q.Node == nil {
		return "", fmt.Errorf("item %s: %w", itemID, tracker.ErrNotFound)
	}
	if q.Node.Item.Status == nil {
		return "", nil
	}
	return q.Node.Item.Status.SingleSelect.Name, nil
}

func (c *Client) SetItemFieldValue(ctx context.Context, projectID, itemID, fieldID, optionID string) error {
	var m struct {
		UpdateProjectV2ItemFieldValue struct {
			ProjectV2Item struct {
				ID string
			} `graphql:"projectV2Item"`
		} `graphql:"updateProjectV2ItemFieldValue(input: $input)"`
	}
	input := githubv4.UpdateProjectV2ItemFieldValueInput{
		ProjectID: githubv4.ID(projectID),
		ItemID:    githubv4.ID(itemID),
		FieldID:   githubv4.ID(fieldID),
		Value: githubv4.ProjectV2FieldValue{
			SingleSelectOptionID: githubv4.NewString(githubv4.String(optionID)),
		},
	}
	if err := c.gql.Mutate(ctx, &m, input, nil); err != nil {
		return fmt.Errorf("set item field value: %w", classify(err))
	}
	return nil
}
