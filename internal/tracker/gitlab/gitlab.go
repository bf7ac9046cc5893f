// Package gitlab implements the tracker contract on a GitLab group board whose columns are
// scoped "Status::<name>" labels.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"basegraph.app/standup/internal/tracker"
)

// StatusLabelPrefix scopes the labels that act as board columns. Scoped labels are
// mutually exclusive, so adding one replaces the previous status.
const StatusLabelPrefix = "Status::"

// statusFieldID stands in for the project field id the tracker contract carries.
const statusFieldID = "status-label"

// Client implements tracker.Client for one GitLab group. The group path doubles as the
// project id of the contract and item ids are "<project id>:<issue iid>".
type Client struct {
	api   *gitlab.Client
	group string
}

var _ tracker.Client = (*Client)(nil)

func New(token, group, baseURL string) (*Client, error) {
	var (
		api *gitlab.Client
		err error
	)
	if baseURL == "" {
		api, err = gitlab.NewClient(token)
	} else {
		apiURL := strings.TrimSuffix(baseURL, "/") + "/api/v4"
		api, err = gitlab.NewClient(token, gitlab.WithBaseURL(apiURL))
	}
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &Client{api: api, group: group}, nil
}

func (c *Client) ListProjectItems(ctx context.Context, projectID, cursor string) (*tracker.ItemPage, error) {
	var page int64 = 1
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		page = n
	}

	opts := &gitlab.ListGroupIssuesOptions{
		ListOptions: gitlab.ListOptions{
			Page:    page,
			PerPage: tracker.PageSize,
		},
		OrderBy: gitlab.Ptr("updated_at"),
	}
	issues, resp, err := c.api.Issues.ListGroupIssues(projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("listing issues of %s", projectID), resp, err)
	}

	result := &tracker.ItemPage{Items: make([]tracker.Item, 0, len(issues))}
	for _, issue := range issues {
		if issue == nil {
			continue
		}
		result.Items = append(result.Items, toItem(issue))
	}
	if resp != nil && resp.NextPage != 0 {
		result.NextCursor = strconv.FormatInt(resp.NextPage, 10)
	}
	return result, nil
}

func toItem(issue *gitlab.Issue) tracker.Item {
	item := tracker.Item{
		ID:     itemID(int64(issue.ProjectID), int64(issue.IID)),
		Title:  issue.Title,
		Number: int(issue.IID),
		Status: statusOf(issue.Labels),
	}
	if issue.References != nil {
		item.Repo = repoFromReference(issue.References.Full)
	}
	for _, a := range issue.Assignees {
		if a != nil {
			item.Assignees = append(item.Assignees, a.Username)
		}
	}
	if issue.UpdatedAt != nil {
		item.UpdatedAt = *issue.UpdatedAt
	}
	return item
}

// repoFromReference turns "group/sub/repo#12" into "repo".
func repoFromReference(full string) string {
	path, _, _ := strings.Cut(full, "#")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func statusOf(labels []string) string {
	for _, l := range labels {
		if name, ok := strings.CutPrefix(l, StatusLabelPrefix); ok {
			return name
		}
	}
	return ""
}

func (c *Client) GetStatusFieldOptions(ctx context.Context, projectID string) (*tracker.StatusField, error) {
	opts := &gitlab.ListGroupLabelsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
		Search:      gitlab.Ptr(StatusLabelPrefix),
	}
	labels, resp, err := c.api.GroupLabels.ListGroupLabels(projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("listing status labels of %s", projectID), resp, err)
	}

	field := &tracker.StatusField{FieldID: statusFieldID}
	for _, l := range labels {
		if l == nil {
			continue
		}
		if name, ok := strings.CutPrefix(l.Name, StatusLabelPrefix); ok {
			field.Options = append(field.Options, tracker.StatusOption{ID: l.Name, Name: name})
		}
	}
	if len(field.Options) == 0 {
		return nil, fmt.Errorf("status labels of %s: %w", projectID, tracker.ErrNotFound)
	}
	return field, nil
}

// FindIssueByReference reports the issue as attached to the group board when it already
// carries a status label.
func (c *Client) FindIssueByReference(ctx context.Context, owner, repo string, number int) (*tracker.IssueRef, error) {
	if owner == "" {
		owner = c.group
	}
	pid := owner + "/" + repo
	issue, resp, err := c.api.Issues.GetIssue(pid, int64(number), gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("fetching issue %s#%d", pid, number), resp, err)
	}

	id := itemID(int64(issue.ProjectID), int64(issue.IID))
	ref := &tracker.IssueRef{ID: id}
	if statusOf(issue.Labels) != "" {
		ref.ProjectItems = append(ref.ProjectItems, tracker.ProjectItem{ProjectID: c.group, ItemID: id})
	}
	return ref, nil
}

// AttachIssueToProject puts the issue in the first status column.
func (c *Client) AttachIssueToProject(ctx context.Context, projectID, issueID string) (string, error) {
	field, err := c.GetStatusFieldOptions(ctx, projectID)
	if err != nil {
		return "", err
	}
	if err := c.addLabel(ctx, issueID, field.Options[0].ID); err != nil {
		return "", fmt.Errorf("attaching %s: %w", issueID, err)
	}
	return issueID, nil
}

func (c *Client) GetItemStatus(ctx context.Context, itemID string) (string, error) {
	pid, iid, err := parseItemID(itemID)
	if err != nil {
		return "", err
	}
	issue, resp, err := c.api.Issues.GetIssue(pid, iid, gitlab.WithContext(ctx))
	if err != nil {
		return "", wrapErr(fmt.Sprintf("fetching item %s", itemID), resp, err)
	}
	return statusOf(issue.Labels), nil
}

func (c *Client) SetItemFieldValue(ctx context.Context, projectID, itemID, fieldID, optionID string) error {
	if !strings.HasPrefix(optionID, StatusLabelPrefix) {
		return fmt.Errorf("option %q is not a status label", optionID)
	}
	return c.addLabel(ctx, itemID, optionID)
}

func (c *Client) addLabel(ctx context.Context, itemID, label string) error {
	pid, iid, err := parseItemID(itemID)
	if err != nil {
		return err
	}
	opts := &gitlab.UpdateIssueOptions{AddLabels: &gitlab.LabelOptions{label}}
	_, resp, err := c.api.Issues.UpdateIssue(pid, iid, opts, gitlab.WithContext(ctx))
	if err != nil {
		return wrapErr(fmt.Sprintf("labelling item %s", itemID), resp, err)
	}
	return nil
}

func itemID(projectID, iid int64) string {
	return fmt.Sprintf("%d:%d", projectID, iid)
}

func parseItemID(id string) (string, int64, error) {
	pid, rawIID, ok := strings.Cut(id, ":")
	if !ok || pid == "" {
		return "", 0, fmt.Errorf("malformed item id %q", id)
	}
	iid, err := strconv.ParseInt(rawIID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed item id %q: %w", id, err)
	}
	return pid, iid, nil
}

func wrapErr(op string, resp *gitlab.Response, err error) error {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, tracker.ErrNotFound)
	}
	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return fmt.Errorf("%s: %w", op, &tracker.APIError{StatusCode: errResp.Response.StatusCode, Message: errResp.Message})
	}
	return fmt.Errorf("%s: %w", op, err)
}
