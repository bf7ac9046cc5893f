// Package issuecache keeps an in-memory snapshot of the tracker items a team is working
// on and mediates status changes back to the tracker.
package issuecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"basegraph.app/standup/common/logger"
	"basegraph.app/standup/core/config"
	"basegraph.app/standup/internal/report"
	"basegraph.app/standup/internal/scheduler"
	"basegraph.app/standup/internal/tracker"
)

// MaxPages bounds the cost of a single refresh cycle.
const MaxPages = 10

const defaultTimeout = 10 * time.Second

// Snapshot is the normalized, read-only view of one tracker item.
type Snapshot struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Assignees []string  `json:"assignees,omitempty" yaml:"assignees,omitempty"`
	Reference string    `json:"reference" yaml:"reference"`
	Status    string    `json:"status" yaml:"status"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

type Config struct {
	ProjectID string
	// Owner is used when a reference does not name one, e.g. the GitHub organization.
	Owner    string
	Workflow config.StatusWorkflow
	// Timeout bounds every tracker call.
	Timeout time.Duration
}

// Cache is safe for concurrent use. The snapshot is replaced wholesale on each
// successful refresh and never mutated in place.
type Cache struct {
	client    tracker.Client
	projectID string
	owner     string
	workflow  config.StatusWorkflow
	timeout   time.Duration
	field     tracker.StatusField

	items       atomic.Pointer[[]Snapshot]
	refreshedAt atomic.Pointer[time.Time]
	task        atomic.Pointer[scheduler.Task]
}

// New fetches the project's status options, which are assumed static for the lifetime
// of the cache. The snapshot starts empty until the first refresh.
func New(ctx context.Context, client tracker.Client, cfg Config) (*Cache, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Cache{
		client:    client,
		projectID: cfg.ProjectID,
		owner:     cfg.Owner,
		workflow:  cfg.Workflow,
		timeout:   cfg.Timeout,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	field, err := client.GetStatusFieldOptions(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("loading status options: %w", err)
	}
	c.field = *field

	empty := []Snapshot{}
	c.items.Store(&empty)
	return c, nil
}

// Start refreshes now and then on every activation of schedule, until Stop.
func (c *Cache) Start(ctx context.Context, schedule scheduler.Schedule, opts ...scheduler.TaskOption) {
	opts = append([]scheduler.TaskOption{scheduler.RunImmediately()}, opts...)
	task := scheduler.NewTask("issuecache", schedule, c.refreshTick, opts...)
	if prev := c.task.Swap(task); prev != nil {
		prev.Stop()
	}
	task.Start(ctx)
}

// refreshTick is one scheduled refresh. Refresh has already logged a failure and the
// next activation retries, so the error stops here.
func (c *Cache) refreshTick(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		slog.DebugContext(ctx, "scheduled issue refresh failed, waiting for the next run", "error", err)
	}
}

func (c *Cache) Stop() {
	if task := c.task.Swap(nil); task != nil {
		task.Stop()
	}
}

// Refresh pages through the project and swaps in the new snapshot. On error the previous
// snapshot is kept untouched.
func (c *Cache) Refresh(ctx context.Context) (err error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "standup.issuecache"})
	span := logger.StartSpan(ctx, "issuecache.refresh")
	ctx = span.Context()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	start := time.Now()
	items := make([]Snapshot, 0)
	cursor := ""
	pages := 0
	for pages < MaxPages {
		page, err := c.listPage(ctx, cursor)
		if err != nil {
			slog.ErrorContext(ctx, "issue cache refresh failed, keeping previous snapshot",
				"error", err, "page", pages+1)
			return fmt.Errorf("refreshing page %d: %w", pages+1, err)
		}
		pages++
		for _, item := range page.Items {
			items = append(items, normalize(item))
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	c.items.Store(&items)
	now := time.Now()
	c.refreshedAt.Store(&now)

	slog.InfoContext(ctx, "issue cache refreshed",
		"items", len(items), "pages", pages, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (c *Cache) listPage(ctx context.Context, cursor string) (*tracker.ItemPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.ListProjectItems(ctx, c.projectID, cursor)
}

func normalize(item tracker.Item) Snapshot {
	return Snapshot{
		ID:        item.ID,
		Title:     item.Title,
		Assignees: item.Assignees,
		Reference: item.Reference(),
		Status:    item.Status,
		UpdatedAt: item.UpdatedAt,
	}
}

// Snapshot returns the current collection. Callers must not modify it.
func (c *Cache) Snapshot() []Snapshot {
	return *c.items.Load()
}

// RefreshedAt is zero until the first successful refresh.
func (c *Cache) RefreshedAt() time.Time {
	if t := c.refreshedAt.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Filter returns the items worth offering: never intake/backlog, and done items only if
// they moved at or after since.
func (c *Cache) Filter(since time.Time) []Snapshot {
	var out []Snapshot
	for _, s := range c.Snapshot() {
		if s.Title == "" || s.Status == "" || s.UpdatedAt.IsZero() {
			continue
		}
		if c.workflow.IsExcluded(s.Status) {
			continue
		}
		if c.workflow.IsDone(s.Status) && s.UpdatedAt.Before(since) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ResolveItemID maps a repo#number reference to its project item id. A cache miss asks
// the tracker and attaches the issue to the project when it is not on it yet; a freshly
// attached item may not report a status for a short while.
func (c *Cache) ResolveItemID(ctx context.Context, reference string) (string, error) {
	for _, s := range c.Snapshot() {
		if s.Reference == reference && s.ID != "" {
			return s.ID, nil
		}
	}

	repo, number, ok := report.ParseReference(reference)
	if !ok {
		return "", fmt.Errorf("reference %q: %w", reference, tracker.ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	issue, err := c.client.FindIssueByReference(ctx, c.owner, repo, number)
	if err != nil {
		return "", fmt.Errorf("looking up %s: %w", reference, err)
	}
	if itemID, ok := issue.ItemIDIn(c.projectID); ok {
		return itemID, nil
	}

	itemID, err := c.client.AttachIssueToProject(ctx, c.projectID, issue.ID)
	if err != nil {
		return "", fmt.Errorf("attaching %s to project: %w", reference, err)
	}
	slog.InfoContext(ctx, "attached issue to project", "reference", reference, "item_id", itemID)
	return itemID, nil
}

// StatusName resolves an option id, or an option name, to the option name.
func (c *Cache) StatusName(idOrName string) (string, bool) {
	for _, o := range c.field.Options {
		if o.ID == idOrName || o.Name == idOrName {
			return o.Name, true
		}
	}
	return "", false
}

func (c *Cache) StatusIDForName(name string) (string, bool) {
	for _, o := range c.field.Options {
		if o.Name == name {
			return o.ID, true
		}
	}
	return "", false
}

var ErrUnknownStatus = errors.New("unknown status")

// SetStatus moves the referenced item to statusName. Failures are returned, not retried.
func (c *Cache) SetStatus(ctx context.Context, reference, statusName string) error {
	optionID, ok := c.StatusIDForName(statusName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, statusName)
	}

	itemID, err := c.ResolveItemID(ctx, reference)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.SetItemFieldValue(ctx, c.projectID, itemID, c.field.FieldID, optionID); err != nil {
		return fmt.Errorf("setting status of %s: %w", reference, err)
	}
	return nil
}

// CurrentStatus always asks the tracker.
func (c *Cache) CurrentStatus(ctx context.Context, itemID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	status, err := c.client.GetItemStatus(ctx, itemID)
	if err != nil {
		return "", fmt.Errorf("reading status of %s: %w", itemID, err)
	}
	return status, nil
}

// StatusesAfter lists the transitions offered from status: strictly forward only.
func (c *Cache) StatusesAfter(status string) []string {
	return c.workflow.Forward(status)
}

func (c *Cache) Workflow() config.StatusWorkflow {
	return c.workflow
}
