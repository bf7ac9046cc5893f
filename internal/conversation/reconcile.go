package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/standup/common/logger"
	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/issuecache"
	"basegraph.app/standup/internal/messaging"
)

const (
	statusNotFound  = "not found"
	loadingStatuses = "...loading statuses"
)

// ItemStatus is one line of the status summary.
type ItemStatus struct {
	Reference string
	ItemID    string
	Status    string
}

func (s ItemStatus) Found() bool {
	return s.ItemID != ""
}

// Summary returns the statuses last shown to the user.
func (c *Controller) Summary() []ItemStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ItemStatus(nil), c.summary...)
}

func (c *Controller) SummaryPostID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaryPostID
}

// reconcile looks up every distinct reference concurrently and posts a summary offering
// forward status changes. A failed lookup shows as "not found" for that reference only.
func (c *Controller) reconcile(ctx context.Context, cache *issuecache.Cache, references []string) (err error) {
	span := logger.StartSpan(ctx, "conversation.reconcile")
	ctx = span.Context()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	references = dedupe(references)
	span.SetAttributes(attribute.Int("standup.references", len(references)))

	if err := c.upsertSummary(ctx, loadingStatuses, nil); err != nil {
		slog.WarnContext(ctx, "failed to post loading message", "error", err)
	}

	statuses := make([]ItemStatus, len(references))
	var wg sync.WaitGroup
	for i, ref := range references {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i] = lookupStatus(ctx, cache, ref)
		}()
	}
	wg.Wait()

	c.mu.Lock()
	c.summary = statuses
	c.mu.Unlock()

	props := map[string]any{
		"app_bindings": []apps.Binding{summaryBinding(cache, statuses)},
	}
	if err := c.upsertSummary(ctx, "", props); err != nil {
		slog.ErrorContext(ctx, "failed to post status summary", "error", err)
		return fmt.Errorf("posting status summary: %w", err)
	}
	return nil
}

func lookupStatus(ctx context.Context, cache *issuecache.Cache, reference string) ItemStatus {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Reference: logger.Ptr(reference)})
	result := ItemStatus{Reference: reference, Status: statusNotFound}

	itemID, err := cache.ResolveItemID(ctx, reference)
	if err != nil {
		slog.WarnContext(ctx, "could not resolve tracker item", "error", err)
		return result
	}
	status, err := cache.CurrentStatus(ctx, itemID)
	if err != nil {
		slog.WarnContext(ctx, "could not read tracker status", "error", err, "item_id", itemID)
		return result
	}
	if status == "" {
		return result
	}
	result.ItemID = itemID
	result.Status = status
	return result
}

func summaryBinding(cache *issuecache.Cache, statuses []ItemStatus) apps.Binding {
	lines := make([]string, 0, len(statuses))
	for _, s := range statuses {
		lines = append(lines, s.Reference+" - "+s.Status)
	}

	var controls []apps.Binding
	if form := statusForm(cache, statuses); len(form.Fields) > 0 {
		controls = append(controls, apps.Binding{Location: "update", Label: "Update", Form: form})
	}
	controls = append(controls, apps.Binding{
		Location: "done",
		Label:    "Done",
		Submit: &apps.Call{
			Path:   PathClose,
			Expand: &apps.Expand{Post: apps.ExpandSummary, ActingUser: apps.ExpandSummary},
		},
	})

	return apps.Binding{
		AppID:       apps.AppID,
		Location:    "embedded",
		Description: "> **_Update Statuses?_**\n" + strings.Join(lines, "\n"),
		Bindings:    controls,
	}
}

// statusForm has one select per issue that can still move forward.
func statusForm(cache *issuecache.Cache, statuses []ItemStatus) *apps.Form {
	form := &apps.Form{
		Title:  "Update Statuses",
		Header: "Update status for the given issues below. Leave them blank to keep the current statuses.",
		Submit: &apps.Call{
			Path:   PathStatusUpdate,
			Expand: &apps.Expand{ActingUser: apps.ExpandSummary},
		},
	}
	for _, s := range statuses {
		if !s.Found() {
			continue
		}
		next := cache.StatusesAfter(s.Status)
		if len(next) == 0 {
			continue
		}
		options := make([]apps.SelectOption, 0, len(next))
		for _, name := range next {
			options = append(options, apps.SelectOption{Label: name, Value: name})
		}
		form.Fields = append(form.Fields, apps.Field{
			Name:       s.Reference,
			Label:      s.Reference,
			ModalLabel: s.Reference,
			Type:       apps.FieldTypeStaticSelect,
			Options:    options,
		})
	}
	return form
}

type statusChange struct {
	reference string
	status    string
	err       error
}

// SubmitStatusUpdate applies every non-blank selection concurrently and replaces the
// summary with how many changed. It returns that count; failures are listed in the
// message and logged, not returned.
func (c *Controller) SubmitStatusUpdate(ctx context.Context, values apps.Values) (int, error) {
	ctx = c.logContext(ctx)
	cache := c.cache()
	if cache == nil {
		return 0, ErrNoTracker
	}

	var changes []*statusChange
	for _, ref := range values.Keys() {
		if status := values.String(ref); status != "" {
			changes = append(changes, &statusChange{reference: ref, status: status})
		}
	}

	var wg sync.WaitGroup
	for _, ch := range changes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.err = cache.SetStatus(ctx, ch.reference, ch.status)
		}()
	}
	wg.Wait()

	updated := 0
	var failed []string
	for _, ch := range changes {
		if ch.err != nil {
			slog.WarnContext(ctx, "status update failed", "reference", ch.reference, "status", ch.status, "error", ch.err)
			failed = append(failed, ch.reference)
			continue
		}
		updated++
	}

	message := updatedMessage(updated)
	if len(failed) > 0 {
		message += "\nCould not update: " + strings.Join(failed, ", ")
	}
	if err := c.upsertSummary(ctx, message, nil); err != nil {
		slog.WarnContext(ctx, "failed to post status update result", "error", err)
	}

	slog.InfoContext(ctx, "statuses updated", "updated", updated, "failed", len(failed))
	return updated, nil
}

func updatedMessage(n int) string {
	if n == 1 {
		return "Updated 1 status"
	}
	return fmt.Sprintf("Updated %d statuses", n)
}

// DismissStatusSummary blanks the summary post. postID, when given, names the post the
// Done control was pressed on.
func (c *Controller) DismissStatusSummary(ctx context.Context, postID string) error {
	ctx = c.logContext(ctx)
	c.mu.Lock()
	if postID == "" {
		postID = c.summaryPostID
	}
	c.mu.Unlock()
	if postID == "" {
		return nil
	}

	_, err := call(ctx, c.deps.Timeout, func(ctx context.Context) (string, error) {
		return c.deps.Bot.CreateOrUpdatePost(ctx, messaging.Post{ID: postID, ChannelID: c.dmChannel, Props: map[string]any{}})
	})
	if err != nil {
		return fmt.Errorf("dismissing status summary: %w", err)
	}
	return nil
}

func (c *Controller) upsertSummary(ctx context.Context, message string, props map[string]any) error {
	c.mu.Lock()
	post := messaging.Post{ID: c.summaryPostID, ChannelID: c.dmChannel, Message: message, Props: props}
	c.mu.Unlock()

	postID, err := call(ctx, c.deps.Timeout, func(ctx context.Context) (string, error) {
		return c.deps.Bot.CreateOrUpdatePost(ctx, post)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.summaryPostID = postID
	c.mu.Unlock()
	return nil
}

func dedupe(references []string) []string {
	seen := make(map[string]struct{}, len(references))
	out := make([]string, 0, len(references))
	for _, ref := range references {
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}
