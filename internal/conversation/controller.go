// Package conversation drives one user's standup report: the prompt sequence, the
// evolving draft, publishing and the tracker status follow-up.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"basegraph.app/standup/common/async"
	"basegraph.app/standup/common/id"
	"basegraph.app/standup/common/logger"
	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/issuecache"
	"basegraph.app/standup/internal/messaging"
	"basegraph.app/standup/internal/report"
	"basegraph.app/standup/internal/store"
)

const defaultTimeout = 10 * time.Second

var (
	ErrInvalidGoalIndex = errors.New("no carried goal at that index")
	ErrNoTracker        = errors.New("issue tracker is not configured")
	ErrEmptyNote        = errors.New("the item text can not be empty")
	ErrNotReady         = errors.New("report is not ready to publish, run /standup start to begin a new one")
)

// CacheSource yields the current issue cache, or nil when no tracker is configured.
type CacheSource interface {
	Get() *issuecache.Cache
}

// Deps are shared by every controller of the process.
type Deps struct {
	// Bot posts drafts and notices in the user's direct channel.
	Bot       messaging.Messenger
	Histories *store.Collection[store.History]
	Channels  *store.Collection[store.Channel]
	Caches    CacheSource

	LinkFormat      string
	ProjectBoardURL string
	// Timeout bounds each outbound call.
	Timeout time.Duration
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Timeout <= 0 {
		d.Timeout = defaultTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Controller owns one user's conversation. Its fields are guarded by mu, which is never
// held across an outbound call: two events for the same user can interleave there, and
// whichever finishes last wins the draft post id.
type Controller struct {
	deps      Deps
	userID    string
	dmChannel string
	iconURL   string

	mu            sync.Mutex
	sessionID     int64
	state         State
	report        *report.Report
	history       store.History
	draftPostID   string
	summaryPostID string
	summary       []ItemStatus

	background sync.WaitGroup
}

// New builds a controller for userID: it opens the bot's direct channel with the user,
// looks up the bot's picture and loads the user's history. Any failure is returned as is.
func New(ctx context.Context, deps Deps, userID string) (*Controller, error) {
	deps = deps.withDefaults()
	c := &Controller{
		deps:      deps,
		userID:    userID,
		sessionID: id.New(),
		report:    report.New(deps.LinkFormat),
	}
	ctx = c.logContext(ctx)

	botID, err := call(ctx, deps.Timeout, deps.Bot.GetUserID)
	if err != nil {
		return nil, fmt.Errorf("resolving bot user: %w", err)
	}

	c.dmChannel, err = call(ctx, deps.Timeout, func(ctx context.Context) (string, error) {
		return deps.Bot.CreateDirectChannel(ctx, botID, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("opening direct channel: %w", err)
	}

	c.iconURL, err = call(ctx, deps.Timeout, func(ctx context.Context) (string, error) {
		return deps.Bot.GetProfilePictureURL(ctx, botID)
	})
	if err != nil {
		return nil, fmt.Errorf("loading bot profile picture: %w", err)
	}

	history, _, err := call2(ctx, deps.Timeout, func(ctx context.Context) (store.History, bool, error) {
		return deps.Histories.Lookup(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	c.history = history

	slog.DebugContext(ctx, "conversation controller created", "carried_goals", len(history.Goals))
	return c, nil
}

func (c *Controller) UserID() string {
	return c.userID
}

func (c *Controller) DirectChannelID() string {
	return c.dmChannel
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) DraftPostID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draftPostID
}

// CarriedGoals are the goals from the last report not yet reported as done.
func (c *Controller) CarriedGoals() []report.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]report.Entry(nil), c.history.Goals...)
}

func (c *Controller) Entries() []report.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report.Entries()
}

func (c *Controller) Render() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report.Render()
}

// Start discards any draft in progress and moves to the first prompt.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateTodo {
		c.report = report.New(c.deps.LinkFormat)
		c.draftPostID = ""
		c.summaryPostID = ""
		c.summary = nil
		c.sessionID = id.New()
		c.state = StateTodo
	}
	c.mu.Unlock()

	return c.Advance(ctx)
}

// Advance moves to the next state and renders its prompt. Review is skipped when there is
// no carried goal to offer.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	c.state = c.state.Next()
	c.mu.Unlock()

	return c.postDraft(ctx)
}

// AddForm describes the form for adding an item of st.Type, or for confirming the
// carried goal st.Index while in review.
func (c *Controller) AddForm(ctx context.Context, st FormState) (*apps.Form, error) {
	c.mu.Lock()
	in := addFormInput{state: c.state, category: st.Type, formData: st}
	if !in.category.IsValid() {
		in.category = c.state.Category()
		in.formData.Type = in.category
	}
	if c.state == StateReview {
		goal, ok := goalAt(c.history, st.Index)
		if !ok {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: %d", ErrInvalidGoalIndex, st.Index)
		}
		in.goal = &goal
	}
	since := c.deps.Now()
	if c.state == StateAccomplished && !c.history.Date.IsZero() {
		since = c.history.Date
	}
	c.mu.Unlock()

	if in.state.TracksIssues() && in.state != StateReview {
		in.issues = issueOptions(c.cache(), since)
	}
	return buildAddForm(in), nil
}

// ProcessFormAdd adds the submitted item and re-renders the draft. In review the item is
// the confirmed carried goal: it is recorded as accomplished and no longer offered.
func (c *Controller) ProcessFormAdd(ctx context.Context, sub AddSubmission) error {
	c.mu.Lock()
	entry := report.Entry{
		Category:  sub.State.Type,
		Reference: sub.Reference(),
		Note:      sub.Note,
	}
	if c.state == StateReview {
		if _, ok := goalAt(c.history, sub.State.Index); !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: %d", ErrInvalidGoalIndex, sub.State.Index)
		}
		// a blank confirmation keeps the goal on offer
		if strings.TrimSpace(entry.Note) == "" {
			c.mu.Unlock()
			return ErrEmptyNote
		}
		entry.Category = report.CategoryAccomplished
		entry.WasCarriedGoal = true
		goals := make([]report.Entry, 0, len(c.history.Goals)-1)
		goals = append(goals, c.history.Goals[:sub.State.Index]...)
		c.history.Goals = append(goals, c.history.Goals[sub.State.Index+1:]...)
	}
	if !entry.Category.IsValid() {
		entry.Category = c.state.Category()
	}
	added := c.report.Add(entry)
	c.mu.Unlock()

	if !added {
		slog.DebugContext(c.logContext(ctx), "ignored item without a note", "category", entry.Category)
	}
	return c.postDraft(ctx)
}

func (c *Controller) EditForm() *apps.Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return buildEditForm(c.report)
}

// Edit replaces the rendered text of the given sections. It works in any state,
// including submit, and never changes the state.
func (c *Controller) Edit(ctx context.Context, overrides []report.Override) error {
	c.mu.Lock()
	c.report.Edit(overrides)
	c.mu.Unlock()

	return c.postDraft(ctx)
}

// Notify sends message to the user's direct channel as a new post.
func (c *Controller) Notify(ctx context.Context, message string) error {
	_, err := call(c.logContext(ctx), c.deps.Timeout, func(ctx context.Context) (string, error) {
		return c.deps.Bot.CreateOrUpdatePost(ctx, messaging.Post{ChannelID: c.dmChannel, Message: message})
	})
	return err
}

// Wait blocks until best-effort side effects started by this controller are done.
func (c *Controller) Wait() {
	c.background.Wait()
}

// postDraft renders the current state into the draft post, creating it on first use.
func (c *Controller) postDraft(ctx context.Context) error {
	ctx = c.logContext(ctx)

	c.mu.Lock()
	opts := optionsFor(c.state, c.history.Goals)
	for c.state == StateReview && len(opts) == 0 {
		c.state = c.state.Next()
		opts = optionsFor(c.state, c.history.Goals)
	}
	state := c.state
	post := messaging.Post{
		ID:        c.draftPostID,
		ChannelID: c.dmChannel,
		Props:     draftProps(c.report.Render(), prompts[state].question, c.iconURL, opts),
	}
	c.mu.Unlock()

	postID, err := call(ctx, c.deps.Timeout, func(ctx context.Context) (string, error) {
		return c.deps.Bot.CreateOrUpdatePost(ctx, post)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to render draft", "error", err, "state", state.String())
		return fmt.Errorf("posting draft: %w", err)
	}

	c.mu.Lock()
	c.draftPostID = postID
	c.mu.Unlock()

	slog.DebugContext(ctx, "draft rendered", "state", state.String(), "post_id", postID)
	return nil
}

func (c *Controller) cache() *issuecache.Cache {
	if c.deps.Caches == nil {
		return nil
	}
	return c.deps.Caches.Get()
}

func (c *Controller) logContext(ctx context.Context) context.Context {
	c.mu.Lock()
	session := c.sessionID
	c.mu.Unlock()
	return logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(c.userID),
		SessionID: logger.Ptr(session),
		Component: "standup.conversation",
	})
}

func (c *Controller) bestEffort(ctx context.Context, op string, fn func(ctx context.Context) error) {
	done := async.BestEffort(ctx, op, c.deps.Timeout, fn)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		<-done
	}()
}

// call bounds one outbound call with timeout.
func call[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func call2[T, U any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, U, error)) (T, U, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
