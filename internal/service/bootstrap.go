package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"basegraph.app/standup/internal/issuecache"
	"basegraph.app/standup/internal/store"
	"basegraph.app/standup/internal/tracker"
)

// ReminderRestorer reschedules the stored reminders.
type ReminderRestorer interface {
	Restore(ctx context.Context) (int, error)
}

type BootstrapDeps struct {
	Channels    *store.Collection[store.Channel]
	Credentials *store.Collection[tracker.Credentials]
	Reminders   ReminderRestorer
	Holder      *issuecache.Holder
	OpenTracker TrackerOpener
}

// Bootstrapper rebuilds process state from the store: the tracker cache, the report
// channel and every reminder. It runs once it succeeds; a failed run is retried by the
// next caller.
type Bootstrapper struct {
	deps BootstrapDeps

	mu    sync.Mutex
	ready bool
}

func NewBootstrapper(deps BootstrapDeps) *Bootstrapper {
	return &Bootstrapper{deps: deps}
}

func (b *Bootstrapper) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *Bootstrapper) Run(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return nil
	}

	if err := b.openTracker(ctx); err != nil {
		return err
	}

	channel, ok, err := b.deps.Channels.Lookup(ctx, store.SingletonID)
	if err != nil {
		return fmt.Errorf("loading channel: %w", err)
	}
	if ok {
		slog.InfoContext(ctx, "report channel loaded", "channel_id", channel.ID, "channel_name", channel.DisplayName)
	} else {
		slog.WarnContext(ctx, "no report channel registered, run /standup register channel")
	}

	if _, err := b.deps.Reminders.Restore(ctx); err != nil {
		return err
	}

	b.ready = true
	slog.InfoContext(ctx, "standup state restored")
	return nil
}

// openTracker starts the cache from stored credentials. A tracker that cannot be reached
// leaves the service running without one.
func (b *Bootstrapper) openTracker(ctx context.Context) error {
	if b.deps.Holder.Get() != nil {
		return nil
	}
	creds, ok, err := b.deps.Credentials.Lookup(ctx, store.SingletonID)
	if err != nil {
		return fmt.Errorf("loading tracker credentials: %w", err)
	}
	if !ok || !creds.Complete() {
		slog.InfoContext(ctx, "issue tracker not configured")
		return nil
	}

	cache, err := b.deps.OpenTracker(ctx, creds)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open issue tracker, continuing without it",
			"error", err,
			"provider", creds.Provider,
			"owner", creds.Owner,
		)
		return nil
	}
	b.deps.Holder.Set(cache)
	slog.InfoContext(ctx, "issue tracker initialized", "provider", creds.Provider, "owner", creds.Owner)
	return nil
}
