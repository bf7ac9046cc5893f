package issuecache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"basegraph.app/standup/core/config"
	"basegraph.app/standup/internal/scheduler"
	"basegraph.app/standup/internal/tracker"
	"basegraph.app/standup/internal/tracker/github"
	"basegraph.app/standup/internal/tracker/gitlab"
)

// Holder owns the process' current cache. A nil cache means the tracker is not
// configured, which callers treat as a normal state.
type Holder struct {
	mu    sync.RWMutex
	cache *Cache
}

func NewHolder() *Holder {
	return &Holder{}
}

func (h *Holder) Get() *Cache {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cache
}

// Set installs c and stops the refresh loop of the cache it replaces.
func (h *Holder) Set(c *Cache) {
	h.mu.Lock()
	prev := h.cache
	h.cache = c
	h.mu.Unlock()

	if prev != nil && prev != c {
		prev.Stop()
	}
}

// Close stops the current cache's refresh loop.
func (h *Holder) Close() {
	h.Set(nil)
}

type OpenOptions struct {
	Workflow         config.StatusWorkflow
	RefreshInterval  time.Duration
	GitHubGraphQLURL string
	Timeout          time.Duration
	Clock            scheduler.Clock
}

// Open builds the tracker client for creds, loads the status options and starts the
// periodic refresh.
func Open(ctx context.Context, creds tracker.Credentials, opts OpenOptions) (*Cache, error) {
	if !creds.Complete() {
		return nil, fmt.Errorf("tracker credentials incomplete")
	}

	client, projectID, err := newClient(ctx, creds, opts)
	if err != nil {
		return nil, err
	}

	cache, err := New(ctx, client, Config{
		ProjectID: projectID,
		Owner:     creds.Owner,
		Workflow:  opts.Workflow,
		Timeout:   opts.Timeout,
	})
	if err != nil {
		return nil, err
	}

	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}
	var taskOpts []scheduler.TaskOption
	if opts.Clock != nil {
		taskOpts = append(taskOpts, scheduler.WithClock(opts.Clock))
	}
	cache.Start(context.WithoutCancel(ctx), scheduler.Every(interval), taskOpts...)
	return cache, nil
}

func newClient(ctx context.Context, creds tracker.Credentials, opts OpenOptions) (tracker.Client, string, error) {
	switch creds.Provider {
	case tracker.ProviderGitHub:
		number, err := strconv.Atoi(creds.Project)
		if err != nil {
			return nil, "", fmt.Errorf("github project must be a number, got %q", creds.Project)
		}
		endpoint := creds.BaseURL
		if endpoint == "" {
			endpoint = opts.GitHubGraphQLURL
		}
		client := github.New(creds.Token, creds.Owner, github.WithEndpoint(endpoint))

		lookupCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		projectID, err := client.ProjectID(lookupCtx, number)
		if err != nil {
			return nil, "", err
		}
		return client, projectID, nil

	case tracker.ProviderGitLab:
		client, err := gitlab.New(creds.Token, creds.Owner, creds.BaseURL)
		if err != nil {
			return nil, "", err
		}
		return client, creds.Project, nil

	default:
		return nil, "", fmt.Errorf("unsupported tracker provider %q", creds.Provider)
	}
}
