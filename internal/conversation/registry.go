package conversation

import (
	"context"
	"sync"
)

// Constructor builds the controller for a user. It may fail, in which case nothing is
// registered and the next event tries again.
type Constructor func(ctx context.Context, userID string) (*Controller, error)

// Constructor returns the constructor that builds controllers from d.
func (d Deps) Constructor() Constructor {
	return func(ctx context.Context, userID string) (*Controller, error) {
		return New(ctx, d, userID)
	}
}

// Registry maps user ids to their one controller. It is owned by the service that
// handles inbound events.
type Registry struct {
	build Constructor

	mu          sync.Mutex
	controllers map[string]*Controller
}

func NewRegistry(build Constructor) *Registry {
	return &Registry{
		build:       build,
		controllers: make(map[string]*Controller),
	}
}

// Get returns the user's controller, building one on first use. Construction runs
// outside the lock; if two callers race, the first one registered is kept.
func (r *Registry) Get(ctx context.Context, userID string) (*Controller, error) {
	if c, ok := r.Lookup(userID); ok {
		return c, nil
	}

	built, err := r.build(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.controllers[userID]; ok {
		return existing, nil
	}
	r.controllers[userID] = built
	return built, nil
}

func (r *Registry) Lookup(userID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[userID]
	return c, ok
}

// Evict forgets the user's controller; the next Get builds a fresh one.
func (r *Registry) Evict(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, userID)
}

// Restart evicts and rebuilds the user's controller, discarding its draft.
func (r *Registry) Restart(ctx context.Context, userID string) (*Controller, error) {
	r.Evict(userID)
	return r.Get(ctx, userID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// Wait blocks until the background work of every registered controller is done.
func (r *Registry) Wait() {
	r.mu.Lock()
	controllers := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		controllers = append(controllers, c)
	}
	r.mu.Unlock()

	for _, c := range controllers {
		c.Wait()
	}
}
