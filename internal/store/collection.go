package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"basegraph.app/standup/internal/report"
)

// Collection is a typed view over one namespace.
type Collection[T any] struct {
	kv KV
	ns Namespace
}

func NewCollection[T any](kv KV, ns Namespace) *Collection[T] {
	return &Collection[T]{kv: kv, ns: ns}
}

// Get returns ErrNotFound when id has no document.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	raw, err := c.kv.GetOne(ctx, c.ns, id)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", c.ns, id, err)
	}
	return v, nil
}

// Lookup is Get with a missing document reported as ok=false instead of an error.
func (c *Collection[T]) Lookup(ctx context.Context, id string) (T, bool, error) {
	v, err := c.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

func (c *Collection[T]) All(ctx context.Context) (map[string]T, error) {
	raw, err := c.kv.GetAll(ctx, c.ns)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(raw))
	for id, doc := range raw {
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c.ns, id, err)
		}
		out[id] = v
	}
	return out, nil
}

// Put writes every field of value over the stored document.
func (c *Collection[T]) Put(ctx context.Context, id string, value T) error {
	return c.Merge(ctx, id, value)
}

// Merge shallow-merges patch, typically a partial map, into the stored document.
func (c *Collection[T]) Merge(ctx context.Context, id string, patch any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.ns, id, err)
	}
	return c.kv.MergeOne(ctx, c.ns, id, raw)
}

// History is what a user reported last time, read back to offer yesterday's goals.
type History struct {
	Date  time.Time      `json:"date"`
	Goals []report.Entry `json:"goals"`
}

// Channel is the team channel reports are published to.
type Channel struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	DisplayName string `json:"display_name"`
}
