// Package store is the persistence collaborator: a namespaced key-value store whose
// values are JSON documents, with typed collections on top.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entry does not exist
var ErrNotFound = errors.New("not found")

// Namespace is a top-level key holding a map from id to document.
type Namespace string

const (
	NamespaceHistory            Namespace = "history"
	NamespaceReminders          Namespace = "reminders"
	NamespaceChannel            Namespace = "channel"
	NamespaceTrackerCredentials Namespace = "issueTrackerCredentials"
)

// SingletonID keys the only entry of namespaces that hold a single document.
const SingletonID = "default"

// KV is implemented by every backend. MergeOne shallow-merges object documents and
// replaces anything else.
type KV interface {
	GetAll(ctx context.Context, ns Namespace) (map[string]json.RawMessage, error)
	SetAll(ctx context.Context, ns Namespace, values map[string]json.RawMessage) error
	GetOne(ctx context.Context, ns Namespace, id string) (json.RawMessage, error)
	MergeOne(ctx context.Context, ns Namespace, id string, value json.RawMessage) error
}

// mergeJSON shallow-merges patch into existing when both are objects; otherwise patch
// wins.
func mergeJSON(existing, patch json.RawMessage) (json.RawMessage, error) {
	if len(existing) == 0 {
		return patch, nil
	}
	var base map[string]json.RawMessage
	if err := json.Unmarshal(existing, &base); err != nil || base == nil {
		return patch, nil
	}
	var update map[string]json.RawMessage
	if err := json.Unmarshal(patch, &update); err != nil || update == nil {
		return patch, nil
	}
	for k, v := range update {
		base[k] = v
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("marshal merged value: %w", err)
	}
	return merged, nil
}
