package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node     *snowflake.Node
	initErr  error
	initOnce sync.Once
)

// Init initializes the Snowflake node with the given node ID.
// Only the first call has an effect.
func Init(nodeID int64) error {
	initOnce.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// New generates a time-ordered unique int64 ID.
// Tests and tools that never call Init get node 0.
func New() int64 {
	_ = Init(0)
	return node.Generate().Int64()
}

// NewString returns a new ID in its base32 form, short enough for callback state.
func NewString() string {
	_ = Init(0)
	return node.Generate().Base32()
}
