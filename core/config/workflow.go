package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// StatusWorkflow describes the tracker's status column ordering.
// Order is the forward direction statuses may move in, Excluded holds intake/backlog
// statuses that are never offered as current work, Done marks completed items.
type StatusWorkflow struct {
	Order    []string `yaml:"order" json:"order" jsonschema:"required,minItems=2,description=Status names from intake to done"`
	Excluded []string `yaml:"excluded" json:"excluded,omitempty" jsonschema:"description=Intake or backlog statuses hidden from issue pickers"`
	Done     string   `yaml:"done" json:"done" jsonschema:"required,description=Status that marks an item as finished"`
}

// DefaultStatusWorkflow mirrors the reference GitHub project board.
func DefaultStatusWorkflow() StatusWorkflow {
	return StatusWorkflow{
		Order: []string{
			"📫 Inbox",
			"📈 Prioritized",
			"🚧 In Progress",
			"💬 Code Review",
			"📋 Partner Review",
			"🚀 Deploying",
			"✔ Done",
		},
		Excluded: []string{"📫 Inbox", "📝 Todo"},
		Done:     "✔ Done",
	}
}

// LoadStatusWorkflow reads a YAML workflow file, e.g.
//
//	order: [Inbox, Prioritized, In Progress, Code Review, Done]
//	excluded: [Inbox, Todo]
//	done: Done
func LoadStatusWorkflow(path string) (StatusWorkflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return StatusWorkflow{}, fmt.Errorf("reading status workflow: %w", err)
	}

	var workflow StatusWorkflow
	if err := yaml.Unmarshal(raw, &workflow); err != nil {
		return StatusWorkflow{}, fmt.Errorf("parsing status workflow %s: %w", path, err)
	}
	if err := workflow.Validate(); err != nil {
		return StatusWorkflow{}, fmt.Errorf("status workflow %s: %w", path, err)
	}
	return workflow, nil
}

func (w StatusWorkflow) Validate() error {
	if len(w.Order) < 2 {
		return fmt.Errorf("order needs at least two statuses")
	}
	seen := make(map[string]bool, len(w.Order))
	for _, status := range w.Order {
		if seen[status] {
			return fmt.Errorf("status %q listed twice", status)
		}
		seen[status] = true
	}
	if !slices.Contains(w.Order, w.Done) {
		return fmt.Errorf("done status %q is not part of order", w.Done)
	}
	return nil
}

// Forward returns the statuses strictly after status, or nil for an unknown status.
func (w StatusWorkflow) Forward(status string) []string {
	idx := slices.Index(w.Order, status)
	if idx < 0 {
		return nil
	}
	return slices.Clone(w.Order[idx+1:])
}

func (w StatusWorkflow) IsExcluded(status string) bool {
	return slices.Contains(w.Excluded, status)
}

func (w StatusWorkflow) IsDone(status string) bool {
	return status == w.Done
}
