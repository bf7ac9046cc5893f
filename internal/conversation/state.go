package conversation

import "basegraph.app/standup/internal/report"

// State is a step of the conversation. States only move forward.
type State int

const (
	StateTodo State = iota
	StateReview
	StateAccomplished
	StateGoal
	StateBlocker
	StatePersonal
	StateSubmit
)

var stateNames = [...]string{
	StateTodo:         "todo",
	StateReview:       "review",
	StateAccomplished: "accomplished",
	StateGoal:         "goal",
	StateBlocker:      "blocker",
	StatePersonal:     "personal",
	StateSubmit:       "submit",
}

func (s State) String() string {
	if s < StateTodo || s > StateSubmit {
		return "unknown"
	}
	return stateNames[s]
}

// Next is total: submit is the last step of a session and stays there.
func (s State) Next() State {
	if s < StateTodo {
		return StateReview
	}
	if s >= StateSubmit {
		return StateSubmit
	}
	return s + 1
}

// Category is the default section an item added in this state goes to.
func (s State) Category() report.Category {
	switch s {
	case StateGoal:
		return report.CategoryGoal
	case StateBlocker:
		return report.CategoryBlocker
	case StatePersonal:
		return report.CategoryPersonal
	default:
		return report.CategoryAccomplished
	}
}

// TracksIssues reports whether items added in this state may reference a tracker issue.
func (s State) TracksIssues() bool {
	return s != StatePersonal
}

type prompt struct {
	question  string
	noteLabel string
	noteHelp  string
}

var prompts = map[State]prompt{
	StateReview: {
		question:  "These were your goals last time, add them as items you worked on?",
		noteLabel: "Description",
		noteHelp:  "Describe the work you did.",
	},
	StateAccomplished: {
		question:  "What did you work on?",
		noteLabel: "Description",
		noteHelp:  "Describe the work you did.",
	},
	StateGoal: {
		question:  "What are your goals today?",
		noteLabel: "Goal",
		noteHelp:  "What do you want to get done?",
	},
	StateBlocker:  {question: "Are you blocked or need help from the team?"},
	StatePersonal: {question: "Any personal updates or prayer requests?"},
	StateSubmit:   {question: "Ready to publish?"},
}
