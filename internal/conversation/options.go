package conversation

import (
	"fmt"

	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/report"
	"basegraph.app/standup/internal/store"
)

// Call paths the rendered controls point back to.
const (
	PathStart        = "/update/start"
	PathAddForm      = "/update/form"
	PathNext         = "/update/next"
	PathAdd          = "/update/add"
	PathEdit         = "/update/edit"
	PathEditSubmit   = "/update/edit/submit"
	PathSubmit       = "/update/submit"
	PathStatusUpdate = "/update/status"
	PathClose        = "/update/close"
)

const (
	draftColor     = "#939393"
	publishedColor = "#008040"
	draftAuthor    = "Standup Bot - Draft Update"
	reportAuthor   = "Standup Bot - Update"
)

// FormState travels with the add-form calls. Index is the carried goal offered in review.
type FormState struct {
	Type  report.Category `json:"type,omitempty"`
	Index int             `json:"index"`
}

// Option is one control offered under the draft.
type Option struct {
	Label string
	Path  string
	State *FormState
	// Token asks the platform to send the acting user's access token with the call.
	Token bool
}

func addOption(label string, c report.Category, index int) Option {
	return Option{Label: label, Path: PathAddForm, State: &FormState{Type: c, Index: index}}
}

// optionsFor computes the controls of a state. Review with no carried goal has none,
// which makes the controller skip it.
func optionsFor(s State, goals []report.Entry) []Option {
	next := Option{Label: "That's all", Path: PathNext}

	switch s {
	case StateReview:
		if len(goals) == 0 {
			return nil
		}
		opts := make([]Option, 0, len(goals)+1)
		for i, g := range goals {
			opts = append(opts, addOption(g.Note, report.CategoryAccomplished, i))
		}
		next.Label = "Skip"
		return append(opts, next)
	case StateAccomplished:
		return []Option{addOption("Add Work", report.CategoryAccomplished, 0), next}
	case StateGoal:
		return []Option{addOption("Add Goal", report.CategoryGoal, 0), next}
	case StateBlocker:
		return []Option{
			addOption("Blocked", report.CategoryBlocker, 0),
			addOption("Question", report.CategoryQuestion, 1),
			addOption("Help Wanted", report.CategoryHelpRequest, 2),
			next,
		}
	case StatePersonal:
		return []Option{
			addOption("Prayer Request", report.CategoryPrayer, 0),
			addOption("Update", report.CategoryPersonal, 1),
			next,
		}
	case StateSubmit:
		return []Option{
			{Label: "Edit", Path: PathEdit},
			{Label: "Submit", Path: PathSubmit, Token: true},
		}
	default:
		return nil
	}
}

func (o Option) binding(i int) apps.Binding {
	expand := &apps.Expand{ActingUser: apps.ExpandSummary}
	if o.Token {
		expand.ActingUserAccessToken = apps.ExpandAll
	}
	b := apps.Binding{
		Location: fmt.Sprintf("option-%d", i),
		Label:    o.Label,
		Submit:   &apps.Call{Path: o.Path, Expand: expand},
	}
	if o.State != nil {
		b.Submit.State = *o.State
	}
	return b
}

func draftProps(text, question, iconURL string, opts []Option) map[string]any {
	bindings := make([]apps.Binding, 0, len(opts))
	for i, o := range opts {
		bindings = append(bindings, o.binding(i))
	}
	props := map[string]any{
		"attachments": []map[string]any{{
			"color":       draftColor,
			"author_icon": iconURL,
			"author_name": draftAuthor,
			"fields": []map[string]any{
				{"value": text},
				{"value": fmt.Sprintf("--- \n > **_%s_**", question)},
			},
		}},
	}
	if len(bindings) > 0 {
		props["app_bindings"] = []apps.Binding{{
			AppID:    apps.AppID,
			Location: "embedded",
			Bindings: bindings,
		}}
	}
	return props
}

func reportProps(text, iconURL string) map[string]any {
	return map[string]any{
		"attachments": []map[string]any{{
			"color":       publishedColor,
			"author_icon": iconURL,
			"author_name": reportAuthor,
			"text":        text,
		}},
	}
}

func goalAt(h store.History, index int) (report.Entry, bool) {
	if index < 0 || index >= len(h.Goals) {
		return report.Entry{}, false
	}
	return h.Goals[index], true
}
