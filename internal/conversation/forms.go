package conversation

import (
	"sort"
	"strings"
	"time"

	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/issuecache"
	"basegraph.app/standup/internal/report"
)

const noIssue = "none"

// AddSubmission is a submitted add form.
type AddSubmission struct {
	Note       string
	Issue      string
	IssueOther string
	State      FormState
}

func ParseAddSubmission(values apps.Values, st FormState) AddSubmission {
	return AddSubmission{
		Note:       strings.TrimSpace(values.String("note")),
		Issue:      strings.TrimSpace(values.String("issue")),
		IssueOther: strings.TrimSpace(values.String("issueOther")),
		State:      st,
	}
}

// Reference picks the selected tracker issue, falling back to the free-text one.
func (s AddSubmission) Reference() string {
	if s.Issue == "" || s.Issue == noIssue {
		return s.IssueOther
	}
	return s.Issue
}

// OverridesFromValues keeps the order in which the edit form sent its sections.
func OverridesFromValues(values apps.Values) []report.Override {
	var out []report.Override
	for _, key := range values.Keys() {
		c := report.Category(key)
		if !c.IsValid() {
			continue
		}
		out = append(out, report.Override{Category: c, Text: values.String(key)})
	}
	return out
}

type addFormInput struct {
	state    State
	category report.Category
	goal     *report.Entry
	issues   []apps.SelectOption
	formData FormState
}

func buildAddForm(in addFormInput) *apps.Form {
	p := prompts[in.state]
	label := p.noteLabel
	if label == "" {
		label = in.category.Heading()
	}

	note := apps.Field{
		Name:        "note",
		Label:       "note",
		ModalLabel:  label,
		Type:        apps.FieldTypeText,
		IsRequired:  true,
		Description: p.noteHelp,
	}
	if in.goal != nil {
		note.Value = in.goal.Note
	}
	fields := []apps.Field{note}

	if in.state.TracksIssues() {
		withList := len(in.issues) > 0
		if withList {
			options := append([]apps.SelectOption{{Label: "None / Other", Value: noIssue}}, in.issues...)
			fields = append(fields, apps.Field{
				Name:        "issue",
				Label:       "issue",
				ModalLabel:  "Tracker Issue",
				Type:        apps.FieldTypeStaticSelect,
				Options:     options,
				Description: "If this is related to a tracker issue select it here.",
			})
		}

		free := apps.Field{
			Name:        "issue",
			Label:       "issue",
			ModalLabel:  "Tracker Issue",
			Type:        apps.FieldTypeText,
			Description: "Add an issue as `{repo_name}#{issue_number}`. Leave blank if it's not related to any.",
		}
		if withList {
			free.Name = "issueOther"
			free.Label = "issue-other"
			free.ModalLabel = "Other Tracker Issue"
			free.Description = "Add an issue not in the list above as `{repo_name}#{issue_number}`. Leave blank if it's not related to any."
		}
		if in.goal != nil && in.goal.Reference != "" {
			free.Value = in.goal.Reference
		}
		fields = append(fields, free)
	}

	return &apps.Form{
		Title:  "Add an Item",
		Fields: fields,
		Submit: &apps.Call{
			Path:   PathAdd,
			Expand: &apps.Expand{ActingUser: apps.ExpandSummary},
			State:  in.formData,
		},
	}
}

// issueOptions lists cached issues as select options sorted by label.
func issueOptions(cache *issuecache.Cache, since time.Time) []apps.SelectOption {
	if cache == nil {
		return nil
	}
	var out []apps.SelectOption
	for _, s := range cache.Filter(since) {
		if s.Reference == "" {
			continue
		}
		out = append(out, apps.SelectOption{Label: s.Reference + " " + s.Title, Value: s.Reference})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func buildEditForm(r *report.Report) *apps.Form {
	fields := make([]apps.Field, 0, len(report.Categories))
	for _, c := range report.Categories {
		fields = append(fields, apps.Field{
			Name:       c.String(),
			Label:      c.String(),
			ModalLabel: c.Heading(),
			Type:       apps.FieldTypeText,
			Subtype:    "textarea",
			Value:      r.RenderCategory(c),
			IsRequired: c.IsPrimary(),
		})
	}
	return &apps.Form{
		Title:  "Edit your update",
		Fields: fields,
		Submit: &apps.Call{
			Path:   PathEditSubmit,
			Expand: &apps.Expand{ActingUser: apps.ExpandSummary},
		},
	}
}
