package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultLinkFormat receives the repository name and the issue number.
const DefaultLinkFormat = "https://github.com/digi-serve/%s/issues/%d"

var referencePattern = regexp.MustCompile(`^([^#]+)#(\d+)`)

// Entry is a single line of a report.
type Entry struct {
	Category       Category `json:"category"`
	Reference      string   `json:"reference,omitempty"`
	WasCarriedGoal bool     `json:"was_carried_goal,omitempty"`
	Note           string   `json:"note"`
}

// Override replaces the generated text of one category.
type Override struct {
	Category Category
	Text     string
}

// Report accumulates one user's draft. It is owned by a single conversation and is not
// safe for concurrent use.
type Report struct {
	entries    []Entry
	overrides  []Override
	edited     bool
	linkFormat string
}

func New(linkFormat string) *Report {
	if linkFormat == "" {
		linkFormat = DefaultLinkFormat
	}
	return &Report{linkFormat: linkFormat}
}

// Add appends an entry. Entries without a note are ignored.
func (r *Report) Add(entry Entry) bool {
	if strings.TrimSpace(entry.Note) == "" {
		return false
	}
	r.entries = append(r.entries, entry)
	return true
}

// Edit installs the override set. Once edited, the report stays edited for the rest of
// the conversation and a later Edit replaces the previous overrides wholesale.
func (r *Report) Edit(overrides []Override) {
	r.overrides = append([]Override(nil), overrides...)
	r.edited = true
}

func (r *Report) Edited() bool {
	return r.edited
}

// Goals returns the structured goal entries, regardless of overrides.
func (r *Report) Goals() []Entry {
	goals := make([]Entry, 0)
	for _, e := range r.entries {
		if e.Category == CategoryGoal {
			goals = append(goals, e)
		}
	}
	return goals
}

// References returns the non-empty references of the structured entries in entry order.
// Duplicates are kept.
func (r *Report) References() []string {
	var refs []string
	for _, e := range r.entries {
		if e.Reference != "" {
			refs = append(refs, e.Reference)
		}
	}
	return refs
}

// Entries returns a copy of the structured entries.
func (r *Report) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Render returns the full report. The structured rendering walks categories in fixed
// order; the edited rendering walks overrides in the order they were given.
func (r *Report) Render() string {
	if r.edited {
		return r.renderEdited()
	}
	return r.renderStructured()
}

// RenderCategory returns the text of a single section: the override when one exists for
// the category, the formatted entries otherwise.
func (r *Report) RenderCategory(c Category) string {
	if text, ok := r.override(c); ok {
		return text
	}
	lines := make([]string, 0)
	for _, e := range r.entries {
		if e.Category == c {
			lines = append(lines, r.formatLine(e))
		}
	}
	return strings.Join(lines, "\n")
}

func (r *Report) override(c Category) (string, bool) {
	if !r.edited {
		return "", false
	}
	for _, o := range r.overrides {
		if o.Category == c {
			return o.Text, true
		}
	}
	return "", false
}

func (r *Report) renderStructured() string {
	var out []string
	for _, c := range Categories {
		var lines []string
		for _, e := range r.entries {
			if e.Category == c {
				lines = append(lines, r.formatLine(e))
			}
		}
		if len(lines) == 0 && !c.IsPrimary() {
			continue
		}
		out = append(out, heading(c))
		out = append(out, lines...)
		out = append(out, " ")
	}
	return strings.Join(out, "\n")
}

func (r *Report) renderEdited() string {
	var out []string
	for _, o := range r.overrides {
		if o.Text == "" {
			continue
		}
		out = append(out, heading(o.Category), o.Text, " ")
	}
	return strings.Join(out, "\n")
}

func heading(c Category) string {
	return "**" + c.Heading() + ":**"
}

func (r *Report) formatLine(e Entry) string {
	prefix := r.Link(e.Reference)
	if prefix == "" && e.Category.IsPrimary() {
		prefix = "Other"
	}

	marker := e.Category.Marker()
	if e.WasCarriedGoal {
		marker = carriedGoalMarker
	}

	if strings.TrimSpace(prefix) != "" {
		return fmt.Sprintf(" %s %s - %s", marker, prefix, e.Note)
	}
	return fmt.Sprintf(" %s %s", marker, e.Note)
}

// Link renders a repo#number reference as a markdown link, or returns "" when the
// reference has another shape.
func (r *Report) Link(reference string) string {
	repo, number, ok := ParseReference(reference)
	if !ok {
		return ""
	}
	return fmt.Sprintf("[%s#%d](%s)", repo, number, fmt.Sprintf(r.linkFormat, repo, number))
}

// ParseReference splits a repo#number reference.
func ParseReference(reference string) (repo string, number int, ok bool) {
	m := referencePattern.FindStringSubmatch(reference)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}
