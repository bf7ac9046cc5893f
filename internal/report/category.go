package report

// Category is one of the fixed report sections.
type Category string

const (
	CategoryAccomplished Category = "accomplished"
	CategoryGoal         Category = "goal"
	CategoryBlocker      Category = "blocker"
	CategoryQuestion     Category = "question"
	CategoryHelpRequest  Category = "help_request"
	CategoryPrayer       Category = "prayer"
	CategoryPersonal     Category = "personal"
)

// Categories lists every category in rendering order.
var Categories = []Category{
	CategoryAccomplished,
	CategoryGoal,
	CategoryBlocker,
	CategoryQuestion,
	CategoryHelpRequest,
	CategoryPrayer,
	CategoryPersonal,
}

const carriedGoalMarker = ":tada:"

var headings = map[Category]string{
	CategoryAccomplished: "I worked on",
	CategoryGoal:         "My goals for today are",
	CategoryBlocker:      "I'm blocked",
	CategoryQuestion:     "Question",
	CategoryHelpRequest:  "I want help with",
	CategoryPrayer:       "Prayer Request",
	CategoryPersonal:     "Personal Update",
}

var markers = map[Category]string{
	CategoryAccomplished: ":white_check_mark:",
	CategoryGoal:         ":dart:",
	CategoryBlocker:      ":rotating_light:",
	CategoryQuestion:     ":question:",
	CategoryHelpRequest:  ":handshake:",
	CategoryPrayer:       ":pray:",
	CategoryPersonal:     ":speech_balloon:",
}

func (c Category) IsValid() bool {
	_, ok := headings[c]
	return ok
}

// IsPrimary reports whether the section is rendered even when it has no entries.
func (c Category) IsPrimary() bool {
	return c == CategoryAccomplished || c == CategoryGoal
}

func (c Category) Heading() string {
	if h, ok := headings[c]; ok {
		return h
	}
	return string(c)
}

func (c Category) Marker() string {
	return markers[c]
}

func (c Category) String() string {
	return string(c)
}
