// Package reminder schedules the daily prompt that asks each registered user for a
// standup report.
package reminder

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultHour   = 10
	DefaultMinute = 0
)

// Days are cron day-of-week names, Monday first.
var Days = []string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"}

var dayNames = map[string]string{
	"MON": "Monday",
	"TUE": "Tuesday",
	"WED": "Wednesday",
	"THU": "Thursday",
	"FRI": "Friday",
	"SAT": "Saturday",
	"SUN": "Sunday",
}

var (
	ErrInvalidHour     = errors.New("hour must be between 0 and 23")
	ErrInvalidMinute   = errors.New("minute must be between 0 and 59")
	ErrInvalidTimezone = errors.New("unknown timezone")
	ErrInvalidDay      = errors.New("unknown day")
	ErrNoDays          = errors.New("every day is skipped")
)

// Setting is a user's reminder as stored in the reminders namespace.
type Setting struct {
	Timezone    string   `json:"timezone" yaml:"timezone"`
	Hour        int      `json:"hour" yaml:"hour"`
	Minute      int      `json:"minute" yaml:"minute"`
	ExcludeDays []string `json:"exclude_days" yaml:"exclude_days"`
}

// DefaultSetting is 10:00 on weekdays.
func DefaultSetting(timezone string) Setting {
	return Setting{
		Timezone:    timezone,
		Hour:        DefaultHour,
		Minute:      DefaultMinute,
		ExcludeDays: []string{"SAT", "SUN"},
	}
}

func (s Setting) Validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("%w, got %d", ErrInvalidHour, s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("%w, got %d", ErrInvalidMinute, s.Minute)
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	for _, d := range s.ExcludeDays {
		if !slices.Contains(Days, strings.ToUpper(d)) {
			return fmt.Errorf("%w %q", ErrInvalidDay, d)
		}
	}
	if len(s.ActiveDays()) == 0 {
		return ErrNoDays
	}
	return nil
}

// Location resolves the timezone; an empty timezone is UTC.
func (s Setting) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrInvalidTimezone, s.Timezone)
	}
	return loc, nil
}

// ActiveDays are the days reminders go out, Monday first.
func (s Setting) ActiveDays() []string {
	var out []string
	for _, d := range Days {
		if !slices.ContainsFunc(s.ExcludeDays, func(x string) bool { return strings.EqualFold(x, d) }) {
			out = append(out, d)
		}
	}
	return out
}

// CronSpec is the standard cron line for the setting, pinned to its timezone.
func (s Setting) CronSpec() string {
	spec := fmt.Sprintf("%d %d * * %s", s.Minute, s.Hour, strings.Join(s.ActiveDays(), ","))
	if s.Timezone == "" {
		return spec
	}
	return "CRON_TZ=" + s.Timezone + " " + spec
}

func (s Setting) Schedule() (cron.Schedule, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	schedule, err := cron.ParseStandard(s.CronSpec())
	if err != nil {
		return nil, fmt.Errorf("parsing reminder schedule: %w", err)
	}
	return schedule, nil
}

// HelpText describes when reminders go out, counting hours from now to the next one.
func (s Setting) HelpText(now time.Time) string {
	next := "unknown"
	if schedule, err := s.Schedule(); err == nil {
		hours := math.Round(schedule.Next(now).Sub(now).Hours())
		next = fmt.Sprintf("%d", int(hours))
	}

	tz := s.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return fmt.Sprintf("Reminders will be sent at %s in timezone **%s** on %s (Next reminder is in about %s hours)\n\n"+
		"To change the time run `/standup settings reminder`\n"+
		"_Note: Change your timezone in Mattermost's settings then run the above command_",
		clockTime(s.Hour, s.Minute), tz, dayList(s.ActiveDays()), next)
}

func clockTime(hour, minute int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, suffix)
}

func dayList(days []string) string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, dayNames[d])
	}
	switch len(names) {
	case 0:
		return "no days"
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}

// ParseDays reads a comma separated day list such as "SAT, SUN".
func ParseDays(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if d := strings.ToUpper(strings.TrimSpace(part)); d != "" {
			out = append(out, d)
		}
	}
	return out
}
