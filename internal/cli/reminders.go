package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"basegraph.app/standup/internal/reminder"
	"basegraph.app/standup/internal/store"
)

type reminderRow struct {
	UserID      string    `json:"user_id" yaml:"user_id"`
	Timezone    string    `json:"timezone" yaml:"timezone"`
	Time        string    `json:"time" yaml:"time"`
	ExcludeDays []string  `json:"exclude_days" yaml:"exclude_days"`
	NextFire    time.Time `json:"next_fire,omitempty" yaml:"next_fire,omitempty"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
}

func newRemindersCmd() *cobra.Command {
	return needsStore(&cobra.Command{
		Use:   "reminders",
		Short: "List registered users and when their next reminder fires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := store.NewCollection[reminder.Setting](envFrom(cmd).Stores.KV(), store.NamespaceReminders)
			all, err := settings.All(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading reminders: %w", err)
			}
			return write(cmd, reminderRows(all, time.Now()))
		},
	})
}

func reminderRows(all map[string]reminder.Setting, now time.Time) []reminderRow {
	rows := make([]reminderRow, 0, len(all))
	for userID, s := range all {
		row := reminderRow{
			UserID:      userID,
			Timezone:    s.Timezone,
			Time:        fmt.Sprintf("%02d:%02d", s.Hour, s.Minute),
			ExcludeDays: s.ExcludeDays,
		}
		if schedule, err := s.Schedule(); err != nil {
			row.Error = err.Error()
		} else {
			row.NextFire = schedule.Next(now)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	return rows
}
