package dto

import (
	"time"

	"basegraph.app/standup/internal/reminder"
)

type HealthResponse struct {
	Status        string `json:"status"`
	Ready         bool   `json:"ready"`
	Tracker       bool   `json:"tracker"`
	Conversations int    `json:"conversations"`
}

// ReminderResponse is returned as call data after a reminder change.
type ReminderResponse struct {
	Timezone    string    `json:"timezone"`
	Hour        int       `json:"hour"`
	Minute      int       `json:"minute"`
	ExcludeDays []string  `json:"exclude_days"`
	NextFire    time.Time `json:"next_fire"`
}

func ToReminderResponse(s reminder.Setting, now time.Time) ReminderResponse {
	resp := ReminderResponse{
		Timezone:    s.Timezone,
		Hour:        s.Hour,
		Minute:      s.Minute,
		ExcludeDays: s.ExcludeDays,
	}
	if schedule, err := s.Schedule(); err == nil {
		resp.NextFire = schedule.Next(now)
	}
	return resp
}

type StatusUpdateResponse struct {
	Updated int `json:"updated"`
}
