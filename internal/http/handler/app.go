package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/conversation"
	"basegraph.app/standup/internal/http/dto"
	"basegraph.app/standup/internal/service"
)

// AppHandler serves the platform plumbing: manifest, bindings and health.
type AppHandler struct {
	rootURL string
	useJWT  bool
	health  func() service.Health
}

func NewAppHandler(rootURL string, useJWT bool, health func() service.Health) *AppHandler {
	return &AppHandler{rootURL: rootURL, useJWT: useJWT, health: health}
}

func (h *AppHandler) Manifest(c *gin.Context) {
	c.JSON(http.StatusOK, apps.Manifest{
		AppID:       apps.AppID,
		DisplayName: "Standup Bot",
		Description: "Facilitate Async Standups",
		HomepageURL: "https://github.com/digi-serve/mattermost-standup-app",
		AppType:     "http",
		Icon:        "meeting.png",
		HTTP: apps.ManifestHTTP{
			RootURL: h.rootURL,
			UseJWT:  h.useJWT,
		},
		RequestedPermissions: []string{"act_as_bot", "act_as_user"},
		RequestedLocations:   []string{"/command", "/in_post"},
	})
}

func (h *AppHandler) Bindings(c *gin.Context) {
	c.JSON(http.StatusOK, apps.OKData([]apps.Binding{CommandBindings()}))
}

func (h *AppHandler) Health(c *gin.Context) {
	health := h.health()
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:        "ok",
		Ready:         health.Ready,
		Tracker:       health.Tracker,
		Conversations: health.Conversations,
	})
}

// CommandBindings is the /standup command tree.
func CommandBindings() apps.Binding {
	userExpand := &apps.Expand{ActingUser: apps.ExpandSummary, Channel: apps.ExpandSummary}
	binding := func(location string, b apps.Binding) apps.Binding {
		b.AppID = apps.AppID
		b.Location = location
		if b.Label == "" {
			b.Label = location
		}
		return b
	}

	return binding("/command", apps.Binding{
		Label: "Standup Bot",
		Bindings: []apps.Binding{
			binding("standup", apps.Binding{
				Icon: "meeting.png",
				Hint: "[ start | register | settings ]",
				Bindings: []apps.Binding{
					binding("start", apps.Binding{
						Submit: &apps.Call{Path: conversation.PathStart, Expand: userExpand},
					}),
					binding("register", apps.Binding{
						Hint: "[ user | channel ]",
						Bindings: []apps.Binding{
							binding("channel", apps.Binding{
								Submit: &apps.Call{Path: PathRegisterChannel, Expand: &apps.Expand{
									ActingUser:            apps.ExpandSummary,
									ActingUserAccessToken: apps.ExpandAll,
									Channel:               apps.ExpandSummary,
								}},
							}),
							binding("user", apps.Binding{
								Submit: &apps.Call{Path: PathRegisterUser, Expand: userExpand},
							}),
						},
					}),
					binding("settings", apps.Binding{
						Hint: "[ reminder | tracker ]",
						Bindings: []apps.Binding{
							binding("reminder", apps.Binding{Form: reminderForm(userExpand)}),
							binding("tracker", apps.Binding{Form: trackerForm(userExpand)}),
						},
					}),
				},
			}),
		},
	})
}

func reminderForm(expand *apps.Expand) *apps.Form {
	return &apps.Form{
		Title:  "Adjust Reminder",
		Header: "Change when you receive reminders",
		Icon:   "icon.png",
		Fields: []apps.Field{
			{Name: "hour", Label: "hour", Type: apps.FieldTypeText, Subtype: "number", Description: "At what hour? Use 24 hour format (eg. 1 pm = 13)"},
			{Name: "minute", Label: "minute", Type: apps.FieldTypeText, Subtype: "number", Description: "At what minute?"},
			{Name: "skip-days", Label: "skip-days", Type: apps.FieldTypeText, Subtype: "input", Description: "Which days to skip? Format: Comma separated, first 3 letters (eg. MON, FRI)"},
		},
		Submit: &apps.Call{Path: PathReminder, Expand: expand},
	}
}

func trackerForm(expand *apps.Expand) *apps.Form {
	return &apps.Form{
		Title:  "Connect Issue Tracker",
		Header: "Connect to a GitHub Project or a GitLab group board",
		Icon:   "icon.png",
		Fields: []apps.Field{
			{Name: "provider", Label: "provider", Type: apps.FieldTypeStaticSelect, Options: []apps.SelectOption{
				{Label: "GitHub", Value: "github"},
				{Label: "GitLab", Value: "gitlab"},
			}, Value: apps.SelectOption{Label: "GitHub", Value: "github"}},
			{Name: "owner", Label: "owner", Type: apps.FieldTypeText, Subtype: "input", IsRequired: true, Description: "GitHub user or organization, or GitLab group"},
			{Name: "project", Label: "project", Type: apps.FieldTypeText, Subtype: "input", IsRequired: true, Description: "GitHub Project (v2) number or GitLab group path"},
			{Name: "token", Label: "token", Type: apps.FieldTypeText, Subtype: "password", IsRequired: true, Description: "Access token"},
			{Name: "base_url", Label: "base_url", Type: apps.FieldTypeText, Subtype: "url", Description: "API endpoint for self-hosted trackers"},
		},
		Submit: &apps.Call{Path: PathTracker, Expand: expand},
	}
}
