// Package apps holds the Mattermost Apps wire types: calls, responses, forms and bindings.
package apps

import (
	"encoding/json"
	"strings"
)

const AppID = "standup-bot"

type CallResponseType string

const (
	CallResponseTypeOK    CallResponseType = "ok"
	CallResponseTypeForm  CallResponseType = "form"
	CallResponseTypeError CallResponseType = "error"
)

type User struct {
	ID       string            `json:"id"`
	Username string            `json:"username,omitempty"`
	Roles    string            `json:"roles,omitempty"`
	Timezone map[string]string `json:"timezone,omitempty"`
}

func (u *User) IsSystemAdmin() bool {
	if u == nil {
		return false
	}
	for _, role := range strings.Fields(u.Roles) {
		if role == "system_admin" {
			return true
		}
	}
	return false
}

// TimezoneName returns the user's effective IANA timezone, or "" when unset.
func (u *User) TimezoneName() string {
	if u == nil || u.Timezone == nil {
		return ""
	}
	if u.Timezone["useAutomaticTimezone"] == "true" {
		return u.Timezone["automaticTimezone"]
	}
	return u.Timezone["manualTimezone"]
}

type ChannelType string

const (
	ChannelTypeOpen    ChannelType = "O"
	ChannelTypePrivate ChannelType = "P"
	ChannelTypeDirect  ChannelType = "D"
	ChannelTypeGroup   ChannelType = "G"
)

type Channel struct {
	ID          string      `json:"id"`
	TeamID      string      `json:"team_id,omitempty"`
	DisplayName string      `json:"display_name,omitempty"`
	Type        ChannelType `json:"type,omitempty"`
}

type Post struct {
	ID string `json:"id"`
}

// Context is the envelope Mattermost sends with every call, filled according to the
// call's expand settings.
type Context struct {
	AppID                 string   `json:"app_id,omitempty"`
	Location              string   `json:"location,omitempty"`
	MattermostSiteURL     string   `json:"mattermost_site_url,omitempty"`
	BotUserID             string   `json:"bot_user_id,omitempty"`
	BotAccessToken        string   `json:"bot_access_token,omitempty"`
	ActingUser            *User    `json:"acting_user,omitempty"`
	ActingUserAccessToken string   `json:"acting_user_access_token,omitempty"`
	Channel               *Channel `json:"channel,omitempty"`
	Post                  *Post    `json:"post,omitempty"`
}

// ActingUserID is "" when the acting user was not expanded.
func (c Context) ActingUserID() string {
	if c.ActingUser == nil {
		return ""
	}
	return c.ActingUser.ID
}

type CallRequest struct {
	Path    string          `json:"path,omitempty"`
	Context Context         `json:"context"`
	Values  Values          `json:"values"`
	State   json.RawMessage `json:"state,omitempty"`
}

// DecodeState unmarshals the call state into v. An absent state leaves v untouched.
func (r CallRequest) DecodeState(v any) error {
	if len(r.State) == 0 || string(r.State) == "null" {
		return nil
	}
	return json.Unmarshal(r.State, v)
}

type CallResponse struct {
	Type CallResponseType `json:"type"`
	Text string           `json:"text,omitempty"`
	Form *Form            `json:"form,omitempty"`
	Data any              `json:"data,omitempty"`
}

func OK(text string) CallResponse {
	return CallResponse{Type: CallResponseTypeOK, Text: text}
}

func OKData(data any) CallResponse {
	return CallResponse{Type: CallResponseTypeOK, Data: data}
}

func FormResponse(f *Form) CallResponse {
	return CallResponse{Type: CallResponseTypeForm, Form: f}
}

func Error(text string) CallResponse {
	return CallResponse{Type: CallResponseTypeError, Text: text}
}

type ExpandLevel string

const (
	ExpandAll     ExpandLevel = "all"
	ExpandSummary ExpandLevel = "summary"
)

type Expand struct {
	ActingUser            ExpandLevel `json:"acting_user,omitempty"`
	ActingUserAccessToken ExpandLevel `json:"acting_user_access_token,omitempty"`
	Channel               ExpandLevel `json:"channel,omitempty"`
	Post                  ExpandLevel `json:"post,omitempty"`
}

type Call struct {
	Path   string  `json:"path"`
	Expand *Expand `json:"expand,omitempty"`
	State  any     `json:"state,omitempty"`
}

type FieldType string

const (
	FieldTypeText         FieldType = "text"
	FieldTypeStaticSelect FieldType = "static_select"
	FieldTypeBool         FieldType = "bool"
)

type SelectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Field struct {
	Name        string         `json:"name"`
	Label       string         `json:"label,omitempty"`
	ModalLabel  string         `json:"modal_label,omitempty"`
	Type        FieldType      `json:"type"`
	Subtype     string         `json:"subtype,omitempty"`
	Value       any            `json:"value,omitempty"`
	IsRequired  bool           `json:"is_required,omitempty"`
	Description string         `json:"description,omitempty"`
	Hint        string         `json:"hint,omitempty"`
	Options     []SelectOption `json:"options,omitempty"`
}

type Form struct {
	Title  string  `json:"title,omitempty"`
	Header string  `json:"header,omitempty"`
	Icon   string  `json:"icon,omitempty"`
	Fields []Field `json:"fields,omitempty"`
	Submit *Call   `json:"submit,omitempty"`
}

type Binding struct {
	AppID       string    `json:"app_id,omitempty"`
	Location    string    `json:"location,omitempty"`
	Label       string    `json:"label,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Hint        string    `json:"hint,omitempty"`
	Description string    `json:"description,omitempty"`
	Bindings    []Binding `json:"bindings,omitempty"`
	Form        *Form     `json:"form,omitempty"`
	Submit      *Call     `json:"submit,omitempty"`
}

type Manifest struct {
	AppID                string       `json:"app_id"`
	DisplayName          string       `json:"display_name"`
	Description          string       `json:"description"`
	HomepageURL          string       `json:"homepage_url"`
	AppType              string       `json:"app_type"`
	Icon                 string       `json:"icon"`
	HTTP                 ManifestHTTP `json:"http"`
	RequestedPermissions []string     `json:"requested_permissions"`
	RequestedLocations   []string     `json:"requested_locations"`
}

type ManifestHTTP struct {
	RootURL string `json:"root_url"`
	UseJWT  bool   `json:"use_jwt"`
}
