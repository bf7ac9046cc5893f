package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized          = errors.New("requires system_admin role")
	ErrDirectChannel         = errors.New("this is a direct message, run this command from a valid channel")
	ErrChannelNotRegistered  = errors.New("channel not setup for standups")
	ErrIncompleteCredentials = errors.New("tracker provider, owner, project and token are required")
)

// MissingContextError rejects a call whose envelope lacks a required field. Nothing has
// been done when it is returned.
type MissingContextError struct {
	Field string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("Missing expected parameter '%s'", e.Field)
}

func missing(field string) error {
	return &MissingContextError{Field: field}
}

// InvalidInputError wraps a rejected form value.
type InvalidInputError struct {
	Err error
}

func (e *InvalidInputError) Error() string {
	return e.Err.Error()
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

func invalid(err error) error {
	return &InvalidInputError{Err: err}
}
