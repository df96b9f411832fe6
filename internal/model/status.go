package model

import (
	"encoding/json"
	"fmt"
)

// Status is the resolved LinkedIn login state of one device.
type Status int

const (
	StatusUnknown Status = iota
	StatusLoggedOut
	StatusLoggedIn
	StatusLoggedInPersonal
)

// String returns the wire value. StatusUnknown has no wire value.
func (s Status) String() string {
	switch s {
	case StatusLoggedOut:
		return "logged_out"
	case StatusLoggedIn:
		return "logged_in"
	case StatusLoggedInPersonal:
		return "logged_in_personal"
	default:
		return ""
	}
}

// Shared reports whether the status counts as use of the shared account.
func (s Status) Shared() bool {
	return s == StatusLoggedIn
}

// ParseStatus maps a wire value to a Status. Unrecognized values map to
// StatusUnknown.
func ParseStatus(v string) Status {
	switch v {
	case "logged_out":
		return StatusLoggedOut
	case "logged_in":
		return StatusLoggedIn
	case "logged_in_personal":
		return StatusLoggedInPersonal
	default:
		return StatusUnknown
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	if s == StatusUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = StatusUnknown
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	*s = ParseStatus(v)
	return nil
}
