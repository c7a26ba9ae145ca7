package models

import (
	"strings"
	"time"
)

// Session event kinds emitted by the authentication provider.
const (
	SessionSignedIn  = "signed-in"
	SessionSignedOut = "signed-out"
	SessionInitial   = "initial"
)

// Metadata keys captured once at signup and carried on the session.
const (
	MetaFirstName    = "first_name"
	MetaLastName     = "last_name"
	MetaRole         = "role"
	MetaBusinessName = "business_name"
)

// SessionEvent is emitted when a principal's session changes state. The
// metadata map holds free-form attributes captured at signup; it is empty
// for principals that signed up before metadata capture existed.
type SessionEvent struct {
	Kind        string
	PrincipalID string
	Email       string
	Metadata    map[string]string
	OccurredAt  time.Time
}

// HasSignupMetadata reports whether the event carries enough signup
// metadata for the auto-healer to reconstruct a profile.
func (e *SessionEvent) HasSignupMetadata() bool {
	if e.Metadata == nil {
		return false
	}
	return e.Metadata[MetaFirstName] != "" || e.Metadata[MetaLastName] != ""
}

// DisplayName derives a display name from signup metadata, falling back to
// the local part of the email address.
func (e *SessionEvent) DisplayName() string {
	first := strings.TrimSpace(e.Metadata[MetaFirstName])
	last := strings.TrimSpace(e.Metadata[MetaLastName])
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	}
	if at := strings.IndexByte(e.Email, '@'); at > 0 {
		return e.Email[:at]
	}
	return e.Email
}

// RequestedRole returns the role requested at signup, or empty when none
// was captured.
func (e *SessionEvent) RequestedRole() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[MetaRole]
}
