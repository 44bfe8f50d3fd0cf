// Package model defines the core domain types for the activity board.
package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Activity is a named, scheduled offering with a participant roster and capacity.
// Name is the key under which the API returns the record.
type Activity struct {
	Name            string   `json:"-"`
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// SpotsLeft returns capacity minus the current registrant count. It is not
// clamped: an over-subscribed activity reports a negative value.
func (a *Activity) SpotsLeft() int {
	return a.MaxParticipants - len(a.Participants)
}

// IsFull returns true when no spots remain.
func (a *Activity) IsFull() bool {
	return a.SpotsLeft() <= 0
}

// Snapshot is the activities collection in the order the API returned it.
type Snapshot []Activity

// Names returns the activity names in snapshot order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for _, a := range s {
		names = append(names, a.Name)
	}
	return names
}

// DisplayName derives a participant's display name from their email: the
// local part before the first "@" with its first character upper-cased.
func DisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(local)
	if r == utf8.RuneError && size == 1 {
		return local
	}
	return string(unicode.ToUpper(r)) + local[size:]
}

// MessageKind styles a banner message.
type MessageKind string

const (
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Message is a transient status line shown in the banner.
type Message struct {
	Text string      `json:"text"`
	Kind MessageKind `json:"kind"`
}

// MutationResponse is the body returned by the signup and removal endpoints.
// Message is set on success, Detail on failure.
type MutationResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}
