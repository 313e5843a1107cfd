// Package chat implements the client-side session core for one signed-in
// principal: resolving conversations, streaming message history, sending,
// read receipts, typing signals and presence views, all on top of the
// hosted document store.
package chat

import "time"

// defaultMessageWindow caps a message stream when the caller passes no
// explicit limit.
const defaultMessageWindow = 50

// Persisted message delivery statuses. "sending" is deliberately not here:
// it only ever exists as transient UI state and is never written to the
// store.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// ParticipantInfo is the display metadata snapshot captured per participant
// when a conversation is created.
type ParticipantInfo struct {
	DisplayName string
	AvatarURL   string
}

// LastMessage is the denormalized summary kept on a conversation for list
// rendering. Zero SentAt means no message yet.
type LastMessage struct {
	Text   string
	SentBy string
	SentAt time.Time
}

// Conversation is a two-party messaging thread.
type Conversation struct {
	ID           string
	Participants []string
	Info         map[string]ParticipantInfo
	LastMessage  LastMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasParticipant reports whether id is one of the two participants.
func (c *Conversation) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not id, or "".
func (c *Conversation) OtherParticipant(id string) string {
	for _, p := range c.Participants {
		if p != id {
			return p
		}
	}
	return ""
}

// Message is one immutable chat entry. Read maps recipient id to whether
// that recipient has read the message; the sender has no entry.
type Message struct {
	ID     string
	ChatID string
	Text   string
	SentBy string
	SentAt time.Time
	Status string
	Read   map[string]bool
}

// Presence is the live view of another principal's availability.
type Presence struct {
	Online bool
	// LastSeen is a relative "last seen ..." line when a last-seen
	// timestamp exists, or the literal "offline" when the principal is
	// offline and has never been seen.
	LastSeen string
}
