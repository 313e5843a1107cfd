package bus

import "time"

// Event is a domain event published on the bus. Kind is a dotted name such
// as "message.sent", "chat.created" or "session.status_changed"; subscribers
// filter by namespace prefix.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
