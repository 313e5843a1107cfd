package chat

import (
	"fmt"

	"github.com/jk08y/real-time-chat-app/internal/docstore"
	"github.com/jk08y/real-time-chat-app/internal/timefmt"
)

// WatchPresence observes another principal's availability. The callback
// fires with the current state on registration and again whenever the
// observed user's document changes. An absent or never-seen offline user
// reports the literal "offline" as its last-seen line.
func (s *Session) WatchPresence(userID string, fn func(Presence)) (func(), error) {
	cancel, err := s.store.Subscribe(userPath(userID), func(doc *docstore.Document) {
		if doc == nil {
			fn(Presence{LastSeen: "offline"})
			return
		}
		p := Presence{Online: asBool(doc.Fields["online"])}
		if last := asTime(doc.Fields["lastSeen"]); !last.IsZero() {
			p.LastSeen = timefmt.LastSeen(last)
		} else if !p.Online {
			p.LastSeen = "offline"
		}
		fn(p)
	})
	if err != nil {
		return nil, fmt.Errorf("watch presence: %w", err)
	}
	return s.track(cancel), nil
}
