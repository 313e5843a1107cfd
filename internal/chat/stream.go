package chat

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/jk08y/real-time-chat-app/internal/docstore"
)

// MessageStream is a live view of the newest messages in one conversation.
// Each emission is the full current window, oldest first. The channel holds
// only the latest snapshot: when the consumer lags, intermediate snapshots
// are dropped and the newest one replaces them.
type MessageStream struct {
	ch     chan []*Message
	cancel func()
}

// Updates returns the snapshot channel.
func (ms *MessageStream) Updates() <-chan []*Message {
	return ms.ch
}

// Close releases the underlying store subscription.
func (ms *MessageStream) Close() {
	ms.cancel()
}

// OpenMessages subscribes to the newest messages of a conversation, capped at
// limit (the configured window when limit <= 0). The first emission carries
// the current contents; a conversation with no messages yet emits an empty
// snapshot rather than failing.
//
// Opening the stream also marks incoming messages as read on behalf of the
// session principal: every message in the window sent by someone else and
// not yet flagged for the principal gets a read receipt written back.
func (s *Session) OpenMessages(chatID string, limit int) (*MessageStream, error) {
	if limit <= 0 {
		limit = defaultMessageWindow
	}
	ms := &MessageStream{ch: make(chan []*Message, 1)}

	cancel, err := s.store.SubscribeQuery(messagesCollection(chatID), nil, func(docs []*docstore.Document) {
		msgs := make([]*Message, 0, len(docs))
		for _, doc := range docs {
			msg, err := decodeMessage(chatID, doc)
			if err != nil {
				s.logger.Warn("skipping malformed message", zap.String("path", doc.Path), zap.Error(err))
				continue
			}
			msgs = append(msgs, msg)
		}

		// Keep the newest limit messages, then present them oldest first.
		sort.Slice(msgs, func(i, j int) bool { return msgs[i].SentAt.After(msgs[j].SentAt) })
		if len(msgs) > limit {
			msgs = msgs[:limit]
		}
		sort.Slice(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })

		for _, msg := range msgs {
			flagged, tracked := msg.Read[s.principal.ID]
			if msg.SentBy == s.principal.ID || !tracked || flagged {
				continue
			}
			go func(id string) {
				if err := s.MarkMessageRead(context.Background(), chatID, id); err != nil {
					s.logger.Warn("mark read failed",
						zap.String("chat_id", chatID), zap.String("message_id", id), zap.Error(err))
				}
			}(msg.ID)
		}

		// Replace any undelivered snapshot with the newest one.
		for {
			select {
			case ms.ch <- msgs:
				return
			default:
				select {
				case <-ms.ch:
				default:
				}
			}
		}
	})
	if err != nil {
		return nil, err
	}
	ms.cancel = s.track(cancel)
	return ms, nil
}
