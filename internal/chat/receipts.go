package chat

import (
	"context"
	"fmt"
)

// MarkMessageRead flips the session principal's read flag on the message and
// persists the recomputed status. A no-op when the principal is the sender.
// Re-marking an already-read message issues the same write again and never
// reports an error; a read flag is never revoked.
func (s *Session) MarkMessageRead(ctx context.Context, chatID, messageID string) error {
	doc, err := s.store.Get(ctx, messagePath(chatID, messageID))
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}
	msg, err := decodeMessage(chatID, doc)
	if err != nil {
		return err
	}
	if msg.SentBy == s.principal.ID {
		return nil
	}

	read := msg.Read
	if read == nil {
		read = make(map[string]bool)
	}
	read[s.principal.ID] = true

	readField := make(map[string]any, len(read))
	for id, flag := range read {
		readField[id] = flag
	}
	if err := s.store.Update(ctx, messagePath(chatID, messageID), map[string]any{
		"read":   readField,
		"status": StatusRead,
	}); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
