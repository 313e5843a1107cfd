package chat

import (
	"fmt"
	"time"

	"github.com/jk08y/real-time-chat-app/internal/docstore"
)

// Store field codecs. Timestamps are unix milliseconds on the wire; numeric
// fields may come back as float64 after the store's JSON round trip, so the
// decoders accept both.

func chatPath(chatID string) string {
	return "chats/" + chatID
}

func messagesCollection(chatID string) string {
	return "chats/" + chatID + "/messages"
}

func messagePath(chatID, messageID string) string {
	return messagesCollection(chatID) + "/" + messageID
}

func typingPath(chatID string) string {
	return "typing/" + chatID
}

func userPath(userID string) string {
	return "users/" + userID
}

func encodeConversation(c *Conversation) map[string]any {
	info := make(map[string]any, len(c.Info))
	for id, pi := range c.Info {
		info[id] = map[string]any{
			"displayName": pi.DisplayName,
			"photoURL":    pi.AvatarURL,
		}
	}
	return map[string]any{
		"id":               c.ID,
		"participants":     append([]string(nil), c.Participants...),
		"participantsInfo": info,
		"lastMessage":      encodeLastMessage(c.LastMessage),
		"createdAt":        c.CreatedAt.UnixMilli(),
		"updatedAt":        c.UpdatedAt.UnixMilli(),
	}
}

func encodeLastMessage(lm LastMessage) map[string]any {
	out := map[string]any{
		"text":   lm.Text,
		"sentBy": lm.SentBy,
	}
	if lm.SentAt.IsZero() {
		out["sentAt"] = nil
	} else {
		out["sentAt"] = lm.SentAt.UnixMilli()
	}
	return out
}

func decodeConversation(doc *docstore.Document) (*Conversation, error) {
	id := asString(doc.Fields["id"])
	participants := asStringSlice(doc.Fields["participants"])
	if id == "" || len(participants) == 0 {
		return nil, fmt.Errorf("malformed conversation document %s", doc.Path)
	}

	info := make(map[string]ParticipantInfo)
	for uid, v := range asMap(doc.Fields["participantsInfo"]) {
		m := asMap(v)
		info[uid] = ParticipantInfo{
			DisplayName: asString(m["displayName"]),
			AvatarURL:   asString(m["photoURL"]),
		}
	}

	lm := asMap(doc.Fields["lastMessage"])
	return &Conversation{
		ID:           id,
		Participants: participants,
		Info:         info,
		LastMessage: LastMessage{
			Text:   asString(lm["text"]),
			SentBy: asString(lm["sentBy"]),
			SentAt: asTime(lm["sentAt"]),
		},
		CreatedAt: asTime(doc.Fields["createdAt"]),
		UpdatedAt: asTime(doc.Fields["updatedAt"]),
	}, nil
}

func encodeMessage(m *Message) map[string]any {
	read := make(map[string]any, len(m.Read))
	for id, flag := range m.Read {
		read[id] = flag
	}
	return map[string]any{
		"id":     m.ID,
		"text":   m.Text,
		"sentBy": m.SentBy,
		"sentAt": m.SentAt.UnixMilli(),
		"status": m.Status,
		"read":   read,
	}
}

func decodeMessage(chatID string, doc *docstore.Document) (*Message, error) {
	id := asString(doc.Fields["id"])
	if id == "" {
		return nil, fmt.Errorf("malformed message document %s", doc.Path)
	}
	return &Message{
		ID:     id,
		ChatID: chatID,
		Text:   asString(doc.Fields["text"]),
		SentBy: asString(doc.Fields["sentBy"]),
		SentAt: asTime(doc.Fields["sentAt"]),
		Status: asString(doc.Fields["status"]),
		Read:   asBoolMap(doc.Fields["read"]),
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case int64:
		return time.UnixMilli(t)
	case float64:
		return time.UnixMilli(int64(t))
	case int:
		return time.UnixMilli(int64(t))
	default:
		return time.Time{}
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, el := range t {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asBoolMap(v any) map[string]bool {
	switch t := v.(type) {
	case map[string]bool:
		out := make(map[string]bool, len(t))
		for k, b := range t {
			out[k] = b
		}
		return out
	case map[string]any:
		out := make(map[string]bool, len(t))
		for k, el := range t {
			if b, ok := el.(bool); ok {
				out[k] = b
			}
		}
		return out
	default:
		return nil
	}
}
