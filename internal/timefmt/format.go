// Package timefmt maps timestamps to the short human-readable forms used in
// conversation lists, message bubbles and presence lines.
package timefmt

import (
	"time"

	"github.com/dustin/go-humanize"
)

// MessageDate formats a message timestamp: time of day for today,
// "Yesterday" for yesterday, an abbreviated month/day otherwise.
func MessageDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	switch {
	case isToday(t):
		return t.Format("15:04")
	case isYesterday(t):
		return "Yesterday"
	default:
		return t.Format("Jan 2")
	}
}

// ChatListDate formats a conversation's last-activity timestamp for list
// rendering. Same branches as MessageDate but with a numeric date fallback.
func ChatListDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	switch {
	case isToday(t):
		return t.Format("15:04")
	case isYesterday(t):
		return "Yesterday"
	default:
		return t.Format("01/02/2006")
	}
}

// LastSeen renders a relative "last seen ..." line for presence display.
func LastSeen(t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	return "last seen " + humanize.Time(t)
}

// FullDate renders a complete timestamp for message detail views.
func FullDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006 15:04")
}

func isToday(t time.Time) bool {
	return sameDay(t, time.Now())
}

func isYesterday(t time.Time) bool {
	return sameDay(t, time.Now().AddDate(0, 0, -1))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
