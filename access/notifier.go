package access

import (
	"context"
	"fmt"
	"time"
)

type NotificationKind string

const (
	NotifyNewCase      NotificationKind = "NEW_CASE"
	NotifyReassignment NotificationKind = "REASSIGNMENT"
	NotifyUpdate       NotificationKind = "UPDATE"
)

type NotificationPriority string

const (
	NotifyLow    NotificationPriority = "LOW"
	NotifyMedium NotificationPriority = "MEDIUM"
	NotifyHigh   NotificationPriority = "HIGH"
)

// Notification is one message to one person in a case's hierarchy.
type Notification struct {
	UserID   string               `json:"user_id"`
	CaseID   string               `json:"case_id"`
	Kind     NotificationKind     `json:"kind"`
	Message  string               `json:"message"`
	Priority NotificationPriority `json:"priority"`
	SentAt   time.Time            `json:"sent_at"`
}

// Notifier delivers notifications. Delivery is best-effort: the controller
// logs a returned error and carries on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// roleMessages holds the officer, sector chief, administrator and director
// texts per kind. %s is the case ID.
var roleMessages = map[NotificationKind][4]string{
	NotifyNewCase: {
		"Case %s assigned to you",
		"Case %s in your sector requires attention",
		"New case %s in your department",
		"New case %s in your directorate",
	},
	NotifyReassignment: {
		"Case %s reassigned to you",
		"Case %s reassigned into your sector",
		"Case %s reassigned within your department",
		"Case %s reassigned within your directorate",
	},
	NotifyUpdate: {
		"Case %s updated",
		"Case %s in your sector was updated",
		"Case %s in your department was updated",
		"Case %s activity in your directorate",
	},
}

// HierarchyNotifications builds the four per-role notifications for a record.
// detail, when set, is appended to every message.
func HierarchyNotifications(rec SyncRecord, kind NotificationKind, detail string, at time.Time) []Notification {
	msgs, ok := roleMessages[kind]
	if !ok {
		msgs = roleMessages[NotifyUpdate]
	}
	out := []Notification{
		{UserID: rec.AssignedOfficer, Message: fmt.Sprintf(msgs[0], rec.CaseID), Priority: NotifyHigh},
		{UserID: rec.SectorChief, Message: fmt.Sprintf(msgs[1], rec.CaseID), Priority: NotifyMedium},
		{UserID: rec.Administrator, Message: fmt.Sprintf(msgs[2], rec.CaseID), Priority: NotifyLow},
		{UserID: rec.Director, Message: fmt.Sprintf(msgs[3], rec.CaseID), Priority: NotifyLow},
	}
	for i := range out {
		out[i].CaseID = rec.CaseID
		out[i].Kind = kind
		out[i].SentAt = at
		if detail != "" {
			out[i].Message += ": " + detail
		}
	}
	return out
}
