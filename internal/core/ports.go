package core

import (
	"context"
	"time"
)

// DedupStore decides whether a report for a message is fresh or a recent
// duplicate, recording the acceptance time for fresh reports.
type DedupStore interface {
	// CheckAndRecord returns true if no report for messageID was accepted
	// within the dedup window, recording now as the acceptance time. It
	// returns false without touching the recorded time otherwise. The
	// check and the record are a single atomic step.
	CheckAndRecord(messageID string, now time.Time) bool
}

// DeliveryQueue accepts notifications for asynchronous delivery
type DeliveryQueue interface {
	// Enqueue hands a notification to the background delivery path without
	// blocking. It returns false if the notification was dropped.
	Enqueue(n Notification) bool
}

// Mailer delivers a notification to the security mailbox
type Mailer interface {
	// Send performs one delivery attempt, bounded by ctx
	Send(ctx context.Context, n Notification) error
}
