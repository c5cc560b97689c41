package core

import (
	"time"

	"go.uber.org/zap"
)

// NotificationSubject is the fixed subject line for relayed reports
const NotificationSubject = "Phishing Report - Joby Security Extension"

// ReportService is the core submission pipeline: dedup decision, notification
// construction, and hand-off to the asynchronous delivery path.
type ReportService struct {
	dedup   DedupStore
	queue   DeliveryQueue
	logger  *zap.Logger
	sender  string
	mailbox string
	now     func() time.Time
}

// NewReportService creates a new report service
func NewReportService(
	dedup DedupStore,
	queue DeliveryQueue,
	logger *zap.Logger,
	sender string,
	mailbox string,
) *ReportService {
	return &ReportService{
		dedup:   dedup,
		queue:   queue,
		logger:  logger,
		sender:  sender,
		mailbox: mailbox,
		now:     time.Now,
	}
}

// WithClock replaces the service clock. Intended for tests.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	if now != nil {
		s.now = now
	}
	return s
}

// Submit runs a validated report through deduplication and, when fresh,
// queues a rendered notification for delivery. The caller gets its status
// back before any delivery happens.
func (s *ReportService) Submit(p ReportPayload) SubmissionStatus {
	now := s.now().UTC()

	if !s.dedup.CheckAndRecord(p.MessageID, now) {
		s.logger.Info("Suppressed duplicate report",
			zap.String("message_id", p.MessageID))
		return StatusDuplicateIgnored
	}

	notification := Notification{
		MessageID: p.MessageID,
		From:      s.sender,
		To:        s.mailbox,
		Subject:   NotificationSubject,
		Body:      Render(p, now),
	}

	if !s.queue.Enqueue(notification) {
		// The submission stays accepted: the response contract does not
		// expose delivery outcomes, and the drop is already logged by the
		// queue. The dedup stamp stands so a retried client is suppressed.
		s.logger.Warn("Delivery queue rejected notification",
			zap.String("message_id", p.MessageID))
	}

	s.logger.Info("Accepted phishing report",
		zap.String("message_id", p.MessageID),
		zap.Int("final_score", p.FinalScore))
	return StatusAccepted
}
