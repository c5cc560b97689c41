package core

import (
	"time"
)

// AuthResult is the outcome of an email authentication check
type AuthResult string

const (
	AuthPass    AuthResult = "pass"
	AuthFail    AuthResult = "fail"
	AuthNone    AuthResult = "none"
	AuthUnknown AuthResult = "unknown"
)

// AuthResults holds the authentication outcomes reported for a message
type AuthResults struct {
	DKIM  AuthResult
	SPF   AuthResult
	DMARC AuthResult
}

// ReportPayload represents a validated phishing report submission
type ReportPayload struct {
	MessageID          string
	Subject            string
	FromAddress        string
	ToAddress          string
	FinalScore         int
	HeuristicScore     int
	LLMScore           *int
	Details            []string
	SuspiciousElements []string
	AuthResults        AuthResults
	AnalysedAt         *time.Time
}

// Notification is a rendered report ready for delivery to the security mailbox
type Notification struct {
	MessageID string
	From      string
	To        string
	Subject   string
	Body      string
}

// SubmissionStatus is the outcome of a report submission
type SubmissionStatus string

const (
	// StatusAccepted indicates the report was fresh and queued for delivery
	StatusAccepted SubmissionStatus = "accepted"
	// StatusDuplicateIgnored indicates a recent report for the same message
	// was already relayed and this one was suppressed
	StatusDuplicateIgnored SubmissionStatus = "duplicate_ignored"
)
