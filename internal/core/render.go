package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxListEntries caps how many detail and suspicious-element lines are
// rendered into the notification body.
const maxListEntries = 50

// Render produces the plaintext notification body for a report. It is
// deterministic for a given payload and substitution instant: now is used as
// the analysis timestamp only when the payload does not carry one.
func Render(p ReportPayload, now time.Time) string {
	analysedAt := now
	if p.AnalysedAt != nil {
		analysedAt = *p.AnalysedAt
	}

	recipient := p.ToAddress
	if recipient == "" {
		recipient = "Unknown"
	}

	llmScore := "N/A"
	if p.LLMScore != nil {
		llmScore = strconv.Itoa(*p.LLMScore)
	}

	var b strings.Builder
	b.WriteString("PHISHING REPORT (Auto-generated)\n\n")
	fmt.Fprintf(&b, "Email Subject: %s\n", p.Subject)
	fmt.Fprintf(&b, "Sender: %s\n", p.FromAddress)
	fmt.Fprintf(&b, "Recipient: %s\n", recipient)
	fmt.Fprintf(&b, "Message ID: %s\n", p.MessageID)
	fmt.Fprintf(&b, "Analysed At (UTC): %s\n\n", analysedAt.UTC().Format(time.RFC3339))
	b.WriteString("Scores:\n")
	fmt.Fprintf(&b, "- Heuristic: %d\n", p.HeuristicScore)
	fmt.Fprintf(&b, "- LLM: %s\n", llmScore)
	fmt.Fprintf(&b, "- Final: %d/100\n\n", p.FinalScore)
	b.WriteString("Authentication:\n")
	fmt.Fprintf(&b, "- DKIM: %s\n", p.AuthResults.DKIM)
	fmt.Fprintf(&b, "- SPF: %s\n", p.AuthResults.SPF)
	fmt.Fprintf(&b, "- DMARC: %s\n\n", p.AuthResults.DMARC)
	b.WriteString("Details:\n")
	b.WriteString(renderList(p.Details))
	b.WriteString("\n\nSuspicious Elements:\n")
	b.WriteString(renderList(p.SuspiciousElements))
	b.WriteString("\n")

	return b.String()
}

// renderList renders up to maxListEntries items as dash-prefixed lines, or a
// placeholder when there is nothing to show.
func renderList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	if len(items) > maxListEntries {
		items = items[:maxListEntries]
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}
