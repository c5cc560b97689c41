package core

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basePayload() ReportPayload {
	return ReportPayload{
		MessageID:      "abc123",
		Subject:        "Urgent",
		FromAddress:    "a@b.com",
		FinalScore:     90,
		HeuristicScore: 100,
		AuthResults: AuthResults{
			DKIM:  AuthUnknown,
			SPF:   AuthUnknown,
			DMARC: AuthUnknown,
		},
	}
}

func TestRenderLayout(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	llm := 42
	analysed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	p := basePayload()
	p.ToAddress = "victim@b.com"
	p.LLMScore = &llm
	p.AnalysedAt = &analysed
	p.Details = []string{"spoofed display name", "urgent language"}
	p.SuspiciousElements = []string{"http://evil.example"}
	p.AuthResults = AuthResults{DKIM: AuthPass, SPF: AuthFail, DMARC: AuthNone}

	body := Render(p, now)

	assert.True(t, strings.HasPrefix(body, "PHISHING REPORT (Auto-generated)\n\n"))
	assert.Contains(t, body, "Email Subject: Urgent\n")
	assert.Contains(t, body, "Sender: a@b.com\n")
	assert.Contains(t, body, "Recipient: victim@b.com\n")
	assert.Contains(t, body, "Message ID: abc123\n")
	assert.Contains(t, body, "Analysed At (UTC): 2025-03-01T12:00:00Z\n")
	assert.Contains(t, body, "- Heuristic: 100\n")
	assert.Contains(t, body, "- LLM: 42\n")
	assert.Contains(t, body, "- Final: 90/100\n")
	assert.Contains(t, body, "- DKIM: pass\n")
	assert.Contains(t, body, "- SPF: fail\n")
	assert.Contains(t, body, "- DMARC: none\n")
	assert.Contains(t, body, "Details:\n- spoofed display name\n- urgent language\n")
	assert.Contains(t, body, "Suspicious Elements:\n- http://evil.example\n")
}

func TestRenderPlaceholders(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	p := basePayload()

	body := Render(p, now)

	assert.Contains(t, body, "Recipient: Unknown\n")
	assert.Contains(t, body, "- LLM: N/A\n")
	assert.Contains(t, body, "Details:\n(none)\n")
	assert.Contains(t, body, "Suspicious Elements:\n(none)\n")
}

func TestRenderSubstitutesNowWhenAnalysedAtAbsent(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	p := basePayload()

	body := Render(p, now)
	assert.Contains(t, body, "Analysed At (UTC): 2025-03-14T09:26:53Z\n")
}

func TestRenderDeterministic(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	analysed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := basePayload()
	p.AnalysedAt = &analysed
	p.Details = []string{"a", "b", "c"}

	first := Render(p, now)
	second := Render(p, now)
	require.Equal(t, first, second)
}

func TestRenderTruncatesListsAtFifty(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	p := basePayload()
	for i := 0; i < 80; i++ {
		p.Details = append(p.Details, fmt.Sprintf("detail %d", i))
	}

	body := Render(p, now)

	start := strings.Index(body, "Details:\n")
	require.NotEqual(t, -1, start)
	end := strings.Index(body, "\n\nSuspicious Elements:")
	require.NotEqual(t, -1, end)

	section := body[start+len("Details:\n") : end]
	lines := strings.Split(section, "\n")
	assert.Len(t, lines, 50)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "- "), "line %q should be dash-prefixed", line)
	}
	assert.Equal(t, "- detail 49", lines[49])
	assert.NotContains(t, body, "detail 50")
}
