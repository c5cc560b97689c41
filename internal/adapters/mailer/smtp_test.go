package mailer

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phishing-report-relay/internal/config"
	"github.com/mikey/phishing-report-relay/internal/core"
)

type dialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (d dialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d(ctx, network, address)
}

type smtpTranscript struct {
	helo     string
	authLine string
	mailFrom string
	rcpts    []string
	data     string
	quit     bool
}

func testConfig() config.SMTPConfig {
	return config.SMTPConfig{
		Host:     "relay.example.com",
		Port:     587,
		Username: "reporter",
		Password: "hunter2",
		UseTLS:   false,
		StartTLS: false,
		Timeout:  2 * time.Second,
	}
}

func testNotification() core.Notification {
	return core.Notification{
		MessageID: "abc123",
		From:      "relay@example.com",
		To:        "soc@example.com",
		Subject:   "Phishing Report - Joby Security Extension",
		Body:      "PHISHING REPORT (Auto-generated)\n\nEmail Subject: Urgent\n",
	}
}

func TestSendPerformsFullConversation(t *testing.T) {
	transcript := &smtpTranscript{}
	var wait func()
	defer func() {
		if wait != nil {
			wait()
		}
	}()

	dialer := dialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		assert.Equal(t, "tcp", network)
		assert.Equal(t, "relay.example.com:587", address)
		conn, waitFn := startFakeSMTPServer(t, transcript)
		wait = waitFn
		return conn, nil
	})

	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	m := NewSMTPMailer(testConfig(), zap.NewNop(),
		WithDialer(dialer),
		WithHelloName("test.local"),
		WithClock(func() time.Time { return fixed }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, m.Send(ctx, testNotification()))
	wait()
	wait = nil

	assert.Equal(t, "test.local", transcript.helo)
	assert.Equal(t, "relay@example.com", transcript.mailFrom)
	assert.Equal(t, []string{"soc@example.com"}, transcript.rcpts)
	assert.True(t, transcript.quit)

	// AUTH PLAIN carries the configured credentials
	require.NotEmpty(t, transcript.authLine)
	decoded, err := base64.StdEncoding.DecodeString(transcript.authLine)
	require.NoError(t, err)
	assert.Equal(t, "\x00reporter\x00hunter2", string(decoded))

	// Headers and CRLF body on the wire
	assert.Contains(t, transcript.data, "From: relay@example.com\r\n")
	assert.Contains(t, transcript.data, "To: soc@example.com\r\n")
	assert.Contains(t, transcript.data, "Subject: Phishing Report - Joby Security Extension\r\n")
	assert.Contains(t, transcript.data, "Date: Fri, 14 Mar 2025 09:26:53 +0000\r\n")
	assert.Contains(t, transcript.data, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.Contains(t, transcript.data, "PHISHING REPORT (Auto-generated)\r\n\r\nEmail Subject: Urgent\r\n")
}

func TestSendSkipsAuthWithoutCredentials(t *testing.T) {
	transcript := &smtpTranscript{}
	var wait func()
	defer func() {
		if wait != nil {
			wait()
		}
	}()

	dialer := dialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		conn, waitFn := startFakeSMTPServer(t, transcript)
		wait = waitFn
		return conn, nil
	})

	cfg := testConfig()
	cfg.Username = ""
	cfg.Password = ""

	m := NewSMTPMailer(cfg, zap.NewNop(), WithDialer(dialer), WithHelloName("test.local"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, m.Send(ctx, testNotification()))
	wait()
	wait = nil

	assert.Empty(t, transcript.authLine)
	assert.Equal(t, "relay@example.com", transcript.mailFrom)
}

func TestSendDialFailure(t *testing.T) {
	dialer := dialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, fmt.Errorf("connection refused")
	})

	m := NewSMTPMailer(testConfig(), zap.NewNop(), WithDialer(dialer))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := m.Send(ctx, testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

// startFakeSMTPServer runs a scripted SMTP conversation on the far side of a
// net.Pipe, recording what the client sends.
func startFakeSMTPServer(t *testing.T, transcript *smtpTranscript) (net.Conn, func()) {
	t.Helper()

	server, client := net.Pipe()
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer server.Close()
		if err := runFakeSMTPConversation(server, transcript); err != nil && err != io.EOF {
			t.Errorf("fake smtp server: %v", err)
		}
	}()

	return client, wg.Wait
}

func runFakeSMTPConversation(conn net.Conn, transcript *smtpTranscript) error {
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	writeLine := func(format string, args ...any) error {
		if _, err := fmt.Fprintf(writer, format+"\r\n", args...); err != nil {
			return err
		}
		return writer.Flush()
	}

	if err := writeLine("220 fake smtp ready"); err != nil {
		return err
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "EHLO ") || strings.HasPrefix(upper, "HELO "):
			transcript.helo = strings.TrimSpace(line[5:])
			if err := writeLine("250-fake.local"); err != nil {
				return err
			}
			if err := writeLine("250 AUTH PLAIN"); err != nil {
				return err
			}
		case strings.HasPrefix(upper, "AUTH PLAIN"):
			transcript.authLine = strings.TrimSpace(line[len("AUTH PLAIN"):])
			if err := writeLine("235 2.7.0 authentication successful"); err != nil {
				return err
			}
		case strings.HasPrefix(upper, "MAIL FROM:"):
			transcript.mailFrom = stripAngles(line[len("MAIL FROM:"):])
			if err := writeLine("250 ok"); err != nil {
				return err
			}
		case strings.HasPrefix(upper, "RCPT TO:"):
			transcript.rcpts = append(transcript.rcpts, stripAngles(line[len("RCPT TO:"):]))
			if err := writeLine("250 ok"); err != nil {
				return err
			}
		case upper == "DATA":
			if err := writeLine("354 end with <CRLF>.<CRLF>"); err != nil {
				return err
			}
			var data strings.Builder
			for {
				dataLine, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				if strings.TrimRight(dataLine, "\r\n") == "." {
					break
				}
				data.WriteString(dataLine)
			}
			transcript.data = data.String()
			if err := writeLine("250 accepted"); err != nil {
				return err
			}
		case upper == "QUIT":
			transcript.quit = true
			return writeLine("221 bye")
		default:
			if err := writeLine("500 unrecognized command"); err != nil {
				return err
			}
		}
	}
}

// stripAngles extracts the address from "<addr>" with optional parameters
func stripAngles(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, ">"); idx >= 0 {
		s = s[:idx+1]
	}
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return s
}
