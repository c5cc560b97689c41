package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/phishing-report-relay/internal/config"
	"github.com/mikey/phishing-report-relay/internal/core"
)

// Dialer abstracts net.Dialer to simplify testing
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option configures the behaviour of the SMTP mailer
type Option func(*SMTPMailer)

// WithDialer swaps the network dialer used to reach the relay
func WithDialer(d Dialer) Option {
	return func(m *SMTPMailer) {
		if d != nil {
			m.dialer = d
		}
	}
}

// WithTLSConfig overrides the TLS configuration used for implicit TLS and
// STARTTLS sessions
func WithTLSConfig(cfg *tls.Config) Option {
	return func(m *SMTPMailer) {
		m.tlsConfig = cfg
	}
}

// WithHelloName customises the EHLO identity presented to the relay
func WithHelloName(name string) Option {
	return func(m *SMTPMailer) {
		if strings.TrimSpace(name) != "" {
			m.helloName = strings.TrimSpace(name)
		}
	}
}

// WithClock replaces the clock used for the Date header. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *SMTPMailer) {
		if now != nil {
			m.now = now
		}
	}
}

// SMTPMailer delivers notifications to the security mailbox through a
// configured SMTP relay
type SMTPMailer struct {
	cfg       config.SMTPConfig
	logger    *zap.Logger
	dialer    Dialer
	tlsConfig *tls.Config
	helloName string
	now       func() time.Time
}

// NewSMTPMailer creates a new SMTP mailer
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger, opts ...Option) *SMTPMailer {
	helloName, err := os.Hostname()
	if err != nil || helloName == "" {
		helloName = "localhost"
	}

	m := &SMTPMailer{
		cfg:       cfg,
		logger:    logger,
		dialer:    &net.Dialer{Timeout: cfg.Timeout},
		helloName: helloName,
		now:       time.Now,
		tlsConfig: &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Send performs one delivery attempt: dial, negotiate transport security per
// configuration, authenticate when credentials are set, then transmit with an
// explicit envelope sender and the single configured recipient.
func (m *SMTPMailer) Send(ctx context.Context, n core.Notification) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	conn, err := m.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP relay: %w", err)
	}
	defer conn.Close()

	// Bound every protocol step by the attempt deadline
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set connection deadline: %w", err)
		}
	}

	// Implicit TLS wraps the connection before any SMTP traffic
	if m.cfg.UseTLS {
		conn = tls.Client(conn, m.sessionTLSConfig())
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(m.helloName); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	// Plaintext connections upgrade when configured and advertised
	if !m.cfg.UseTLS && m.cfg.StartTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(m.sessionTLSConfig()); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth := sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.Mail(n.From, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	if err := c.Rcpt(n.To, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(m.buildMessage(n)); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		m.logger.Warn("QUIT command failed", zap.Error(err))
		// Not returning an error here as the message has already been sent
	}

	return nil
}

// buildMessage assembles the RFC 5322 message: headers, blank line, then the
// body with CRLF line endings.
func (m *SMTPMailer) buildMessage(n core.Notification) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", n.From)
	fmt.Fprintf(&buf, "To: %s\r\n", n.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", sanitizeHeaderValue(n.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", m.now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(normalizeBody(n.Body))
	return buf.Bytes()
}

// sessionTLSConfig clones the TLS configuration, defaulting the server name
// to the relay host
func (m *SMTPMailer) sessionTLSConfig() *tls.Config {
	if m.tlsConfig == nil {
		return &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}
	}
	cfg := m.tlsConfig.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = m.cfg.Host
	}
	return cfg
}

// normalizeBody converts any line ending style to CRLF
func normalizeBody(body string) string {
	if body == "" {
		return ""
	}
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.ReplaceAll(normalized, "\n", "\r\n")
}

// sanitizeHeaderValue strips CR and LF so a header value cannot inject
// additional headers
func sanitizeHeaderValue(value string) string {
	clean := strings.ReplaceAll(value, "\r", " ")
	clean = strings.ReplaceAll(clean, "\n", " ")
	return strings.TrimSpace(clean)
}
