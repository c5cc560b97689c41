package config

import (
	"strings"
	"time"
)

// DefaultSender is the envelope sender used when neither an override nor an
// SMTP username is configured.
const DefaultSender = "no-reply@joby.aero"

// ServerConfig represents the configuration for the HTTP server
type ServerConfig struct {
	ListenAddress  string
	AllowedOrigin  string
	AllowlistCIDRs []string
}

// SecurityConfig represents the configuration for the security mailbox
type SecurityConfig struct {
	Mailbox string
}

// SMTPConfig represents the configuration for the outbound mail relay
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
	UseTLS   bool
	StartTLS bool
	Timeout  time.Duration
}

// EffectiveSender resolves the envelope sender: the configured override, else
// the SMTP username, else the fixed default.
func (c SMTPConfig) EffectiveSender() string {
	if c.Sender != "" {
		return c.Sender
	}
	if c.Username != "" {
		return c.Username
	}
	return DefaultSender
}

// DedupConfig represents the configuration for submission deduplication
type DedupConfig struct {
	Window         time.Duration
	SweepFrequency time.Duration
}

// DeliveryConfig represents the configuration for the delivery dispatcher
type DeliveryConfig struct {
	QueueSize     int
	MaxConcurrent int
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:  c.GetString("server.listen_address"),
		AllowedOrigin:  c.GetString("server.allowed_origin"),
		AllowlistCIDRs: splitCSV(c.GetString("server.allowlist_cidrs")),
	}
}

// GetSecurity returns the security mailbox configuration
func (c *Config) GetSecurity() SecurityConfig {
	return SecurityConfig{
		Mailbox: c.GetString("security.mailbox"),
	}
}

// GetSMTP returns the SMTP relay configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Host:     c.GetString("smtp.host"),
		Port:     c.GetInt("smtp.port"),
		Username: c.GetString("smtp.username"),
		Password: c.GetString("smtp.password"),
		Sender:   c.GetString("smtp.sender"),
		UseTLS:   c.GetBool("smtp.use_tls"),
		StartTLS: c.GetBool("smtp.starttls"),
		Timeout:  c.GetDuration("smtp.timeout"),
	}
}

// GetDedup returns the deduplication configuration
func (c *Config) GetDedup() DedupConfig {
	return DedupConfig{
		Window:         c.GetDuration("dedup.window"),
		SweepFrequency: c.GetDuration("dedup.sweep_frequency"),
	}
}

// GetDelivery returns the delivery dispatcher configuration
func (c *Config) GetDelivery() DeliveryConfig {
	return DeliveryConfig{
		QueueSize:     c.GetInt("delivery.queue_size"),
		MaxConcurrent: c.GetInt("delivery.max_concurrent"),
	}
}

// splitCSV splits a comma-separated value, trimming whitespace and dropping
// empty entries. An empty input yields a nil slice.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
