package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/StripeHooks/app/models"
)

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("SMTP not configured")

// Security selects how the SMTP connection is protected.
type Security string

const (
	SecurityNone     Security = "none"
	SecuritySTARTTLS Security = "starttls"
	SecuritySSL      Security = "ssl"
)

const (
	defaultFrom    = "noreply@localhost"
	defaultTimeout = 15 * time.Second
)

// ParseSecurity maps a stored setting to a Security mode; anything unknown
// means STARTTLS.
func ParseSecurity(s string) Security {
	switch Security(strings.ToLower(strings.TrimSpace(s))) {
	case SecurityNone:
		return SecurityNone
	case SecuritySSL:
		return SecuritySSL
	default:
		return SecuritySTARTTLS
	}
}

// DefaultPort returns the conventional port for a security mode.
func (s Security) DefaultPort() int {
	switch s {
	case SecuritySSL:
		return 465
	case SecurityNone:
		return 25
	default:
		return 587
	}
}

// Config holds everything needed to submit one message.
type Config struct {
	Host      string   `validate:"required"`
	Port      int      `validate:"min=1,max=65535"`
	Security  Security `validate:"oneof=none starttls ssl"`
	User      string
	Password  string
	From      string `validate:"omitempty,email"`
	Timeout   time.Duration
	TLSConfig *tls.Config
}

var validate = validator.New()

// ConfigFromSettings reads the smtp_* keys of a snapshot. The port defaults
// to the one matching the security mode.
func ConfigFromSettings(s models.SettingsSnapshot) Config {
	sec := ParseSecurity(s.Value(models.SettingSMTPSecurity))
	return Config{
		Host:     strings.TrimSpace(s.Value(models.SettingSMTPHost)),
		Port:     s.Int(models.SettingSMTPPort, sec.DefaultPort()),
		Security: sec,
		User:     strings.TrimSpace(s.Value(models.SettingSMTPUser)),
		Password: s.Value(models.SettingSMTPPassword),
		From:     strings.TrimSpace(s.Value(models.SettingSMTPFromEmail)),
	}
}

// Configured reports whether a host is set.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Host) != ""
}

// Validate checks the config before it is stored or used.
func (c Config) Validate() error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if c.Security == "" {
		c.Security = SecuritySTARTTLS
	}
	if c.Port == 0 {
		c.Port = c.Security.DefaultPort()
	}
	return validate.Struct(c)
}

// Sender returns the envelope sender: From, then User, then a local default.
func (c Config) Sender() string {
	if c.From != "" {
		return c.From
	}
	if c.User != "" {
		return c.User
	}
	return defaultFrom
}

func (c Config) addr() string {
	port := c.Port
	if port == 0 {
		port = c.Security.DefaultPort()
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c Config) tlsConfig() *tls.Config {
	if c.TLSConfig != nil {
		return c.TLSConfig
	}
	return &tls.Config{ServerName: c.Host, MinVersion: tls.VersionTLS12}
}

// SendMail delivers a plain text message to a single recipient.
func SendMail(ctx context.Context, cfg Config, to, subject, body string) error {
	if !cfg.Configured() {
		return ErrNotConfigured
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("recipient is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dial(ctx, cfg)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", cfg.addr(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		return fmt.Errorf("smtp hello: %w", err)
	}

	if cfg.Security == SecuritySTARTTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("smtp server does not support STARTTLS")
		}
		if err := c.StartTLS(cfg.tlsConfig()); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if cfg.User != "" && cfg.Password != "" {
		if err := c.Auth(cfg.auth()); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	from := cfg.Sender()
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(from, to, subject, body)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data end: %w", err)
	}
	if err := c.Quit(); err != nil {
		log.Debugf("[Mail] QUIT failed after delivery to %s: %v", to, err)
	}

	log.Infof("[Mail] Email sent to %s via %s", to, cfg.addr())
	return nil
}

// auth picks PLAIN credentials for the connection. smtp.PlainAuth refuses
// unencrypted remote servers, so the plaintext mode uses plainAuth.
func (c Config) auth() smtp.Auth {
	if c.Security == SecurityNone {
		return plainAuth{username: c.User, password: c.Password}
	}
	return smtp.PlainAuth("", c.User, c.Password, c.Host)
}

// plainAuth is RFC 4616 PLAIN without the TLS requirement.
type plainAuth struct {
	identity, username, password string
}

func (a plainAuth) Start(*smtp.ServerInfo) (string, []byte, error) {
	return "PLAIN", []byte(a.identity + "\x00" + a.username + "\x00" + a.password), nil
}

func (a plainAuth) Next(_ []byte, more bool) ([]byte, error) {
	if more {
		return nil, errors.New("unexpected server challenge")
	}
	return nil, nil
}

func dial(ctx context.Context, cfg Config) (net.Conn, error) {
	d := &net.Dialer{}
	if cfg.Security == SecuritySSL {
		td := &tls.Dialer{NetDialer: d, Config: cfg.tlsConfig()}
		return td.DialContext(ctx, "tcp", cfg.addr())
	}
	return d.DialContext(ctx, "tcp", cfg.addr())
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
