package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/jordan-wright/email"
)

// SMTPConfig holds SMTP transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// UseTLS upgrades a plain connection with STARTTLS.
	UseTLS bool
	// UseSSL dials with implicit TLS.
	UseSSL bool
}

// SMTPSender sends messages through an SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger.With("component", "mail_smtp")}
}

// Send delivers msg. The underlying client does not honour ctx, so cancellation is
// only observed before the connection is opened.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e, err := s.build(msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	start := time.Now()
	switch {
	case s.cfg.UseSSL:
		err = e.SendWithTLS(addr, auth, tlsConfig)
	case s.cfg.UseTLS:
		err = e.SendWithStartTLS(addr, auth, tlsConfig)
	default:
		err = e.Send(addr, auth)
	}
	if err != nil {
		return fmt.Errorf("smtp send to %s: %w", addr, err)
	}

	s.logger.Debug("mail sent",
		"subject", msg.Subject,
		"recipients", len(e.To),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *SMTPSender) build(msg *Message) (*email.Email, error) {
	to := Recipients(msg.To...)
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}

	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = to
	e.Subject = msg.Subject
	if msg.Text != "" {
		e.Text = []byte(msg.Text)
	}
	if msg.HTML != "" {
		e.HTML = []byte(msg.HTML)
	}
	return e, nil
}
