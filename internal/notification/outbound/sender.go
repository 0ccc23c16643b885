// Package outbound delivers the first message to a newly ingested lead's
// contact over SMTP.
package outbound

import (
	"context"
	"fmt"
	"net"
	"time"

	"dealflow_backend/platform/config"
	"dealflow_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// FirstMessage is the introduction sent to a property contact.
type FirstMessage struct {
	ToEmail     string
	ContactName string
	Address     string
}

// Sender delivers outbound messages.
type Sender interface {
	SendFirstMessage(ctx context.Context, msg FirstMessage) error
}

// NoopSender drops every message. It is used when SMTP is not configured.
type NoopSender struct {
	log *logger.Logger
}

func (n NoopSender) SendFirstMessage(_ context.Context, msg FirstMessage) error {
	if n.log != nil {
		n.log.Info("smtp not configured, first message skipped", "address", msg.Address)
	}
	return nil
}

// NewSender returns an SMTP sender, or a NoopSender when SMTP is disabled.
func NewSender(cfg config.SMTPConfig, log *logger.Logger) Sender {
	if !cfg.IsSMTPEnabled() {
		return NoopSender{log: log}
	}
	return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(), cfg.GetSMTPFromAddress(), cfg.GetSMTPFromName())
}

// SMTPSender implements Sender using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) SendFirstMessage(ctx context.Context, m FirstMessage) error {
	content, err := renderFirstMessage(m, s.fromName)
	if err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(m.ToEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(firstMessageSubject(m.Address))
	msg.SetBodyString(gomail.TypeTextHTML, content)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
