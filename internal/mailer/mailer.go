package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends plain text mail through an SMTP relay with STARTTLS.
type SMTPMailer struct {
	config Config
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(config Config) (*SMTPMailer, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if config.From == "" {
		return nil, fmt.Errorf("from address is required")
	}
	return &SMTPMailer{config: config, send: smtp.SendMail}, nil
}

// SendPasswordReset mails a reset link to a single recipient.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, name, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := fmt.Sprintf("Hello %s,\r\n\r\n"+
		"An administrator requested a password reset for your TaskFlow account.\r\n"+
		"Open the link below to choose a new password:\r\n\r\n%s\r\n\r\n"+
		"If you did not expect this email you can ignore it.\r\n", name, link)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString("Subject: Reset your TaskFlow password\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if m.config.Username != "" && m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	if err := m.send(addr, auth, extractEmail(m.config.From), []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// LogMailer stands in for SMTP in development. It logs the recipient only.
type LogMailer struct {
	Log logrus.FieldLogger
}

func (m LogMailer) SendPasswordReset(ctx context.Context, to, name, link string) error {
	m.Log.WithField("to", to).Info("SMTP not configured, password reset email not sent")
	return nil
}

// extractEmail pulls the address out of "Name <addr>".
func extractEmail(addr string) string {
	if start := strings.Index(addr, "<"); start >= 0 {
		if end := strings.Index(addr[start:], ">"); end > 0 {
			return addr[start+1 : start+end]
		}
	}
	return addr
}
