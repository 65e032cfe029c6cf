// Package mail forwards contact form submissions to an external
// mail-delivery collaborator over SMTP.
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/etale-systems/tracehub/internal/config"
)

// Message is one contact form submission.
type Message struct {
	Name     string
	Email    string
	Interest string
}

// Mailer delivers contact submissions.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers via plain SMTP with STARTTLS when offered.
type SMTPMailer struct {
	cfg       config.SMTPConfig
	recipient string
	timeout   time.Duration
}

// NewSMTPMailer creates a mailer for the configured SMTP relay.
func NewSMTPMailer(cfg config.SMTPConfig, recipient string) *SMTPMailer {
	return &SMTPMailer{
		cfg:       cfg,
		recipient: recipient,
		timeout:   30 * time.Second,
	}
}

// Send builds and submits the notification email. Failures surface to
// the caller; nothing is retried here.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	body := m.buildMessage(msg)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	dialer := &net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp relay: %w", err)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(nil); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(m.recipient); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}

func (m *SMTPMailer) buildMessage(msg Message) string {
	interest := msg.Interest
	if interest == "" {
		interest = "Not specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", m.cfg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", m.recipient))
	b.WriteString("Subject: New Contact Form Submission\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("New Contact Form Submission\r\n\r\n")
	b.WriteString(fmt.Sprintf("Name: %s\r\n", msg.Name))
	b.WriteString(fmt.Sprintf("Email: %s\r\n", msg.Email))
	b.WriteString(fmt.Sprintf("Interest: %s\r\n", interest))
	b.WriteString(fmt.Sprintf("\r\nSubmitted at: %s\r\n", time.Now().UTC().Format(time.RFC1123)))

	return b.String()
}
