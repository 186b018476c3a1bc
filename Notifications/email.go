package Notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"Workdesk/Models"
)

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Server       string
	Port         int
	Username     string
	Password     string
	FromEmail    string
	FromName     string
	TLSEnabled   bool
	SkipTLSCheck bool
}

// Email is one outgoing message.
type Email struct {
	To      []string
	Subject string
	Body    string
}

// SendFunc delivers a rendered email.
type SendFunc func(cfg SMTPConfig, message Email) error

// AddressLookup returns the email address of a user, or "" when there is none.
type AddressLookup func(ctx context.Context, uid string) (string, error)

// EmailSink mails notifications of the given types to their recipient.
type EmailSink struct {
	cfg     SMTPConfig
	address AddressLookup
	types   map[Models.NotificationType]bool
	send    SendFunc
}

// NewEmailSink mails every type when types is empty.
func NewEmailSink(cfg SMTPConfig, address AddressLookup, types ...Models.NotificationType) *EmailSink {
	set := make(map[Models.NotificationType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return &EmailSink{cfg: cfg, address: address, types: set, send: SendEmail}
}

func (e *EmailSink) Deliver(ctx context.Context, n Models.Notification) error {
	if len(e.types) > 0 && !e.types[n.Type] {
		return nil
	}
	to, err := e.address(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("email address for %s: %w", n.RecipientID, err)
	}
	if to == "" {
		return nil
	}
	return e.send(e.cfg, Email{
		To:      []string{to},
		Subject: n.Title,
		Body:    Describe(n) + "\r\n",
	})
}

func render(cfg SMTPConfig, message Email) []byte {
	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
		"To":           strings.Join(message.To, ", "),
		"Subject":      message.Subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/plain; charset=UTF-8",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, headers[k])
	}
	b.WriteString("\r\n")
	b.WriteString(message.Body)
	return []byte(b.String())
}

// SendEmail sends message through the configured server, over TLS when enabled.
func SendEmail(cfg SMTPConfig, message Email) error {
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Server)
	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	body := render(cfg, message)

	if !cfg.TLSEnabled {
		return smtp.SendMail(addr, auth, cfg.FromEmail, message.To, body)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName:         cfg.Server,
		InsecureSkipVerify: cfg.SkipTLSCheck,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err = client.Mail(cfg.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range message.To {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to add recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data connection: %w", err)
	}
	if _, err = w.Write(body); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data connection: %w", err)
	}
	return client.Quit()
}
