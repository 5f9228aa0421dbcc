// Package mail sends transactional email.
package mail

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"

	gomail "github.com/wneessen/go-mail"
)

type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type SMTPSender struct {
	client *gomail.Client
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	c, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail client: %w", err)
	}
	return &SMTPSender{client: c}, nil
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, m.HTML)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail send: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them.
// Used when no SMTP host is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info("mail_not_sent", "reason", "smtp not configured", "to", m.To, "subject", m.Subject)
	return nil
}

// ResetEmail renders the body of the password reset mail.
func ResetEmail(frontendURL, token string) string {
	link := strings.TrimRight(frontendURL, "/") + "/reset?resetToken=" + url.QueryEscape(token)
	escaped := html.EscapeString(link)

	var b strings.Builder
	b.WriteString(`<div style="border: 1px solid black; padding: 20px; font-family: sans-serif; line-height: 2; font-size: 20px;">`)
	b.WriteString(`<h2>Hello There!</h2>`)
	b.WriteString(`<p>Your password reset token is here!</p>`)
	fmt.Fprintf(&b, `<p><a href="%s">Click here to reset</a></p>`, escaped)
	b.WriteString(`</div>`)
	return b.String()
}
