// Package mail implements the outbound email senders used by auth flows.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/gatehouse-api/gatehouse/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

// SMTPConfig holds connection settings for the SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// SMTPSender sends templated emails over SMTP. It implements auth.Mailer.
type SMTPSender struct {
	config    SMTPConfig
	templates *template.Template
}

// NewSMTPSender constructs an SMTPSender with the embedded templates.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("mail: parse templates: %w", err)
	}
	return &SMTPSender{config: cfg, templates: templates}, nil
}

// SendVerificationEmail renders and sends the email verification message.
func (s *SMTPSender) SendVerificationEmail(ctx context.Context, to string, data auth.EmailData) error {
	return s.send(ctx, to, "Please verify your email address", "verify_email.html", data)
}

// SendPasswordResetEmail renders and sends the password reset message.
func (s *SMTPSender) SendPasswordResetEmail(ctx context.Context, to string, data auth.EmailData) error {
	return s.send(ctx, to, "Reset your password", "reset_password.html", data)
}

type templateData struct {
	auth.EmailData
	CurrentYear int
}

func (s *SMTPSender) send(ctx context.Context, to, subject, templateName string, data auth.EmailData) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mail: send %s: %w", templateName, err)
	}
	var body bytes.Buffer
	err := s.templates.ExecuteTemplate(&body, templateName, templateData{
		EmailData:   data,
		CurrentYear: time.Now().UTC().Year(),
	})
	if err != nil {
		return fmt.Errorf("mail: render %s: %w", templateName, err)
	}

	msg := bytes.Buffer{}
	fmt.Fprintf(&msg, "From: %s\r\n", s.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var smtpAuth smtp.Auth
	if s.config.Username != "" {
		smtpAuth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}
	if err := smtp.SendMail(addr, smtpAuth, s.config.From, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

var _ auth.Mailer = (*SMTPSender)(nil)
