// internal/workers/outreach/send-outreach/sender.go
package sendoutreach

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"jobmatch-workers/internal/common/aws"
)

// EmailSender is the delivery backend of the outreach executor.
type EmailSender interface {
	SendEmail(ctx context.Context, from, to, subject, body string) (messageID string, err error)
	Provider() string
}

// SESSender delivers through AWS SES.
type SESSender struct {
	client *aws.SESClient
}

func NewSESSender(client *aws.SESClient) *SESSender {
	return &SESSender{client: client}
}

func (s *SESSender) SendEmail(ctx context.Context, from, to, subject, body string) (string, error) {
	return s.client.SendSimpleEmail(ctx, from, to, subject, body)
}

func (s *SESSender) Provider() string { return "SES" }

// SMTPSender delivers through a plain SMTP relay, optionally over STARTTLS.
type SMTPSender struct {
	config *Config
}

func NewSMTPSender(config *Config) *SMTPSender {
	return &SMTPSender{config: config}
}

func (s *SMTPSender) Provider() string { return "SMTP" }

func (s *SMTPSender) SendEmail(ctx context.Context, from, to, subject, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled before sending email: %w", err)
	}

	message := buildMessage(from, to, subject, body)
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)

	var auth smtp.Auth
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth = smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
	}

	var err error
	if s.config.UseTLS {
		err = s.sendWithTLS(addr, auth, from, to, []byte(message))
	} else {
		err = smtp.SendMail(addr, auth, from, []string{to}, []byte(message))
	}
	if err != nil {
		return "", err
	}

	return generateMessageID(to, s.config.SMTPHost), nil
}

func (s *SMTPSender) sendWithTLS(addr string, auth smtp.Auth, from, to string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName: s.config.SMTPHost,
	}
	if err = client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err = client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

func buildMessage(from, to, subject, body string) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("From: %s\r\n", from))
	builder.WriteString(fmt.Sprintf("To: %s\r\n", to))
	builder.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(body)
	return builder.String()
}

func generateMessageID(to, host string) string {
	local := "user"
	if parts := strings.Split(to, "@"); len(parts) > 0 && parts[0] != "" {
		cleaned := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, parts[0])
		if len(cleaned) > 10 {
			cleaned = cleaned[:10]
		}
		if cleaned != "" {
			local = cleaned
		}
	}
	return fmt.Sprintf("<%d.%s@%s>", time.Now().UnixNano(), local, host)
}
