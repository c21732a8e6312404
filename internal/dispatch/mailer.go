package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/acm-certify/backend/config"
	"github.com/acm-certify/backend/internal/models"
)

// Mailer delivers one certificate email with the rendered PNG attached.
type Mailer interface {
	Send(ctx context.Context, cert *models.Certificate, attachment []byte) error
}

// SMTPMailer sends certificate emails through an SMTP relay.
type SMTPMailer struct {
	cfg    config.EmailConfig
	client *mail.Client
}

// NewSMTPMailer builds a mailer from the email configuration.
func NewSMTPMailer(cfg config.EmailConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(time.Duration(cfg.SendTimeoutSec) * time.Second),
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUser),
			mail.WithPassword(cfg.SMTPPass),
		)
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("build smtp client: %w", err)
	}
	return &SMTPMailer{cfg: cfg, client: client}, nil
}

// Send delivers the certificate email.
func (m *SMTPMailer) Send(ctx context.Context, cert *models.Certificate, attachment []byte) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.FromAddress); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.AddToFormat(cert.RecipientName, cert.Email); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(fmt.Sprintf("Your %s Certificate - %s", m.cfg.FromName, cert.WorkshopName))
	msg.SetBodyString(mail.TypeTextPlain, m.body(cert))
	if err := msg.AttachReader(attachmentName(cert.Code), bytes.NewReader(attachment)); err != nil {
		return fmt.Errorf("attach certificate: %w", err)
	}
	return m.client.DialAndSendWithContext(ctx, msg)
}

func (m *SMTPMailer) body(cert *models.Certificate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", cert.RecipientName)
	fmt.Fprintf(&b, "Congratulations on completing %s! Your certificate is attached.\n\n", cert.WorkshopName)
	fmt.Fprintf(&b, "Certificate code: %s\n", cert.Code)
	if m.cfg.VerifyURL != "" {
		fmt.Fprintf(&b, "Verify it any time at %s/%s\n", strings.TrimRight(m.cfg.VerifyURL, "/"), cert.Code)
	}
	fmt.Fprintf(&b, "\nBest regards,\n%s\n", m.cfg.FromName)
	return b.String()
}

func attachmentName(code string) string {
	return fmt.Sprintf("certificate-%s.png", code)
}
