package dispatcher

import (
	"context"
	"strings"
	"time"

	"github.com/blockedby/stockwatch-os/internal/logger"
	"github.com/blockedby/stockwatch-os/internal/mail"
	"github.com/blockedby/stockwatch-os/internal/models"
	"github.com/blockedby/stockwatch-os/internal/report"
)

// SMTPSender renders a report into a MIME message and delivers it with a
// fresh single-use SMTP client built from the tenant's own settings.
type SMTPSender struct {
	timeout time.Duration
	log     *logger.Logger
}

// NewSMTPSender creates a mail sender with the given per-step socket timeout.
func NewSMTPSender(timeout time.Duration, log *logger.Logger) *SMTPSender {
	return &SMTPSender{timeout: timeout, log: log}
}

// Send builds and delivers the mail report. On success the returned detail
// notes any recipients the server rejected.
func (s *SMTPSender) Send(ctx context.Context, t models.Tenant, rep *models.ReportModel) (string, error) {
	htmlBody, err := report.RenderHTML(rep)
	if err != nil {
		return "", err
	}

	msg, err := mail.BuildMessage(
		t.SMTP.FromName,
		t.MailFrom(),
		t.MailTo,
		report.Subject(rep),
		report.FormatText(rep),
		htmlBody,
	)
	if err != nil {
		return "", err
	}

	client := mail.NewClient(mail.Config{
		Host:       t.SMTP.Host,
		Port:       t.SMTP.Port,
		Username:   t.SMTP.Username,
		Password:   t.SMTP.Password,
		Encryption: t.SMTP.Encryption,
		Timeout:    s.timeout,
	}, s.log)

	result, err := client.Send(ctx, t.MailFrom(), splitRecipients(t.MailTo), msg)
	if err != nil {
		return "", err
	}

	if len(result.Rejected) > 0 {
		return "rejected recipients: " + strings.Join(result.Rejected, "; "), nil
	}
	return "", nil
}

// splitRecipients turns a comma-separated address list into envelope
// recipients.
func splitRecipients(to string) []string {
	parts := strings.Split(to, ",")
	recipients := make([]string, 0, len(parts))
	for _, p := range parts {
		if addr := strings.TrimSpace(p); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return recipients
}
