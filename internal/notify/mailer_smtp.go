package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPMailer sends plain-text mail through a relay. Deliverability concerns
// (DKIM, templates) live in the relay, not here.
type SMTPMailer struct {
	addr string
	from string
}

// NewSMTPMailer configures a mailer for the given relay address
// ("host:port") and From header.
func NewSMTPMailer(addr, from string) *SMTPMailer {
	return &SMTPMailer{addr: addr, from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + strings.Join(n.Recipients, ", "),
		"Subject: " + n.Subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		n.Body,
	}, "\r\n")

	if err := smtp.SendMail(m.addr, nil, m.from, n.Recipients, []byte(msg)); err != nil {
		return fmt.Errorf("send %s mail: %w", n.Kind, err)
	}
	return nil
}
