package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPAdapter delivers mail through an SMTP relay using STARTTLS when offered.
type SMTPAdapter struct {
	config   domain.EmailConfig
	sendMail sendFunc
	now      func() time.Time
}

func NewSMTPAdapter(cfg domain.EmailConfig) *SMTPAdapter {
	return &SMTPAdapter{
		config:   cfg,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

// Send builds the message and hands it to the relay.
func (a *SMTPAdapter) Send(to []string, subject, body string, isHTML bool) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	message := a.buildMessage(to, subject, body, isHTML)

	var auth smtp.Auth
	if a.config.Username != "" {
		auth = smtp.PlainAuth("", a.config.Username, a.config.Password, a.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", a.config.Host, a.config.Port)
	return a.sendMail(addr, auth, a.config.From, to, message)
}

func (a *SMTPAdapter) buildMessage(to []string, subject, body string, isHTML bool) []byte {
	contentType := `text/plain; charset="UTF-8"`
	if isHTML {
		contentType = `text/html; charset="UTF-8"`
	}

	// A unique id per message keeps clients from threading notifications.
	id := uuid.New().String()
	now := a.now()

	headers := [][2]string{
		{"From", a.config.From},
		{"To", strings.Join(to, ", ")},
		{"Subject", subject},
		{"Date", now.Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s.%d@%s>", id, now.UnixNano(), a.config.Host)},
		{"MIME-Version", "1.0"},
		{"Content-Type", contentType},
		{"X-Entity-Ref-ID", id},
	}

	var b strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
