package services

import (
	"fmt"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/adapters/email"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/adapters/email/templates"
)

// EmailService implements ports.EmailService over SMTP.
type EmailService struct {
	smtpAdapter *email.SMTPAdapter
}

func NewEmailService(cfg domain.EmailConfig) *EmailService {
	return &EmailService{smtpAdapter: email.NewSMTPAdapter(cfg)}
}

func (s *EmailService) SendEmail(to []string, subject, body string, isHTML bool) error {
	if err := s.smtpAdapter.Send(to, subject, body, isHTML); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

var _ ports.Notifier = (*MonitoringNotifier)(nil)

// MonitoringNotifier mails start and stop notifications to a fixed list of recipients.
type MonitoringNotifier struct {
	mailer     ports.EmailService
	recipients []string
}

func NewMonitoringNotifier(mailer ports.EmailService, recipients []string) *MonitoringNotifier {
	return &MonitoringNotifier{mailer: mailer, recipients: recipients}
}

func (n *MonitoringNotifier) NotifyMonitoring(status domain.MonitoringStatus) error {
	body, err := templates.MonitoringTemplate(status)
	if err != nil {
		return fmt.Errorf("rendering monitoring notification: %w", err)
	}

	subject := "dnsq - monitoring stopped"
	if status.IsRunning {
		subject = "dnsq - monitoring started"
	}

	if err := n.mailer.SendEmail(n.recipients, subject, body, true); err != nil {
		return fmt.Errorf("sending monitoring notification: %w", err)
	}
	return nil
}
