package ports

import (
	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
)

// EmailService sends mail.
type EmailService interface {
	SendEmail(to []string, subject, body string, isHTML bool) error
}

// Notifier announces monitoring start and stop.
type Notifier interface {
	NotifyMonitoring(status domain.MonitoringStatus) error
}
