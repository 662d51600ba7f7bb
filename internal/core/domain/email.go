package domain

import "time"

// MonitoringStatus describes the scheduler state for the control API and notifications.
type MonitoringStatus struct {
	IsRunning       bool          `json:"is_running"`
	Interval        time.Duration `json:"interval_ns"`
	Domains         int           `json:"domains"`
	StartedAt       time.Time     `json:"started_at,omitempty"`
	RoundsCompleted uint64        `json:"rounds_completed"`
	LastRound       *RoundReport  `json:"last_round,omitempty"`
	Message         string        `json:"message,omitempty"`
}

// EmailConfig configures the SMTP notifier.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether enough is configured to send mail.
func (c EmailConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}
