package actors

import (
	"log/slog"

	"github.com/anthdm/hollywood/actor"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
)

// ConsoleLogger subscribes to the engine event stream and logs probe events.
type ConsoleLogger struct {
	log *slog.Logger
}

func NewConsoleLogger(log *slog.Logger) actor.Producer {
	if log == nil {
		log = slog.Default()
	}
	return func() actor.Receiver {
		return &ConsoleLogger{log: log}
	}
}

func (cl *ConsoleLogger) Receive(c *actor.Context) {
	switch msg := c.Message().(type) {
	case actor.Started:
		cl.log.Debug("ConsoleLogger started", "pid", c.PID())

	case DomainProbed:
		cl.handleDomainProbed(msg)

	case SeriesReset:
		cl.log.Info("variance went negative, series restarted",
			"domain", msg.Domain,
			"round", msg.Round.Number,
			"latency_ms", msg.LatencyMs,
			"previous_count", msg.Previous.SampleCount,
			"previous_mean_ms", msg.Previous.RunningMean)

	case actor.Stopped:
		cl.log.Debug("ConsoleLogger stopped", "pid", c.PID())
	}
}

func (cl *ConsoleLogger) handleDomainProbed(msg DomainProbed) {
	o := msg.Outcome
	switch o.Status {
	case domain.OutcomeSuccess:
		attrs := []any{"domain", o.Domain, "round", msg.Round.Number, "latency_ms", o.LatencyMs}
		if o.Profile != nil {
			attrs = append(attrs,
				"count", o.Profile.SampleCount,
				"mean_ms", o.Profile.RunningMean,
				"stddev_ms", o.Profile.StdDev)
		}
		cl.log.Debug("sample recorded", attrs...)
	case domain.OutcomeResolverFailure:
		reason := "error"
		if msg.Timeout {
			reason = "timeout"
		}
		cl.log.Warn("probe failed", "domain", o.Domain, "round", msg.Round.Number, "reason", reason, "error", o.Err)
	case domain.OutcomeStoreFailure:
		cl.log.Error("store write failed", "domain", o.Domain, "round", msg.Round.Number, "error", o.Err)
	}
}
