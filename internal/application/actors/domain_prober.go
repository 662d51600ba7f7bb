package actors

import (
	"context"
	"log/slog"
	"time"

	"github.com/anthdm/hollywood/actor"

	"github.com/luispfcanales/daemon-dnsq/internal/application/events"
	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
	"github.com/luispfcanales/daemon-dnsq/internal/core/stats"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/adapters/probers"
)

// DomainProber owns every measurement of a single domain. Its mailbox is
// what keeps engine and store updates for the domain strictly ordered.
type DomainProber struct {
	name         string
	prober       ports.LatencyProber
	stats        *stats.Engine
	repository   ports.ProfileRepository
	eventBus     *events.EventBus
	storeTimeout time.Duration
	log          *slog.Logger
}

func NewDomainProber(name string, deps ProberDeps) actor.Producer {
	return func() actor.Receiver {
		return &DomainProber{
			name:         name,
			prober:       deps.Prober,
			stats:        deps.Stats,
			repository:   deps.Repository,
			eventBus:     deps.EventBus,
			storeTimeout: deps.StoreTimeout,
			log:          deps.Log.With("domain", name),
		}
	}
}

func (d *DomainProber) Receive(c *actor.Context) {
	switch msg := c.Message().(type) {
	case actor.Started:
		d.log.Debug("DomainProber started", "pid", c.PID())

	case ProbeDomain:
		res := d.probe()
		if c.Sender() != nil {
			c.Respond(res.outcome)
		}
		d.publish(c, msg.Round, res)

	case actor.Stopped:
		d.log.Debug("DomainProber stopped", "pid", c.PID())
	}
}

type probeResult struct {
	outcome  domain.DomainOutcome
	timeout  bool
	previous domain.DomainProfile
}

// probe measures, folds the sample into the engine and persists the new
// snapshot. The engine commit stands even when the store write fails.
func (d *DomainProber) probe() probeResult {
	res := probeResult{outcome: domain.DomainOutcome{Domain: d.name}}
	res.previous, _ = d.stats.Profile(d.name)

	latency, err := d.prober.Measure(context.Background(), d.name)
	if err != nil {
		res.outcome.Status = domain.OutcomeResolverFailure
		res.outcome.Err = err.Error()
		res.timeout = probers.IsTimeout(err)
		return res
	}
	res.outcome.LatencyMs = latency

	update, err := d.stats.RecordSample(d.name, latency)
	if err != nil {
		res.outcome.Status = domain.OutcomeResolverFailure
		res.outcome.Err = err.Error()
		return res
	}
	res.outcome.Profile = &update.Profile
	res.outcome.Created = update.Created
	res.outcome.SeriesReset = update.Reset

	ctx, cancel := context.WithTimeout(context.Background(), d.storeTimeout)
	defer cancel()
	if err := d.repository.Upsert(ctx, update.Profile); err != nil {
		res.outcome.Status = domain.OutcomeStoreFailure
		res.outcome.Err = err.Error()
		return res
	}

	res.outcome.Status = domain.OutcomeSuccess
	return res
}

func (d *DomainProber) publish(c *actor.Context, round domain.Round, res probeResult) {
	outcome := res.outcome
	c.Engine().BroadcastEvent(DomainProbed{Round: round, Outcome: outcome, Timeout: res.timeout})
	if outcome.SeriesReset {
		c.Engine().BroadcastEvent(SeriesReset{
			Round:     round,
			Domain:    d.name,
			LatencyMs: outcome.LatencyMs,
			Previous:  res.previous,
		})
	}

	if d.eventBus == nil {
		return
	}
	eventType := events.TypeProfileUpdated
	switch {
	case outcome.Status == domain.OutcomeResolverFailure:
		eventType = events.TypeProbeFailed
	case outcome.SeriesReset:
		eventType = events.TypeSeriesReset
	}
	d.eventBus.Broadcast(events.Event{Type: eventType, Data: outcome})
}
