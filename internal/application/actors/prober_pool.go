package actors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anthdm/hollywood/actor"

	"github.com/luispfcanales/daemon-dnsq/internal/application/events"
	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
	"github.com/luispfcanales/daemon-dnsq/internal/core/stats"
)

// replySlack is added on top of the probe and store timeouts when waiting
// for a DomainProber's reply.
const replySlack = 2 * time.Second

var _ ports.RoundProber = (*ProberPool)(nil)

// ProberDeps is shared by every DomainProber of a pool.
type ProberDeps struct {
	Prober       ports.LatencyProber
	Stats        *stats.Engine
	Repository   ports.ProfileRepository
	EventBus     *events.EventBus
	ProbeTimeout time.Duration
	StoreTimeout time.Duration
	InboxSize    int
	Log          *slog.Logger
}

// ProberPool spawns one DomainProber per domain and fans a round out to them.
type ProberPool struct {
	engine       *actor.Engine
	domains      []string
	pids         map[string]*actor.PID
	replyTimeout time.Duration
	log          *slog.Logger
	mu           sync.RWMutex
}

func NewProberPool(engine *actor.Engine, domains []string, deps ProberDeps) *ProberPool {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.InboxSize <= 0 {
		deps.InboxSize = 64
	}

	p := &ProberPool{
		engine:       engine,
		domains:      append([]string(nil), domains...),
		pids:         make(map[string]*actor.PID, len(domains)),
		replyTimeout: deps.ProbeTimeout + deps.StoreTimeout + replySlack,
		log:          deps.Log,
	}
	for _, name := range p.domains {
		p.pids[name] = engine.Spawn(
			NewDomainProber(name, deps),
			"prober-"+name,
			actor.WithInboxSize(deps.InboxSize),
		)
	}
	return p
}

// ProbeAll measures every domain once and returns the outcomes in the order
// the domains were configured. Cancellation of ctx does not abandon the
// requests; each actor finishes and commits its sample regardless.
func (p *ProberPool) ProbeAll(_ context.Context, round domain.Round) []domain.DomainOutcome {
	p.mu.RLock()
	defer p.mu.RUnlock()

	outcomes := make([]domain.DomainOutcome, len(p.domains))
	var wg sync.WaitGroup
	for i, name := range p.domains {
		pid, ok := p.pids[name]
		if !ok {
			outcomes[i] = noReply(name, fmt.Errorf("prober stopped"))
			continue
		}

		wg.Add(1)
		go func(i int, name string, pid *actor.PID) {
			defer wg.Done()
			outcomes[i] = p.request(name, pid, round)
		}(i, name, pid)
	}
	wg.Wait()
	return outcomes
}

func (p *ProberPool) request(name string, pid *actor.PID, round domain.Round) domain.DomainOutcome {
	res, err := p.engine.Request(pid, ProbeDomain{Round: round}, p.replyTimeout).Result()
	if err != nil {
		p.log.Warn("no reply from domain prober", "domain", name, "round", round.Number, "error", err)
		return noReply(name, err)
	}

	outcome, ok := res.(domain.DomainOutcome)
	if !ok {
		return noReply(name, fmt.Errorf("unexpected reply %T", res))
	}
	return outcome
}

func noReply(name string, err error) domain.DomainOutcome {
	return domain.DomainOutcome{
		Domain: name,
		Status: domain.OutcomeNoReply,
		Err:    err.Error(),
	}
}

// Domains returns the configured domains in order.
func (p *ProberPool) Domains() []string {
	return append([]string(nil), p.domains...)
}

// Stop poisons every DomainProber and waits until each has drained its inbox,
// so a sample still being committed by a late prober reaches the store
// before the caller closes it. The wait is bounded by the reply timeout.
func (p *ProberPool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.replyTimeout)
	defer cancel()

	stopped := make([]context.Context, 0, len(p.pids))
	for name, pid := range p.pids {
		stopped = append(stopped, p.engine.PoisonCtx(ctx, pid))
		delete(p.pids, name)
	}
	for _, done := range stopped {
		<-done.Done()
	}
	if err := ctx.Err(); errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("domain probers did not stop within %s: %w", p.replyTimeout, err)
	}
	return nil
}
