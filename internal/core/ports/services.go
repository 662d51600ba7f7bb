package ports

import (
	"context"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
)

// LatencyProber performs one latency-measuring query for a domain and returns
// the latency in milliseconds. Timeouts, transport errors and malformed
// responses are all reported as a non-nil error.
type LatencyProber interface {
	Measure(ctx context.Context, name string) (float64, error)
}

// Reporter renders the state of all known profiles after a round.
type Reporter interface {
	Report(ctx context.Context, report domain.RoundReport) error
}

// RoundObserver is notified once per finished round.
type RoundObserver interface {
	ObserveRound(report domain.RoundReport)
}

// RoundProber measures every configured domain once for a round and returns
// one outcome per domain in configuration order.
type RoundProber interface {
	ProbeAll(ctx context.Context, round domain.Round) []domain.DomainOutcome
}
