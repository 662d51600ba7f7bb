package domain

import (
	"errors"
	"math"
	"time"
)

// ErrProfileNotFound is returned by stores when a domain has never been sampled.
var ErrProfileNotFound = errors.New("profile not found")

// DomainProfile is the running latency aggregate for one monitored domain.
// Latencies are milliseconds, SumOfSquares is ms².
type DomainProfile struct {
	Domain        string    `json:"domain"`
	SampleCount   uint64    `json:"sample_count"`
	RunningMean   float64   `json:"running_mean_ms"`
	SumOfSquares  float64   `json:"sum_of_squares"`
	StdDev        float64   `json:"stddev_ms"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Variance derives the population variance from the stored aggregates.
// It may be slightly negative for profiles read back from a drifting store.
func (p DomainProfile) Variance() float64 {
	if p.SampleCount == 0 {
		return 0
	}
	return p.SumOfSquares/float64(p.SampleCount) - p.RunningMean*p.RunningMean
}

// Valid reports whether the profile satisfies the invariants a restored
// profile must hold before the engine accepts it.
func (p DomainProfile) Valid() bool {
	if p.Domain == "" || p.SampleCount == 0 {
		return false
	}
	for _, v := range []float64{p.RunningMean, p.SumOfSquares, p.StdDev} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return !p.FirstSeenAt.After(p.LastUpdatedAt)
}

// Round identifies one scheduled measurement pass over every domain.
type Round struct {
	ID        string    `json:"id"`
	Number    uint64    `json:"number"`
	StartedAt time.Time `json:"started_at"`
}

// OutcomeStatus classifies what happened to one domain in one round.
type OutcomeStatus string

const (
	OutcomeSuccess         OutcomeStatus = "success"
	OutcomeResolverFailure OutcomeStatus = "resolver_failure"
	OutcomeStoreFailure    OutcomeStatus = "store_failure"
	OutcomeNoReply         OutcomeStatus = "no_reply"
)

// DomainOutcome is the per-domain result of a round. Profile is nil when no
// sample was committed.
type DomainOutcome struct {
	Domain      string         `json:"domain"`
	Status      OutcomeStatus  `json:"status"`
	LatencyMs   float64        `json:"latency_ms,omitempty"`
	Profile     *DomainProfile `json:"profile,omitempty"`
	Created     bool           `json:"created,omitempty"`
	SeriesReset bool           `json:"series_reset,omitempty"`
	Err         string         `json:"error,omitempty"`
}

// Failed reports whether the outcome counts as a failure for the round.
func (o DomainOutcome) Failed() bool {
	return o.Status != OutcomeSuccess
}

// RoundReport summarizes a finished round.
type RoundReport struct {
	Round      Round           `json:"round"`
	FinishedAt time.Time       `json:"finished_at"`
	Outcomes   []DomainOutcome `json:"outcomes"`
	Successes  int             `json:"successes"`
	Failures   int             `json:"failures"`
	Resets     int             `json:"resets"`
}

// NewRoundReport tallies outcomes into a report.
func NewRoundReport(round Round, finishedAt time.Time, outcomes []DomainOutcome) RoundReport {
	report := RoundReport{
		Round:      round,
		FinishedAt: finishedAt,
		Outcomes:   outcomes,
	}
	for _, o := range outcomes {
		if o.Failed() {
			report.Failures++
		} else {
			report.Successes++
		}
		if o.SeriesReset {
			report.Resets++
		}
	}
	return report
}

// Duration is the wall time the round took.
func (r RoundReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.Round.StartedAt)
}

// DefaultDomains is the probe list used when none is configured.
var DefaultDomains = []string{
	"google.com",
	"facebook.com",
	"youtube.com",
	"yahoo.com",
	"live.com",
	"wikipedia.org",
	"baidu.com",
	"blogger.com",
	"msn.com",
	"qq.com",
}
