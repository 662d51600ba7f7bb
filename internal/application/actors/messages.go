package actors

import (
	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
)

// ProbeDomain asks a DomainProber to run one measurement for the round. The
// reply is a domain.DomainOutcome.
type ProbeDomain struct {
	Round domain.Round
}

// DomainProbed is broadcast on the engine event stream after every probe.
type DomainProbed struct {
	Round   domain.Round
	Outcome domain.DomainOutcome
	Timeout bool
}

// SeriesReset is broadcast when a negative variance restarted a domain's series.
type SeriesReset struct {
	Round     domain.Round
	Domain    string
	LatencyMs float64
	Previous  domain.DomainProfile
}
